// Package postgres implements the core store ports on PostgreSQL via pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"accounting-engine/internal/core"
)

// SQLSTATE codes that mean "try the whole scope again".
const (
	serializationFailure = "40001"
	deadlockDetected     = "40P01"
)

// Store runs each scope in one serializable pgx transaction.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// InTx commits when fn returns nil and rolls back otherwise.
// Serialization failures and deadlocks surface as core.ErrRetryable.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}
	defer pgTx.Rollback(ctx) //nolint:errcheck

	if err := fn(ctx, &tx{tx: pgTx}); err != nil {
		return classify(err)
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}
	return nil
}

// classify turns retryable PostgreSQL failures into core.ErrRetryable and leaves
// everything else untouched.
func classify(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == serializationFailure || pgErr.Code == deadlockDetected) {
		if errors.Is(err, core.ErrRetryable) {
			return err
		}
		return core.Retryable(err)
	}
	return err
}

// tx implements core.Tx on top of one pgx transaction.
type tx struct {
	tx pgx.Tx
}

var _ core.Tx = (*tx)(nil)

// notFound converts pgx.ErrNoRows into a typed not-found error.
func notFound(err error, what string, key any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.NotFoundf("%s %v not found", what, key)
	}
	return fmt.Errorf("failed to load %s %v: %w", what, key, err)
}

// execOne runs a statement that must touch exactly one row.
func (t *tx) execOne(ctx context.Context, what string, id int, sql string, args ...any) error {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("failed to write %s %d: %w", what, id, err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFoundf("%s %d not found", what, id)
	}
	return nil
}

func (t *tx) exec(ctx context.Context, what string, sql string, args ...any) error {
	if _, err := t.tx.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("failed to write %s: %w", what, err)
	}
	return nil
}

func (t *tx) insertID(ctx context.Context, what string, sql string, args ...any) (int, error) {
	var id int
	if err := t.tx.QueryRow(ctx, sql, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to insert %s: %w", what, err)
	}
	return id, nil
}

func (t *tx) count(ctx context.Context, sql string, args ...any) (int, error) {
	var n int
	if err := t.tx.QueryRow(ctx, sql, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

func (t *tx) sum(ctx context.Context, sql string, args ...any) (decimal.Decimal, error) {
	var v decimal.Decimal
	if err := t.tx.QueryRow(ctx, sql, args...).Scan(&v); err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum rows: %w", err)
	}
	return v, nil
}

// collect scans every row with scan.
func collect[T any](rows pgx.Rows, err error, scan func(pgx.Row) (T, error)) ([]T, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return out, nil
}
