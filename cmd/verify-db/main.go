// verify-db checks that stored balances and stock levels replay from the journals and
// lots. It holds a session advisory lock so two runs never overlap, and exits non-zero
// on any mismatch.
//
// Usage: go run ./cmd/verify-db
package main

import (
	"context"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"accounting-engine/internal/app"
	"accounting-engine/internal/config"
	"accounting-engine/internal/core"
	"accounting-engine/internal/store/postgres"
)

const advisoryLockID = 7462839

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("[CONFIG] %v", err)
	}
	logger := config.NewLogger(cfg)

	ctx := context.Background()
	pool := connectDB(ctx, cfg.DatabaseURL, logger)
	defer pool.Close()

	conn := acquireLock(ctx, pool, logger)
	defer conn.Release()

	svc := app.NewAppService(postgres.New(pool), core.NoopLocker{}, logger, cfg.TxTimeout)
	report, err := svc.Reconcile(ctx)
	if err != nil {
		logger.Fatalf("[VERIFY] failed: %v", err)
	}

	fields := logrus.Fields{"journals": report.Journals, "accounts": report.Accounts, "products": report.Products}
	if report.OK() {
		logger.WithFields(fields).Info("[DONE] books reconcile")
		return
	}
	for _, m := range report.Mismatches {
		logger.WithFields(logrus.Fields{
			"check":    m.Check,
			"subject":  m.Subject,
			"expected": m.Expected,
			"actual":   m.Actual,
		}).Error("[MISMATCH]")
	}
	logger.WithFields(fields).Errorf("[DONE] %d mismatch(es)", len(report.Mismatches))
	conn.Release()
	pool.Close()
	os.Exit(1)
}

func connectDB(ctx context.Context, url string, logger *logrus.Logger) *pgxpool.Pool {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		logger.Fatalf("[CONNECT] failed to create pool: %v", err)
	}

	if err := pool.Ping(connCtx); err != nil {
		logger.Fatalf("[CONNECT] failed to ping database: %v", err)
	}

	logger.Info("[CONNECT] success")
	return pool
}

func acquireLock(ctx context.Context, pool *pgxpool.Pool, logger *logrus.Logger) *pgxpool.Conn {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		logger.Fatalf("[LOCK] failed to acquire connection for lock: %v", err)
	}

	var locked bool
	err = conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", advisoryLockID).Scan(&locked)
	if err != nil {
		logger.Fatalf("[LOCK] failed to query advisory lock: %v", err)
	}

	if !locked {
		logger.Fatal("[LOCK] failed: another verifier or reset is currently running")
	}

	logger.Info("[LOCK] success")
	return conn
}
