package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"accounting-engine/internal/core"
)

// obligationTables names the tables and columns backing one obligation kind.
type obligationTables struct {
	table        string
	counterparty string
	source       string
	payments     string
	paymentFK    string
	label        string
}

var obligationKinds = map[core.ObligationKind]obligationTables{
	core.Payable: {
		table: "payables", counterparty: "supplier_id", source: "purchase_id",
		payments: "payable_payments", paymentFK: "payable_id", label: "payable",
	},
	core.Receivable: {
		table: "receivables", counterparty: "customer_id", source: "sale_id",
		payments: "receivable_payments", paymentFK: "receivable_id", label: "receivable",
	},
}

func tablesFor(kind core.ObligationKind) (obligationTables, error) {
	t, ok := obligationKinds[kind]
	if !ok {
		return obligationTables{}, core.Validationf("unknown obligation kind %q", kind)
	}
	return t, nil
}

func (o obligationTables) columns() string {
	return `id, ` + o.counterparty + `, ` + o.source + `, journal_entry_id, amount, paid_amount,
		remaining_amount, due_date, status`
}

func scanObligation(kind core.ObligationKind) func(pgx.Row) (core.Obligation, error) {
	return func(row pgx.Row) (core.Obligation, error) {
		o := core.Obligation{Kind: kind}
		err := row.Scan(&o.ID, &o.CounterpartyID, &o.SourceID, &o.JournalEntryID, &o.Amount, &o.PaidAmount,
			&o.RemainingAmount, &o.DueDate, &o.Status)
		return o, err
	}
}

func (t *tx) CreateObligation(ctx context.Context, o core.Obligation) (*core.Obligation, error) {
	tb, err := tablesFor(o.Kind)
	if err != nil {
		return nil, err
	}
	id, err := t.insertID(ctx, tb.label, `
		INSERT INTO `+tb.table+` (`+tb.counterparty+`, `+tb.source+`, journal_entry_id, amount, paid_amount,
			remaining_amount, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		o.CounterpartyID, o.SourceID, o.JournalEntryID, o.Amount, o.PaidAmount,
		o.RemainingAmount, o.DueDate, o.Status)
	if err != nil {
		return nil, err
	}
	o.ID = id
	return &o, nil
}

func (t *tx) GetObligation(ctx context.Context, kind core.ObligationKind, id int) (*core.Obligation, error) {
	tb, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	o, err := scanObligation(kind)(t.tx.QueryRow(ctx,
		`SELECT `+tb.columns()+` FROM `+tb.table+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, string(kind), id)
	}
	return &o, nil
}

func (t *tx) FindObligationBySource(ctx context.Context, kind core.ObligationKind, sourceID int) (*core.Obligation, error) {
	tb, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	o, err := scanObligation(kind)(t.tx.QueryRow(ctx,
		`SELECT `+tb.columns()+` FROM `+tb.table+` WHERE `+tb.source+` = $1 FOR UPDATE`, sourceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s for source %d: %w", tb.label, sourceID, err)
	}
	return &o, nil
}

func (t *tx) UpdateObligation(ctx context.Context, o core.Obligation) error {
	tb, err := tablesFor(o.Kind)
	if err != nil {
		return err
	}
	return t.execOne(ctx, tb.label, o.ID, `
		UPDATE `+tb.table+`
		SET `+tb.counterparty+` = $2, `+tb.source+` = $3, journal_entry_id = $4, amount = $5, paid_amount = $6,
		    remaining_amount = $7, due_date = $8, status = $9
		WHERE id = $1`,
		o.ID, o.CounterpartyID, o.SourceID, o.JournalEntryID, o.Amount, o.PaidAmount,
		o.RemainingAmount, o.DueDate, o.Status)
}

func (t *tx) DeleteObligation(ctx context.Context, kind core.ObligationKind, id int) error {
	tb, err := tablesFor(kind)
	if err != nil {
		return err
	}
	return t.execOne(ctx, tb.label, id, `DELETE FROM `+tb.table+` WHERE id = $1`, id)
}

func (t *tx) ListObligations(ctx context.Context, kind core.ObligationKind) ([]core.Obligation, error) {
	tb, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, `SELECT `+tb.columns()+` FROM `+tb.table+` ORDER BY id`)
	return collect(rows, err, scanObligation(kind))
}

// ── Payments ──────────────────────────────────────────────────────────────────

func (o obligationTables) paymentColumns() string {
	return `id, reference, ` + o.paymentFK + `, COALESCE(journal_id, 0), journal_entry_id, amount,
		payment_date, method, created_by`
}

func scanPayment(kind core.ObligationKind) func(pgx.Row) (core.Payment, error) {
	return func(row pgx.Row) (core.Payment, error) {
		p := core.Payment{Kind: kind}
		err := row.Scan(&p.ID, &p.Reference, &p.ObligationID, &p.JournalID, &p.JournalEntryID, &p.Amount,
			&p.PaymentDate, &p.Method, &p.CreatedBy)
		return p, err
	}
}

func (t *tx) CreatePayment(ctx context.Context, p core.Payment) (*core.Payment, error) {
	tb, err := tablesFor(p.Kind)
	if err != nil {
		return nil, err
	}
	id, err := t.insertID(ctx, tb.label+" payment", `
		INSERT INTO `+tb.payments+` (reference, `+tb.paymentFK+`, journal_id, journal_entry_id, amount,
			payment_date, method, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		p.Reference, p.ObligationID, nullID(p.JournalID), p.JournalEntryID, p.Amount,
		p.PaymentDate, p.Method, p.CreatedBy)
	if err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

func (t *tx) GetPayment(ctx context.Context, kind core.ObligationKind, id int) (*core.Payment, error) {
	tb, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	p, err := scanPayment(kind)(t.tx.QueryRow(ctx,
		`SELECT `+tb.paymentColumns()+` FROM `+tb.payments+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, tb.label+" payment", id)
	}
	return &p, nil
}

func (t *tx) DeletePayment(ctx context.Context, kind core.ObligationKind, id int) error {
	tb, err := tablesFor(kind)
	if err != nil {
		return err
	}
	return t.execOne(ctx, tb.label+" payment", id, `DELETE FROM `+tb.payments+` WHERE id = $1`, id)
}

func (t *tx) ListPaymentsByObligation(ctx context.Context, kind core.ObligationKind, obligationID int) ([]core.Payment, error) {
	tb, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx,
		`SELECT `+tb.paymentColumns()+` FROM `+tb.payments+` WHERE `+tb.paymentFK+` = $1 ORDER BY id`, obligationID)
	return collect(rows, err, scanPayment(kind))
}
