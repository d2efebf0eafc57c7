package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"accounting-engine/internal/core"
)

// ── Accounts ──────────────────────────────────────────────────────────────────

const accountColumns = `id, code, name, type, normal_balance, opening_balance, balance`

func scanAccount(row pgx.Row) (core.Account, error) {
	var a core.Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &a.OpeningBalance, &a.Balance)
	return a, err
}

func (t *tx) GetAccount(ctx context.Context, id int) (*core.Account, error) {
	a, err := scanAccount(t.tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "account", id)
	}
	return &a, nil
}

func (t *tx) GetAccountByCode(ctx context.Context, code string) (*core.Account, error) {
	a, err := scanAccount(t.tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE code = $1 FOR UPDATE`, code))
	if err != nil {
		return nil, notFound(err, "account code", code)
	}
	return &a, nil
}

func (t *tx) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY code, id`)
	return collect(rows, err, scanAccount)
}

func (t *tx) AdjustBalance(ctx context.Context, code string, newBalance decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, `UPDATE accounts SET balance = $2 WHERE code = $1`, code, newBalance)
	if err != nil {
		return fmt.Errorf("failed to update balance of account %s: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return core.NotFoundf("account code %s not found", code)
	}
	return nil
}

func (t *tx) GetDefaultAccountMapping(ctx context.Context) (*core.DefaultAccountMapping, error) {
	var m core.DefaultAccountMapping
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(cash_account_id, 0), COALESCE(inventory_account_id, 0),
		       COALESCE(vat_input_account_id, 0), COALESCE(vat_output_account_id, 0),
		       COALESCE(payable_account_id, 0), COALESCE(receivable_account_id, 0),
		       COALESCE(sales_account_id, 0), COALESCE(cogs_account_id, 0),
		       COALESCE(owner_capital_account_id, 0)
		FROM default_account_mapping WHERE id = 1`).Scan(
		&m.CashAccountID, &m.InventoryAccountID, &m.VATInputAccountID, &m.VATOutputAccountID,
		&m.PayableAccountID, &m.ReceivableAccountID, &m.SalesAccountID, &m.COGSAccountID,
		&m.OwnerCapitalAccountID)
	if err != nil {
		return nil, notFound(err, "default account mapping", 1)
	}
	return &m, nil
}

// ── Journals ──────────────────────────────────────────────────────────────────

const journalColumns = `id, date, description, reference, created_by`

func scanJournal(row pgx.Row) (core.Journal, error) {
	var j core.Journal
	err := row.Scan(&j.ID, &j.Date, &j.Description, &j.Reference, &j.CreatedBy)
	return j, err
}

func (t *tx) CreateJournal(ctx context.Context, j core.Journal) (*core.Journal, error) {
	id, err := t.insertID(ctx, "journal", `
		INSERT INTO journals (date, description, reference, created_by)
		VALUES ($1, $2, $3, $4) RETURNING id`,
		j.Date, j.Description, j.Reference, j.CreatedBy)
	if err != nil {
		return nil, err
	}
	j.ID = id
	j.Entries = nil
	return &j, nil
}

func (t *tx) GetJournal(ctx context.Context, id int) (*core.Journal, error) {
	j, err := scanJournal(t.tx.QueryRow(ctx, `SELECT `+journalColumns+` FROM journals WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "journal", id)
	}
	return &j, nil
}

func (t *tx) UpdateJournal(ctx context.Context, j core.Journal) error {
	return t.execOne(ctx, "journal", j.ID, `
		UPDATE journals SET date = $2, description = $3, reference = $4, created_by = $5
		WHERE id = $1`, j.ID, j.Date, j.Description, j.Reference, j.CreatedBy)
}

func (t *tx) DeleteJournal(ctx context.Context, id int) error {
	n, err := t.count(ctx, `SELECT count(*) FROM journal_entries WHERE journal_id = $1`, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return core.Conflictf("journal %d still has entries", id)
	}
	return t.execOne(ctx, "journal", id, `DELETE FROM journals WHERE id = $1`, id)
}

func (t *tx) ListJournals(ctx context.Context) ([]core.Journal, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+journalColumns+` FROM journals ORDER BY id`)
	return collect(rows, err, scanJournal)
}

const entryColumns = `id, journal_id, account_id, debit, credit`

func scanEntry(row pgx.Row) (core.JournalEntry, error) {
	var e core.JournalEntry
	err := row.Scan(&e.ID, &e.JournalID, &e.AccountID, &e.Debit, &e.Credit)
	return e, err
}

func (t *tx) CreateEntries(ctx context.Context, journalID int, lines []core.JournalLine) ([]core.JournalEntry, error) {
	if _, err := t.GetJournal(ctx, journalID); err != nil {
		return nil, err
	}
	out := make([]core.JournalEntry, 0, len(lines))
	for _, l := range lines {
		e, err := scanEntry(t.tx.QueryRow(ctx, `
			INSERT INTO journal_entries (journal_id, account_id, debit, credit)
			VALUES ($1, $2, $3, $4) RETURNING `+entryColumns,
			journalID, l.AccountID, l.Debit, l.Credit))
		if err != nil {
			return nil, fmt.Errorf("failed to insert entry for account %d: %w", l.AccountID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func (t *tx) ListEntries(ctx context.Context, journalID int) ([]core.JournalEntry, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+entryColumns+` FROM journal_entries WHERE journal_id = $1 ORDER BY id`, journalID)
	return collect(rows, err, scanEntry)
}

func (t *tx) GetEntry(ctx context.Context, id int) (*core.JournalEntry, error) {
	e, err := scanEntry(t.tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM journal_entries WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "journal entry", id)
	}
	return &e, nil
}

func (t *tx) UpdateEntryAmounts(ctx context.Context, entryID int, debit, credit decimal.Decimal) error {
	return t.execOne(ctx, "journal entry", entryID,
		`UPDATE journal_entries SET debit = $2, credit = $3 WHERE id = $1`, entryID, debit, credit)
}

func (t *tx) DeleteEntriesByJournal(ctx context.Context, journalID int) error {
	return t.exec(ctx, "journal entries", `DELETE FROM journal_entries WHERE journal_id = $1`, journalID)
}

// ── Products and lots ─────────────────────────────────────────────────────────

const productColumns = `id, code, name, stock, avg_purchase_price, profit_margin, selling_price`

func scanProduct(row pgx.Row) (core.Product, error) {
	var p core.Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Stock, &p.AvgPurchasePrice, &p.ProfitMargin, &p.SellingPrice)
	return p, err
}

func (t *tx) GetProduct(ctx context.Context, id int) (*core.Product, error) {
	p, err := scanProduct(t.tx.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "product", id)
	}
	return &p, nil
}

func (t *tx) ListProducts(ctx context.Context) ([]core.Product, error) {
	rows, err := t.tx.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	return collect(rows, err, scanProduct)
}

func (t *tx) UpdateProduct(ctx context.Context, p core.Product) error {
	return t.execOne(ctx, "product", p.ID, `
		UPDATE products
		SET code = $2, name = $3, stock = $4, avg_purchase_price = $5, profit_margin = $6, selling_price = $7
		WHERE id = $1`,
		p.ID, p.Code, p.Name, p.Stock, p.AvgPurchasePrice, p.ProfitMargin, p.SellingPrice)
}

const batchColumns = `id, product_id, purchase_date, quantity, purchase_price, remaining_stock, COALESCE(purchase_detail_id, 0)`

func scanBatch(row pgx.Row) (core.InventoryBatch, error) {
	var b core.InventoryBatch
	err := row.Scan(&b.ID, &b.ProductID, &b.PurchaseDate, &b.Quantity, &b.PurchasePrice, &b.RemainingStock, &b.PurchaseDetailID)
	return b, err
}

// nullID maps the zero ID to SQL NULL for optional foreign keys.
func nullID(id int) *int {
	if id == 0 {
		return nil
	}
	return &id
}

func (t *tx) CreateBatch(ctx context.Context, b core.InventoryBatch) (*core.InventoryBatch, error) {
	if _, err := t.GetProduct(ctx, b.ProductID); err != nil {
		return nil, err
	}
	id, err := t.insertID(ctx, "inventory batch", `
		INSERT INTO inventory_batches (product_id, purchase_date, quantity, purchase_price, remaining_stock, purchase_detail_id)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		b.ProductID, b.PurchaseDate, b.Quantity, b.PurchasePrice, b.RemainingStock, nullID(b.PurchaseDetailID))
	if err != nil {
		return nil, err
	}
	b.ID = id
	return &b, nil
}

func (t *tx) GetBatch(ctx context.Context, id int) (*core.InventoryBatch, error) {
	b, err := scanBatch(t.tx.QueryRow(ctx,
		`SELECT `+batchColumns+` FROM inventory_batches WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "inventory batch", id)
	}
	return &b, nil
}

func (t *tx) ListBatchesByProduct(ctx context.Context, productID int) ([]core.InventoryBatch, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+batchColumns+` FROM inventory_batches
		WHERE product_id = $1
		ORDER BY purchase_date, id
		FOR UPDATE`, productID)
	return collect(rows, err, scanBatch)
}

func (t *tx) UpdateBatch(ctx context.Context, b core.InventoryBatch) error {
	return t.execOne(ctx, "inventory batch", b.ID, `
		UPDATE inventory_batches
		SET product_id = $2, purchase_date = $3, quantity = $4, purchase_price = $5,
		    remaining_stock = $6, purchase_detail_id = $7
		WHERE id = $1`,
		b.ID, b.ProductID, b.PurchaseDate, b.Quantity, b.PurchasePrice, b.RemainingStock, nullID(b.PurchaseDetailID))
}

func (t *tx) DeleteBatch(ctx context.Context, id int) error {
	return t.execOne(ctx, "inventory batch", id, `DELETE FROM inventory_batches WHERE id = $1`, id)
}

// ── Counterparties and settings ───────────────────────────────────────────────

func (t *tx) GetSupplier(ctx context.Context, id int) (*core.Supplier, error) {
	var s core.Supplier
	err := t.tx.QueryRow(ctx, `SELECT id, code, name FROM suppliers WHERE id = $1`, id).Scan(&s.ID, &s.Code, &s.Name)
	if err != nil {
		return nil, notFound(err, "supplier", id)
	}
	return &s, nil
}

func (t *tx) GetCustomer(ctx context.Context, id int) (*core.Customer, error) {
	var c core.Customer
	err := t.tx.QueryRow(ctx, `SELECT id, code, name FROM customers WHERE id = $1`, id).Scan(&c.ID, &c.Code, &c.Name)
	if err != nil {
		return nil, notFound(err, "customer", id)
	}
	return &c, nil
}

func (t *tx) FindVATRate(ctx context.Context, date time.Time) (*core.VATRate, error) {
	day := core.DateOnly(date)
	var v core.VATRate
	err := t.tx.QueryRow(ctx, `
		SELECT id, rate, effective_date FROM vat_rates
		WHERE effective_date <= $1
		ORDER BY effective_date DESC, id DESC
		LIMIT 1`, day).Scan(&v.ID, &v.Rate, &v.EffectiveDate)
	if err != nil {
		return nil, notFound(err, "VAT rate effective on", day.Format(time.DateOnly))
	}
	return &v, nil
}

func (t *tx) GetGeneralSetting(ctx context.Context) (*core.GeneralSetting, error) {
	var g core.GeneralSetting
	err := t.tx.QueryRow(ctx, `SELECT id, inventory_method FROM general_settings WHERE id = 1 FOR UPDATE`).
		Scan(&g.ID, &g.InventoryMethod)
	if err != nil {
		return nil, notFound(err, "general setting", 1)
	}
	return &g, nil
}

func (t *tx) UpdateGeneralSetting(ctx context.Context, s core.GeneralSetting) error {
	return t.execOne(ctx, "general setting", 1,
		`UPDATE general_settings SET inventory_method = $1 WHERE id = 1`, s.InventoryMethod)
}

func (t *tx) NextSequence(ctx context.Context, prefix string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		INSERT INTO reference_sequences (prefix, last_value) VALUES ($1, 1)
		ON CONFLICT (prefix) DO UPDATE SET last_value = reference_sequences.last_value + 1
		RETURNING last_value`, prefix).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", prefix, err)
	}
	return n, nil
}
