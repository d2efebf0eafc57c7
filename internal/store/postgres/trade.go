package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"accounting-engine/internal/core"
)

// ── Purchases ─────────────────────────────────────────────────────────────────

const purchaseColumns = `id, reference, supplier_id, date, payment_type, cash_amount, subtotal,
	vat_rate, vat, total, due_date, COALESCE(journal_id, 0), created_by`

func scanPurchase(row pgx.Row) (core.Purchase, error) {
	var p core.Purchase
	err := row.Scan(&p.ID, &p.Reference, &p.SupplierID, &p.Date, &p.PaymentType, &p.CashAmount, &p.Subtotal,
		&p.VATRate, &p.VAT, &p.Total, &p.DueDate, &p.JournalID, &p.CreatedBy)
	return p, err
}

func (t *tx) CreatePurchase(ctx context.Context, p core.Purchase) (*core.Purchase, error) {
	id, err := t.insertID(ctx, "purchase", `
		INSERT INTO purchases (reference, supplier_id, date, payment_type, cash_amount, subtotal,
			vat_rate, vat, total, due_date, journal_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		p.Reference, p.SupplierID, p.Date, p.PaymentType, p.CashAmount, p.Subtotal,
		p.VATRate, p.VAT, p.Total, p.DueDate, nullID(p.JournalID), p.CreatedBy)
	if err != nil {
		return nil, err
	}
	p.ID = id
	p.Details = nil
	return &p, nil
}

func (t *tx) GetPurchase(ctx context.Context, id int) (*core.Purchase, error) {
	p, err := scanPurchase(t.tx.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "purchase", id)
	}
	return &p, nil
}

func (t *tx) UpdatePurchase(ctx context.Context, p core.Purchase) error {
	return t.execOne(ctx, "purchase", p.ID, `
		UPDATE purchases
		SET reference = $2, supplier_id = $3, date = $4, payment_type = $5, cash_amount = $6, subtotal = $7,
		    vat_rate = $8, vat = $9, total = $10, due_date = $11, journal_id = $12, created_by = $13
		WHERE id = $1`,
		p.ID, p.Reference, p.SupplierID, p.Date, p.PaymentType, p.CashAmount, p.Subtotal,
		p.VATRate, p.VAT, p.Total, p.DueDate, nullID(p.JournalID), p.CreatedBy)
}

func (t *tx) DeletePurchase(ctx context.Context, id int) error {
	return t.execOne(ctx, "purchase", id, `DELETE FROM purchases WHERE id = $1`, id)
}

const purchaseDetailColumns = `id, purchase_id, product_id, quantity, unit_price, subtotal, batch_id`

func scanPurchaseDetail(row pgx.Row) (core.PurchaseDetail, error) {
	var d core.PurchaseDetail
	err := row.Scan(&d.ID, &d.PurchaseID, &d.ProductID, &d.Quantity, &d.UnitPrice, &d.Subtotal, &d.BatchID)
	return d, err
}

func (t *tx) CreatePurchaseDetail(ctx context.Context, d core.PurchaseDetail) (*core.PurchaseDetail, error) {
	id, err := t.insertID(ctx, "purchase detail", `
		INSERT INTO purchase_details (purchase_id, product_id, quantity, unit_price, subtotal, batch_id)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		d.PurchaseID, d.ProductID, d.Quantity, d.UnitPrice, d.Subtotal, d.BatchID)
	if err != nil {
		return nil, err
	}
	d.ID = id
	return &d, nil
}

func (t *tx) GetPurchaseDetail(ctx context.Context, id int) (*core.PurchaseDetail, error) {
	d, err := scanPurchaseDetail(t.tx.QueryRow(ctx, `SELECT `+purchaseDetailColumns+` FROM purchase_details WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "purchase detail", id)
	}
	return &d, nil
}

func (t *tx) ListPurchaseDetails(ctx context.Context, purchaseID int) ([]core.PurchaseDetail, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+purchaseDetailColumns+` FROM purchase_details WHERE purchase_id = $1 ORDER BY id`, purchaseID)
	return collect(rows, err, scanPurchaseDetail)
}

func (t *tx) UpdatePurchaseDetail(ctx context.Context, d core.PurchaseDetail) error {
	return t.execOne(ctx, "purchase detail", d.ID, `
		UPDATE purchase_details
		SET purchase_id = $2, product_id = $3, quantity = $4, unit_price = $5, subtotal = $6, batch_id = $7
		WHERE id = $1`,
		d.ID, d.PurchaseID, d.ProductID, d.Quantity, d.UnitPrice, d.Subtotal, d.BatchID)
}

func (t *tx) DeletePurchaseDetail(ctx context.Context, id int) error {
	return t.execOne(ctx, "purchase detail", id, `DELETE FROM purchase_details WHERE id = $1`, id)
}

// ── Sales ─────────────────────────────────────────────────────────────────────

const saleColumns = `id, reference, customer_id, date, payment_type, cash_amount, subtotal,
	vat_rate, vat, total, cogs, due_date, COALESCE(journal_id, 0), created_by`

func scanSale(row pgx.Row) (core.Sale, error) {
	var s core.Sale
	err := row.Scan(&s.ID, &s.Reference, &s.CustomerID, &s.Date, &s.PaymentType, &s.CashAmount, &s.Subtotal,
		&s.VATRate, &s.VAT, &s.Total, &s.COGS, &s.DueDate, &s.JournalID, &s.CreatedBy)
	return s, err
}

func (t *tx) CreateSale(ctx context.Context, s core.Sale) (*core.Sale, error) {
	id, err := t.insertID(ctx, "sale", `
		INSERT INTO sales (reference, customer_id, date, payment_type, cash_amount, subtotal,
			vat_rate, vat, total, cogs, due_date, journal_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) RETURNING id`,
		s.Reference, s.CustomerID, s.Date, s.PaymentType, s.CashAmount, s.Subtotal,
		s.VATRate, s.VAT, s.Total, s.COGS, s.DueDate, nullID(s.JournalID), s.CreatedBy)
	if err != nil {
		return nil, err
	}
	s.ID = id
	s.Details = nil
	return &s, nil
}

func (t *tx) GetSale(ctx context.Context, id int) (*core.Sale, error) {
	s, err := scanSale(t.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "sale", id)
	}
	return &s, nil
}

func (t *tx) UpdateSale(ctx context.Context, s core.Sale) error {
	return t.execOne(ctx, "sale", s.ID, `
		UPDATE sales
		SET reference = $2, customer_id = $3, date = $4, payment_type = $5, cash_amount = $6, subtotal = $7,
		    vat_rate = $8, vat = $9, total = $10, cogs = $11, due_date = $12, journal_id = $13, created_by = $14
		WHERE id = $1`,
		s.ID, s.Reference, s.CustomerID, s.Date, s.PaymentType, s.CashAmount, s.Subtotal,
		s.VATRate, s.VAT, s.Total, s.COGS, s.DueDate, nullID(s.JournalID), s.CreatedBy)
}

func (t *tx) DeleteSale(ctx context.Context, id int) error {
	return t.execOne(ctx, "sale", id, `DELETE FROM sales WHERE id = $1`, id)
}

const saleDetailColumns = `id, sale_id, product_id, quantity, unit_price, subtotal, cogs`

func scanSaleDetail(row pgx.Row) (core.SaleDetail, error) {
	var d core.SaleDetail
	err := row.Scan(&d.ID, &d.SaleID, &d.ProductID, &d.Quantity, &d.UnitPrice, &d.Subtotal, &d.COGS)
	return d, err
}

func (t *tx) CreateSaleDetail(ctx context.Context, d core.SaleDetail) (*core.SaleDetail, error) {
	id, err := t.insertID(ctx, "sale detail", `
		INSERT INTO sale_details (sale_id, product_id, quantity, unit_price, subtotal, cogs)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		d.SaleID, d.ProductID, d.Quantity, d.UnitPrice, d.Subtotal, d.COGS)
	if err != nil {
		return nil, err
	}
	d.ID = id
	d.Allocations = nil
	return &d, nil
}

func (t *tx) GetSaleDetail(ctx context.Context, id int) (*core.SaleDetail, error) {
	d, err := scanSaleDetail(t.tx.QueryRow(ctx, `SELECT `+saleDetailColumns+` FROM sale_details WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "sale detail", id)
	}
	return &d, nil
}

func (t *tx) ListSaleDetails(ctx context.Context, saleID int) ([]core.SaleDetail, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+saleDetailColumns+` FROM sale_details WHERE sale_id = $1 ORDER BY id`, saleID)
	return collect(rows, err, scanSaleDetail)
}

func (t *tx) DeleteSaleDetail(ctx context.Context, id int) error {
	return t.execOne(ctx, "sale detail", id, `DELETE FROM sale_details WHERE id = $1`, id)
}

const allocationColumns = `id, sale_detail_id, batch_id, quantity, unit_cost, returned_quantity`

func scanAllocation(row pgx.Row) (core.SaleAllocation, error) {
	var a core.SaleAllocation
	err := row.Scan(&a.ID, &a.SaleDetailID, &a.BatchID, &a.Quantity, &a.UnitCost, &a.ReturnedQuantity)
	return a, err
}

func (t *tx) CreateAllocation(ctx context.Context, a core.SaleAllocation) (*core.SaleAllocation, error) {
	id, err := t.insertID(ctx, "sale allocation", `
		INSERT INTO sale_allocations (sale_detail_id, batch_id, quantity, unit_cost, returned_quantity)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		a.SaleDetailID, a.BatchID, a.Quantity, a.UnitCost, a.ReturnedQuantity)
	if err != nil {
		return nil, err
	}
	a.ID = id
	return &a, nil
}

func (t *tx) ListAllocationsByDetail(ctx context.Context, saleDetailID int) ([]core.SaleAllocation, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+allocationColumns+` FROM sale_allocations WHERE sale_detail_id = $1 ORDER BY id`, saleDetailID)
	return collect(rows, err, scanAllocation)
}

func (t *tx) ListAllocationsByBatch(ctx context.Context, batchID int) ([]core.SaleAllocation, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+allocationColumns+` FROM sale_allocations WHERE batch_id = $1 ORDER BY id`, batchID)
	return collect(rows, err, scanAllocation)
}

func (t *tx) UpdateAllocation(ctx context.Context, a core.SaleAllocation) error {
	return t.execOne(ctx, "sale allocation", a.ID, `
		UPDATE sale_allocations
		SET sale_detail_id = $2, batch_id = $3, quantity = $4, unit_cost = $5, returned_quantity = $6
		WHERE id = $1`,
		a.ID, a.SaleDetailID, a.BatchID, a.Quantity, a.UnitCost, a.ReturnedQuantity)
}

func (t *tx) DeleteAllocationsByDetail(ctx context.Context, saleDetailID int) error {
	return t.exec(ctx, "sale allocations", `DELETE FROM sale_allocations WHERE sale_detail_id = $1`, saleDetailID)
}
