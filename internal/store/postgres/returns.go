package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"accounting-engine/internal/core"
)

// ── Purchase returns ──────────────────────────────────────────────────────────

const purchaseReturnColumns = `id, reference, purchase_id, date, subtotal, vat, total,
	payable_reduction, cash_refund, COALESCE(journal_id, 0), created_by`

func scanPurchaseReturn(row pgx.Row) (core.PurchaseReturn, error) {
	var r core.PurchaseReturn
	err := row.Scan(&r.ID, &r.Reference, &r.PurchaseID, &r.Date, &r.Subtotal, &r.VAT, &r.Total,
		&r.PayableReduction, &r.CashRefund, &r.JournalID, &r.CreatedBy)
	return r, err
}

func (t *tx) CreatePurchaseReturn(ctx context.Context, r core.PurchaseReturn) (*core.PurchaseReturn, error) {
	id, err := t.insertID(ctx, "purchase return", `
		INSERT INTO purchase_returns (reference, purchase_id, date, subtotal, vat, total,
			payable_reduction, cash_refund, journal_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		r.Reference, r.PurchaseID, r.Date, r.Subtotal, r.VAT, r.Total,
		r.PayableReduction, r.CashRefund, nullID(r.JournalID), r.CreatedBy)
	if err != nil {
		return nil, err
	}
	r.ID = id
	r.Details = nil
	return &r, nil
}

func (t *tx) GetPurchaseReturn(ctx context.Context, id int) (*core.PurchaseReturn, error) {
	r, err := scanPurchaseReturn(t.tx.QueryRow(ctx,
		`SELECT `+purchaseReturnColumns+` FROM purchase_returns WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "purchase return", id)
	}
	return &r, nil
}

func (t *tx) DeletePurchaseReturn(ctx context.Context, id int) error {
	return t.execOne(ctx, "purchase return", id, `DELETE FROM purchase_returns WHERE id = $1`, id)
}

func (t *tx) CountPurchaseReturns(ctx context.Context, purchaseID int) (int, error) {
	return t.count(ctx, `SELECT count(*) FROM purchase_returns WHERE purchase_id = $1`, purchaseID)
}

func (t *tx) SumPurchaseReturnVAT(ctx context.Context, purchaseID int) (decimal.Decimal, error) {
	return t.sum(ctx, `SELECT COALESCE(sum(vat), 0) FROM purchase_returns WHERE purchase_id = $1`, purchaseID)
}

const purchaseReturnDetailColumns = `id, return_id, purchase_detail_id, product_id, batch_id, quantity, unit_price, subtotal`

func scanPurchaseReturnDetail(row pgx.Row) (core.PurchaseReturnDetail, error) {
	var d core.PurchaseReturnDetail
	err := row.Scan(&d.ID, &d.ReturnID, &d.PurchaseDetailID, &d.ProductID, &d.BatchID, &d.Quantity, &d.UnitPrice, &d.Subtotal)
	return d, err
}

func (t *tx) CreatePurchaseReturnDetail(ctx context.Context, d core.PurchaseReturnDetail) (*core.PurchaseReturnDetail, error) {
	id, err := t.insertID(ctx, "purchase return detail", `
		INSERT INTO purchase_return_details (return_id, purchase_detail_id, product_id, batch_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		d.ReturnID, d.PurchaseDetailID, d.ProductID, d.BatchID, d.Quantity, d.UnitPrice, d.Subtotal)
	if err != nil {
		return nil, err
	}
	d.ID = id
	return &d, nil
}

func (t *tx) ListPurchaseReturnDetails(ctx context.Context, returnID int) ([]core.PurchaseReturnDetail, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+purchaseReturnDetailColumns+` FROM purchase_return_details WHERE return_id = $1 ORDER BY id`, returnID)
	return collect(rows, err, scanPurchaseReturnDetail)
}

func (t *tx) DeletePurchaseReturnDetails(ctx context.Context, returnID int) error {
	return t.exec(ctx, "purchase return details", `DELETE FROM purchase_return_details WHERE return_id = $1`, returnID)
}

// ── Sale returns ──────────────────────────────────────────────────────────────

const saleReturnColumns = `id, reference, sale_id, date, subtotal, vat, total, cogs,
	receivable_reduction, cash_refund, COALESCE(journal_id, 0), created_by`

func scanSaleReturn(row pgx.Row) (core.SaleReturn, error) {
	var r core.SaleReturn
	err := row.Scan(&r.ID, &r.Reference, &r.SaleID, &r.Date, &r.Subtotal, &r.VAT, &r.Total, &r.COGS,
		&r.ReceivableReduction, &r.CashRefund, &r.JournalID, &r.CreatedBy)
	return r, err
}

func (t *tx) CreateSaleReturn(ctx context.Context, r core.SaleReturn) (*core.SaleReturn, error) {
	id, err := t.insertID(ctx, "sale return", `
		INSERT INTO sale_returns (reference, sale_id, date, subtotal, vat, total, cogs,
			receivable_reduction, cash_refund, journal_id, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		r.Reference, r.SaleID, r.Date, r.Subtotal, r.VAT, r.Total, r.COGS,
		r.ReceivableReduction, r.CashRefund, nullID(r.JournalID), r.CreatedBy)
	if err != nil {
		return nil, err
	}
	r.ID = id
	r.Details = nil
	return &r, nil
}

func (t *tx) GetSaleReturn(ctx context.Context, id int) (*core.SaleReturn, error) {
	r, err := scanSaleReturn(t.tx.QueryRow(ctx,
		`SELECT `+saleReturnColumns+` FROM sale_returns WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "sale return", id)
	}
	return &r, nil
}

func (t *tx) DeleteSaleReturn(ctx context.Context, id int) error {
	return t.execOne(ctx, "sale return", id, `DELETE FROM sale_returns WHERE id = $1`, id)
}

func (t *tx) CountSaleReturns(ctx context.Context, saleID int) (int, error) {
	return t.count(ctx, `SELECT count(*) FROM sale_returns WHERE sale_id = $1`, saleID)
}

func (t *tx) SumSaleReturnVAT(ctx context.Context, saleID int) (decimal.Decimal, error) {
	return t.sum(ctx, `SELECT COALESCE(sum(vat), 0) FROM sale_returns WHERE sale_id = $1`, saleID)
}

const saleReturnDetailColumns = `id, return_id, sale_detail_id, allocation_id, product_id, batch_id, quantity, unit_price, unit_cost`

func scanSaleReturnDetail(row pgx.Row) (core.SaleReturnDetail, error) {
	var d core.SaleReturnDetail
	err := row.Scan(&d.ID, &d.ReturnID, &d.SaleDetailID, &d.AllocationID, &d.ProductID, &d.BatchID,
		&d.Quantity, &d.UnitPrice, &d.UnitCost)
	return d, err
}

func (t *tx) CreateSaleReturnDetail(ctx context.Context, d core.SaleReturnDetail) (*core.SaleReturnDetail, error) {
	id, err := t.insertID(ctx, "sale return detail", `
		INSERT INTO sale_return_details (return_id, sale_detail_id, allocation_id, product_id, batch_id,
			quantity, unit_price, unit_cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		d.ReturnID, d.SaleDetailID, d.AllocationID, d.ProductID, d.BatchID, d.Quantity, d.UnitPrice, d.UnitCost)
	if err != nil {
		return nil, err
	}
	d.ID = id
	return &d, nil
}

func (t *tx) ListSaleReturnDetails(ctx context.Context, returnID int) ([]core.SaleReturnDetail, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+saleReturnDetailColumns+` FROM sale_return_details WHERE return_id = $1 ORDER BY id`, returnID)
	return collect(rows, err, scanSaleReturnDetail)
}

func (t *tx) DeleteSaleReturnDetails(ctx context.Context, returnID int) error {
	return t.exec(ctx, "sale return details", `DELETE FROM sale_return_details WHERE return_id = $1`, returnID)
}
