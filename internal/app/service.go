package app

import (
	"context"

	"github.com/shopspring/decimal"

	"accounting-engine/internal/core"
)

// ApplicationService is the single interface the CLI and web adapters call.
// It holds no presentation logic.
type ApplicationService interface {
	// ── Purchases and sales ───────────────────────────────────────────────────
	CreatePurchase(ctx context.Context, in core.PurchaseInput) (*core.Purchase, error)
	UpdatePurchase(ctx context.Context, id int, in core.PurchaseInput) (*core.Purchase, error)
	DeletePurchase(ctx context.Context, id int) error
	GetPurchase(ctx context.Context, id int) (*core.Purchase, error)

	CreateSale(ctx context.Context, in core.SaleInput) (*core.Sale, error)
	UpdateSale(ctx context.Context, id int, in core.SaleInput) (*core.Sale, error)
	DeleteSale(ctx context.Context, id int) error
	GetSale(ctx context.Context, id int) (*core.Sale, error)

	// ── Returns ───────────────────────────────────────────────────────────────
	CreatePurchaseReturn(ctx context.Context, in core.PurchaseReturnInput) (*core.PurchaseReturn, error)
	DeletePurchaseReturn(ctx context.Context, id int) error
	GetPurchaseReturn(ctx context.Context, id int) (*core.PurchaseReturn, error)

	CreateSaleReturn(ctx context.Context, in core.SaleReturnInput) (*core.SaleReturn, error)
	DeleteSaleReturn(ctx context.Context, id int) error
	GetSaleReturn(ctx context.Context, id int) (*core.SaleReturn, error)

	// ── Payables and receivables ──────────────────────────────────────────────
	RecordPayment(ctx context.Context, kind core.ObligationKind, obligationID int, in core.PaymentInput) (*core.Payment, error)
	UpdatePayment(ctx context.Context, kind core.ObligationKind, paymentID int, in core.PaymentInput) (*core.Payment, error)
	DeletePayment(ctx context.Context, kind core.ObligationKind, paymentID int) error
	GetObligation(ctx context.Context, kind core.ObligationKind, id int) (*ObligationResult, error)
	ListObligations(ctx context.Context, kind core.ObligationKind) ([]core.Obligation, error)

	// ── Settings ──────────────────────────────────────────────────────────────
	GetSettings(ctx context.Context) (*core.GeneralSetting, error)
	UpdateInventoryMethod(ctx context.Context, method core.InventoryMethod) (*core.GeneralSetting, error)
	UpdateProfitMargin(ctx context.Context, productID int, margin decimal.Decimal) (*core.Product, error)

	// ── Reports ───────────────────────────────────────────────────────────────
	GetTrialBalance(ctx context.Context) (*TrialBalanceResult, error)
	Reconcile(ctx context.Context) (*core.ReconciliationReport, error)
	GetStockLevels(ctx context.Context) ([]core.StockLevel, error)
	GetJournal(ctx context.Context, id int) (*core.Journal, error)
}
