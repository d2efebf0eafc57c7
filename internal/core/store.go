package core

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store opens transaction scopes. Every mutation of persistent state happens inside
// exactly one scope; an error returned by fn aborts the scope and discards all of its
// writes, a nil return commits them.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the repository surface available inside one transaction scope.
//
// Lookups by ID return an error wrapping ErrNotFound when the row is absent.
// List methods return rows in ascending ID order unless documented otherwise.
type Tx interface {
	// ── Accounts ─────────────────────────────────────────────────────────────
	GetAccount(ctx context.Context, id int) (*Account, error)
	GetAccountByCode(ctx context.Context, code string) (*Account, error)
	ListAccounts(ctx context.Context) ([]Account, error)
	// AdjustBalance overwrites the running balance of the account with the given code.
	AdjustBalance(ctx context.Context, code string, newBalance decimal.Decimal) error
	GetDefaultAccountMapping(ctx context.Context) (*DefaultAccountMapping, error)

	// ── Journals ─────────────────────────────────────────────────────────────
	CreateJournal(ctx context.Context, j Journal) (*Journal, error)
	GetJournal(ctx context.Context, id int) (*Journal, error)
	UpdateJournal(ctx context.Context, j Journal) error
	DeleteJournal(ctx context.Context, id int) error
	ListJournals(ctx context.Context) ([]Journal, error)
	// CreateEntries inserts one entry per line, in order, and returns them with their IDs.
	CreateEntries(ctx context.Context, journalID int, lines []JournalLine) ([]JournalEntry, error)
	ListEntries(ctx context.Context, journalID int) ([]JournalEntry, error)
	GetEntry(ctx context.Context, id int) (*JournalEntry, error)
	UpdateEntryAmounts(ctx context.Context, entryID int, debit, credit decimal.Decimal) error
	DeleteEntriesByJournal(ctx context.Context, journalID int) error

	// ── Products and lots ────────────────────────────────────────────────────
	GetProduct(ctx context.Context, id int) (*Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	UpdateProduct(ctx context.Context, p Product) error
	CreateBatch(ctx context.Context, b InventoryBatch) (*InventoryBatch, error)
	GetBatch(ctx context.Context, id int) (*InventoryBatch, error)
	// ListBatchesByProduct returns lots ordered by purchase date, then ID.
	ListBatchesByProduct(ctx context.Context, productID int) ([]InventoryBatch, error)
	UpdateBatch(ctx context.Context, b InventoryBatch) error
	DeleteBatch(ctx context.Context, id int) error

	// ── Counterparties and settings ──────────────────────────────────────────
	GetSupplier(ctx context.Context, id int) (*Supplier, error)
	GetCustomer(ctx context.Context, id int) (*Customer, error)
	// FindVATRate returns the latest rate whose effective date is on or before date.
	FindVATRate(ctx context.Context, date time.Time) (*VATRate, error)
	GetGeneralSetting(ctx context.Context) (*GeneralSetting, error)
	UpdateGeneralSetting(ctx context.Context, s GeneralSetting) error
	// NextSequence increments and returns the counter for prefix, starting at 1.
	NextSequence(ctx context.Context, prefix string) (int, error)

	// ── Purchases ────────────────────────────────────────────────────────────
	CreatePurchase(ctx context.Context, p Purchase) (*Purchase, error)
	GetPurchase(ctx context.Context, id int) (*Purchase, error)
	UpdatePurchase(ctx context.Context, p Purchase) error
	DeletePurchase(ctx context.Context, id int) error
	CreatePurchaseDetail(ctx context.Context, d PurchaseDetail) (*PurchaseDetail, error)
	GetPurchaseDetail(ctx context.Context, id int) (*PurchaseDetail, error)
	ListPurchaseDetails(ctx context.Context, purchaseID int) ([]PurchaseDetail, error)
	UpdatePurchaseDetail(ctx context.Context, d PurchaseDetail) error
	DeletePurchaseDetail(ctx context.Context, id int) error

	// ── Sales ────────────────────────────────────────────────────────────────
	CreateSale(ctx context.Context, s Sale) (*Sale, error)
	GetSale(ctx context.Context, id int) (*Sale, error)
	UpdateSale(ctx context.Context, s Sale) error
	DeleteSale(ctx context.Context, id int) error
	CreateSaleDetail(ctx context.Context, d SaleDetail) (*SaleDetail, error)
	GetSaleDetail(ctx context.Context, id int) (*SaleDetail, error)
	ListSaleDetails(ctx context.Context, saleID int) ([]SaleDetail, error)
	DeleteSaleDetail(ctx context.Context, id int) error
	CreateAllocation(ctx context.Context, a SaleAllocation) (*SaleAllocation, error)
	ListAllocationsByDetail(ctx context.Context, saleDetailID int) ([]SaleAllocation, error)
	ListAllocationsByBatch(ctx context.Context, batchID int) ([]SaleAllocation, error)
	UpdateAllocation(ctx context.Context, a SaleAllocation) error
	DeleteAllocationsByDetail(ctx context.Context, saleDetailID int) error

	// ── Returns ──────────────────────────────────────────────────────────────
	CreatePurchaseReturn(ctx context.Context, r PurchaseReturn) (*PurchaseReturn, error)
	GetPurchaseReturn(ctx context.Context, id int) (*PurchaseReturn, error)
	DeletePurchaseReturn(ctx context.Context, id int) error
	CountPurchaseReturns(ctx context.Context, purchaseID int) (int, error)
	// SumPurchaseReturnVAT totals the VAT already reversed by returns of the purchase.
	SumPurchaseReturnVAT(ctx context.Context, purchaseID int) (decimal.Decimal, error)
	CreatePurchaseReturnDetail(ctx context.Context, d PurchaseReturnDetail) (*PurchaseReturnDetail, error)
	ListPurchaseReturnDetails(ctx context.Context, returnID int) ([]PurchaseReturnDetail, error)
	DeletePurchaseReturnDetails(ctx context.Context, returnID int) error

	CreateSaleReturn(ctx context.Context, r SaleReturn) (*SaleReturn, error)
	GetSaleReturn(ctx context.Context, id int) (*SaleReturn, error)
	DeleteSaleReturn(ctx context.Context, id int) error
	CountSaleReturns(ctx context.Context, saleID int) (int, error)
	SumSaleReturnVAT(ctx context.Context, saleID int) (decimal.Decimal, error)
	CreateSaleReturnDetail(ctx context.Context, d SaleReturnDetail) (*SaleReturnDetail, error)
	ListSaleReturnDetails(ctx context.Context, returnID int) ([]SaleReturnDetail, error)
	DeleteSaleReturnDetails(ctx context.Context, returnID int) error

	// ── Obligations and payments ─────────────────────────────────────────────
	CreateObligation(ctx context.Context, o Obligation) (*Obligation, error)
	GetObligation(ctx context.Context, kind ObligationKind, id int) (*Obligation, error)
	// FindObligationBySource returns nil, nil when the source has no obligation.
	FindObligationBySource(ctx context.Context, kind ObligationKind, sourceID int) (*Obligation, error)
	UpdateObligation(ctx context.Context, o Obligation) error
	DeleteObligation(ctx context.Context, kind ObligationKind, id int) error
	ListObligations(ctx context.Context, kind ObligationKind) ([]Obligation, error)

	CreatePayment(ctx context.Context, p Payment) (*Payment, error)
	GetPayment(ctx context.Context, kind ObligationKind, id int) (*Payment, error)
	DeletePayment(ctx context.Context, kind ObligationKind, id int) error
	ListPaymentsByObligation(ctx context.Context, kind ObligationKind, obligationID int) ([]Payment, error)
}
