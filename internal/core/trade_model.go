package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentType string

const (
	PaymentCash   PaymentType = "CASH"
	PaymentCredit PaymentType = "CREDIT"
	PaymentMixed  PaymentType = "MIXED"
)

func (p PaymentType) Valid() bool {
	return p == PaymentCash || p == PaymentCredit || p == PaymentMixed
}

// Purchase is a purchase header with its detail lines.
type Purchase struct {
	ID          int              `json:"id"`
	Reference   string           `json:"reference"`
	SupplierID  int              `json:"supplier_id"`
	Date        time.Time        `json:"date"`
	PaymentType PaymentType      `json:"payment_type"`
	CashAmount  decimal.Decimal  `json:"cash_amount"`
	Subtotal    decimal.Decimal  `json:"subtotal"`
	VATRate     decimal.Decimal  `json:"vat_rate"`
	VAT         decimal.Decimal  `json:"vat"`
	Total       decimal.Decimal  `json:"total"`
	DueDate     *time.Time       `json:"due_date,omitempty"`
	JournalID   int              `json:"journal_id"`
	CreatedBy   string           `json:"created_by,omitempty"`
	Details     []PurchaseDetail `json:"details,omitempty"`
}

type PurchaseDetail struct {
	ID         int             `json:"id"`
	PurchaseID int             `json:"purchase_id"`
	ProductID  int             `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Subtotal   decimal.Decimal `json:"subtotal"`
	BatchID    int             `json:"batch_id"`
}

type Sale struct {
	ID          int             `json:"id"`
	Reference   string          `json:"reference"`
	CustomerID  int             `json:"customer_id"`
	Date        time.Time       `json:"date"`
	PaymentType PaymentType     `json:"payment_type"`
	CashAmount  decimal.Decimal `json:"cash_amount"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	VATRate     decimal.Decimal `json:"vat_rate"`
	VAT         decimal.Decimal `json:"vat"`
	Total       decimal.Decimal `json:"total"`
	COGS        decimal.Decimal `json:"cogs"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	JournalID   int             `json:"journal_id"`
	CreatedBy   string          `json:"created_by,omitempty"`
	Details     []SaleDetail    `json:"details,omitempty"`
}

type SaleDetail struct {
	ID          int              `json:"id"`
	SaleID      int              `json:"sale_id"`
	ProductID   int              `json:"product_id"`
	Quantity    int              `json:"quantity"`
	UnitPrice   decimal.Decimal  `json:"unit_price"`
	Subtotal    decimal.Decimal  `json:"subtotal"`
	COGS        decimal.Decimal  `json:"cogs"`
	Allocations []SaleAllocation `json:"allocations,omitempty"`
}

// SaleAllocation records how many units of a lot a sale line consumed and at what unit cost.
type SaleAllocation struct {
	ID               int             `json:"id"`
	SaleDetailID     int             `json:"sale_detail_id"`
	BatchID          int             `json:"batch_id"`
	Quantity         int             `json:"quantity"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	ReturnedQuantity int             `json:"returned_quantity"`
}

type PurchaseReturn struct {
	ID               int                    `json:"id"`
	Reference        string                 `json:"reference"`
	PurchaseID       int                    `json:"purchase_id"`
	Date             time.Time              `json:"date"`
	Subtotal         decimal.Decimal        `json:"subtotal"`
	VAT              decimal.Decimal        `json:"vat"`
	Total            decimal.Decimal        `json:"total"`
	PayableReduction decimal.Decimal        `json:"payable_reduction"`
	CashRefund       decimal.Decimal        `json:"cash_refund"`
	JournalID        int                    `json:"journal_id"`
	CreatedBy        string                 `json:"created_by,omitempty"`
	Details          []PurchaseReturnDetail `json:"details,omitempty"`
}

type PurchaseReturnDetail struct {
	ID               int             `json:"id"`
	ReturnID         int             `json:"return_id"`
	PurchaseDetailID int             `json:"purchase_detail_id"`
	ProductID        int             `json:"product_id"`
	BatchID          int             `json:"batch_id"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price"`
	Subtotal         decimal.Decimal `json:"subtotal"`
}

type SaleReturn struct {
	ID                  int                `json:"id"`
	Reference           string             `json:"reference"`
	SaleID              int                `json:"sale_id"`
	Date                time.Time          `json:"date"`
	Subtotal            decimal.Decimal    `json:"subtotal"`
	VAT                 decimal.Decimal    `json:"vat"`
	Total               decimal.Decimal    `json:"total"`
	COGS                decimal.Decimal    `json:"cogs"`
	ReceivableReduction decimal.Decimal    `json:"receivable_reduction"`
	CashRefund          decimal.Decimal    `json:"cash_refund"`
	JournalID           int                `json:"journal_id"`
	CreatedBy           string             `json:"created_by,omitempty"`
	Details             []SaleReturnDetail `json:"details,omitempty"`
}

// SaleReturnDetail is one restock movement: units of a sale line put back into one lot.
type SaleReturnDetail struct {
	ID           int             `json:"id"`
	ReturnID     int             `json:"return_id"`
	SaleDetailID int             `json:"sale_detail_id"`
	AllocationID int             `json:"allocation_id"`
	ProductID    int             `json:"product_id"`
	BatchID      int             `json:"batch_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
}

type ObligationKind string

const (
	Payable    ObligationKind = "PAYABLE"
	Receivable ObligationKind = "RECEIVABLE"
)

type ObligationStatus string

const (
	StatusUnpaid  ObligationStatus = "UNPAID"
	StatusPartial ObligationStatus = "PARTIAL"
	StatusPaid    ObligationStatus = "PAID"
)

// Obligation is a payable (owed to a supplier) or a receivable (owed by a customer).
// CounterpartyID is the supplier or customer; SourceID the purchase or sale.
type Obligation struct {
	ID              int              `json:"id"`
	Kind            ObligationKind   `json:"kind"`
	CounterpartyID  int              `json:"counterparty_id"`
	SourceID        int              `json:"source_id"`
	JournalEntryID  int              `json:"journal_entry_id"`
	Amount          decimal.Decimal  `json:"amount"`
	PaidAmount      decimal.Decimal  `json:"paid_amount"`
	RemainingAmount decimal.Decimal  `json:"remaining_amount"`
	DueDate         *time.Time       `json:"due_date,omitempty"`
	Status          ObligationStatus `json:"status"`
}

type PaymentMethod string

const (
	MethodCash     PaymentMethod = "CASH"
	MethodTransfer PaymentMethod = "TRANSFER"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodCash || m == MethodTransfer
}

type Payment struct {
	ID             int             `json:"id"`
	Kind           ObligationKind  `json:"kind"`
	Reference      string          `json:"reference"`
	ObligationID   int             `json:"obligation_id"`
	JournalID      int             `json:"journal_id"`
	JournalEntryID int             `json:"journal_entry_id"`
	Amount         decimal.Decimal `json:"amount"`
	PaymentDate    time.Time       `json:"payment_date"`
	Method         PaymentMethod   `json:"method"`
	CreatedBy      string          `json:"created_by,omitempty"`
}

// ── Operation inputs ──────────────────────────────────────────────────────────

// PurchaseLineInput is one purchase line. DetailID identifies an existing line on update.
type PurchaseLineInput struct {
	DetailID  int             `json:"detail_id,omitempty"`
	ProductID int             `json:"product_id" validate:"required,gt=0"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" jsonschema:"type=string"`
}

type PurchaseInput struct {
	SupplierID  int                 `json:"supplier_id" validate:"required,gt=0"`
	Date        time.Time           `json:"date" validate:"required"`
	PaymentType PaymentType         `json:"payment_type" validate:"required,oneof=CASH CREDIT MIXED"`
	CashAmount  decimal.Decimal     `json:"cash_amount" jsonschema:"type=string"`
	DueDate     *time.Time          `json:"due_date,omitempty"`
	Lines       []PurchaseLineInput `json:"lines" validate:"required,min=1,dive"`
}

// SaleLineInput is one sale line. A zero UnitPrice means the product's selling price.
type SaleLineInput struct {
	ProductID int             `json:"product_id" validate:"required,gt=0"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price" jsonschema:"type=string"`
}

type SaleInput struct {
	CustomerID  int             `json:"customer_id" validate:"required,gt=0"`
	Date        time.Time       `json:"date" validate:"required"`
	PaymentType PaymentType     `json:"payment_type" validate:"required,oneof=CASH CREDIT MIXED"`
	CashAmount  decimal.Decimal `json:"cash_amount" jsonschema:"type=string"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	Lines       []SaleLineInput `json:"lines" validate:"required,min=1,dive"`
}

type PurchaseReturnLineInput struct {
	PurchaseDetailID int `json:"purchase_detail_id" validate:"required,gt=0"`
	Quantity         int `json:"quantity" validate:"required,gt=0"`
}

type PurchaseReturnInput struct {
	PurchaseID int                       `json:"purchase_id" validate:"required,gt=0"`
	Date       time.Time                 `json:"date" validate:"required"`
	Lines      []PurchaseReturnLineInput `json:"lines" validate:"required,min=1,dive"`
}

type SaleReturnLineInput struct {
	SaleDetailID int `json:"sale_detail_id" validate:"required,gt=0"`
	Quantity     int `json:"quantity" validate:"required,gt=0"`
}

type SaleReturnInput struct {
	SaleID int                   `json:"sale_id" validate:"required,gt=0"`
	Date   time.Time             `json:"date" validate:"required"`
	Lines  []SaleReturnLineInput `json:"lines" validate:"required,min=1,dive"`
}

type PaymentInput struct {
	Amount      decimal.Decimal `json:"amount" jsonschema:"type=string"`
	PaymentDate time.Time       `json:"payment_date" validate:"required"`
	Method      PaymentMethod   `json:"method" validate:"required,oneof=CASH TRANSFER"`
}
