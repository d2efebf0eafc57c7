package core

import (
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	Asset        AccountType = "ASSET"
	Liability    AccountType = "LIABILITY"
	Equity       AccountType = "EQUITY"
	Revenue      AccountType = "REVENUE"
	COGS         AccountType = "COGS"
	Expense      AccountType = "EXPENSE"
	OtherExpense AccountType = "OTHER_EXPENSE"
)

type NormalBalance string

const (
	DebitNormal  NormalBalance = "DEBIT"
	CreditNormal NormalBalance = "CREDIT"
)

// AccountTypeFromCode derives the account type from the first digit of an account code.
func AccountTypeFromCode(code string) (AccountType, bool) {
	if code == "" {
		return "", false
	}
	switch code[0] {
	case '1':
		return Asset, true
	case '2':
		return Liability, true
	case '3':
		return Equity, true
	case '4':
		return Revenue, true
	case '5':
		return COGS, true
	case '6':
		return Expense, true
	case '7':
		return OtherExpense, true
	}
	return "", false
}

// NormalBalanceFor returns the side on which an account of the given type increases.
func NormalBalanceFor(t AccountType) NormalBalance {
	switch t {
	case Liability, Equity, Revenue:
		return CreditNormal
	default:
		return DebitNormal
	}
}

type Account struct {
	ID             int             `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	NormalBalance  NormalBalance   `json:"normal_balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Balance        decimal.Decimal `json:"balance"`
}

// DefaultAccountMapping is the single configuration row naming the account for each role.
type DefaultAccountMapping struct {
	CashAccountID         int
	InventoryAccountID    int
	VATInputAccountID     int
	VATOutputAccountID    int
	PayableAccountID      int
	ReceivableAccountID   int
	SalesAccountID        int
	COGSAccountID         int
	OwnerCapitalAccountID int
}

// DefaultAccounts is the resolved role mapping for one transaction scope.
// It is resolved fresh inside every scope and passed down explicitly.
type DefaultAccounts struct {
	Cash         Account
	Inventory    Account
	VATInput     Account
	VATOutput    Account
	Payable      Account
	Receivable   Account
	Sales        Account
	COGS         Account
	OwnerCapital Account
}

type Journal struct {
	ID          int            `json:"id"`
	Date        time.Time      `json:"date"`
	Description string         `json:"description"`
	Reference   string         `json:"reference"`
	CreatedBy   string         `json:"created_by,omitempty"`
	Entries     []JournalEntry `json:"entries,omitempty"`
}

type JournalEntry struct {
	ID        int             `json:"id"`
	JournalID int             `json:"journal_id"`
	AccountID int             `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// JournalLine is an entry to be created. Exactly one of Debit and Credit is non-zero.
type JournalLine struct {
	AccountID int
	Debit     decimal.Decimal
	Credit    decimal.Decimal
}

func DebitLine(accountID int, amount decimal.Decimal) JournalLine {
	return JournalLine{AccountID: accountID, Debit: amount, Credit: decimal.Zero}
}

func CreditLine(accountID int, amount decimal.Decimal) JournalLine {
	return JournalLine{AccountID: accountID, Debit: decimal.Zero, Credit: amount}
}

type Product struct {
	ID               int             `json:"id"`
	Code             string          `json:"code"`
	Name             string          `json:"name"`
	Stock            int             `json:"stock"`
	AvgPurchasePrice decimal.Decimal `json:"avg_purchase_price"`
	ProfitMargin     decimal.Decimal `json:"profit_margin"`
	SellingPrice     decimal.Decimal `json:"selling_price"`
}

// InventoryBatch is one purchase lot of a product.
type InventoryBatch struct {
	ID               int             `json:"id"`
	ProductID        int             `json:"product_id"`
	PurchaseDate     time.Time       `json:"purchase_date"`
	Quantity         int             `json:"quantity"`
	PurchasePrice    decimal.Decimal `json:"purchase_price"`
	RemainingStock   int             `json:"remaining_stock"`
	PurchaseDetailID int             `json:"purchase_detail_id"`
}

// Consumed is the quantity of the lot that has left stock.
func (b InventoryBatch) Consumed() int {
	return b.Quantity - b.RemainingStock
}

type Supplier struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type Customer struct {
	ID   int    `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

type VATRate struct {
	ID            int             `json:"id"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveDate time.Time       `json:"effective_date"`
}

type InventoryMethod string

const (
	FIFO InventoryMethod = "FIFO"
	LIFO InventoryMethod = "LIFO"
	AVG  InventoryMethod = "AVG"
)

func (m InventoryMethod) Valid() bool {
	return m == FIFO || m == LIFO || m == AVG
}

type GeneralSetting struct {
	ID              int             `json:"id"`
	InventoryMethod InventoryMethod `json:"inventory_method"`
}

// Actor identifies who is performing an operation. Used only for audit fields.
type Actor struct {
	Username string `json:"username"`
}
