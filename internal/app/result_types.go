package app

import (
	"github.com/shopspring/decimal"

	"accounting-engine/internal/core"
)

// TrialBalanceResult lists every account with totals per normal side.
// Balanced reports whether debit-normal and credit-normal totals agree.
type TrialBalanceResult struct {
	Accounts    []core.AccountBalance `json:"accounts"`
	TotalDebit  decimal.Decimal       `json:"total_debit"`
	TotalCredit decimal.Decimal       `json:"total_credit"`
	Balanced    bool                  `json:"balanced"`
}

// ObligationResult is a payable or receivable with its payment history.
type ObligationResult struct {
	Obligation core.Obligation `json:"obligation"`
	Payments   []core.Payment  `json:"payments"`
}
