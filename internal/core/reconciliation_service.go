package core

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// AccountBalance is one row of the trial balance.
type AccountBalance struct {
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	NormalBalance  NormalBalance   `json:"normal_balance"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Balance        decimal.Decimal `json:"balance"`
}

// Mismatch is one failed reconciliation check.
type Mismatch struct {
	Check    string `json:"check"`
	Subject  string `json:"subject"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

type ReconciliationReport struct {
	Journals   int        `json:"journals"`
	Accounts   int        `json:"accounts"`
	Products   int        `json:"products"`
	Mismatches []Mismatch `json:"mismatches"`
}

func (r *ReconciliationReport) OK() bool { return len(r.Mismatches) == 0 }

func (r *ReconciliationReport) add(check, subject string, expected, actual any) {
	r.Mismatches = append(r.Mismatches, Mismatch{
		Check:    check,
		Subject:  subject,
		Expected: fmt.Sprint(expected),
		Actual:   fmt.Sprint(actual),
	})
}

// ReconciliationService checks the whole ledger against its invariants.
type ReconciliationService interface {
	// Verify replays every journal entry from opening balances and compares the result with
	// the running balances; it also matches outstanding payables and receivables against
	// their role accounts and checks lot bounds and stock totals for every product.
	Verify(ctx context.Context) (*ReconciliationReport, error)
	TrialBalance(ctx context.Context) ([]AccountBalance, error)
}

type reconciliationService struct {
	exec        *Executor
	obligations ObligationService
}

func NewReconciliationService(exec *Executor) ReconciliationService {
	return &reconciliationService{exec: exec, obligations: NewObligationService()}
}

func (s *reconciliationService) TrialBalance(ctx context.Context) ([]AccountBalance, error) {
	var out []AccountBalance
	err := s.exec.Read(ctx, func(ctx context.Context, tx Tx) error {
		accounts, err := tx.ListAccounts(ctx)
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		out = make([]AccountBalance, 0, len(accounts))
		for _, a := range accounts {
			out = append(out, AccountBalance{
				Code:           a.Code,
				Name:           a.Name,
				Type:           a.Type,
				NormalBalance:  a.NormalBalance,
				OpeningBalance: a.OpeningBalance,
				Balance:        a.Balance,
			})
		}
		return nil
	})
	return out, err
}

func (s *reconciliationService) Verify(ctx context.Context) (*ReconciliationReport, error) {
	report := &ReconciliationReport{}
	err := s.exec.Read(ctx, func(ctx context.Context, tx Tx) error {
		accounts, err := tx.ListAccounts(ctx)
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		byID := make(map[int]Account, len(accounts))
		replayed := make(map[int]decimal.Decimal, len(accounts))
		for _, a := range accounts {
			byID[a.ID] = a
			replayed[a.ID] = a.OpeningBalance
		}
		report.Accounts = len(accounts)

		// 1. Journals balance and replay
		journals, err := tx.ListJournals(ctx)
		if err != nil {
			return fmt.Errorf("failed to list journals: %w", err)
		}
		report.Journals = len(journals)
		for _, j := range journals {
			entries, err := tx.ListEntries(ctx, j.ID)
			if err != nil {
				return fmt.Errorf("failed to list entries of journal %d: %w", j.ID, err)
			}
			debits, credits := decimal.Zero, decimal.Zero
			for _, e := range entries {
				debits = debits.Add(e.Debit)
				credits = credits.Add(e.Credit)
				acc, ok := byID[e.AccountID]
				if !ok {
					report.add("entry_account", fmt.Sprintf("entry %d", e.ID), "existing account", e.AccountID)
					continue
				}
				replayed[e.AccountID] = replayed[e.AccountID].Add(SignedDelta(acc.NormalBalance, e.Debit, e.Credit))
			}
			if !debits.Equal(credits) {
				report.add("journal_balanced", fmt.Sprintf("journal %d (%s)", j.ID, j.Reference),
					debits.StringFixed(2), credits.StringFixed(2))
			}
		}
		for _, a := range accounts {
			if !replayed[a.ID].Equal(a.Balance) {
				report.add("account_replay", a.Code, replayed[a.ID].StringFixed(2), a.Balance.StringFixed(2))
			}
		}

		// 2. Obligations against their role accounts
		mapping, err := tx.GetDefaultAccountMapping(ctx)
		if err != nil && !IsNotFound(err) {
			return fmt.Errorf("failed to read default account mapping: %w", err)
		}
		if mapping != nil {
			for _, c := range []struct {
				kind      ObligationKind
				accountID int
			}{{Payable, mapping.PayableAccountID}, {Receivable, mapping.ReceivableAccountID}} {
				outstanding, err := s.obligations.TotalOutstandingTx(ctx, tx, c.kind)
				if err != nil {
					return err
				}
				acc := byID[c.accountID]
				net := acc.Balance.Sub(acc.OpeningBalance)
				if !outstanding.Equal(net) {
					report.add("obligation_total", string(c.kind), outstanding.StringFixed(2), net.StringFixed(2))
				}
				list, err := tx.ListObligations(ctx, c.kind)
				if err != nil {
					return fmt.Errorf("failed to list %s obligations: %w", c.kind, err)
				}
				for _, o := range list {
					if err := CheckObligation(o); err != nil {
						report.add("obligation_invariant", fmt.Sprintf("%s %d", o.Kind, o.ID), "consistent", err.Error())
					}
				}
			}
		}

		// 3. Lots and stock
		products, err := tx.ListProducts(ctx)
		if err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}
		report.Products = len(products)
		for _, p := range products {
			if err := checkProduct(ctx, tx, p.ID); err != nil {
				if KindOf(err) != KindInvariantViolation {
					return err
				}
				report.add("stock", p.Code, "stock == sum of lots within bounds", err.Error())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}
