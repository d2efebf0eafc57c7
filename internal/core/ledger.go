package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// JournalService owns journal headers, their entries, and the running account balances
// those entries move. All methods run inside the caller's transaction scope.
type JournalService interface {
	// CreateJournalTx inserts a journal header with no entries.
	CreateJournalTx(ctx context.Context, tx Tx, date time.Time, description, reference string) (*Journal, error)

	// PostTx validates lines, inserts them as entries of journalID, and applies each
	// entry's signed delta to its account balance. Returned entries are in line order.
	PostTx(ctx context.Context, tx Tx, journalID int, lines []JournalLine) ([]JournalEntry, error)

	// ReverseTx undoes the balance effect of every entry of journalID and deletes the
	// entries. The header is kept so update flows can re-post under the same ID.
	ReverseTx(ctx context.Context, tx Tx, journalID int) error

	// UpdateEntryAmountsTx rewrites one entry and moves its account balance by the difference.
	UpdateEntryAmountsTx(ctx context.Context, tx Tx, entryID int, debit, credit decimal.Decimal) error

	// DeleteEntriesByJournalTx deletes entries without touching balances.
	// Callers reverse the journal first.
	DeleteEntriesByJournalTx(ctx context.Context, tx Tx, journalID int) error

	// DeleteJournalTx deletes a header whose entries have already been removed.
	DeleteJournalTx(ctx context.Context, tx Tx, journalID int) error
}

type journalService struct{}

func NewJournalService() JournalService {
	return journalService{}
}

// SignedDelta is the balance change an entry causes on an account with the given normal
// balance: debit-normal accounts move by debit−credit, credit-normal by credit−debit.
func SignedDelta(normal NormalBalance, debit, credit decimal.Decimal) decimal.Decimal {
	if normal == CreditNormal {
		return credit.Sub(debit)
	}
	return debit.Sub(credit)
}

// ValidateLines checks that lines form a postable journal. An empty set is balanced;
// a single line never is.
func ValidateLines(lines []JournalLine) error {
	if len(lines) == 0 {
		return nil
	}
	if len(lines) < 2 {
		return InvariantViolationf("journal must have at least two lines, got %d", len(lines))
	}
	debits, credits := decimal.Zero, decimal.Zero
	for i, l := range lines {
		if l.Debit.IsNegative() || l.Credit.IsNegative() {
			return InvariantViolationf("line %d: amounts must be non-negative", i+1)
		}
		if l.Debit.IsPositive() == l.Credit.IsPositive() {
			return InvariantViolationf("line %d: exactly one of debit or credit must be positive", i+1)
		}
		debits = debits.Add(l.Debit)
		credits = credits.Add(l.Credit)
	}
	if !debits.Equal(credits) {
		return InvariantViolationf("journal is unbalanced: debits %s, credits %s",
			debits.StringFixed(2), credits.StringFixed(2))
	}
	return nil
}

func (journalService) CreateJournalTx(ctx context.Context, tx Tx, date time.Time, description, reference string) (*Journal, error) {
	j, err := tx.CreateJournal(ctx, Journal{
		Date:        date,
		Description: description,
		Reference:   reference,
		CreatedBy:   createdBy(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create journal: %w", err)
	}
	return j, nil
}

func (journalService) PostTx(ctx context.Context, tx Tx, journalID int, lines []JournalLine) ([]JournalEntry, error) {
	// Zero-amount lines arise from optional legs (no VAT, no cash portion); drop them.
	kept := make([]JournalLine, 0, len(lines))
	for _, l := range lines {
		l.Debit = l.Debit.Round(2)
		l.Credit = l.Credit.Round(2)
		if l.Debit.IsZero() && l.Credit.IsZero() {
			continue
		}
		kept = append(kept, l)
	}
	if err := ValidateLines(kept); err != nil {
		return nil, err
	}

	entries, err := tx.CreateEntries(ctx, journalID, kept)
	if err != nil {
		return nil, fmt.Errorf("failed to insert journal entries: %w", err)
	}
	for _, e := range entries {
		if err := applyDelta(ctx, tx, e.AccountID, e.Debit, e.Credit); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (s journalService) ReverseTx(ctx context.Context, tx Tx, journalID int) error {
	entries, err := tx.ListEntries(ctx, journalID)
	if err != nil {
		return fmt.Errorf("failed to list entries of journal %d: %w", journalID, err)
	}
	for _, e := range entries {
		// Swapping sides inverts the signed delta.
		if err := applyDelta(ctx, tx, e.AccountID, e.Credit, e.Debit); err != nil {
			return err
		}
	}
	return s.DeleteEntriesByJournalTx(ctx, tx, journalID)
}

func (journalService) UpdateEntryAmountsTx(ctx context.Context, tx Tx, entryID int, debit, credit decimal.Decimal) error {
	e, err := tx.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	debit, credit = debit.Round(2), credit.Round(2)
	if debit.IsNegative() || credit.IsNegative() || debit.IsPositive() == credit.IsPositive() {
		return InvariantViolationf("entry %d: exactly one of debit or credit must be positive", entryID)
	}
	if err := applyDelta(ctx, tx, e.AccountID, e.Credit, e.Debit); err != nil {
		return err
	}
	if err := applyDelta(ctx, tx, e.AccountID, debit, credit); err != nil {
		return err
	}
	if err := tx.UpdateEntryAmounts(ctx, entryID, debit, credit); err != nil {
		return fmt.Errorf("failed to update entry %d: %w", entryID, err)
	}
	return nil
}

func (journalService) DeleteEntriesByJournalTx(ctx context.Context, tx Tx, journalID int) error {
	if err := tx.DeleteEntriesByJournal(ctx, journalID); err != nil {
		return fmt.Errorf("failed to delete entries of journal %d: %w", journalID, err)
	}
	return nil
}

func (journalService) DeleteJournalTx(ctx context.Context, tx Tx, journalID int) error {
	if err := tx.DeleteJournal(ctx, journalID); err != nil {
		return fmt.Errorf("failed to delete journal %d: %w", journalID, err)
	}
	return nil
}

// applyDelta reads the live balance of an account and writes balance + SignedDelta.
func applyDelta(ctx context.Context, tx Tx, accountID int, debit, credit decimal.Decimal) error {
	acc, err := tx.GetAccount(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to load account %d: %w", accountID, err)
	}
	next := acc.Balance.Add(SignedDelta(acc.NormalBalance, debit, credit))
	if err := tx.AdjustBalance(ctx, acc.Code, next); err != nil {
		return fmt.Errorf("failed to adjust balance of account %s: %w", acc.Code, err)
	}
	return nil
}

// requireCash fails with ErrInsufficientFunds when the live cash balance is below amount.
func requireCash(ctx context.Context, tx Tx, d *DefaultAccounts, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return nil
	}
	cash, err := tx.GetAccount(ctx, d.Cash.ID)
	if err != nil {
		return fmt.Errorf("failed to load cash account: %w", err)
	}
	if cash.Balance.LessThan(amount) {
		return InsufficientFundsf("cash balance %s is less than %s",
			cash.Balance.StringFixed(2), amount.StringFixed(2))
	}
	return nil
}
