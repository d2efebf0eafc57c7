package core

import (
	"context"
	"fmt"
	"sort"
)

type obligationKey struct {
	kind ObligationKind
	id   int
}

// touchSet records what a scope changed so only those rows are re-checked before commit.
type touchSet struct {
	journals    map[int]struct{}
	products    map[int]struct{}
	obligations map[obligationKey]struct{}
}

func newTouchSet() *touchSet {
	return &touchSet{
		journals:    map[int]struct{}{},
		products:    map[int]struct{}{},
		obligations: map[obligationKey]struct{}{},
	}
}

func sortedKeys(m map[int]struct{}) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// verifyPostconditions re-reads every touched row and fails the scope on any broken
// ledger invariant. Deleted rows are skipped.
func verifyPostconditions(ctx context.Context, tx Tx, t *touchSet) error {
	for _, id := range sortedKeys(t.journals) {
		if err := checkJournal(ctx, tx, id); err != nil {
			return err
		}
	}
	for _, id := range sortedKeys(t.products) {
		if err := checkProduct(ctx, tx, id); err != nil {
			return err
		}
	}
	for k := range t.obligations {
		o, err := tx.GetObligation(ctx, k.kind, k.id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return fmt.Errorf("failed to reload %s %d: %w", k.kind, k.id, err)
		}
		if err := CheckObligation(*o); err != nil {
			return err
		}
	}
	return nil
}

func checkJournal(ctx context.Context, tx Tx, journalID int) error {
	if _, err := tx.GetJournal(ctx, journalID); err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to reload journal %d: %w", journalID, err)
	}
	entries, err := tx.ListEntries(ctx, journalID)
	if err != nil {
		return fmt.Errorf("failed to reload entries of journal %d: %w", journalID, err)
	}
	lines := make([]JournalLine, len(entries))
	for i, e := range entries {
		lines[i] = JournalLine{AccountID: e.AccountID, Debit: e.Debit, Credit: e.Credit}
	}
	if err := ValidateLines(lines); err != nil {
		return InvariantViolationf("journal %d: %v", journalID, err)
	}
	return nil
}

// checkProduct verifies lot bounds and that stock equals the sum of remaining lot stock.
func checkProduct(ctx context.Context, tx Tx, productID int) error {
	p, err := tx.GetProduct(ctx, productID)
	if err != nil {
		if IsNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to reload product %d: %w", productID, err)
	}
	batches, err := tx.ListBatchesByProduct(ctx, productID)
	if err != nil {
		return fmt.Errorf("failed to reload batches of product %d: %w", productID, err)
	}
	sum := 0
	for _, b := range batches {
		if b.RemainingStock < 0 || b.RemainingStock > b.Quantity {
			return InvariantViolationf("batch %d: remaining %d outside [0, %d]", b.ID, b.RemainingStock, b.Quantity)
		}
		sum += b.RemainingStock
	}
	if p.Stock != sum {
		return InvariantViolationf("product %d: stock %d != sum of lot remaining %d", productID, p.Stock, sum)
	}
	return nil
}
