package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting-engine/internal/core"
	"accounting-engine/internal/store/memory"
)

func TestUpdateEntryAmountsTx(t *testing.T) {
	h := newHarness(t, 100000)
	p := h.buy(t, core.PaymentCash, day(1, 10), h.seed.Widget.ID, 10, "1000")
	journals := core.NewJournalService()

	err := h.store.InTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
		inv, err := tx.GetAccountByCode(ctx, memory.CodeInventory)
		require.NoError(t, err)
		cash, err := tx.GetAccountByCode(ctx, memory.CodeCash)
		require.NoError(t, err)
		entries, err := tx.ListEntries(ctx, p.JournalID)
		require.NoError(t, err)

		var invEntry, cashEntry core.JournalEntry
		for _, e := range entries {
			switch e.AccountID {
			case inv.ID:
				invEntry = e
			case cash.ID:
				cashEntry = e
			}
		}
		require.NotZero(t, invEntry.ID)
		require.NotZero(t, cashEntry.ID)

		balanceOf := func(code string) string {
			a, err := tx.GetAccountByCode(ctx, code)
			require.NoError(t, err)
			return a.Balance.StringFixed(2)
		}

		// debit side grows by the difference only
		require.NoError(t, journals.UpdateEntryAmountsTx(ctx, tx, invEntry.ID, dec("12000"), dec("0")))
		assert.Equal(t, "12000.00", balanceOf(memory.CodeInventory))

		// credit side on a debit-normal account moves the other way
		require.NoError(t, journals.UpdateEntryAmountsTx(ctx, tx, cashEntry.ID, dec("0"), dec("13000")))
		assert.Equal(t, "87000.00", balanceOf(memory.CodeCash))

		// flipping an entry to the other side reverses its full effect
		require.NoError(t, journals.UpdateEntryAmountsTx(ctx, tx, invEntry.ID, dec("0"), dec("500")))
		assert.Equal(t, "-500.00", balanceOf(memory.CodeInventory))

		got, err := tx.GetEntry(ctx, invEntry.ID)
		require.NoError(t, err)
		assertDec(t, "0", got.Debit)
		assertDec(t, "500", got.Credit)

		for _, amounts := range [][2]string{{"0", "0"}, {"10", "10"}, {"-10", "0"}} {
			err := journals.UpdateEntryAmountsTx(ctx, tx, invEntry.ID, dec(amounts[0]), dec(amounts[1]))
			requireKind(t, err, core.KindInvariantViolation)
		}
		assert.Equal(t, "-500.00", balanceOf(memory.CodeInventory))
		return errDiscard
	})
	require.ErrorIs(t, err, errDiscard)

	assertDec(t, "10000", h.balance(t, memory.CodeInventory))
	assertDec(t, "89000", h.balance(t, memory.CodeCash))
	h.requireConsistent(t)
}
