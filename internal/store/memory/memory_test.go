package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting-engine/internal/core"
	"accounting-engine/internal/store/memory"
)

func date(m time.Month, d int) time.Time { return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC) }

func TestInTx_ErrorRestoresSnapshot(t *testing.T) {
	s, seed := memory.NewSeeded(decimal.NewFromInt(100))
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
		require.NoError(t, tx.AdjustBalance(ctx, memory.CodeCash, decimal.NewFromInt(1)))
		_, err := tx.CreateBatch(ctx, core.InventoryBatch{ProductID: seed.Widget.ID, Quantity: 1, RemainingStock: 1})
		require.NoError(t, err)
		_, err = tx.NextSequence(ctx, core.PrefixPurchase)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
		cash, err := tx.GetAccountByCode(ctx, memory.CodeCash)
		require.NoError(t, err)
		assert.Equal(t, "100.00", cash.Balance.StringFixed(2))

		batches, err := tx.ListBatchesByProduct(ctx, seed.Widget.ID)
		require.NoError(t, err)
		assert.Empty(t, batches)

		n, err := tx.NextSequence(ctx, core.PrefixPurchase)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return nil
	})
	require.NoError(t, err)
}

func TestInTx_PanicRestoresSnapshot(t *testing.T) {
	s, _ := memory.NewSeeded(decimal.NewFromInt(100))
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
			_ = tx.AdjustBalance(ctx, memory.CodeCash, decimal.Zero)
			panic("mid-scope failure")
		})
	})

	err := s.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
		cash, err := tx.GetAccountByCode(ctx, memory.CodeCash)
		require.NoError(t, err)
		assert.Equal(t, "100.00", cash.Balance.StringFixed(2))
		return nil
	})
	require.NoError(t, err)
}

func TestInTx_CanceledContext(t *testing.T) {
	s := memory.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.InTx(ctx, func(context.Context, core.Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestTx_LookupsAndOrdering(t *testing.T) {
	s, seed := memory.NewSeeded(decimal.Zero)
	s.AddVATRate(decimal.NewFromInt(12), date(3, 1))
	ctx := context.Background()

	err := s.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
		// VAT: latest effective on or before the date.
		v, err := tx.FindVATRate(ctx, date(2, 28))
		require.NoError(t, err)
		assert.Equal(t, "10", v.Rate.String())
		v, err = tx.FindVATRate(ctx, date(3, 1))
		require.NoError(t, err)
		assert.Equal(t, "12", v.Rate.String())
		_, err = tx.FindVATRate(ctx, time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC))
		assert.True(t, core.IsNotFound(err))

		// Lots: purchase date first, then ID.
		for _, d := range []time.Time{date(1, 20), date(1, 10), date(1, 10)} {
			_, err := tx.CreateBatch(ctx, core.InventoryBatch{ProductID: seed.Widget.ID, PurchaseDate: d, Quantity: 1, RemainingStock: 1})
			require.NoError(t, err)
		}
		batches, err := tx.ListBatchesByProduct(ctx, seed.Widget.ID)
		require.NoError(t, err)
		require.Len(t, batches, 3)
		assert.Equal(t, []int{2, 3, 1}, []int{batches[0].ID, batches[1].ID, batches[2].ID})

		// Missing rows are NotFound; a missing obligation by source is nil.
		_, err = tx.GetPurchase(ctx, 42)
		assert.True(t, core.IsNotFound(err))
		assert.True(t, core.IsNotFound(tx.DeleteBatch(ctx, 42)))
		o, err := tx.FindObligationBySource(ctx, core.Payable, 42)
		require.NoError(t, err)
		assert.Nil(t, o)
		return nil
	})
	require.NoError(t, err)
}

func TestTx_JournalWithEntriesCannotBeDeleted(t *testing.T) {
	s, seed := memory.NewSeeded(decimal.Zero)
	ctx := context.Background()

	err := s.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
		j, err := tx.CreateJournal(ctx, core.Journal{Date: date(1, 1), Reference: "T-1"})
		require.NoError(t, err)
		entries, err := tx.CreateEntries(ctx, j.ID, []core.JournalLine{
			core.DebitLine(seed.Accounts.CashAccountID, decimal.NewFromInt(5)),
			core.CreditLine(seed.Accounts.OwnerCapitalAccountID, decimal.NewFromInt(5)),
		})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Less(t, entries[0].ID, entries[1].ID)

		assert.Equal(t, core.KindConflict, core.KindOf(tx.DeleteJournal(ctx, j.ID)))
		require.NoError(t, tx.DeleteEntriesByJournal(ctx, j.ID))
		require.NoError(t, tx.DeleteJournal(ctx, j.ID))
		_, err = tx.GetJournal(ctx, j.ID)
		assert.True(t, core.IsNotFound(err))
		return nil
	})
	require.NoError(t, err)
}
