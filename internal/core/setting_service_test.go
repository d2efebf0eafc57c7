package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting-engine/internal/core"
)

func TestSetting_SwitchMethodRestatesCostBasis(t *testing.T) {
	h := newHarness(t, 100000)
	ctx := context.Background()
	widget, gadget := h.seed.Widget.ID, h.seed.Gadget.ID
	h.buy(t, core.PaymentCash, day(1, 10), widget, 10, "1000")
	h.buy(t, core.PaymentCash, day(1, 20), widget, 10, "1200")

	prod := h.product(t, widget)
	assertDec(t, "1100", prod.AvgPurchasePrice)
	assertDec(t, "1600", prod.SellingPrice)
	before := h.balances(t)

	tests := []struct {
		method  core.InventoryMethod
		cost    string
		selling string
	}{
		{core.LIFO, "1200", "1700"},
		{core.FIFO, "1000", "1500"},
		{core.AVG, "1100", "1600"},
	}
	for _, tt := range tests {
		setting, err := h.settings.UpdateInventoryMethod(ctx, tt.method)
		require.NoError(t, err)
		assert.Equal(t, tt.method, setting.InventoryMethod)

		prod := h.product(t, widget)
		assert.Equal(t, 20, prod.Stock, "stock is unchanged by a method switch")
		assertDec(t, tt.cost, prod.AvgPurchasePrice, "method %s", tt.method)
		assertDec(t, tt.selling, prod.SellingPrice, "method %s", tt.method)

		empty := h.product(t, gadget)
		assert.Equal(t, 0, empty.Stock)
		assertDec(t, "0", empty.AvgPurchasePrice)
		assertDec(t, "200", empty.SellingPrice)
	}
	assert.Equal(t, before, h.balances(t), "a method switch posts nothing")

	got, err := h.settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.AVG, got.InventoryMethod)

	_, err = h.settings.UpdateInventoryMethod(ctx, "HIFO")
	requireKind(t, err, core.KindValidation)
	h.requireConsistent(t)
}

func TestSetting_ProfitMargin(t *testing.T) {
	h := newHarness(t, 100000)
	ctx := context.Background()
	h.buy(t, core.PaymentCash, day(1, 10), h.seed.Widget.ID, 10, "1000")

	p, err := h.settings.UpdateProfitMargin(ctx, h.seed.Widget.ID, dec("250"))
	require.NoError(t, err)
	assertDec(t, "250", p.ProfitMargin)
	assertDec(t, "1250", p.SellingPrice)

	s := h.sell(t, core.PaymentCash, day(1, 11), h.seed.Widget.ID, 1, "0")
	assertDec(t, "1250", s.Subtotal)

	_, err = h.settings.UpdateProfitMargin(ctx, h.seed.Widget.ID, dec("-1"))
	requireKind(t, err, core.KindValidation)
	_, err = h.settings.UpdateProfitMargin(ctx, 999, dec("10"))
	requireKind(t, err, core.KindNotFound)
}

func TestReporting_StockLevels(t *testing.T) {
	h := newHarness(t, 100000)
	ctx := context.Background()
	h.buy(t, core.PaymentCash, day(1, 10), h.seed.Widget.ID, 10, "1000")
	h.buy(t, core.PaymentCash, day(1, 20), h.seed.Widget.ID, 10, "1200")
	h.sell(t, core.PaymentCash, day(1, 25), h.seed.Widget.ID, 10, "0")

	levels, err := h.reports.GetStockLevels(ctx)
	require.NoError(t, err)
	require.Len(t, levels, 2)

	widget := levels[0]
	assert.Equal(t, "PRD-001", widget.ProductCode)
	assert.Equal(t, 10, widget.OnHand)
	assertDec(t, "1200", widget.UnitCost)
	require.Len(t, widget.Lots, 1, "exhausted lots are not listed")
	assert.Equal(t, 10, widget.Lots[0].RemainingStock)

	assert.Equal(t, 0, levels[1].OnHand)
	assert.Empty(t, levels[1].Lots)
}

func TestReconciliation_TrialBalanceAndMismatch(t *testing.T) {
	h := newHarness(t, 100000)
	ctx := context.Background()
	h.buy(t, core.PaymentCredit, day(1, 10), h.seed.Widget.ID, 10, "1000")

	rows, err := h.recon.TrialBalance(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Equal(t, "1101", rows[0].Code)

	report, err := h.recon.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 1, report.Journals)
	assert.Equal(t, 2, report.Products)

	// A balance written outside the journal is reported, not silently accepted.
	err = h.exec.Read(ctx, func(ctx context.Context, tx core.Tx) error {
		return tx.AdjustBalance(ctx, "1101", dec("1"))
	})
	require.NoError(t, err)
	report, err = h.recon.Verify(ctx)
	require.NoError(t, err)
	require.False(t, report.OK())
	assert.Equal(t, "account_replay", report.Mismatches[0].Check)
	assert.Equal(t, "1101", report.Mismatches[0].Subject)
}
