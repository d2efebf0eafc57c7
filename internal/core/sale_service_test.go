package core_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting-engine/internal/core"
	"accounting-engine/internal/store/memory"
)

func TestSale_FIFOSingleLot(t *testing.T) {
	h := newHarness(t, 100000)
	widget := h.seed.Widget.ID
	p := h.buy(t, core.PaymentCash, day(1, 10), widget, 10, "1000")

	s := h.sell(t, core.PaymentCash, day(1, 15), widget, 4, "0")

	assert.Equal(t, "SAL-00001", s.Reference)
	assertDec(t, "6000", s.Subtotal, "unit price defaults to the selling price")
	assertDec(t, "600", s.VAT)
	assertDec(t, "6600", s.Total)
	assertDec(t, "4000", s.COGS)
	require.Len(t, s.Details, 1)
	assertDec(t, "1500", s.Details[0].UnitPrice)
	require.Len(t, s.Details[0].Allocations, 1)
	alloc := s.Details[0].Allocations[0]
	assert.Equal(t, p.Details[0].BatchID, alloc.BatchID)
	assert.Equal(t, 4, alloc.Quantity)
	assertDec(t, "1000", alloc.UnitCost)

	assert.Equal(t, 6, h.batch(t, p.Details[0].BatchID).RemainingStock)
	assert.Equal(t, 6, h.product(t, widget).Stock)

	assertDec(t, "95600", h.balance(t, memory.CodeCash))
	assertDec(t, "6000", h.balance(t, memory.CodeInventory))
	assertDec(t, "6000", h.balance(t, memory.CodeSales))
	assertDec(t, "600", h.balance(t, memory.CodeVATOutput))
	assertDec(t, "4000", h.balance(t, memory.CodeCOGS))
	h.requireConsistent(t)
}

func TestSale_CostingMethodsAcrossLots(t *testing.T) {
	type alloc struct {
		lot  int
		qty  int
		cost string
	}
	tests := []struct {
		method      core.InventoryMethod
		cogs        string
		allocations []alloc
		costAfter   string
	}{
		{core.FIFO, "12400", []alloc{{0, 10, "1000"}, {1, 2, "1200"}}, "1200"},
		{core.LIFO, "14000", []alloc{{1, 10, "1200"}, {0, 2, "1000"}}, "1000"},
		{core.AVG, "13200", []alloc{{0, 10, "1100"}, {1, 2, "1100"}}, "1200"},
	}
	for _, tt := range tests {
		t.Run(string(tt.method), func(t *testing.T) {
			h := newHarness(t, 1000000)
			ctx := context.Background()
			widget := h.seed.Widget.ID
			lots := []int{
				h.buy(t, core.PaymentCash, day(1, 10), widget, 10, "1000").Details[0].BatchID,
				h.buy(t, core.PaymentCash, day(1, 20), widget, 10, "1200").Details[0].BatchID,
			}
			_, err := h.settings.UpdateInventoryMethod(ctx, tt.method)
			require.NoError(t, err)

			s := h.sell(t, core.PaymentCash, day(1, 25), widget, 12, "2000")

			assertDec(t, tt.cogs, s.COGS)
			assertDec(t, tt.cogs, h.balance(t, memory.CodeCOGS))
			got := s.Details[0].Allocations
			require.Len(t, got, len(tt.allocations))
			for i, want := range tt.allocations {
				assert.Equal(t, lots[want.lot], got[i].BatchID)
				assert.Equal(t, want.qty, got[i].Quantity)
				assertDec(t, want.cost, got[i].UnitCost)
			}

			prod := h.product(t, widget)
			assert.Equal(t, 8, prod.Stock)
			assertDec(t, tt.costAfter, prod.AvgPurchasePrice)
			h.requireConsistent(t)
		})
	}
}

func TestSale_ChronologyAndStockLimits(t *testing.T) {
	h := newHarness(t, 100000)
	ctx := context.Background()
	widget := h.seed.Widget.ID
	first := h.buy(t, core.PaymentCash, day(1, 10), widget, 10, "1000")
	h.buy(t, core.PaymentCash, day(1, 20), widget, 10, "1200")
	before := h.balances(t)

	sale := func(date int, qty int) error {
		_, err := h.sales.Create(ctx, core.SaleInput{
			CustomerID:  h.seed.Customer.ID,
			Date:        day(1, date),
			PaymentType: core.PaymentCash,
			Lines:       []core.SaleLineInput{{ProductID: widget, Quantity: qty}},
		})
		return err
	}

	requireKind(t, sale(5, 1), core.KindInvalidChronology)
	requireKind(t, sale(15, 12), core.KindInvalidChronology)
	requireKind(t, sale(25, 25), core.KindInsufficientStock)
	assert.ErrorIs(t, sale(25, 25), core.ErrInsufficientStock)

	assert.Equal(t, before, h.balances(t))
	assert.Equal(t, 20, h.product(t, widget).Stock)

	require.NoError(t, sale(15, 10))
	assert.Equal(t, 0, h.batch(t, first.Details[0].BatchID).RemainingStock)
	h.requireConsistent(t)
}

func TestSale_FailingLineRollsBackEarlierLines(t *testing.T) {
	h := newHarness(t, 100000)
	widget := h.seed.Widget.ID
	p := h.buy(t, core.PaymentCash, day(1, 10), widget, 10, "1000")
	before := h.balances(t)

	_, err := h.sales.Create(context.Background(), core.SaleInput{
		CustomerID:  h.seed.Customer.ID,
		Date:        day(1, 15),
		PaymentType: core.PaymentCash,
		Lines: []core.SaleLineInput{
			{ProductID: widget, Quantity: 2},
			{ProductID: h.seed.Gadget.ID, Quantity: 5},
		},
	})
	requireKind(t, err, core.KindInsufficientStock)

	assert.Equal(t, before, h.balances(t))
	assert.Equal(t, 10, h.batch(t, p.Details[0].BatchID).RemainingStock)
	assert.Equal(t, 10, h.product(t, widget).Stock)

	s := h.sell(t, core.PaymentCash, day(1, 15), widget, 2, "0")
	assert.Equal(t, "SAL-00001", s.Reference)
}

func TestSale_InputErrors(t *testing.T) {
	h := newHarness(t, 100000)
	ctx := context.Background()
	h.buy(t, core.PaymentCash, day(1, 10), h.seed.Widget.ID, 10, "1000")

	_, err := h.sales.Create(ctx, core.SaleInput{
		CustomerID: 999, Date: day(1, 15), PaymentType: core.PaymentCash,
		Lines: []core.SaleLineInput{{ProductID: h.seed.Widget.ID, Quantity: 1}},
	})
	requireKind(t, err, core.KindNotFound)

	_, err = h.sales.Create(ctx, core.SaleInput{
		CustomerID: h.seed.Customer.ID, Date: day(1, 15), PaymentType: core.PaymentCash,
		Lines: []core.SaleLineInput{{ProductID: h.seed.Widget.ID, Quantity: 1, UnitPrice: dec("-5")}},
	})
	requireKind(t, err, core.KindValidation)

	_, err = h.sales.Create(ctx, core.SaleInput{
		CustomerID: h.seed.Customer.ID, Date: day(1, 15), PaymentType: core.PaymentMixed,
		CashAmount: dec("0"),
		Lines:      []core.SaleLineInput{{ProductID: h.seed.Widget.ID, Quantity: 1}},
	})
	requireKind(t, err, core.KindValidation)
}

func TestSale_CreditCreatesReceivable(t *testing.T) {
	h := newHarness(t, 100000)
	h.buy(t, core.PaymentCash, day(1, 10), h.seed.Widget.ID, 10, "1000")

	s := h.sell(t, core.PaymentCredit, day(1, 15), h.seed.Widget.ID, 2, "1500")

	o := h.obligationOf(t, core.Receivable, s.ID)
	require.NotNil(t, o)
	assertDec(t, "3300", o.Amount)
	assertDec(t, "3300", o.RemainingAmount)
	assert.Equal(t, core.StatusUnpaid, o.Status)
	assert.Equal(t, h.seed.Customer.ID, o.CounterpartyID)
	assert.NotZero(t, o.JournalEntryID)
	assertDec(t, "89000", h.balance(t, memory.CodeCash))
	assertDec(t, "3300", h.balance(t, memory.CodeReceivable))
	h.requireConsistent(t)
}

func TestSale_DeleteRestoresLots(t *testing.T) {
	h := newHarness(t, 100000)
	ctx := context.Background()
	p := h.buy(t, core.PaymentCash, day(1, 10), h.seed.Widget.ID, 10, "1000")
	afterPurchase := h.balances(t)

	s := h.sell(t, core.PaymentCredit, day(1, 15), h.seed.Widget.ID, 4, "0")
	require.NoError(t, h.sales.Delete(ctx, s.ID))

	assert.Equal(t, afterPurchase, h.balances(t))
	assert.Equal(t, 10, h.batch(t, p.Details[0].BatchID).RemainingStock)
	assert.Equal(t, 10, h.product(t, h.seed.Widget.ID).Stock)
	assert.Nil(t, h.obligationOf(t, core.Receivable, s.ID))

	requireKind(t, h.sales.Delete(ctx, s.ID), core.KindNotFound)
	_, err := h.sales.Get(ctx, s.ID)
	requireKind(t, err, core.KindNotFound)
	h.requireConsistent(t)
}

func TestSale_DeleteGuards(t *testing.T) {
	ctx := context.Background()

	t.Run("later purchase", func(t *testing.T) {
		h := newHarness(t, 100000)
		h.buy(t, core.PaymentCash, day(1, 10), h.seed.Widget.ID, 10, "1000")
		s := h.sell(t, core.PaymentCash, day(1, 15), h.seed.Widget.ID, 4, "0")
		h.buy(t, core.PaymentCash, day(1, 20), h.seed.Widget.ID, 10, "1000")
		requireKind(t, h.sales.Delete(ctx, s.ID), core.KindConflict)
	})

	t.Run("receivable payment", func(t *testing.T) {
		h := newHarness(t, 100000)
		h.buy(t, core.PaymentCash, day(1, 10), h.seed.Widget.ID, 10, "1000")
		s := h.sell(t, core.PaymentCredit, day(1, 15), h.seed.Widget.ID, 4, "0")
		o := h.obligationOf(t, core.Receivable, s.ID)
		_, err := h.payments.Create(ctx, core.Receivable, o.ID, core.PaymentInput{
			Amount: dec("100"), PaymentDate: day(1, 16), Method: core.MethodTransfer,
		})
		require.NoError(t, err)
		before := h.balances(t)

		requireKind(t, h.sales.Delete(ctx, s.ID), core.KindConflict)
		assert.Equal(t, before, h.balances(t))
	})

	t.Run("sale return", func(t *testing.T) {
		h := newHarness(t, 100000)
		h.buy(t, core.PaymentCash, day(1, 10), h.seed.Widget.ID, 10, "1000")
		s := h.sell(t, core.PaymentCash, day(1, 15), h.seed.Widget.ID, 4, "0")
		_, err := h.returns.CreateSaleReturn(ctx, core.SaleReturnInput{
			SaleID: s.ID, Date: day(1, 16),
			Lines: []core.SaleReturnLineInput{{SaleDetailID: s.Details[0].ID, Quantity: 1}},
		})
		require.NoError(t, err)
		requireKind(t, h.sales.Delete(ctx, s.ID), core.KindConflict)
	})
}

func TestSale_UpdateReappliesUnderSameIDs(t *testing.T) {
	h := newHarness(t, 100000)
	ctx := context.Background()
	p := h.buy(t, core.PaymentCash, day(1, 10), h.seed.Widget.ID, 10, "1000")
	s := h.sell(t, core.PaymentCash, day(1, 15), h.seed.Widget.ID, 4, "0")

	u, err := h.sales.Update(ctx, s.ID, core.SaleInput{
		CustomerID:  h.seed.Customer.ID,
		Date:        day(1, 16),
		PaymentType: core.PaymentCredit,
		Lines:       []core.SaleLineInput{{ProductID: h.seed.Widget.ID, Quantity: 2, UnitPrice: dec("1500")}},
	})
	require.NoError(t, err)

	assert.Equal(t, s.ID, u.ID)
	assert.Equal(t, s.Reference, u.Reference)
	assert.Equal(t, s.JournalID, u.JournalID)
	assert.True(t, u.Date.Equal(day(1, 16)))
	assertDec(t, "3300", u.Total)
	assertDec(t, "2000", u.COGS)

	assertDec(t, "89000", h.balance(t, memory.CodeCash))
	assertDec(t, "3300", h.balance(t, memory.CodeReceivable))
	assertDec(t, "2000", h.balance(t, memory.CodeCOGS))
	assert.Equal(t, 8, h.batch(t, p.Details[0].BatchID).RemainingStock)
	o := h.obligationOf(t, core.Receivable, s.ID)
	require.NotNil(t, o)
	assertDec(t, "3300", o.Amount)
	h.requireConsistent(t)
}
