package core_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting-engine/internal/core"
)

func lots() []core.InventoryBatch {
	return []core.InventoryBatch{
		{ID: 1, ProductID: 1, PurchaseDate: day(1, 10), Quantity: 10, RemainingStock: 10, PurchasePrice: dec("1000")},
		{ID: 2, ProductID: 1, PurchaseDate: day(1, 20), Quantity: 10, RemainingStock: 5, PurchasePrice: dec("1200")},
		{ID: 3, ProductID: 1, PurchaseDate: day(1, 10), Quantity: 5, RemainingStock: 5, PurchasePrice: dec("1100")},
		{ID: 4, ProductID: 1, PurchaseDate: day(1, 5), Quantity: 5, RemainingStock: 0, PurchasePrice: dec("900")},
	}
}

func TestPlanAllocation(t *testing.T) {
	type take struct {
		batch int
		qty   int
		cost  string
	}
	tests := []struct {
		name   string
		qty    int
		method core.InventoryMethod
		date   int
		want   []take
		cogs   string
		kind   core.Kind
	}{
		{name: "fifo spans lots with same-day tie on id", qty: 12, method: core.FIFO, date: 25,
			want: []take{{1, 10, "1000"}, {3, 2, "1100"}}, cogs: "12200"},
		{name: "lifo takes newest first", qty: 7, method: core.LIFO, date: 25,
			want: []take{{2, 5, "1200"}, {3, 2, "1100"}}, cogs: "8200"},
		{name: "lifo ignores lots dated after the sale", qty: 3, method: core.LIFO, date: 15,
			want: []take{{3, 3, "1100"}}, cogs: "3300"},
		{name: "avg prices valid lots at weighted cost", qty: 4, method: core.AVG, date: 15,
			want: []take{{1, 4, "1033.33"}}, cogs: "4133.32"},
		{name: "avg takes every lot once all are dated on or before the sale", qty: 1, method: core.AVG, date: 25,
			want: []take{{1, 1, "1075"}}, cogs: "1075"},
		{name: "avg spans lots at one unit cost", qty: 12, method: core.AVG, date: 25,
			want: []take{{1, 10, "1075"}, {3, 2, "1075"}}, cogs: "12900"},
		{name: "enough stock but not yet purchased", qty: 16, method: core.FIFO, date: 15,
			kind: core.KindInvalidChronology},
		{name: "not enough stock at all", qty: 21, method: core.FIFO, date: 25,
			kind: core.KindInsufficientStock},
		{name: "zero quantity", qty: 0, method: core.FIFO, date: 25, kind: core.KindValidation},
		{name: "unknown method", qty: 1, method: "HIFO", date: 25, kind: core.KindValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := lots()
			plan, err := core.PlanAllocation(input, tt.qty, tt.method, day(1, tt.date))
			assert.Equal(t, lots(), input, "input lots must not be mutated")
			if tt.kind != "" {
				requireKind(t, err, tt.kind)
				return
			}
			require.NoError(t, err)
			require.Len(t, plan.Allocations, len(tt.want))
			for i, w := range tt.want {
				assert.Equal(t, w.batch, plan.Allocations[i].BatchID)
				assert.Equal(t, w.qty, plan.Allocations[i].Quantity)
				assertDec(t, w.cost, plan.Allocations[i].UnitCost)
			}
			assertDec(t, tt.cogs, plan.COGS)
		})
	}
}

func TestRecalculateCOGS(t *testing.T) {
	assertDec(t, "1000", core.RecalculateCOGS(lots(), core.FIFO))
	assertDec(t, "1200", core.RecalculateCOGS(lots(), core.LIFO))
	// (10×1000 + 5×1200 + 5×1100) / 20
	assertDec(t, "1075", core.RecalculateCOGS(lots(), core.AVG))
	assertDec(t, "0", core.RecalculateCOGS(nil, core.FIFO))
	assertDec(t, "0", core.RecalculateCOGS([]core.InventoryBatch{{ID: 1, Quantity: 3, PurchasePrice: dec("5")}}, core.AVG))
}

func TestWeightedAverageRounds(t *testing.T) {
	got := core.WeightedAverage([]core.InventoryBatch{
		{ID: 1, Quantity: 1, RemainingStock: 1, PurchasePrice: dec("10")},
		{ID: 2, Quantity: 2, RemainingStock: 2, PurchasePrice: dec("11")},
	})
	assertDec(t, "10.67", got)
}

func TestVATOf(t *testing.T) {
	assertDec(t, "1000", core.VATOf(dec("10000"), dec("10")))
	assertDec(t, "0.33", core.VATOf(dec("3.33"), dec("10")))
	assertDec(t, "0", core.VATOf(dec("500"), dec("0")))
}

func TestValidateLines(t *testing.T) {
	tests := []struct {
		name  string
		lines []core.JournalLine
		ok    bool
	}{
		{"empty", nil, true},
		{"balanced pair", []core.JournalLine{core.DebitLine(1, dec("10")), core.CreditLine(2, dec("10"))}, true},
		{"single line", []core.JournalLine{core.DebitLine(1, dec("10"))}, false},
		{"unbalanced", []core.JournalLine{core.DebitLine(1, dec("10")), core.CreditLine(2, dec("9.99"))}, false},
		{"both sides", []core.JournalLine{{AccountID: 1, Debit: dec("5"), Credit: dec("5")}, core.CreditLine(2, dec("0"))}, false},
		{"negative", []core.JournalLine{core.DebitLine(1, dec("-10")), core.CreditLine(2, dec("-10"))}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := core.ValidateLines(tt.lines)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			requireKind(t, err, core.KindInvariantViolation)
		})
	}
}

func TestSignedDelta(t *testing.T) {
	assertDec(t, "10", core.SignedDelta(core.DebitNormal, dec("10"), dec("0")))
	assertDec(t, "-10", core.SignedDelta(core.DebitNormal, dec("0"), dec("10")))
	assertDec(t, "10", core.SignedDelta(core.CreditNormal, dec("0"), dec("10")))
	assertDec(t, "-10", core.SignedDelta(core.CreditNormal, dec("10"), dec("0")))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, core.StatusUnpaid, core.StatusFor(dec("100"), dec("0"), dec("100")))
	assert.Equal(t, core.StatusPartial, core.StatusFor(dec("100"), dec("40"), dec("60")))
	assert.Equal(t, core.StatusPaid, core.StatusFor(dec("100"), dec("100"), dec("0")))

	bad := core.Obligation{Kind: core.Payable, ID: 1, Amount: dec("100"), PaidAmount: dec("40"),
		RemainingAmount: dec("50"), Status: core.StatusPartial}
	requireKind(t, core.CheckObligation(bad), core.KindInvariantViolation)
	bad.RemainingAmount = dec("60")
	bad.Status = core.StatusUnpaid
	requireKind(t, core.CheckObligation(bad), core.KindInvariantViolation)
	bad.Status = core.StatusPartial
	assert.NoError(t, core.CheckObligation(bad))
}

func TestAccountTypeFromCode(t *testing.T) {
	typ, ok := core.AccountTypeFromCode("2101")
	require.True(t, ok)
	assert.Equal(t, core.Liability, typ)
	assert.Equal(t, core.CreditNormal, core.NormalBalanceFor(typ))
	assert.Equal(t, core.DebitNormal, core.NormalBalanceFor(core.Asset))

	_, ok = core.AccountTypeFromCode("9101")
	assert.False(t, ok)
	_, ok = core.AccountTypeFromCode("")
	assert.False(t, ok)
}

func TestErrorKinds(t *testing.T) {
	wrapped := fmt.Errorf("loading purchase: %w", core.NotFoundf("purchase %d not found", 7))
	assert.True(t, errors.Is(wrapped, core.ErrNotFound))
	assert.False(t, errors.Is(wrapped, core.ErrConflict))
	assert.True(t, core.IsNotFound(wrapped))
	assert.Equal(t, core.KindNotFound, core.KindOf(wrapped))
	assert.Equal(t, http.StatusNotFound, core.StatusOf(wrapped))

	assert.Equal(t, http.StatusBadRequest, core.StatusOf(core.InsufficientStockf("x")))
	assert.Equal(t, http.StatusBadRequest, core.StatusOf(core.Conflictf("x")))
	assert.Equal(t, http.StatusInternalServerError, core.StatusOf(core.InvariantViolationf("x")))
	assert.Equal(t, http.StatusInternalServerError, core.StatusOf(core.NotConfiguredf("x")))
	assert.Equal(t, http.StatusInternalServerError, core.StatusOf(errors.New("boom")))
	assert.Equal(t, core.KindInternal, core.KindOf(errors.New("boom")))

	cause := errors.New("40001")
	retry := core.Retryable(cause)
	assert.ErrorIs(t, retry, cause)
	assert.ErrorIs(t, retry, core.ErrRetryable)
}
