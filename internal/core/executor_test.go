package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting-engine/internal/core"
	"accounting-engine/internal/store/memory"
)

type countingLocker struct {
	acquired, released int
	keys               []string
	err                error
}

func (l *countingLocker) Acquire(_ context.Context, key string) (func(), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.acquired++
	l.keys = append(l.keys, key)
	return func() { l.released++ }, nil
}

func TestExecutor_PostingTakesLockReadsDoNot(t *testing.T) {
	store, seed := memory.NewSeeded(decimal.NewFromInt(100000))
	locker := &countingLocker{}
	h := newHarnessWithLocker(store, seed, locker)

	p := h.buy(t, core.PaymentCash, day(1, 10), seed.Widget.ID, 1, "10")
	_, err := h.purchases.Get(context.Background(), p.ID)
	require.NoError(t, err)
	_, err = h.recon.Verify(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, locker.acquired)
	assert.Equal(t, 1, locker.released)
	assert.Equal(t, []string{core.PostingLockKey}, locker.keys)
}

func TestExecutor_LockUnavailableIsRetryable(t *testing.T) {
	store, seed := memory.NewSeeded(decimal.NewFromInt(100000))
	locker := &countingLocker{err: core.Retryable(errors.New("lock held elsewhere"))}
	h := newHarnessWithLocker(store, seed, locker)

	_, err := h.purchases.Create(context.Background(), core.PurchaseInput{
		SupplierID:  seed.Supplier.ID,
		Date:        day(1, 10),
		PaymentType: core.PaymentCash,
		Lines:       []core.PurchaseLineInput{{ProductID: seed.Widget.ID, Quantity: 1, UnitPrice: dec("10")}},
	})
	requireKind(t, err, core.KindRetryable)
	assert.ErrorIs(t, err, core.ErrRetryable)
	assert.Equal(t, 409, core.StatusOf(err))
	assert.Equal(t, 0, h.product(t, seed.Widget.ID).Stock)
}

func TestExecutor_MissingDefaultsIsNotConfigured(t *testing.T) {
	store := memory.New()
	store.AddAccount("1101", "Cash", decimal.NewFromInt(1000))
	store.SetInventoryMethod(core.FIFO)
	store.AddVATRate(decimal.NewFromInt(10), day(1, 1))
	supplier := store.AddSupplier("SUP-001", "Supplier")
	product := store.AddProduct("PRD-001", "Widget", decimal.Zero)
	h := newHarnessWithLocker(store, memory.Seed{}, nil)

	_, err := h.purchases.Create(context.Background(), core.PurchaseInput{
		SupplierID:  supplier.ID,
		Date:        day(1, 10),
		PaymentType: core.PaymentCash,
		Lines:       []core.PurchaseLineInput{{ProductID: product.ID, Quantity: 1, UnitPrice: dec("10")}},
	})
	requireKind(t, err, core.KindNotConfigured)
	assert.Equal(t, 500, core.StatusOf(err))
}

func TestExecutor_IncompleteMappingIsNotConfigured(t *testing.T) {
	store, seed := memory.NewSeeded(decimal.NewFromInt(100000))
	m := seed.Accounts
	m.COGSAccountID = 0
	store.SetDefaultAccounts(m)
	h := newHarnessWithLocker(store, seed, nil)

	_, err := h.purchases.Create(context.Background(), core.PurchaseInput{
		SupplierID:  seed.Supplier.ID,
		Date:        day(1, 10),
		PaymentType: core.PaymentCash,
		Lines:       []core.PurchaseLineInput{{ProductID: seed.Widget.ID, Quantity: 1, UnitPrice: dec("10")}},
	})
	requireKind(t, err, core.KindNotConfigured)

	m.COGSAccountID = 999
	store.SetDefaultAccounts(m)
	_, err = h.purchases.Create(context.Background(), core.PurchaseInput{
		SupplierID:  seed.Supplier.ID,
		Date:        day(1, 10),
		PaymentType: core.PaymentCash,
		Lines:       []core.PurchaseLineInput{{ProductID: seed.Widget.ID, Quantity: 1, UnitPrice: dec("10")}},
	})
	requireKind(t, err, core.KindNotConfigured)
}

func TestExecutor_ActorIsRecorded(t *testing.T) {
	h := newHarness(t, 100000)
	ctx := core.WithActor(context.Background(), core.Actor{Username: "operator"})

	p, err := h.purchases.Create(ctx, core.PurchaseInput{
		SupplierID:  h.seed.Supplier.ID,
		Date:        day(1, 10),
		PaymentType: core.PaymentCash,
		Lines:       []core.PurchaseLineInput{{ProductID: h.seed.Widget.ID, Quantity: 1, UnitPrice: dec("10")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "operator", p.CreatedBy)

	j, err := h.reports.GetJournal(ctx, p.JournalID)
	require.NoError(t, err)
	assert.Equal(t, "operator", j.CreatedBy)
}

func TestExecutor_ValidateListsFields(t *testing.T) {
	h := newHarness(t, 0)

	err := h.exec.Validate(core.PaymentInput{Method: "CHEQUE"})
	requireKind(t, err, core.KindValidation)
	assert.Contains(t, err.Error(), "PaymentDate")
	assert.Contains(t, err.Error(), "Method")

	require.NoError(t, h.exec.Validate(core.PaymentInput{
		Amount: dec("1"), PaymentDate: day(1, 1), Method: core.MethodCash,
	}))
}

func TestExecutor_CanceledContextAborts(t *testing.T) {
	h := newHarness(t, 100000)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.purchases.Create(ctx, core.PurchaseInput{
		SupplierID:  h.seed.Supplier.ID,
		Date:        day(1, 10),
		PaymentType: core.PaymentCash,
		Lines:       []core.PurchaseLineInput{{ProductID: h.seed.Widget.ID, Quantity: 1, UnitPrice: dec("10")}},
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, h.product(t, h.seed.Widget.ID).Stock)
}
