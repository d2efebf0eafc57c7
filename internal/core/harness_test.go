package core_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting-engine/internal/core"
	"accounting-engine/internal/store/memory"
)

type harness struct {
	store     *memory.Store
	seed      memory.Seed
	exec      *core.Executor
	purchases core.PurchaseService
	sales     core.SaleService
	returns   core.ReturnService
	payments  core.PaymentService
	settings  core.SettingService
	recon     core.ReconciliationService
	reports   core.ReportingService
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newHarness(t *testing.T, openingCash int64) *harness {
	t.Helper()
	store, seed := memory.NewSeeded(decimal.NewFromInt(openingCash))
	return newHarnessWithLocker(store, seed, nil)
}

func newHarnessWithLocker(store *memory.Store, seed memory.Seed, locker core.Locker) *harness {
	exec := core.NewExecutor(store, locker, quietLogger(), 0)
	return &harness{
		store:     store,
		seed:      seed,
		exec:      exec,
		purchases: core.NewPurchaseService(exec),
		sales:     core.NewSaleService(exec),
		returns:   core.NewReturnService(exec),
		payments:  core.NewPaymentService(exec),
		settings:  core.NewSettingService(exec),
		recon:     core.NewReconciliationService(exec),
		reports:   core.NewReportingService(exec),
	}
}

func day(month time.Month, d int) time.Time {
	return time.Date(2025, month, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.Equal(t, dec(want).StringFixed(2), got.StringFixed(2), msgAndArgs...)
}

func requireKind(t *testing.T, err error, kind core.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, core.KindOf(err), "unexpected error: %v", err)
}

// balance returns the running balance of the account with the given code.
func (h *harness) balance(t *testing.T, code string) decimal.Decimal {
	t.Helper()
	var out decimal.Decimal
	err := h.exec.Read(context.Background(), func(ctx context.Context, tx core.Tx) error {
		a, err := tx.GetAccountByCode(ctx, code)
		if err != nil {
			return err
		}
		out = a.Balance
		return nil
	})
	require.NoError(t, err)
	return out
}

// balances snapshots every account balance keyed by code.
func (h *harness) balances(t *testing.T) map[string]string {
	t.Helper()
	rows, err := h.recon.TrialBalance(context.Background())
	require.NoError(t, err)
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Code] = r.Balance.StringFixed(2)
	}
	return out
}

func (h *harness) product(t *testing.T, id int) core.Product {
	t.Helper()
	var out core.Product
	err := h.exec.Read(context.Background(), func(ctx context.Context, tx core.Tx) error {
		p, err := tx.GetProduct(ctx, id)
		if err != nil {
			return err
		}
		out = *p
		return nil
	})
	require.NoError(t, err)
	return out
}

func (h *harness) batch(t *testing.T, id int) core.InventoryBatch {
	t.Helper()
	var out core.InventoryBatch
	err := h.exec.Read(context.Background(), func(ctx context.Context, tx core.Tx) error {
		b, err := tx.GetBatch(ctx, id)
		if err != nil {
			return err
		}
		out = *b
		return nil
	})
	require.NoError(t, err)
	return out
}

// obligationOf returns the payable or receivable created by a purchase or sale, or nil.
func (h *harness) obligationOf(t *testing.T, kind core.ObligationKind, sourceID int) *core.Obligation {
	t.Helper()
	var out *core.Obligation
	err := h.exec.Read(context.Background(), func(ctx context.Context, tx core.Tx) error {
		o, err := tx.FindObligationBySource(ctx, kind, sourceID)
		out = o
		return err
	})
	require.NoError(t, err)
	return out
}

// requireConsistent runs the whole-ledger reconciliation and fails on any mismatch.
func (h *harness) requireConsistent(t *testing.T) {
	t.Helper()
	report, err := h.recon.Verify(context.Background())
	require.NoError(t, err)
	require.True(t, report.OK(), "reconciliation mismatches: %+v", report.Mismatches)
}

func (h *harness) buy(t *testing.T, pt core.PaymentType, date time.Time, productID, qty int, price string) *core.Purchase {
	t.Helper()
	p, err := h.purchases.Create(context.Background(), core.PurchaseInput{
		SupplierID:  h.seed.Supplier.ID,
		Date:        date,
		PaymentType: pt,
		Lines:       []core.PurchaseLineInput{{ProductID: productID, Quantity: qty, UnitPrice: dec(price)}},
	})
	require.NoError(t, err)
	return p
}

func (h *harness) sell(t *testing.T, pt core.PaymentType, date time.Time, productID, qty int, price string) *core.Sale {
	t.Helper()
	s, err := h.sales.Create(context.Background(), core.SaleInput{
		CustomerID:  h.seed.Customer.ID,
		Date:        date,
		PaymentType: pt,
		Lines:       []core.SaleLineInput{{ProductID: productID, Quantity: qty, UnitPrice: dec(price)}},
	})
	require.NoError(t, err)
	return s
}
