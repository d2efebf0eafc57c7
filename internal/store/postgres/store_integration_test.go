package postgres_test

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting-engine/internal/core"
	"accounting-engine/internal/db"
	"accounting-engine/internal/store/postgres"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../../.env")

	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres store test")
	}

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	require.NoError(t, db.Migrate(url, logger))

	pool, err := db.NewPool(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func lookupID(t *testing.T, pool *pgxpool.Pool, table, code string) int {
	t.Helper()
	var id int
	err := pool.QueryRow(context.Background(), "SELECT id FROM "+table+" WHERE code = $1", code).Scan(&id)
	require.NoError(t, err)
	return id
}

func TestPostgresStore_CreditPurchaseRoundTrip(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	exec := core.NewExecutor(postgres.New(pool), nil, logger, 10*time.Second)
	purchases := core.NewPurchaseService(exec)
	recon := core.NewReconciliationService(exec)

	supplierID := lookupID(t, pool, "suppliers", "SUP-001")
	productID := lookupID(t, pool, "products", "PRD-001")

	balanceOf := func(code string) decimal.Decimal {
		var bal decimal.Decimal
		require.NoError(t, pool.QueryRow(ctx, "SELECT balance FROM accounts WHERE code = $1", code).Scan(&bal))
		return bal
	}
	payableBefore := balanceOf("2101")
	inventoryBefore := balanceOf("1301")

	p, err := purchases.Create(ctx, core.PurchaseInput{
		SupplierID:  supplierID,
		Date:        time.Now().UTC(),
		PaymentType: core.PaymentCredit,
		Lines:       []core.PurchaseLineInput{{ProductID: productID, Quantity: 3, UnitPrice: decimal.NewFromInt(100)}},
	})
	require.NoError(t, err)
	require.Len(t, p.Details, 1)
	assert.NotZero(t, p.Details[0].BatchID)

	assert.Equal(t, payableBefore.Add(decimal.NewFromInt(330)).StringFixed(2), balanceOf("2101").StringFixed(2))
	assert.Equal(t, inventoryBefore.Add(decimal.NewFromInt(300)).StringFixed(2), balanceOf("1301").StringFixed(2))

	report, err := recon.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK(), "mismatches: %+v", report.Mismatches)

	require.NoError(t, purchases.Delete(ctx, p.ID))
	assert.Equal(t, payableBefore.StringFixed(2), balanceOf("2101").StringFixed(2))
	assert.Equal(t, inventoryBefore.StringFixed(2), balanceOf("1301").StringFixed(2))

	err = purchases.Delete(ctx, p.ID)
	assert.True(t, core.IsNotFound(err))
}

func TestPostgresStore_ScopeRollsBackOnError(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()
	store := postgres.New(pool)

	var seq int
	err := store.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
		n, err := tx.NextSequence(ctx, "TST")
		require.NoError(t, err)
		seq = n
		return core.Validationf("abort")
	})
	require.Error(t, err)

	err = store.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
		n, err := tx.NextSequence(ctx, "TST")
		require.NoError(t, err)
		assert.Equal(t, seq, n, "aborted scope must not consume a reference number")
		return core.Validationf("abort again")
	})
	require.Error(t, err)

	err = store.InTx(ctx, func(ctx context.Context, tx core.Tx) error {
		_, err := tx.GetPurchase(ctx, -1)
		assert.True(t, core.IsNotFound(err))
		o, err := tx.FindObligationBySource(ctx, core.Payable, -1)
		assert.NoError(t, err)
		assert.Nil(t, o)
		return nil
	})
	require.NoError(t, err)
}
