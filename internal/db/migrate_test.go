package db

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var migrationName = regexp.MustCompile(`^(\d{6})_[a-z_]+\.(up|down)\.sql$`)

func TestEmbeddedMigrations_ArePairedAndOrdered(t *testing.T) {
	names, err := MigrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, n := range names {
		m := migrationName.FindStringSubmatch(n)
		require.NotNil(t, m, "unexpected migration file name %q", n)
		if m[2] == "up" {
			ups[m[1]] = true
		} else {
			downs[m[1]] = true
		}
	}
	assert.Equal(t, ups, downs, "every up migration needs a down migration")
}

func TestEmbeddedMigrations_CreateEveryTable(t *testing.T) {
	body, err := migrationFiles.ReadFile("migrations/000001_init_schema.up.sql")
	require.NoError(t, err)
	schema := string(body)

	for _, table := range []string{
		"accounts", "default_account_mapping", "journals", "journal_entries",
		"products", "inventory_batches", "suppliers", "customers", "vat_rates",
		"general_settings", "reference_sequences",
		"purchases", "purchase_details", "sales", "sale_details", "sale_allocations",
		"purchase_returns", "purchase_return_details", "sale_returns", "sale_return_details",
		"payables", "receivables", "payable_payments", "receivable_payments",
	} {
		assert.True(t, strings.Contains(schema, "CREATE TABLE "+table+" ("), "missing table %s", table)
	}
}

func TestNewPool_RequiresURL(t *testing.T) {
	_, err := NewPool(t.Context(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}
