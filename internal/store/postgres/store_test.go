package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"accounting-engine/internal/core"
)

func TestClassify(t *testing.T) {
	serialization := fmt.Errorf("failed to update: %w", &pgconn.PgError{Code: "40001"})
	got := classify(serialization)
	assert.ErrorIs(t, got, core.ErrRetryable)
	assert.Equal(t, core.KindRetryable, core.KindOf(got))

	deadlock := &pgconn.PgError{Code: "40P01"}
	assert.ErrorIs(t, classify(deadlock), core.ErrRetryable)

	unique := &pgconn.PgError{Code: "23505"}
	assert.Same(t, error(unique), classify(unique))

	plain := errors.New("boom")
	assert.Equal(t, plain, classify(plain))
}

func TestNotFound(t *testing.T) {
	err := notFound(pgx.ErrNoRows, "purchase", 7)
	assert.True(t, core.IsNotFound(err))
	assert.Contains(t, err.Error(), "purchase 7")

	other := notFound(errors.New("conn reset"), "purchase", 7)
	assert.False(t, core.IsNotFound(other))
	assert.Contains(t, other.Error(), "conn reset")
}

func TestNullID(t *testing.T) {
	assert.Nil(t, nullID(0))
	if assert.NotNil(t, nullID(5)) {
		assert.Equal(t, 5, *nullID(5))
	}
}
