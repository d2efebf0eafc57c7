package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accounting-engine/internal/core"
)

// errDiscard aborts a scope after its assertions so the seeded ledger stays untouched.
var errDiscard = errors.New("discard scope")

func TestReleaseBatchTx(t *testing.T) {
	tests := []struct {
		name      string
		qty       int
		kind      core.Kind
		remaining int
	}{
		{name: "refills to the lot quantity", qty: 4, remaining: 10},
		{name: "partial refill", qty: 1, remaining: 7},
		{name: "zero is a no-op", qty: 0, remaining: 6},
		{name: "overfill is rejected", qty: 5, kind: core.KindInvariantViolation},
		{name: "negative is rejected", qty: -1, kind: core.KindInvariantViolation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 100000)
			p := h.buy(t, core.PaymentCash, day(1, 10), h.seed.Widget.ID, 10, "1000")
			h.sell(t, core.PaymentCash, day(1, 15), h.seed.Widget.ID, 4, "0")
			batchID := p.Details[0].BatchID

			inventory := core.NewInventoryService()
			err := h.store.InTx(context.Background(), func(ctx context.Context, tx core.Tx) error {
				if err := inventory.ReleaseBatchTx(ctx, tx, batchID, tt.qty); err != nil {
					return err
				}
				b, err := tx.GetBatch(ctx, batchID)
				require.NoError(t, err)
				assert.Equal(t, tt.remaining, b.RemainingStock)
				assert.Equal(t, 10, b.Quantity)
				return errDiscard
			})
			if tt.kind != "" {
				requireKind(t, err, tt.kind)
			} else {
				require.ErrorIs(t, err, errDiscard)
			}
			assert.Equal(t, 6, h.batch(t, batchID).RemainingStock)
			h.requireConsistent(t)
		})
	}
}
