package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// PlannedAllocation is the consumption of one lot by one sale line.
type PlannedAllocation struct {
	BatchID  int
	Quantity int
	UnitCost decimal.Decimal
}

type AllocationPlan struct {
	Allocations []PlannedAllocation
	COGS        decimal.Decimal
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// sortLots orders lots oldest first by purchase date, ties broken by ID.
func sortLots(batches []InventoryBatch) []InventoryBatch {
	out := append([]InventoryBatch(nil), batches...)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := DateOnly(out[i].PurchaseDate), DateOnly(out[j].PurchaseDate)
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// WeightedAverage is Σ(remaining×price)/Σremaining over lots with stock, rounded to 2 places.
func WeightedAverage(batches []InventoryBatch) decimal.Decimal {
	value, units := decimal.Zero, int64(0)
	for _, b := range batches {
		if b.RemainingStock <= 0 {
			continue
		}
		value = value.Add(b.PurchasePrice.Mul(decimal.NewFromInt(int64(b.RemainingStock))))
		units += int64(b.RemainingStock)
	}
	if units == 0 {
		return decimal.Zero
	}
	return value.Div(decimal.NewFromInt(units)).Round(2)
}

// RecalculateCOGS derives a product's cost basis from live lot state:
// FIFO the oldest lot with stock, LIFO the newest, AVG the weighted average.
// It is zero when no lot has stock.
func RecalculateCOGS(batches []InventoryBatch, method InventoryMethod) decimal.Decimal {
	if method == AVG {
		return WeightedAverage(batches)
	}
	var live []InventoryBatch
	for _, b := range sortLots(batches) {
		if b.RemainingStock > 0 {
			live = append(live, b)
		}
	}
	if len(live) == 0 {
		return decimal.Zero
	}
	if method == LIFO {
		return live[len(live)-1].PurchasePrice.Round(2)
	}
	return live[0].PurchasePrice.Round(2)
}

// PlanAllocation decides which lots a sale of qty units dated txnDate consumes.
// It never mutates its input; the caller applies the plan only after it succeeds.
//
// Lots dated after txnDate cannot be consumed. If all lots together hold fewer than qty
// units the result is ErrInsufficientStock; if they hold enough but the lots valid on
// txnDate do not, ErrInvalidChronology. AVG consumes oldest first at the weighted average
// price of the valid lots.
func PlanAllocation(batches []InventoryBatch, qty int, method InventoryMethod, txnDate time.Time) (*AllocationPlan, error) {
	if qty <= 0 {
		return nil, Validationf("quantity must be positive, got %d", qty)
	}
	if !method.Valid() {
		return nil, Validationf("unknown inventory method %q", method)
	}

	day := DateOnly(txnDate)
	total, validTotal := 0, 0
	var valid []InventoryBatch
	for _, b := range sortLots(batches) {
		if b.RemainingStock <= 0 {
			continue
		}
		total += b.RemainingStock
		if !DateOnly(b.PurchaseDate).After(day) {
			valid = append(valid, b)
			validTotal += b.RemainingStock
		}
	}
	if total < qty {
		return nil, InsufficientStockf("requested %d units, %d in stock", qty, total)
	}
	if validTotal < qty {
		return nil, InvalidChronologyf("requested %d units, only %d purchased on or before %s",
			qty, validTotal, day.Format(time.DateOnly))
	}

	if method == LIFO {
		for i, j := 0, len(valid)-1; i < j; i, j = i+1, j-1 {
			valid[i], valid[j] = valid[j], valid[i]
		}
	}
	var avgCost decimal.Decimal
	if method == AVG {
		avgCost = WeightedAverage(valid)
	}

	plan := &AllocationPlan{COGS: decimal.Zero}
	need := qty
	for _, b := range valid {
		if need == 0 {
			break
		}
		take := min(need, b.RemainingStock)
		cost := b.PurchasePrice.Round(2)
		if method == AVG {
			cost = avgCost
		}
		plan.Allocations = append(plan.Allocations, PlannedAllocation{BatchID: b.ID, Quantity: take, UnitCost: cost})
		plan.COGS = plan.COGS.Add(cost.Mul(decimal.NewFromInt(int64(take))))
		need -= take
	}
	plan.COGS = plan.COGS.Round(2)
	return plan, nil
}

// VATOf computes subtotal×rate/100 rounded to 2 places.
func VATOf(subtotal, rate decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(rate).Div(decimal.NewFromInt(100)).Round(2)
}
