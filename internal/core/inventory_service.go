package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InventoryService manages inventory lots and the per-product stock and cost figures
// derived from them. All operations are TX-scoped: they work within the caller's scope
// so lot changes commit atomically with the journal that books them.
type InventoryService interface {
	// ReceiveBatchTx creates the lot for one purchase line.
	ReceiveBatchTx(ctx context.Context, tx Tx, productID int, date time.Time, qty int,
		unitPrice decimal.Decimal, purchaseDetailID int) (*InventoryBatch, error)
	// AllocateTx plans a sale of qty units under method and decrements the chosen lots.
	// No lot is touched unless the whole plan succeeds.
	AllocateTx(ctx context.Context, tx Tx, productID, qty int, method InventoryMethod, date time.Time) (*AllocationPlan, error)
	// ReleaseBatchTx returns qty units to a lot. Exceeding the lot's quantity is an invariant violation.
	ReleaseBatchTx(ctx context.Context, tx Tx, batchID, qty int) error
	// ConsumeBatchTx removes qty units from one specific lot.
	ConsumeBatchTx(ctx context.Context, tx Tx, batchID, qty int) error
	// RefreshProductTx recomputes stock, cost basis and selling price from live lots.
	RefreshProductTx(ctx context.Context, tx Tx, productID int, method InventoryMethod) (*Product, error)
	// GetStockLevelsTx lists every product with its live lots and cost basis under method.
	GetStockLevelsTx(ctx context.Context, tx Tx, method InventoryMethod) ([]StockLevel, error)
}

type inventoryService struct{}

func NewInventoryService() InventoryService {
	return inventoryService{}
}

func (inventoryService) ReceiveBatchTx(ctx context.Context, tx Tx, productID int, date time.Time, qty int,
	unitPrice decimal.Decimal, purchaseDetailID int) (*InventoryBatch, error) {

	if qty <= 0 {
		return nil, Validationf("receive quantity must be positive, got %d", qty)
	}
	if unitPrice.IsNegative() {
		return nil, Validationf("unit price cannot be negative, got %s", unitPrice)
	}
	b, err := tx.CreateBatch(ctx, InventoryBatch{
		ProductID:        productID,
		PurchaseDate:     DateOnly(date),
		Quantity:         qty,
		PurchasePrice:    unitPrice.Round(2),
		RemainingStock:   qty,
		PurchaseDetailID: purchaseDetailID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create inventory batch: %w", err)
	}
	return b, nil
}

func (inventoryService) AllocateTx(ctx context.Context, tx Tx, productID, qty int, method InventoryMethod, date time.Time) (*AllocationPlan, error) {
	batches, err := tx.ListBatchesByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches for product %d: %w", productID, err)
	}
	plan, err := PlanAllocation(batches, qty, method, date)
	if err != nil {
		return nil, fmt.Errorf("product %d: %w", productID, err)
	}

	byID := make(map[int]InventoryBatch, len(batches))
	for _, b := range batches {
		byID[b.ID] = b
	}
	for _, a := range plan.Allocations {
		b := byID[a.BatchID]
		b.RemainingStock -= a.Quantity
		if err := tx.UpdateBatch(ctx, b); err != nil {
			return nil, fmt.Errorf("failed to update batch %d: %w", b.ID, err)
		}
	}
	return plan, nil
}

func (inventoryService) ReleaseBatchTx(ctx context.Context, tx Tx, batchID, qty int) error {
	b, err := tx.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if qty < 0 || b.RemainingStock+qty > b.Quantity {
		return InvariantViolationf("releasing %d units to batch %d would exceed its quantity %d (remaining %d)",
			qty, batchID, b.Quantity, b.RemainingStock)
	}
	b.RemainingStock += qty
	if err := tx.UpdateBatch(ctx, *b); err != nil {
		return fmt.Errorf("failed to update batch %d: %w", batchID, err)
	}
	return nil
}

func (inventoryService) ConsumeBatchTx(ctx context.Context, tx Tx, batchID, qty int) error {
	b, err := tx.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if qty <= 0 {
		return Validationf("quantity must be positive, got %d", qty)
	}
	if qty > b.RemainingStock {
		return InsufficientStockf("batch %d has %d units remaining, %d requested", batchID, b.RemainingStock, qty)
	}
	b.RemainingStock -= qty
	if err := tx.UpdateBatch(ctx, *b); err != nil {
		return fmt.Errorf("failed to update batch %d: %w", batchID, err)
	}
	return nil
}

func (inventoryService) RefreshProductTx(ctx context.Context, tx Tx, productID int, method InventoryMethod) (*Product, error) {
	p, err := tx.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	batches, err := tx.ListBatchesByProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to list batches for product %d: %w", productID, err)
	}
	stock := 0
	for _, b := range batches {
		stock += b.RemainingStock
	}
	p.Stock = stock
	p.AvgPurchasePrice = RecalculateCOGS(batches, method)
	p.SellingPrice = p.AvgPurchasePrice.Add(p.ProfitMargin).Round(2)
	if err := tx.UpdateProduct(ctx, *p); err != nil {
		return nil, fmt.Errorf("failed to update product %d: %w", productID, err)
	}
	return p, nil
}

func (inventoryService) GetStockLevelsTx(ctx context.Context, tx Tx, method InventoryMethod) ([]StockLevel, error) {
	products, err := tx.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	levels := make([]StockLevel, 0, len(products))
	for _, p := range products {
		batches, err := tx.ListBatchesByProduct(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list batches for product %d: %w", p.ID, err)
		}
		var live []InventoryBatch
		for _, b := range batches {
			if b.RemainingStock > 0 {
				live = append(live, b)
			}
		}
		levels = append(levels, StockLevel{
			ProductID:    p.ID,
			ProductCode:  p.Code,
			ProductName:  p.Name,
			OnHand:       p.Stock,
			UnitCost:     RecalculateCOGS(batches, method),
			SellingPrice: p.SellingPrice,
			Lots:         live,
		})
	}
	return levels, nil
}
