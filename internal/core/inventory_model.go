package core

import (
	"github.com/shopspring/decimal"
)

// StockLevel is a read view of a product with its live lots.
type StockLevel struct {
	ProductID    int              `json:"product_id"`
	ProductCode  string           `json:"product_code"`
	ProductName  string           `json:"product_name"`
	OnHand       int              `json:"on_hand"`
	UnitCost     decimal.Decimal  `json:"unit_cost"` // cost basis under the configured method
	SellingPrice decimal.Decimal  `json:"selling_price"`
	Lots         []InventoryBatch `json:"lots"`
}
