package core

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// SettingService reads and changes the costing configuration.
type SettingService interface {
	Get(ctx context.Context) (*GeneralSetting, error)
	// UpdateInventoryMethod switches the costing method and restates every product's cost
	// basis and selling price from its live lots. Stock quantities are unchanged.
	UpdateInventoryMethod(ctx context.Context, method InventoryMethod) (*GeneralSetting, error)
	// UpdateProfitMargin sets a product's margin and refreshes its selling price.
	UpdateProfitMargin(ctx context.Context, productID int, margin decimal.Decimal) (*Product, error)
}

type settingService struct {
	exec      *Executor
	inventory InventoryService
}

func NewSettingService(exec *Executor) SettingService {
	return &settingService{exec: exec, inventory: NewInventoryService()}
}

func (s *settingService) Get(ctx context.Context) (*GeneralSetting, error) {
	var out *GeneralSetting
	err := s.exec.Read(ctx, func(ctx context.Context, tx Tx) error {
		setting, err := tx.GetGeneralSetting(ctx)
		if err != nil {
			if IsNotFound(err) {
				return NotConfiguredf("general setting is not configured")
			}
			return err
		}
		out = setting
		return nil
	})
	return out, err
}

func (s *settingService) UpdateInventoryMethod(ctx context.Context, method InventoryMethod) (*GeneralSetting, error) {
	if !method.Valid() {
		return nil, Validationf("inventory method must be one of FIFO, LIFO, AVG; got %q", method)
	}
	var out *GeneralSetting
	err := s.exec.Run(ctx, "setting.inventory_method", func(ctx context.Context, sc *Scope) error {
		setting, err := sc.Tx.GetGeneralSetting(ctx)
		if err != nil {
			if IsNotFound(err) {
				return NotConfiguredf("general setting is not configured")
			}
			return fmt.Errorf("failed to read general setting: %w", err)
		}
		setting.InventoryMethod = method
		if err := sc.Tx.UpdateGeneralSetting(ctx, *setting); err != nil {
			return fmt.Errorf("failed to update general setting: %w", err)
		}

		products, err := sc.Tx.ListProducts(ctx)
		if err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}
		for _, p := range products {
			if _, err := s.inventory.RefreshProductTx(ctx, sc.Tx, p.ID, method); err != nil {
				return err
			}
			sc.touchProduct(p.ID)
		}
		out = setting
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *settingService) UpdateProfitMargin(ctx context.Context, productID int, margin decimal.Decimal) (*Product, error) {
	if margin.IsNegative() {
		return nil, Validationf("profit margin cannot be negative, got %s", margin.StringFixed(2))
	}
	var out *Product
	err := s.exec.Run(ctx, "product.margin", func(ctx context.Context, sc *Scope) error {
		p, err := sc.Tx.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		method, err := inventoryMethodTx(ctx, sc.Tx)
		if err != nil {
			return err
		}
		p.ProfitMargin = margin.Round(2)
		if err := sc.Tx.UpdateProduct(ctx, *p); err != nil {
			return fmt.Errorf("failed to update product %d: %w", productID, err)
		}
		out, err = s.inventory.RefreshProductTx(ctx, sc.Tx, productID, method)
		sc.touchProduct(productID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
