package core

import (
	"context"
	"fmt"
)

// ReportingService provides read-only views over journals and stock.
type ReportingService interface {
	// GetJournal returns a journal header with its entries in insertion order.
	GetJournal(ctx context.Context, id int) (*Journal, error)
	// GetStockLevels lists every product with its live lots, costed under the configured method.
	GetStockLevels(ctx context.Context) ([]StockLevel, error)
}

type reportingService struct {
	exec      *Executor
	inventory InventoryService
}

func NewReportingService(exec *Executor) ReportingService {
	return &reportingService{exec: exec, inventory: NewInventoryService()}
}

func (s *reportingService) GetJournal(ctx context.Context, id int) (*Journal, error) {
	var out *Journal
	err := s.exec.Read(ctx, func(ctx context.Context, tx Tx) error {
		j, err := tx.GetJournal(ctx, id)
		if err != nil {
			return err
		}
		entries, err := tx.ListEntries(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list entries of journal %d: %w", id, err)
		}
		j.Entries = entries
		out = j
		return nil
	})
	return out, err
}

func (s *reportingService) GetStockLevels(ctx context.Context) ([]StockLevel, error) {
	var out []StockLevel
	err := s.exec.Read(ctx, func(ctx context.Context, tx Tx) error {
		method, err := inventoryMethodTx(ctx, tx)
		if err != nil {
			return err
		}
		out, err = s.inventory.GetStockLevelsTx(ctx, tx, method)
		return err
	})
	return out, err
}
