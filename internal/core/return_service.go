package core

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ReturnService records goods going back to suppliers and coming back from customers.
type ReturnService interface {
	// CreatePurchaseReturn takes units out of the lots created by the purchase and reduces
	// the payable first, refunding any excess in cash.
	CreatePurchaseReturn(ctx context.Context, in PurchaseReturnInput) (*PurchaseReturn, error)
	DeletePurchaseReturn(ctx context.Context, id int) error
	GetPurchaseReturn(ctx context.Context, id int) (*PurchaseReturn, error)

	// CreateSaleReturn puts units back into the lots the sale consumed, newest consumption
	// first, at their original unit cost; the receivable is reduced first and any excess
	// is refunded in cash.
	CreateSaleReturn(ctx context.Context, in SaleReturnInput) (*SaleReturn, error)
	// DeleteSaleReturn reverses a sale return. Fails with Conflict when the restocked
	// units have since been sold.
	DeleteSaleReturn(ctx context.Context, id int) error
	GetSaleReturn(ctx context.Context, id int) (*SaleReturn, error)
}

type returnService struct {
	exec        *Executor
	journals    JournalService
	inventory   InventoryService
	obligations ObligationService
	docs        DocumentService
}

func NewReturnService(exec *Executor) ReturnService {
	return &returnService{
		exec:        exec,
		journals:    NewJournalService(),
		inventory:   NewInventoryService(),
		obligations: NewObligationService(),
		docs:        NewDocumentService(),
	}
}

// reduceObligation splits total between the obligation's remaining balance and a cash refund.
func reduceObligation(o *Obligation, total decimal.Decimal) (reduction, refund decimal.Decimal) {
	if o == nil {
		return decimal.Zero, total
	}
	reduction = decimal.Min(o.RemainingAmount, total)
	return reduction, total.Sub(reduction)
}

func (s *returnService) adjustObligationTx(ctx context.Context, sc *Scope, o *Obligation, reduction decimal.Decimal) error {
	if o == nil || reduction.IsZero() {
		return nil
	}
	amount := o.Amount.Sub(reduction)
	remaining := o.RemainingAmount.Sub(reduction)
	status := StatusFor(amount, o.PaidAmount, remaining)
	if err := s.obligations.ApplyReturnAdjustmentTx(ctx, sc.Tx, o.Kind, o.ID, reduction, remaining, status); err != nil {
		return err
	}
	sc.touchObligation(o.Kind, o.ID)
	return nil
}

func (s *returnService) refreshTx(ctx context.Context, sc *Scope, products map[int]struct{}) error {
	method, err := inventoryMethodTx(ctx, sc.Tx)
	if err != nil {
		return err
	}
	for _, pid := range sortedKeys(products) {
		if _, err := s.inventory.RefreshProductTx(ctx, sc.Tx, pid, method); err != nil {
			return err
		}
		sc.touchProduct(pid)
	}
	return nil
}

// ── Purchase returns ──────────────────────────────────────────────────────────

// capReturnVAT keeps per-return rounding from reversing more VAT than the
// document booked.
func capReturnVAT(vat, booked, reversed decimal.Decimal) decimal.Decimal {
	left := booked.Sub(reversed)
	if left.IsNegative() {
		left = decimal.Zero
	}
	return decimal.Min(vat, left)
}

func (s *returnService) CreatePurchaseReturn(ctx context.Context, in PurchaseReturnInput) (*PurchaseReturn, error) {
	if err := s.exec.Validate(in); err != nil {
		return nil, err
	}
	var out *PurchaseReturn
	err := s.exec.Run(ctx, "purchase_return.create", func(ctx context.Context, sc *Scope) error {
		tx := sc.Tx
		d, err := sc.Defaults(ctx)
		if err != nil {
			return err
		}
		p, err := tx.GetPurchase(ctx, in.PurchaseID)
		if err != nil {
			return err
		}
		date := DateOnly(in.Date)
		if date.Before(DateOnly(p.Date)) {
			return InvalidDatef("return date %s is before purchase date %s",
				date.Format(time.DateOnly), p.Date.Format(time.DateOnly))
		}

		// 1. Take units out of the originating lots
		var details []PurchaseReturnDetail
		products := map[int]struct{}{}
		subtotal := decimal.Zero
		for i, l := range in.Lines {
			detail, err := tx.GetPurchaseDetail(ctx, l.PurchaseDetailID)
			if err != nil {
				return err
			}
			if detail.PurchaseID != p.ID {
				return Validationf("line %d: detail %d does not belong to purchase %s", i+1, detail.ID, p.Reference)
			}
			if err := s.inventory.ConsumeBatchTx(ctx, tx, detail.BatchID, l.Quantity); err != nil {
				return err
			}
			sub := lineSubtotal(l.Quantity, detail.UnitPrice)
			details = append(details, PurchaseReturnDetail{
				PurchaseDetailID: detail.ID,
				ProductID:        detail.ProductID,
				BatchID:          detail.BatchID,
				Quantity:         l.Quantity,
				UnitPrice:        detail.UnitPrice,
				Subtotal:         sub,
			})
			subtotal = subtotal.Add(sub)
			products[detail.ProductID] = struct{}{}
		}
		reversed, err := tx.SumPurchaseReturnVAT(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("failed to sum returned VAT of purchase %d: %w", p.ID, err)
		}
		vat := capReturnVAT(VATOf(subtotal, p.VATRate), p.VAT, reversed)
		total := subtotal.Add(vat)

		// 2. Settle against the payable first
		payable, err := tx.FindObligationBySource(ctx, Payable, p.ID)
		if err != nil {
			return fmt.Errorf("failed to load payable of purchase %d: %w", p.ID, err)
		}
		reduction, refund := reduceObligation(payable, total)

		ref, err := s.docs.NextReferenceTx(ctx, tx, PrefixPurchaseReturn)
		if err != nil {
			return err
		}
		j, err := s.journals.CreateJournalTx(ctx, tx, date, "Purchase return "+ref+" for "+p.Reference, ref)
		if err != nil {
			return err
		}
		if _, err := s.journals.PostTx(ctx, tx, j.ID, []JournalLine{
			DebitLine(d.Payable.ID, reduction),
			DebitLine(d.Cash.ID, refund),
			CreditLine(d.Inventory.ID, subtotal),
			CreditLine(d.VATInput.ID, vat),
		}); err != nil {
			return err
		}
		sc.touchJournal(j.ID)
		if err := s.adjustObligationTx(ctx, sc, payable, reduction); err != nil {
			return err
		}

		r, err := tx.CreatePurchaseReturn(ctx, PurchaseReturn{
			Reference:        ref,
			PurchaseID:       p.ID,
			Date:             date,
			Subtotal:         subtotal,
			VAT:              vat,
			Total:            total,
			PayableReduction: reduction,
			CashRefund:       refund,
			JournalID:        j.ID,
			CreatedBy:        createdBy(ctx),
		})
		if err != nil {
			return fmt.Errorf("failed to create purchase return: %w", err)
		}
		for _, detail := range details {
			detail.ReturnID = r.ID
			if _, err := tx.CreatePurchaseReturnDetail(ctx, detail); err != nil {
				return fmt.Errorf("failed to create purchase return detail: %w", err)
			}
		}
		if err := s.refreshTx(ctx, sc, products); err != nil {
			return err
		}
		out, err = loadPurchaseReturn(ctx, tx, r.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *returnService) DeletePurchaseReturn(ctx context.Context, id int) error {
	return s.exec.Run(ctx, "purchase_return.delete", func(ctx context.Context, sc *Scope) error {
		tx := sc.Tx
		d, err := sc.Defaults(ctx)
		if err != nil {
			return err
		}
		r, err := loadPurchaseReturn(ctx, tx, id)
		if err != nil {
			return err
		}
		// Reversal takes the refunded cash back out.
		if err := requireCash(ctx, tx, d, r.CashRefund); err != nil {
			return err
		}
		var payable *Obligation
		if r.PayableReduction.IsPositive() {
			payable, err = tx.FindObligationBySource(ctx, Payable, r.PurchaseID)
			if err != nil {
				return fmt.Errorf("failed to load payable of purchase %d: %w", r.PurchaseID, err)
			}
			if payable == nil {
				return InvariantViolationf("purchase return %s reduced a payable that no longer exists", r.Reference)
			}
		}

		if err := s.journals.ReverseTx(ctx, tx, r.JournalID); err != nil {
			return err
		}
		if err := s.journals.DeleteJournalTx(ctx, tx, r.JournalID); err != nil {
			return err
		}
		if err := s.adjustObligationTx(ctx, sc, payable, r.PayableReduction.Neg()); err != nil {
			return err
		}

		products := map[int]struct{}{}
		for _, detail := range r.Details {
			if err := s.inventory.ReleaseBatchTx(ctx, tx, detail.BatchID, detail.Quantity); err != nil {
				return err
			}
			products[detail.ProductID] = struct{}{}
		}
		if err := tx.DeletePurchaseReturnDetails(ctx, id); err != nil {
			return fmt.Errorf("failed to delete details of purchase return %d: %w", id, err)
		}
		if err := tx.DeletePurchaseReturn(ctx, id); err != nil {
			return fmt.Errorf("failed to delete purchase return %d: %w", id, err)
		}
		return s.refreshTx(ctx, sc, products)
	})
}

func (s *returnService) GetPurchaseReturn(ctx context.Context, id int) (*PurchaseReturn, error) {
	var out *PurchaseReturn
	err := s.exec.Read(ctx, func(ctx context.Context, tx Tx) error {
		r, err := loadPurchaseReturn(ctx, tx, id)
		out = r
		return err
	})
	return out, err
}

func loadPurchaseReturn(ctx context.Context, tx Tx, id int) (*PurchaseReturn, error) {
	r, err := tx.GetPurchaseReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	details, err := tx.ListPurchaseReturnDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list details of purchase return %d: %w", id, err)
	}
	r.Details = details
	return r, nil
}

// ── Sale returns ──────────────────────────────────────────────────────────────

func (s *returnService) CreateSaleReturn(ctx context.Context, in SaleReturnInput) (*SaleReturn, error) {
	if err := s.exec.Validate(in); err != nil {
		return nil, err
	}
	var out *SaleReturn
	err := s.exec.Run(ctx, "sale_return.create", func(ctx context.Context, sc *Scope) error {
		tx := sc.Tx
		d, err := sc.Defaults(ctx)
		if err != nil {
			return err
		}
		sale, err := tx.GetSale(ctx, in.SaleID)
		if err != nil {
			return err
		}
		date := DateOnly(in.Date)
		if date.Before(DateOnly(sale.Date)) {
			return InvalidDatef("return date %s is before sale date %s",
				date.Format(time.DateOnly), sale.Date.Format(time.DateOnly))
		}

		// 1. Restock into the consumed lots, newest consumption first
		var details []SaleReturnDetail
		products := map[int]struct{}{}
		subtotal, cogs := decimal.Zero, decimal.Zero
		for i, l := range in.Lines {
			detail, err := tx.GetSaleDetail(ctx, l.SaleDetailID)
			if err != nil {
				return err
			}
			if detail.SaleID != sale.ID {
				return Validationf("line %d: detail %d does not belong to sale %s", i+1, detail.ID, sale.Reference)
			}
			allocs, err := tx.ListAllocationsByDetail(ctx, detail.ID)
			if err != nil {
				return fmt.Errorf("failed to list allocations of sale detail %d: %w", detail.ID, err)
			}
			returnable := 0
			for _, a := range allocs {
				returnable += a.Quantity - a.ReturnedQuantity
			}
			if l.Quantity > returnable {
				return Validationf("line %d: returning %d units but only %d of sale detail %d remain unreturned",
					i+1, l.Quantity, returnable, detail.ID)
			}

			sort.SliceStable(allocs, func(a, b int) bool { return allocs[a].ID > allocs[b].ID })
			need := l.Quantity
			for _, a := range allocs {
				if need == 0 {
					break
				}
				take := min(need, a.Quantity-a.ReturnedQuantity)
				if take <= 0 {
					continue
				}
				if err := s.inventory.ReleaseBatchTx(ctx, tx, a.BatchID, take); err != nil {
					return err
				}
				a.ReturnedQuantity += take
				if err := tx.UpdateAllocation(ctx, a); err != nil {
					return fmt.Errorf("failed to update allocation %d: %w", a.ID, err)
				}
				details = append(details, SaleReturnDetail{
					SaleDetailID: detail.ID,
					AllocationID: a.ID,
					ProductID:    detail.ProductID,
					BatchID:      a.BatchID,
					Quantity:     take,
					UnitPrice:    detail.UnitPrice,
					UnitCost:     a.UnitCost,
				})
				cogs = cogs.Add(a.UnitCost.Mul(decimal.NewFromInt(int64(take))))
				need -= take
			}
			subtotal = subtotal.Add(lineSubtotal(l.Quantity, detail.UnitPrice))
			products[detail.ProductID] = struct{}{}
		}
		cogs = cogs.Round(2)
		reversed, err := tx.SumSaleReturnVAT(ctx, sale.ID)
		if err != nil {
			return fmt.Errorf("failed to sum returned VAT of sale %d: %w", sale.ID, err)
		}
		vat := capReturnVAT(VATOf(subtotal, sale.VATRate), sale.VAT, reversed)
		total := subtotal.Add(vat)

		// 2. Settle against the receivable first; the rest is refunded from cash
		receivable, err := tx.FindObligationBySource(ctx, Receivable, sale.ID)
		if err != nil {
			return fmt.Errorf("failed to load receivable of sale %d: %w", sale.ID, err)
		}
		reduction, refund := reduceObligation(receivable, total)
		if err := requireCash(ctx, tx, d, refund); err != nil {
			return err
		}

		ref, err := s.docs.NextReferenceTx(ctx, tx, PrefixSaleReturn)
		if err != nil {
			return err
		}
		j, err := s.journals.CreateJournalTx(ctx, tx, date, "Sale return "+ref+" for "+sale.Reference, ref)
		if err != nil {
			return err
		}
		if _, err := s.journals.PostTx(ctx, tx, j.ID, []JournalLine{
			DebitLine(d.Sales.ID, subtotal),
			DebitLine(d.VATOutput.ID, vat),
			CreditLine(d.Receivable.ID, reduction),
			CreditLine(d.Cash.ID, refund),
			DebitLine(d.Inventory.ID, cogs),
			CreditLine(d.COGS.ID, cogs),
		}); err != nil {
			return err
		}
		sc.touchJournal(j.ID)
		if err := s.adjustObligationTx(ctx, sc, receivable, reduction); err != nil {
			return err
		}

		r, err := tx.CreateSaleReturn(ctx, SaleReturn{
			Reference:           ref,
			SaleID:              sale.ID,
			Date:                date,
			Subtotal:            subtotal,
			VAT:                 vat,
			Total:               total,
			COGS:                cogs,
			ReceivableReduction: reduction,
			CashRefund:          refund,
			JournalID:           j.ID,
			CreatedBy:           createdBy(ctx),
		})
		if err != nil {
			return fmt.Errorf("failed to create sale return: %w", err)
		}
		for _, detail := range details {
			detail.ReturnID = r.ID
			if _, err := tx.CreateSaleReturnDetail(ctx, detail); err != nil {
				return fmt.Errorf("failed to create sale return detail: %w", err)
			}
		}
		if err := s.refreshTx(ctx, sc, products); err != nil {
			return err
		}
		out, err = loadSaleReturn(ctx, tx, r.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *returnService) DeleteSaleReturn(ctx context.Context, id int) error {
	return s.exec.Run(ctx, "sale_return.delete", func(ctx context.Context, sc *Scope) error {
		tx := sc.Tx
		r, err := loadSaleReturn(ctx, tx, id)
		if err != nil {
			return err
		}
		var receivable *Obligation
		if r.ReceivableReduction.IsPositive() {
			receivable, err = tx.FindObligationBySource(ctx, Receivable, r.SaleID)
			if err != nil {
				return fmt.Errorf("failed to load receivable of sale %d: %w", r.SaleID, err)
			}
			if receivable == nil {
				return InvariantViolationf("sale return %s reduced a receivable that no longer exists", r.Reference)
			}
		}

		// 1. Take the restocked units back out of their lots
		products := map[int]struct{}{}
		for _, detail := range r.Details {
			b, err := tx.GetBatch(ctx, detail.BatchID)
			if err != nil {
				return fmt.Errorf("failed to load batch %d: %w", detail.BatchID, err)
			}
			if b.RemainingStock < detail.Quantity {
				return Conflictf("sale return %s: units restocked into batch %d have since been sold", r.Reference, b.ID)
			}
			if err := s.inventory.ConsumeBatchTx(ctx, tx, detail.BatchID, detail.Quantity); err != nil {
				return err
			}
			allocs, err := tx.ListAllocationsByDetail(ctx, detail.SaleDetailID)
			if err != nil {
				return fmt.Errorf("failed to list allocations of sale detail %d: %w", detail.SaleDetailID, err)
			}
			found := false
			for _, a := range allocs {
				if a.ID != detail.AllocationID {
					continue
				}
				if a.ReturnedQuantity < detail.Quantity {
					return InvariantViolationf("allocation %d has %d units returned, cannot unreturn %d",
						a.ID, a.ReturnedQuantity, detail.Quantity)
				}
				a.ReturnedQuantity -= detail.Quantity
				if err := tx.UpdateAllocation(ctx, a); err != nil {
					return fmt.Errorf("failed to update allocation %d: %w", a.ID, err)
				}
				found = true
			}
			if !found {
				return InvariantViolationf("sale return %s references missing allocation %d", r.Reference, detail.AllocationID)
			}
			products[detail.ProductID] = struct{}{}
		}

		// 2. Reverse postings and restore the receivable
		if err := s.journals.ReverseTx(ctx, tx, r.JournalID); err != nil {
			return err
		}
		if err := s.journals.DeleteJournalTx(ctx, tx, r.JournalID); err != nil {
			return err
		}
		if err := s.adjustObligationTx(ctx, sc, receivable, r.ReceivableReduction.Neg()); err != nil {
			return err
		}
		if err := tx.DeleteSaleReturnDetails(ctx, id); err != nil {
			return fmt.Errorf("failed to delete details of sale return %d: %w", id, err)
		}
		if err := tx.DeleteSaleReturn(ctx, id); err != nil {
			return fmt.Errorf("failed to delete sale return %d: %w", id, err)
		}
		return s.refreshTx(ctx, sc, products)
	})
}

func (s *returnService) GetSaleReturn(ctx context.Context, id int) (*SaleReturn, error) {
	var out *SaleReturn
	err := s.exec.Read(ctx, func(ctx context.Context, tx Tx) error {
		r, err := loadSaleReturn(ctx, tx, id)
		out = r
		return err
	})
	return out, err
}

func loadSaleReturn(ctx context.Context, tx Tx, id int) (*SaleReturn, error) {
	r, err := tx.GetSaleReturn(ctx, id)
	if err != nil {
		return nil, err
	}
	details, err := tx.ListSaleReturnDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list details of sale return %d: %w", id, err)
	}
	r.Details = details
	return r, nil
}
