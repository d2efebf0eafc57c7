package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseService records purchases of stock from suppliers.
type PurchaseService interface {
	// Create posts a purchase: one lot per line, Dr inventory + VAT input against cash
	// and/or a new payable depending on the payment type.
	Create(ctx context.Context, in PurchaseInput) (*Purchase, error)
	// Update fully reverses the purchase's postings and re-applies in, keeping the purchase
	// and journal IDs. Lots already consumed by sales keep their identity and are re-priced
	// in place; their line must stay, with the same product and at least the consumed quantity,
	// and the new date must not postdate the earliest consuming sale.
	Update(ctx context.Context, id int, in PurchaseInput) (*Purchase, error)
	// Delete removes a purchase whose lots are untouched, with no returns and no payable payments.
	Delete(ctx context.Context, id int) error
	Get(ctx context.Context, id int) (*Purchase, error)
}

type purchaseService struct {
	exec        *Executor
	journals    JournalService
	inventory   InventoryService
	obligations ObligationService
	docs        DocumentService
}

func NewPurchaseService(exec *Executor) PurchaseService {
	return &purchaseService{
		exec:        exec,
		journals:    NewJournalService(),
		inventory:   NewInventoryService(),
		obligations: NewObligationService(),
		docs:        NewDocumentService(),
	}
}

// purchaseTerms are the validated, computed figures of a purchase input.
type purchaseTerms struct {
	date     time.Time
	vatRate  decimal.Decimal
	subtotal decimal.Decimal
	vat      decimal.Decimal
	total    decimal.Decimal
	cash     decimal.Decimal
	payable  decimal.Decimal
}

func (s *purchaseService) Create(ctx context.Context, in PurchaseInput) (*Purchase, error) {
	if err := s.exec.Validate(in); err != nil {
		return nil, err
	}
	var out *Purchase
	err := s.exec.Run(ctx, "purchase.create", func(ctx context.Context, sc *Scope) error {
		p, err := s.createTx(ctx, sc, in)
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *purchaseService) Update(ctx context.Context, id int, in PurchaseInput) (*Purchase, error) {
	if err := s.exec.Validate(in); err != nil {
		return nil, err
	}
	var out *Purchase
	err := s.exec.Run(ctx, "purchase.update", func(ctx context.Context, sc *Scope) error {
		p, err := s.updateTx(ctx, sc, id, in)
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *purchaseService) Delete(ctx context.Context, id int) error {
	return s.exec.Run(ctx, "purchase.delete", func(ctx context.Context, sc *Scope) error {
		return s.deleteTx(ctx, sc, id)
	})
}

func (s *purchaseService) Get(ctx context.Context, id int) (*Purchase, error) {
	var out *Purchase
	err := s.exec.Read(ctx, func(ctx context.Context, tx Tx) error {
		p, err := loadPurchase(ctx, tx, id)
		out = p
		return err
	})
	return out, err
}

func loadPurchase(ctx context.Context, tx Tx, id int) (*Purchase, error) {
	p, err := tx.GetPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	details, err := tx.ListPurchaseDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list details of purchase %d: %w", id, err)
	}
	p.Details = details
	return p, nil
}

// checkPurchaseInput validates counterparties, products, prices and the payment split,
// then computes totals.
func (s *purchaseService) checkPurchaseInput(ctx context.Context, tx Tx, in PurchaseInput) (*purchaseTerms, error) {
	// 1. Structural and reference validation
	if _, err := tx.GetSupplier(ctx, in.SupplierID); err != nil {
		return nil, err
	}
	date := DateOnly(in.Date)
	rate, err := tx.FindVATRate(ctx, date)
	if err != nil {
		if IsNotFound(err) {
			return nil, Validationf("no VAT rate is effective on %s", date.Format(time.DateOnly))
		}
		return nil, fmt.Errorf("failed to resolve VAT rate: %w", err)
	}
	if len(in.Lines) == 0 {
		return nil, Validationf("purchase must have at least one line")
	}

	// 2. Totals
	subtotal := decimal.Zero
	for i, l := range in.Lines {
		if l.Quantity <= 0 {
			return nil, Validationf("line %d: quantity must be positive", i+1)
		}
		if l.UnitPrice.IsNegative() {
			return nil, Validationf("line %d: unit price cannot be negative", i+1)
		}
		if _, err := tx.GetProduct(ctx, l.ProductID); err != nil {
			return nil, err
		}
		subtotal = subtotal.Add(lineSubtotal(l.Quantity, l.UnitPrice))
	}
	t := &purchaseTerms{date: date, vatRate: rate.Rate, subtotal: subtotal.Round(2)}
	t.vat = VATOf(t.subtotal, t.vatRate)
	t.total = t.subtotal.Add(t.vat)

	// 3. Payment split
	t.cash, t.payable, err = splitPayment(in.PaymentType, in.CashAmount, t.total)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func lineSubtotal(qty int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}

// splitPayment divides total into a cash portion and an obligation portion.
// MIXED requires 0 < cashAmount < total.
func splitPayment(pt PaymentType, cashAmount, total decimal.Decimal) (cash, credit decimal.Decimal, err error) {
	switch pt {
	case PaymentCash:
		return total, decimal.Zero, nil
	case PaymentCredit:
		if !total.IsPositive() {
			return decimal.Zero, decimal.Zero, Validationf("credit transaction total must be positive")
		}
		return decimal.Zero, total, nil
	case PaymentMixed:
		cashAmount = cashAmount.Round(2)
		if !cashAmount.IsPositive() || !cashAmount.LessThan(total) {
			return decimal.Zero, decimal.Zero, Validationf("mixed payment cash amount %s must be greater than 0 and less than total %s",
				cashAmount.StringFixed(2), total.StringFixed(2))
		}
		return cashAmount, total.Sub(cashAmount), nil
	}
	return decimal.Zero, decimal.Zero, Validationf("unknown payment type %q", pt)
}

func (s *purchaseService) createTx(ctx context.Context, sc *Scope, in PurchaseInput) (*Purchase, error) {
	tx := sc.Tx
	d, err := sc.Defaults(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.checkPurchaseInput(ctx, tx, in)
	if err != nil {
		return nil, err
	}
	for _, l := range in.Lines {
		if l.DetailID != 0 {
			return nil, Validationf("detail_id is only accepted on update")
		}
	}

	ref, err := s.docs.NextReferenceTx(ctx, tx, PrefixPurchase)
	if err != nil {
		return nil, err
	}
	j, err := s.journals.CreateJournalTx(ctx, tx, t.date, "Purchase "+ref, ref)
	if err != nil {
		return nil, err
	}
	sc.touchJournal(j.ID)

	p, err := tx.CreatePurchase(ctx, Purchase{
		Reference:   ref,
		SupplierID:  in.SupplierID,
		Date:        t.date,
		PaymentType: in.PaymentType,
		CashAmount:  t.cash,
		Subtotal:    t.subtotal,
		VATRate:     t.vatRate,
		VAT:         t.vat,
		Total:       t.total,
		DueDate:     creditDueDate(in.PaymentType, in.DueDate),
		JournalID:   j.ID,
		CreatedBy:   createdBy(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase: %w", err)
	}

	products := map[int]struct{}{}
	for _, l := range in.Lines {
		if _, err := s.receiveLineTx(ctx, tx, p.ID, t.date, l); err != nil {
			return nil, err
		}
		products[l.ProductID] = struct{}{}
	}
	if err := s.refreshProductsTx(ctx, sc, products); err != nil {
		return nil, err
	}

	if err := s.postTx(ctx, sc, d, p, t); err != nil {
		return nil, err
	}
	return loadPurchase(ctx, tx, p.ID)
}

// receiveLineTx inserts a purchase detail and the lot it creates.
func (s *purchaseService) receiveLineTx(ctx context.Context, tx Tx, purchaseID int, date time.Time, l PurchaseLineInput) (*PurchaseDetail, error) {
	detail, err := tx.CreatePurchaseDetail(ctx, PurchaseDetail{
		PurchaseID: purchaseID,
		ProductID:  l.ProductID,
		Quantity:   l.Quantity,
		UnitPrice:  l.UnitPrice.Round(2),
		Subtotal:   lineSubtotal(l.Quantity, l.UnitPrice),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create purchase detail: %w", err)
	}
	batch, err := s.inventory.ReceiveBatchTx(ctx, tx, l.ProductID, date, l.Quantity, l.UnitPrice, detail.ID)
	if err != nil {
		return nil, err
	}
	detail.BatchID = batch.ID
	if err := tx.UpdatePurchaseDetail(ctx, *detail); err != nil {
		return nil, fmt.Errorf("failed to link batch to purchase detail %d: %w", detail.ID, err)
	}
	return detail, nil
}

// refreshProductsTx restates stock and the purchase-side weighted-average cost basis.
func (s *purchaseService) refreshProductsTx(ctx context.Context, sc *Scope, products map[int]struct{}) error {
	for _, id := range sortedKeys(products) {
		if _, err := s.inventory.RefreshProductTx(ctx, sc.Tx, id, AVG); err != nil {
			return err
		}
		sc.touchProduct(id)
	}
	return nil
}

// postTx checks cash, posts the purchase journal lines and creates the payable.
func (s *purchaseService) postTx(ctx context.Context, sc *Scope, d *DefaultAccounts, p *Purchase, t *purchaseTerms) error {
	tx := sc.Tx
	// Pre-condition: cash covers the cash portion.
	if err := requireCash(ctx, tx, d, t.cash); err != nil {
		return err
	}

	entries, err := s.journals.PostTx(ctx, tx, p.JournalID, []JournalLine{
		DebitLine(d.Inventory.ID, t.subtotal),
		DebitLine(d.VATInput.ID, t.vat),
		CreditLine(d.Cash.ID, t.cash),
		CreditLine(d.Payable.ID, t.payable),
	})
	if err != nil {
		return err
	}

	if t.payable.IsPositive() {
		handle := entryFor(entries, d.Payable.ID)
		o, err := s.obligations.CreateTx(ctx, tx, Obligation{
			Kind:           Payable,
			CounterpartyID: p.SupplierID,
			SourceID:       p.ID,
			JournalEntryID: handle,
			Amount:         t.payable,
			DueDate:        p.DueDate,
		})
		if err != nil {
			return err
		}
		sc.touchObligation(Payable, o.ID)
	}
	return nil
}

// entryFor returns the ID of the entry posted to accountID, or 0.
func entryFor(entries []JournalEntry, accountID int) int {
	for _, e := range entries {
		if e.AccountID == accountID {
			return e.ID
		}
	}
	return 0
}

func creditDueDate(pt PaymentType, due *time.Time) *time.Time {
	if pt == PaymentCash || due == nil {
		return nil
	}
	d := DateOnly(*due)
	return &d
}

func (s *purchaseService) deleteTx(ctx context.Context, sc *Scope, id int) error {
	tx := sc.Tx
	p, err := loadPurchase(ctx, tx, id)
	if err != nil {
		return err
	}

	// 1. Guards: every reversal precondition is checked before anything is mutated.
	for _, detail := range p.Details {
		b, err := tx.GetBatch(ctx, detail.BatchID)
		if err != nil {
			return fmt.Errorf("failed to load batch of purchase detail %d: %w", detail.ID, err)
		}
		sold, err := soldFromBatchTx(ctx, tx, b.ID)
		if err != nil {
			return err
		}
		if sold > 0 {
			return Conflictf("purchase %s: %d units of batch %d have been sold; use a purchase return instead",
				p.Reference, sold, b.ID)
		}
	}
	if n, err := tx.CountPurchaseReturns(ctx, id); err != nil {
		return fmt.Errorf("failed to count returns of purchase %d: %w", id, err)
	} else if n > 0 {
		return Conflictf("purchase %s has %d returns recorded", p.Reference, n)
	}
	payable, err := tx.FindObligationBySource(ctx, Payable, id)
	if err != nil {
		return fmt.Errorf("failed to load payable of purchase %d: %w", id, err)
	}

	// 2. Reverse postings
	if payable != nil {
		if err := s.obligations.DeleteTx(ctx, tx, Payable, payable.ID); err != nil {
			return err
		}
	}
	if err := s.journals.ReverseTx(ctx, tx, p.JournalID); err != nil {
		return err
	}
	if err := s.journals.DeleteJournalTx(ctx, tx, p.JournalID); err != nil {
		return err
	}

	// 3. Remove lots and details
	products := map[int]struct{}{}
	for _, detail := range p.Details {
		if err := tx.DeleteBatch(ctx, detail.BatchID); err != nil {
			return fmt.Errorf("failed to delete batch %d: %w", detail.BatchID, err)
		}
		if err := tx.DeletePurchaseDetail(ctx, detail.ID); err != nil {
			return fmt.Errorf("failed to delete purchase detail %d: %w", detail.ID, err)
		}
		products[detail.ProductID] = struct{}{}
	}
	if err := tx.DeletePurchase(ctx, id); err != nil {
		return fmt.Errorf("failed to delete purchase %d: %w", id, err)
	}

	method, err := inventoryMethodTx(ctx, tx)
	if err != nil {
		return err
	}
	for _, pid := range sortedKeys(products) {
		if _, err := s.inventory.RefreshProductTx(ctx, tx, pid, method); err != nil {
			return err
		}
		sc.touchProduct(pid)
	}
	return nil
}

func (s *purchaseService) updateTx(ctx context.Context, sc *Scope, id int, in PurchaseInput) (*Purchase, error) {
	tx := sc.Tx
	d, err := sc.Defaults(ctx)
	if err != nil {
		return nil, err
	}
	p, err := loadPurchase(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	t, err := s.checkPurchaseInput(ctx, tx, in)
	if err != nil {
		return nil, err
	}

	// 1. Guards
	if n, err := tx.CountPurchaseReturns(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to count returns of purchase %d: %w", id, err)
	} else if n > 0 {
		return nil, Conflictf("purchase %s has %d returns recorded", p.Reference, n)
	}
	payable, err := tx.FindObligationBySource(ctx, Payable, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load payable of purchase %d: %w", id, err)
	}

	existing := make(map[int]PurchaseDetail, len(p.Details))
	for _, detail := range p.Details {
		existing[detail.ID] = detail
	}
	keep := map[int]PurchaseLineInput{}
	for i, l := range in.Lines {
		if l.DetailID == 0 {
			continue
		}
		if _, ok := existing[l.DetailID]; !ok {
			return nil, Validationf("line %d: detail %d does not belong to purchase %s", i+1, l.DetailID, p.Reference)
		}
		if _, dup := keep[l.DetailID]; dup {
			return nil, Validationf("line %d: detail %d listed twice", i+1, l.DetailID)
		}
		keep[l.DetailID] = l
	}

	batches := make(map[int]*InventoryBatch, len(p.Details))
	for _, detail := range p.Details {
		b, err := tx.GetBatch(ctx, detail.BatchID)
		if err != nil {
			return nil, fmt.Errorf("failed to load batch of purchase detail %d: %w", detail.ID, err)
		}
		batches[detail.ID] = b
		sold, err := soldFromBatchTx(ctx, tx, b.ID)
		if err != nil {
			return nil, err
		}
		if sold == 0 {
			continue
		}
		consumed := b.Consumed()
		l, kept := keep[detail.ID]
		switch {
		case !kept:
			return nil, Conflictf("purchase detail %d cannot be removed: %d units have been sold", detail.ID, sold)
		case l.ProductID != detail.ProductID:
			return nil, Conflictf("purchase detail %d cannot change product: %d units have been sold", detail.ID, sold)
		case l.Quantity < consumed:
			return nil, Conflictf("purchase detail %d quantity %d is below the %d units already sold", detail.ID, l.Quantity, consumed)
		case !l.UnitPrice.Round(2).Equal(b.PurchasePrice):
			return nil, Conflictf("purchase detail %d cannot change unit price: %d units were sold at %s; use a purchase return instead",
				detail.ID, sold, b.PurchasePrice.StringFixed(2))
		}
		earliest, err := earliestConsumingSaleTx(ctx, tx, b.ID)
		if err != nil {
			return nil, err
		}
		if earliest != nil && t.date.After(*earliest) {
			return nil, InvalidChronologyf("purchase date %s is after a sale on %s that consumed batch %d",
				t.date.Format(time.DateOnly), earliest.Format(time.DateOnly), b.ID)
		}
	}

	// 2. Reverse old postings
	if payable != nil {
		if err := s.obligations.DeleteTx(ctx, tx, Payable, payable.ID); err != nil {
			return nil, err
		}
	}
	if err := s.journals.ReverseTx(ctx, tx, p.JournalID); err != nil {
		return nil, err
	}

	// 3. Re-apply lines: kept details are rewritten in place, dropped ones removed, new ones received.
	products := map[int]struct{}{}
	for _, detail := range p.Details {
		products[detail.ProductID] = struct{}{}
		b := batches[detail.ID]
		l, kept := keep[detail.ID]
		if !kept {
			if err := tx.DeleteBatch(ctx, b.ID); err != nil {
				return nil, fmt.Errorf("failed to delete batch %d: %w", b.ID, err)
			}
			if err := tx.DeletePurchaseDetail(ctx, detail.ID); err != nil {
				return nil, fmt.Errorf("failed to delete purchase detail %d: %w", detail.ID, err)
			}
			continue
		}
		consumed := b.Consumed()
		b.ProductID = l.ProductID
		b.PurchaseDate = t.date
		b.Quantity = l.Quantity
		b.RemainingStock = l.Quantity - consumed
		b.PurchasePrice = l.UnitPrice.Round(2)
		if err := tx.UpdateBatch(ctx, *b); err != nil {
			return nil, fmt.Errorf("failed to update batch %d: %w", b.ID, err)
		}
		detail.ProductID = l.ProductID
		detail.Quantity = l.Quantity
		detail.UnitPrice = l.UnitPrice.Round(2)
		detail.Subtotal = lineSubtotal(l.Quantity, l.UnitPrice)
		if err := tx.UpdatePurchaseDetail(ctx, detail); err != nil {
			return nil, fmt.Errorf("failed to update purchase detail %d: %w", detail.ID, err)
		}
		products[l.ProductID] = struct{}{}
	}
	for _, l := range in.Lines {
		if l.DetailID != 0 {
			continue
		}
		if _, err := s.receiveLineTx(ctx, tx, id, t.date, l); err != nil {
			return nil, err
		}
		products[l.ProductID] = struct{}{}
	}
	if err := s.refreshProductsTx(ctx, sc, products); err != nil {
		return nil, err
	}

	// 4. Re-post under the same journal header
	j, err := tx.GetJournal(ctx, p.JournalID)
	if err != nil {
		return nil, fmt.Errorf("failed to load journal %d: %w", p.JournalID, err)
	}
	j.Date = t.date
	if err := tx.UpdateJournal(ctx, *j); err != nil {
		return nil, fmt.Errorf("failed to update journal %d: %w", j.ID, err)
	}
	sc.touchJournal(j.ID)

	p.SupplierID = in.SupplierID
	p.Date = t.date
	p.PaymentType = in.PaymentType
	p.CashAmount = t.cash
	p.Subtotal = t.subtotal
	p.VATRate = t.vatRate
	p.VAT = t.vat
	p.Total = t.total
	p.DueDate = creditDueDate(in.PaymentType, in.DueDate)
	p.Details = nil
	if err := tx.UpdatePurchase(ctx, *p); err != nil {
		return nil, fmt.Errorf("failed to update purchase %d: %w", id, err)
	}
	if err := s.postTx(ctx, sc, d, p, t); err != nil {
		return nil, err
	}
	return loadPurchase(ctx, tx, id)
}

// earliestConsumingSaleTx returns the date of the earliest sale that drew from batchID, or nil.
// soldFromBatchTx counts every unit a sale ever drew from the batch, returned or not.
// Allocations keep pointing at the lot after a sale return, so any of them pins it.
func soldFromBatchTx(ctx context.Context, tx Tx, batchID int) (int, error) {
	allocs, err := tx.ListAllocationsByBatch(ctx, batchID)
	if err != nil {
		return 0, fmt.Errorf("failed to list allocations of batch %d: %w", batchID, err)
	}
	sold := 0
	for _, a := range allocs {
		sold += a.Quantity
	}
	return sold, nil
}

func earliestConsumingSaleTx(ctx context.Context, tx Tx, batchID int) (*time.Time, error) {
	allocs, err := tx.ListAllocationsByBatch(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations of batch %d: %w", batchID, err)
	}
	var earliest *time.Time
	for _, a := range allocs {
		detail, err := tx.GetSaleDetail(ctx, a.SaleDetailID)
		if err != nil {
			return nil, fmt.Errorf("failed to load sale detail %d: %w", a.SaleDetailID, err)
		}
		sale, err := tx.GetSale(ctx, detail.SaleID)
		if err != nil {
			return nil, fmt.Errorf("failed to load sale %d: %w", detail.SaleID, err)
		}
		if earliest == nil || sale.Date.Before(*earliest) {
			date := DateOnly(sale.Date)
			earliest = &date
		}
	}
	return earliest, nil
}

// inventoryMethodTx reads the configured costing method inside the caller's scope.
func inventoryMethodTx(ctx context.Context, tx Tx) (InventoryMethod, error) {
	setting, err := tx.GetGeneralSetting(ctx)
	if err != nil {
		if IsNotFound(err) {
			return "", NotConfiguredf("general setting is not configured")
		}
		return "", fmt.Errorf("failed to read general setting: %w", err)
	}
	if !setting.InventoryMethod.Valid() {
		return "", NotConfiguredf("inventory method %q is not supported", setting.InventoryMethod)
	}
	return setting.InventoryMethod, nil
}
