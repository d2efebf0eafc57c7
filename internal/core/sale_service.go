package core

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// SaleService records sales to customers, sourcing stock from lots under the configured
// costing method.
type SaleService interface {
	// Create posts Dr cash/receivable, Cr sales, Cr VAT output and Dr COGS, Cr inventory.
	Create(ctx context.Context, in SaleInput) (*Sale, error)
	// Update reverses the sale (releasing its lots) and re-applies in under the same IDs.
	Update(ctx context.Context, id int, in SaleInput) (*Sale, error)
	// Delete reverses the sale. Blocked when a later purchase exists for a sold product,
	// when a return exists, or when the receivable has payments.
	Delete(ctx context.Context, id int) error
	Get(ctx context.Context, id int) (*Sale, error)
}

type saleService struct {
	exec        *Executor
	journals    JournalService
	inventory   InventoryService
	obligations ObligationService
	docs        DocumentService
}

func NewSaleService(exec *Executor) SaleService {
	return &saleService{
		exec:        exec,
		journals:    NewJournalService(),
		inventory:   NewInventoryService(),
		obligations: NewObligationService(),
		docs:        NewDocumentService(),
	}
}

type pricedSaleLine struct {
	SaleLineInput
	subtotal decimal.Decimal
}

type saleTerms struct {
	date       time.Time
	method     InventoryMethod
	vatRate    decimal.Decimal
	lines      []pricedSaleLine
	subtotal   decimal.Decimal
	vat        decimal.Decimal
	total      decimal.Decimal
	cash       decimal.Decimal
	receivable decimal.Decimal
}

func (s *saleService) Create(ctx context.Context, in SaleInput) (*Sale, error) {
	if err := s.exec.Validate(in); err != nil {
		return nil, err
	}
	var out *Sale
	err := s.exec.Run(ctx, "sale.create", func(ctx context.Context, sc *Scope) error {
		d, err := sc.Defaults(ctx)
		if err != nil {
			return err
		}
		t, err := s.checkSaleInput(ctx, sc.Tx, in)
		if err != nil {
			return err
		}
		ref, err := s.docs.NextReferenceTx(ctx, sc.Tx, PrefixSale)
		if err != nil {
			return err
		}
		j, err := s.journals.CreateJournalTx(ctx, sc.Tx, t.date, "Sale "+ref, ref)
		if err != nil {
			return err
		}
		sale, err := sc.Tx.CreateSale(ctx, Sale{
			Reference:  ref,
			CustomerID: in.CustomerID,
			Date:       t.date,
			JournalID:  j.ID,
			CreatedBy:  createdBy(ctx),
		})
		if err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}
		if err := s.applyTx(ctx, sc, d, sale, in, t); err != nil {
			return err
		}
		out, err = loadSale(ctx, sc.Tx, sale.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *saleService) Update(ctx context.Context, id int, in SaleInput) (*Sale, error) {
	if err := s.exec.Validate(in); err != nil {
		return nil, err
	}
	var out *Sale
	err := s.exec.Run(ctx, "sale.update", func(ctx context.Context, sc *Scope) error {
		d, err := sc.Defaults(ctx)
		if err != nil {
			return err
		}
		sale, err := loadSale(ctx, sc.Tx, id)
		if err != nil {
			return err
		}
		if err := s.reverseTx(ctx, sc, d, sale); err != nil {
			return err
		}
		// Prices default against the product state after the old sale is released.
		t, err := s.checkSaleInput(ctx, sc.Tx, in)
		if err != nil {
			return err
		}
		j, err := sc.Tx.GetJournal(ctx, sale.JournalID)
		if err != nil {
			return fmt.Errorf("failed to load journal %d: %w", sale.JournalID, err)
		}
		j.Date = t.date
		if err := sc.Tx.UpdateJournal(ctx, *j); err != nil {
			return fmt.Errorf("failed to update journal %d: %w", j.ID, err)
		}
		sale.CustomerID = in.CustomerID
		sale.Details = nil
		if err := s.applyTx(ctx, sc, d, sale, in, t); err != nil {
			return err
		}
		out, err = loadSale(ctx, sc.Tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *saleService) Delete(ctx context.Context, id int) error {
	return s.exec.Run(ctx, "sale.delete", func(ctx context.Context, sc *Scope) error {
		d, err := sc.Defaults(ctx)
		if err != nil {
			return err
		}
		sale, err := loadSale(ctx, sc.Tx, id)
		if err != nil {
			return err
		}
		if err := s.reverseTx(ctx, sc, d, sale); err != nil {
			return err
		}
		if err := s.journals.DeleteJournalTx(ctx, sc.Tx, sale.JournalID); err != nil {
			return err
		}
		if err := sc.Tx.DeleteSale(ctx, id); err != nil {
			return fmt.Errorf("failed to delete sale %d: %w", id, err)
		}
		return nil
	})
}

func (s *saleService) Get(ctx context.Context, id int) (*Sale, error) {
	var out *Sale
	err := s.exec.Read(ctx, func(ctx context.Context, tx Tx) error {
		sale, err := loadSale(ctx, tx, id)
		out = sale
		return err
	})
	return out, err
}

func loadSale(ctx context.Context, tx Tx, id int) (*Sale, error) {
	sale, err := tx.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}
	details, err := tx.ListSaleDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list details of sale %d: %w", id, err)
	}
	for i := range details {
		allocs, err := tx.ListAllocationsByDetail(ctx, details[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list allocations of sale detail %d: %w", details[i].ID, err)
		}
		details[i].Allocations = allocs
	}
	sale.Details = details
	return sale, nil
}

func (s *saleService) checkSaleInput(ctx context.Context, tx Tx, in SaleInput) (*saleTerms, error) {
	if _, err := tx.GetCustomer(ctx, in.CustomerID); err != nil {
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
	method, err := inventoryMethodTx(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(in.Lines) == 0 {
		return nil, Validationf("sale must have at least one line")
	}

	t := &saleTerms{date: date, method: method, vatRate: rate.Rate, subtotal: decimal.Zero}
	for i, l := range in.Lines {
		if l.Quantity <= 0 {
			return nil, Validationf("line %d: quantity must be positive", i+1)
		}
		if l.UnitPrice.IsNegative() {
			return nil, Validationf("line %d: unit price cannot be negative", i+1)
		}
		p, err := tx.GetProduct(ctx, l.ProductID)
		if err != nil {
			return nil, err
		}
		if l.UnitPrice.IsZero() {
			l.UnitPrice = p.SellingPrice
		}
		l.UnitPrice = l.UnitPrice.Round(2)
		sub := lineSubtotal(l.Quantity, l.UnitPrice)
		t.lines = append(t.lines, pricedSaleLine{SaleLineInput: l, subtotal: sub})
		t.subtotal = t.subtotal.Add(sub)
	}
	t.vat = VATOf(t.subtotal, t.vatRate)
	t.total = t.subtotal.Add(t.vat)
	t.cash, t.receivable, err = splitPayment(in.PaymentType, in.CashAmount, t.total)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// applyTx allocates lots for every line, posts the sale journal into sale.JournalID
// and creates the receivable. sale must already exist.
func (s *saleService) applyTx(ctx context.Context, sc *Scope, d *DefaultAccounts, sale *Sale, in SaleInput, t *saleTerms) error {
	tx := sc.Tx
	products := map[int]struct{}{}
	cogs := decimal.Zero
	for _, l := range t.lines {
		plan, err := s.inventory.AllocateTx(ctx, tx, l.ProductID, l.Quantity, t.method, t.date)
		if err != nil {
			return err
		}
		detail, err := tx.CreateSaleDetail(ctx, SaleDetail{
			SaleID:    sale.ID,
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
			Subtotal:  l.subtotal,
			COGS:      plan.COGS,
		})
		if err != nil {
			return fmt.Errorf("failed to create sale detail: %w", err)
		}
		for _, a := range plan.Allocations {
			if _, err := tx.CreateAllocation(ctx, SaleAllocation{
				SaleDetailID: detail.ID,
				BatchID:      a.BatchID,
				Quantity:     a.Quantity,
				UnitCost:     a.UnitCost,
			}); err != nil {
				return fmt.Errorf("failed to record allocation of batch %d: %w", a.BatchID, err)
			}
		}
		cogs = cogs.Add(plan.COGS)
		products[l.ProductID] = struct{}{}
	}
	for _, pid := range sortedKeys(products) {
		if _, err := s.inventory.RefreshProductTx(ctx, tx, pid, t.method); err != nil {
			return err
		}
		sc.touchProduct(pid)
	}

	entries, err := s.journals.PostTx(ctx, tx, sale.JournalID, []JournalLine{
		DebitLine(d.Cash.ID, t.cash),
		DebitLine(d.Receivable.ID, t.receivable),
		CreditLine(d.Sales.ID, t.subtotal),
		CreditLine(d.VATOutput.ID, t.vat),
		DebitLine(d.COGS.ID, cogs),
		CreditLine(d.Inventory.ID, cogs),
	})
	if err != nil {
		return err
	}
	sc.touchJournal(sale.JournalID)

	sale.Date = t.date
	sale.PaymentType = in.PaymentType
	sale.CashAmount = t.cash
	sale.Subtotal = t.subtotal
	sale.VATRate = t.vatRate
	sale.VAT = t.vat
	sale.Total = t.total
	sale.COGS = cogs
	sale.DueDate = creditDueDate(in.PaymentType, in.DueDate)
	if err := tx.UpdateSale(ctx, *sale); err != nil {
		return fmt.Errorf("failed to update sale %d: %w", sale.ID, err)
	}

	if t.receivable.IsPositive() {
		o, err := s.obligations.CreateTx(ctx, tx, Obligation{
			Kind:           Receivable,
			CounterpartyID: sale.CustomerID,
			SourceID:       sale.ID,
			JournalEntryID: entryFor(entries, d.Receivable.ID),
			Amount:         t.receivable,
			DueDate:        sale.DueDate,
		})
		if err != nil {
			return err
		}
		sc.touchObligation(Receivable, o.ID)
	}
	return nil
}

// reverseTx checks the reversal guards, then undoes the sale's postings, lot
// consumption, details and receivable. The sale header and journal header remain.
func (s *saleService) reverseTx(ctx context.Context, sc *Scope, d *DefaultAccounts, sale *Sale) error {
	tx := sc.Tx

	// 1. Guards
	seen := map[int]struct{}{}
	for _, detail := range sale.Details {
		if _, ok := seen[detail.ProductID]; ok {
			continue
		}
		seen[detail.ProductID] = struct{}{}
		batches, err := tx.ListBatchesByProduct(ctx, detail.ProductID)
		if err != nil {
			return fmt.Errorf("failed to list batches for product %d: %w", detail.ProductID, err)
		}
		for _, b := range batches {
			if DateOnly(b.PurchaseDate).After(DateOnly(sale.Date)) {
				return Conflictf("sale %s: product %d has a later purchase on %s; use a sale return instead",
					sale.Reference, detail.ProductID, b.PurchaseDate.Format(time.DateOnly))
			}
		}
	}
	if n, err := tx.CountSaleReturns(ctx, sale.ID); err != nil {
		return fmt.Errorf("failed to count returns of sale %d: %w", sale.ID, err)
	} else if n > 0 {
		return Conflictf("sale %s has %d returns recorded", sale.Reference, n)
	}
	receivable, err := tx.FindObligationBySource(ctx, Receivable, sale.ID)
	if err != nil {
		return fmt.Errorf("failed to load receivable of sale %d: %w", sale.ID, err)
	}
	// Reversal takes the cash portion back out of the cash account.
	if err := requireCash(ctx, tx, d, sale.CashAmount); err != nil {
		return err
	}

	// 2. Reverse
	if receivable != nil {
		if err := s.obligations.DeleteTx(ctx, tx, Receivable, receivable.ID); err != nil {
			return err
		}
	}
	if err := s.journals.ReverseTx(ctx, tx, sale.JournalID); err != nil {
		return err
	}
	for _, detail := range sale.Details {
		for _, a := range detail.Allocations {
			if err := s.inventory.ReleaseBatchTx(ctx, tx, a.BatchID, a.Quantity-a.ReturnedQuantity); err != nil {
				return err
			}
		}
		if err := tx.DeleteAllocationsByDetail(ctx, detail.ID); err != nil {
			return fmt.Errorf("failed to delete allocations of sale detail %d: %w", detail.ID, err)
		}
		if err := tx.DeleteSaleDetail(ctx, detail.ID); err != nil {
			return fmt.Errorf("failed to delete sale detail %d: %w", detail.ID, err)
		}
	}

	method, err := inventoryMethodTx(ctx, tx)
	if err != nil {
		return err
	}
	for pid := range seen {
		if _, err := s.inventory.RefreshProductTx(ctx, tx, pid, method); err != nil {
			return err
		}
		sc.touchProduct(pid)
	}
	return nil
}
