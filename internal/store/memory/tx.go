package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"accounting-engine/internal/core"
)

type tx struct {
	st *state
}

var _ core.Tx = (*tx)(nil)

// ── Accounts ──────────────────────────────────────────────────────────────────

func (t *tx) GetAccount(_ context.Context, id int) (*core.Account, error) {
	a, ok := t.st.accounts[id]
	if !ok {
		return nil, core.NotFoundf("account %d not found", id)
	}
	return &a, nil
}

func (t *tx) GetAccountByCode(_ context.Context, code string) (*core.Account, error) {
	for _, a := range t.st.accounts {
		if a.Code == code {
			return &a, nil
		}
	}
	return nil, core.NotFoundf("account code %s not found", code)
}

func (t *tx) ListAccounts(context.Context) ([]core.Account, error) {
	out := sortedByID(t.st.accounts, nil)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (t *tx) AdjustBalance(_ context.Context, code string, newBalance decimal.Decimal) error {
	for id, a := range t.st.accounts {
		if a.Code == code {
			a.Balance = newBalance
			t.st.accounts[id] = a
			return nil
		}
	}
	return core.NotFoundf("account code %s not found", code)
}

func (t *tx) GetDefaultAccountMapping(context.Context) (*core.DefaultAccountMapping, error) {
	if t.st.mapping == nil {
		return nil, core.NotFoundf("default account mapping not found")
	}
	m := *t.st.mapping
	return &m, nil
}

// ── Journals ──────────────────────────────────────────────────────────────────

func (t *tx) CreateJournal(_ context.Context, j core.Journal) (*core.Journal, error) {
	j.ID = t.st.nextID("journals")
	j.Entries = nil
	t.st.journals[j.ID] = j
	return &j, nil
}

func (t *tx) GetJournal(_ context.Context, id int) (*core.Journal, error) {
	j, ok := t.st.journals[id]
	if !ok {
		return nil, core.NotFoundf("journal %d not found", id)
	}
	return &j, nil
}

func (t *tx) UpdateJournal(_ context.Context, j core.Journal) error {
	if _, ok := t.st.journals[j.ID]; !ok {
		return core.NotFoundf("journal %d not found", j.ID)
	}
	j.Entries = nil
	t.st.journals[j.ID] = j
	return nil
}

func (t *tx) DeleteJournal(_ context.Context, id int) error {
	if _, ok := t.st.journals[id]; !ok {
		return core.NotFoundf("journal %d not found", id)
	}
	for _, e := range t.st.entries {
		if e.JournalID == id {
			return core.Conflictf("journal %d still has entries", id)
		}
	}
	delete(t.st.journals, id)
	return nil
}

func (t *tx) ListJournals(context.Context) ([]core.Journal, error) {
	return sortedByID(t.st.journals, nil), nil
}

func (t *tx) CreateEntries(_ context.Context, journalID int, lines []core.JournalLine) ([]core.JournalEntry, error) {
	if _, ok := t.st.journals[journalID]; !ok {
		return nil, core.NotFoundf("journal %d not found", journalID)
	}
	out := make([]core.JournalEntry, 0, len(lines))
	for _, l := range lines {
		if _, ok := t.st.accounts[l.AccountID]; !ok {
			return nil, core.NotFoundf("account %d not found", l.AccountID)
		}
		e := core.JournalEntry{
			ID:        t.st.nextID("journal_entries"),
			JournalID: journalID,
			AccountID: l.AccountID,
			Debit:     l.Debit,
			Credit:    l.Credit,
		}
		t.st.entries[e.ID] = e
		out = append(out, e)
	}
	return out, nil
}

func (t *tx) ListEntries(_ context.Context, journalID int) ([]core.JournalEntry, error) {
	return sortedByID(t.st.entries, func(e core.JournalEntry) bool { return e.JournalID == journalID }), nil
}

func (t *tx) GetEntry(_ context.Context, id int) (*core.JournalEntry, error) {
	e, ok := t.st.entries[id]
	if !ok {
		return nil, core.NotFoundf("journal entry %d not found", id)
	}
	return &e, nil
}

func (t *tx) UpdateEntryAmounts(_ context.Context, entryID int, debit, credit decimal.Decimal) error {
	e, ok := t.st.entries[entryID]
	if !ok {
		return core.NotFoundf("journal entry %d not found", entryID)
	}
	e.Debit, e.Credit = debit, credit
	t.st.entries[entryID] = e
	return nil
}

func (t *tx) DeleteEntriesByJournal(_ context.Context, journalID int) error {
	for id, e := range t.st.entries {
		if e.JournalID == journalID {
			delete(t.st.entries, id)
		}
	}
	return nil
}

// ── Products and lots ─────────────────────────────────────────────────────────

func (t *tx) GetProduct(_ context.Context, id int) (*core.Product, error) {
	p, ok := t.st.products[id]
	if !ok {
		return nil, core.NotFoundf("product %d not found", id)
	}
	return &p, nil
}

func (t *tx) ListProducts(context.Context) ([]core.Product, error) {
	return sortedByID(t.st.products, nil), nil
}

func (t *tx) UpdateProduct(_ context.Context, p core.Product) error {
	if _, ok := t.st.products[p.ID]; !ok {
		return core.NotFoundf("product %d not found", p.ID)
	}
	t.st.products[p.ID] = p
	return nil
}

func (t *tx) CreateBatch(_ context.Context, b core.InventoryBatch) (*core.InventoryBatch, error) {
	if _, ok := t.st.products[b.ProductID]; !ok {
		return nil, core.NotFoundf("product %d not found", b.ProductID)
	}
	b.ID = t.st.nextID("inventory_batches")
	t.st.batches[b.ID] = b
	return &b, nil
}

func (t *tx) GetBatch(_ context.Context, id int) (*core.InventoryBatch, error) {
	b, ok := t.st.batches[id]
	if !ok {
		return nil, core.NotFoundf("inventory batch %d not found", id)
	}
	return &b, nil
}

func (t *tx) ListBatchesByProduct(_ context.Context, productID int) ([]core.InventoryBatch, error) {
	out := sortedByID(t.st.batches, func(b core.InventoryBatch) bool { return b.ProductID == productID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].PurchaseDate.Before(out[j].PurchaseDate) })
	return out, nil
}

func (t *tx) UpdateBatch(_ context.Context, b core.InventoryBatch) error {
	if _, ok := t.st.batches[b.ID]; !ok {
		return core.NotFoundf("inventory batch %d not found", b.ID)
	}
	t.st.batches[b.ID] = b
	return nil
}

func (t *tx) DeleteBatch(_ context.Context, id int) error {
	if _, ok := t.st.batches[id]; !ok {
		return core.NotFoundf("inventory batch %d not found", id)
	}
	delete(t.st.batches, id)
	return nil
}

// ── Counterparties and settings ───────────────────────────────────────────────

func (t *tx) GetSupplier(_ context.Context, id int) (*core.Supplier, error) {
	s, ok := t.st.suppliers[id]
	if !ok {
		return nil, core.NotFoundf("supplier %d not found", id)
	}
	return &s, nil
}

func (t *tx) GetCustomer(_ context.Context, id int) (*core.Customer, error) {
	c, ok := t.st.customers[id]
	if !ok {
		return nil, core.NotFoundf("customer %d not found", id)
	}
	return &c, nil
}

func (t *tx) FindVATRate(_ context.Context, date time.Time) (*core.VATRate, error) {
	var best *core.VATRate
	day := core.DateOnly(date)
	for _, v := range sortedByID(t.st.vatRates, nil) {
		if v.EffectiveDate.After(day) {
			continue
		}
		if best == nil || !v.EffectiveDate.Before(best.EffectiveDate) {
			best = &v
		}
	}
	if best == nil {
		return nil, core.NotFoundf("no VAT rate effective on %s", day.Format(time.DateOnly))
	}
	return best, nil
}

func (t *tx) GetGeneralSetting(context.Context) (*core.GeneralSetting, error) {
	if t.st.setting == nil {
		return nil, core.NotFoundf("general setting not found")
	}
	g := *t.st.setting
	return &g, nil
}

func (t *tx) UpdateGeneralSetting(_ context.Context, s core.GeneralSetting) error {
	if t.st.setting == nil {
		return core.NotFoundf("general setting not found")
	}
	t.st.setting = &s
	return nil
}

func (t *tx) NextSequence(_ context.Context, prefix string) (int, error) {
	t.st.sequences[prefix]++
	return t.st.sequences[prefix], nil
}

// ── Purchases ─────────────────────────────────────────────────────────────────

func (t *tx) CreatePurchase(_ context.Context, p core.Purchase) (*core.Purchase, error) {
	p.ID = t.st.nextID("purchases")
	p.Details = nil
	t.st.purchases[p.ID] = p
	return &p, nil
}

func (t *tx) GetPurchase(_ context.Context, id int) (*core.Purchase, error) {
	p, ok := t.st.purchases[id]
	if !ok {
		return nil, core.NotFoundf("purchase %d not found", id)
	}
	return &p, nil
}

func (t *tx) UpdatePurchase(_ context.Context, p core.Purchase) error {
	if _, ok := t.st.purchases[p.ID]; !ok {
		return core.NotFoundf("purchase %d not found", p.ID)
	}
	p.Details = nil
	t.st.purchases[p.ID] = p
	return nil
}

func (t *tx) DeletePurchase(_ context.Context, id int) error {
	if _, ok := t.st.purchases[id]; !ok {
		return core.NotFoundf("purchase %d not found", id)
	}
	delete(t.st.purchases, id)
	return nil
}

func (t *tx) CreatePurchaseDetail(_ context.Context, d core.PurchaseDetail) (*core.PurchaseDetail, error) {
	d.ID = t.st.nextID("purchase_details")
	t.st.purchaseDetails[d.ID] = d
	return &d, nil
}

func (t *tx) GetPurchaseDetail(_ context.Context, id int) (*core.PurchaseDetail, error) {
	d, ok := t.st.purchaseDetails[id]
	if !ok {
		return nil, core.NotFoundf("purchase detail %d not found", id)
	}
	return &d, nil
}

func (t *tx) ListPurchaseDetails(_ context.Context, purchaseID int) ([]core.PurchaseDetail, error) {
	return sortedByID(t.st.purchaseDetails, func(d core.PurchaseDetail) bool { return d.PurchaseID == purchaseID }), nil
}

func (t *tx) UpdatePurchaseDetail(_ context.Context, d core.PurchaseDetail) error {
	if _, ok := t.st.purchaseDetails[d.ID]; !ok {
		return core.NotFoundf("purchase detail %d not found", d.ID)
	}
	t.st.purchaseDetails[d.ID] = d
	return nil
}

func (t *tx) DeletePurchaseDetail(_ context.Context, id int) error {
	if _, ok := t.st.purchaseDetails[id]; !ok {
		return core.NotFoundf("purchase detail %d not found", id)
	}
	delete(t.st.purchaseDetails, id)
	return nil
}

// ── Sales ─────────────────────────────────────────────────────────────────────

func (t *tx) CreateSale(_ context.Context, s core.Sale) (*core.Sale, error) {
	s.ID = t.st.nextID("sales")
	s.Details = nil
	t.st.sales[s.ID] = s
	return &s, nil
}

func (t *tx) GetSale(_ context.Context, id int) (*core.Sale, error) {
	s, ok := t.st.sales[id]
	if !ok {
		return nil, core.NotFoundf("sale %d not found", id)
	}
	return &s, nil
}

func (t *tx) UpdateSale(_ context.Context, s core.Sale) error {
	if _, ok := t.st.sales[s.ID]; !ok {
		return core.NotFoundf("sale %d not found", s.ID)
	}
	s.Details = nil
	t.st.sales[s.ID] = s
	return nil
}

func (t *tx) DeleteSale(_ context.Context, id int) error {
	if _, ok := t.st.sales[id]; !ok {
		return core.NotFoundf("sale %d not found", id)
	}
	delete(t.st.sales, id)
	return nil
}

func (t *tx) CreateSaleDetail(_ context.Context, d core.SaleDetail) (*core.SaleDetail, error) {
	d.ID = t.st.nextID("sale_details")
	d.Allocations = nil
	t.st.saleDetails[d.ID] = d
	return &d, nil
}

func (t *tx) GetSaleDetail(_ context.Context, id int) (*core.SaleDetail, error) {
	d, ok := t.st.saleDetails[id]
	if !ok {
		return nil, core.NotFoundf("sale detail %d not found", id)
	}
	return &d, nil
}

func (t *tx) ListSaleDetails(_ context.Context, saleID int) ([]core.SaleDetail, error) {
	return sortedByID(t.st.saleDetails, func(d core.SaleDetail) bool { return d.SaleID == saleID }), nil
}

func (t *tx) DeleteSaleDetail(_ context.Context, id int) error {
	if _, ok := t.st.saleDetails[id]; !ok {
		return core.NotFoundf("sale detail %d not found", id)
	}
	delete(t.st.saleDetails, id)
	return nil
}

func (t *tx) CreateAllocation(_ context.Context, a core.SaleAllocation) (*core.SaleAllocation, error) {
	a.ID = t.st.nextID("sale_allocations")
	t.st.allocations[a.ID] = a
	return &a, nil
}

func (t *tx) ListAllocationsByDetail(_ context.Context, saleDetailID int) ([]core.SaleAllocation, error) {
	return sortedByID(t.st.allocations, func(a core.SaleAllocation) bool { return a.SaleDetailID == saleDetailID }), nil
}

func (t *tx) ListAllocationsByBatch(_ context.Context, batchID int) ([]core.SaleAllocation, error) {
	return sortedByID(t.st.allocations, func(a core.SaleAllocation) bool { return a.BatchID == batchID }), nil
}

func (t *tx) UpdateAllocation(_ context.Context, a core.SaleAllocation) error {
	if _, ok := t.st.allocations[a.ID]; !ok {
		return core.NotFoundf("sale allocation %d not found", a.ID)
	}
	t.st.allocations[a.ID] = a
	return nil
}

func (t *tx) DeleteAllocationsByDetail(_ context.Context, saleDetailID int) error {
	for id, a := range t.st.allocations {
		if a.SaleDetailID == saleDetailID {
			delete(t.st.allocations, id)
		}
	}
	return nil
}

// ── Returns ───────────────────────────────────────────────────────────────────

func (t *tx) CreatePurchaseReturn(_ context.Context, r core.PurchaseReturn) (*core.PurchaseReturn, error) {
	r.ID = t.st.nextID("purchase_returns")
	r.Details = nil
	t.st.purchaseReturns[r.ID] = r
	return &r, nil
}

func (t *tx) GetPurchaseReturn(_ context.Context, id int) (*core.PurchaseReturn, error) {
	r, ok := t.st.purchaseReturns[id]
	if !ok {
		return nil, core.NotFoundf("purchase return %d not found", id)
	}
	return &r, nil
}

func (t *tx) DeletePurchaseReturn(_ context.Context, id int) error {
	if _, ok := t.st.purchaseReturns[id]; !ok {
		return core.NotFoundf("purchase return %d not found", id)
	}
	delete(t.st.purchaseReturns, id)
	return nil
}

func (t *tx) CountPurchaseReturns(_ context.Context, purchaseID int) (int, error) {
	n := 0
	for _, r := range t.st.purchaseReturns {
		if r.PurchaseID == purchaseID {
			n++
		}
	}
	return n, nil
}

func (t *tx) SumPurchaseReturnVAT(_ context.Context, purchaseID int) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, r := range t.st.purchaseReturns {
		if r.PurchaseID == purchaseID {
			sum = sum.Add(r.VAT)
		}
	}
	return sum, nil
}

func (t *tx) CreatePurchaseReturnDetail(_ context.Context, d core.PurchaseReturnDetail) (*core.PurchaseReturnDetail, error) {
	d.ID = t.st.nextID("purchase_return_details")
	t.st.purchaseReturnDetails[d.ID] = d
	return &d, nil
}

func (t *tx) ListPurchaseReturnDetails(_ context.Context, returnID int) ([]core.PurchaseReturnDetail, error) {
	return sortedByID(t.st.purchaseReturnDetails, func(d core.PurchaseReturnDetail) bool { return d.ReturnID == returnID }), nil
}

func (t *tx) DeletePurchaseReturnDetails(_ context.Context, returnID int) error {
	for id, d := range t.st.purchaseReturnDetails {
		if d.ReturnID == returnID {
			delete(t.st.purchaseReturnDetails, id)
		}
	}
	return nil
}

func (t *tx) CreateSaleReturn(_ context.Context, r core.SaleReturn) (*core.SaleReturn, error) {
	r.ID = t.st.nextID("sale_returns")
	r.Details = nil
	t.st.saleReturns[r.ID] = r
	return &r, nil
}

func (t *tx) GetSaleReturn(_ context.Context, id int) (*core.SaleReturn, error) {
	r, ok := t.st.saleReturns[id]
	if !ok {
		return nil, core.NotFoundf("sale return %d not found", id)
	}
	return &r, nil
}

func (t *tx) DeleteSaleReturn(_ context.Context, id int) error {
	if _, ok := t.st.saleReturns[id]; !ok {
		return core.NotFoundf("sale return %d not found", id)
	}
	delete(t.st.saleReturns, id)
	return nil
}

func (t *tx) CountSaleReturns(_ context.Context, saleID int) (int, error) {
	n := 0
	for _, r := range t.st.saleReturns {
		if r.SaleID == saleID {
			n++
		}
	}
	return n, nil
}

func (t *tx) SumSaleReturnVAT(_ context.Context, saleID int) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, r := range t.st.saleReturns {
		if r.SaleID == saleID {
			sum = sum.Add(r.VAT)
		}
	}
	return sum, nil
}

func (t *tx) CreateSaleReturnDetail(_ context.Context, d core.SaleReturnDetail) (*core.SaleReturnDetail, error) {
	d.ID = t.st.nextID("sale_return_details")
	t.st.saleReturnDetails[d.ID] = d
	return &d, nil
}

func (t *tx) ListSaleReturnDetails(_ context.Context, returnID int) ([]core.SaleReturnDetail, error) {
	return sortedByID(t.st.saleReturnDetails, func(d core.SaleReturnDetail) bool { return d.ReturnID == returnID }), nil
}

func (t *tx) DeleteSaleReturnDetails(_ context.Context, returnID int) error {
	for id, d := range t.st.saleReturnDetails {
		if d.ReturnID == returnID {
			delete(t.st.saleReturnDetails, id)
		}
	}
	return nil
}

// ── Obligations and payments ──────────────────────────────────────────────────

func (t *tx) CreateObligation(_ context.Context, o core.Obligation) (*core.Obligation, error) {
	table, ok := t.st.obligations[o.Kind]
	if !ok {
		return nil, core.Validationf("unknown obligation kind %q", o.Kind)
	}
	o.ID = t.st.nextID(string(o.Kind))
	table[o.ID] = o
	return &o, nil
}

func (t *tx) GetObligation(_ context.Context, kind core.ObligationKind, id int) (*core.Obligation, error) {
	o, ok := t.st.obligations[kind][id]
	if !ok {
		return nil, core.NotFoundf("%s %d not found", kind, id)
	}
	return &o, nil
}

func (t *tx) FindObligationBySource(_ context.Context, kind core.ObligationKind, sourceID int) (*core.Obligation, error) {
	for _, o := range sortedByID(t.st.obligations[kind], nil) {
		if o.SourceID == sourceID {
			return &o, nil
		}
	}
	return nil, nil
}

func (t *tx) UpdateObligation(_ context.Context, o core.Obligation) error {
	if _, ok := t.st.obligations[o.Kind][o.ID]; !ok {
		return core.NotFoundf("%s %d not found", o.Kind, o.ID)
	}
	t.st.obligations[o.Kind][o.ID] = o
	return nil
}

func (t *tx) DeleteObligation(_ context.Context, kind core.ObligationKind, id int) error {
	if _, ok := t.st.obligations[kind][id]; !ok {
		return core.NotFoundf("%s %d not found", kind, id)
	}
	delete(t.st.obligations[kind], id)
	return nil
}

func (t *tx) ListObligations(_ context.Context, kind core.ObligationKind) ([]core.Obligation, error) {
	return sortedByID(t.st.obligations[kind], nil), nil
}

func (t *tx) CreatePayment(_ context.Context, p core.Payment) (*core.Payment, error) {
	table, ok := t.st.payments[p.Kind]
	if !ok {
		return nil, core.Validationf("unknown obligation kind %q", p.Kind)
	}
	p.ID = t.st.nextID(string(p.Kind) + "_payments")
	table[p.ID] = p
	return &p, nil
}

func (t *tx) GetPayment(_ context.Context, kind core.ObligationKind, id int) (*core.Payment, error) {
	p, ok := t.st.payments[kind][id]
	if !ok {
		return nil, core.NotFoundf("%s payment %d not found", kind, id)
	}
	return &p, nil
}

func (t *tx) DeletePayment(_ context.Context, kind core.ObligationKind, id int) error {
	if _, ok := t.st.payments[kind][id]; !ok {
		return core.NotFoundf("%s payment %d not found", kind, id)
	}
	delete(t.st.payments[kind], id)
	return nil
}

func (t *tx) ListPaymentsByObligation(_ context.Context, kind core.ObligationKind, obligationID int) ([]core.Payment, error) {
	return sortedByID(t.st.payments[kind], func(p core.Payment) bool { return p.ObligationID == obligationID }), nil
}
