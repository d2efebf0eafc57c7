// Package memory is a transactional in-memory core.Store for tests and demo mode.
// Scopes are serialized by a mutex; an aborted scope restores a snapshot taken at its start.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"accounting-engine/internal/core"
)

type state struct {
	seq       map[string]int
	sequences map[string]int

	accounts map[int]core.Account
	mapping  *core.DefaultAccountMapping
	journals map[int]core.Journal
	entries  map[int]core.JournalEntry

	products  map[int]core.Product
	batches   map[int]core.InventoryBatch
	suppliers map[int]core.Supplier
	customers map[int]core.Customer
	vatRates  map[int]core.VATRate
	setting   *core.GeneralSetting

	purchases             map[int]core.Purchase
	purchaseDetails       map[int]core.PurchaseDetail
	sales                 map[int]core.Sale
	saleDetails           map[int]core.SaleDetail
	allocations           map[int]core.SaleAllocation
	purchaseReturns       map[int]core.PurchaseReturn
	purchaseReturnDetails map[int]core.PurchaseReturnDetail
	saleReturns           map[int]core.SaleReturn
	saleReturnDetails     map[int]core.SaleReturnDetail

	obligations map[core.ObligationKind]map[int]core.Obligation
	payments    map[core.ObligationKind]map[int]core.Payment
}

func newState() *state {
	return &state{
		seq:                   map[string]int{},
		sequences:             map[string]int{},
		accounts:              map[int]core.Account{},
		journals:              map[int]core.Journal{},
		entries:               map[int]core.JournalEntry{},
		products:              map[int]core.Product{},
		batches:               map[int]core.InventoryBatch{},
		suppliers:             map[int]core.Supplier{},
		customers:             map[int]core.Customer{},
		vatRates:              map[int]core.VATRate{},
		purchases:             map[int]core.Purchase{},
		purchaseDetails:       map[int]core.PurchaseDetail{},
		sales:                 map[int]core.Sale{},
		saleDetails:           map[int]core.SaleDetail{},
		allocations:           map[int]core.SaleAllocation{},
		purchaseReturns:       map[int]core.PurchaseReturn{},
		purchaseReturnDetails: map[int]core.PurchaseReturnDetail{},
		saleReturns:           map[int]core.SaleReturn{},
		saleReturnDetails:     map[int]core.SaleReturnDetail{},
		obligations: map[core.ObligationKind]map[int]core.Obligation{
			core.Payable: {}, core.Receivable: {},
		},
		payments: map[core.ObligationKind]map[int]core.Payment{
			core.Payable: {}, core.Receivable: {},
		},
	}
}

// clone copies every table. Rows are values, so a shallow map copy is a full snapshot.
func (s *state) clone() *state {
	c := &state{
		seq:                   maps.Clone(s.seq),
		sequences:             maps.Clone(s.sequences),
		accounts:              maps.Clone(s.accounts),
		journals:              maps.Clone(s.journals),
		entries:               maps.Clone(s.entries),
		products:              maps.Clone(s.products),
		batches:               maps.Clone(s.batches),
		suppliers:             maps.Clone(s.suppliers),
		customers:             maps.Clone(s.customers),
		vatRates:              maps.Clone(s.vatRates),
		purchases:             maps.Clone(s.purchases),
		purchaseDetails:       maps.Clone(s.purchaseDetails),
		sales:                 maps.Clone(s.sales),
		saleDetails:           maps.Clone(s.saleDetails),
		allocations:           maps.Clone(s.allocations),
		purchaseReturns:       maps.Clone(s.purchaseReturns),
		purchaseReturnDetails: maps.Clone(s.purchaseReturnDetails),
		saleReturns:           maps.Clone(s.saleReturns),
		saleReturnDetails:     maps.Clone(s.saleReturnDetails),
		obligations:           map[core.ObligationKind]map[int]core.Obligation{},
		payments:              map[core.ObligationKind]map[int]core.Payment{},
	}
	if s.mapping != nil {
		m := *s.mapping
		c.mapping = &m
	}
	if s.setting != nil {
		g := *s.setting
		c.setting = &g
	}
	for k, v := range s.obligations {
		c.obligations[k] = maps.Clone(v)
	}
	for k, v := range s.payments {
		c.payments[k] = maps.Clone(v)
	}
	return c
}

func (s *state) nextID(table string) int {
	s.seq[table]++
	return s.seq[table]
}

// Store is safe for concurrent use; transaction scopes run one at a time.
type Store struct {
	mu sync.Mutex
	st *state
}

var _ core.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: newState()}
}

// InTx runs fn against the live state and restores the pre-scope snapshot if fn fails,
// panics, or the context expires before the scope completes.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx core.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.st.clone()
	defer func() {
		if r := recover(); r != nil {
			s.st = snapshot
			panic(r)
		}
	}()

	if err := fn(ctx, &tx{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		s.st = snapshot
		return fmt.Errorf("transaction scope expired: %w", err)
	}
	return nil
}

// ── Setup helpers ─────────────────────────────────────────────────────────────
// These write directly and are meant for seeding before any scope runs.

// AddAccount creates an account whose type and normal balance follow from its code.
func (s *Store) AddAccount(code, name string, opening decimal.Decimal) core.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := core.AccountTypeFromCode(code)
	if !ok {
		panic(fmt.Sprintf("memory: account code %q has no type digit", code))
	}
	a := core.Account{
		ID:             s.st.nextID("accounts"),
		Code:           code,
		Name:           name,
		Type:           t,
		NormalBalance:  core.NormalBalanceFor(t),
		OpeningBalance: opening,
		Balance:        opening,
	}
	s.st.accounts[a.ID] = a
	return a
}

func (s *Store) SetDefaultAccounts(m core.DefaultAccountMapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.mapping = &m
}

func (s *Store) AddProduct(code, name string, margin decimal.Decimal) core.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := core.Product{
		ID:               s.st.nextID("products"),
		Code:             code,
		Name:             name,
		AvgPurchasePrice: decimal.Zero,
		ProfitMargin:     margin,
		SellingPrice:     margin,
	}
	s.st.products[p.ID] = p
	return p
}

func (s *Store) AddSupplier(code, name string) core.Supplier {
	s.mu.Lock()
	defer s.mu.Unlock()
	sup := core.Supplier{ID: s.st.nextID("suppliers"), Code: code, Name: name}
	s.st.suppliers[sup.ID] = sup
	return sup
}

func (s *Store) AddCustomer(code, name string) core.Customer {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := core.Customer{ID: s.st.nextID("customers"), Code: code, Name: name}
	s.st.customers[c.ID] = c
	return c
}

func (s *Store) AddVATRate(rate decimal.Decimal, effective time.Time) core.VATRate {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := core.VATRate{ID: s.st.nextID("vat_rates"), Rate: rate, EffectiveDate: core.DateOnly(effective)}
	s.st.vatRates[v.ID] = v
	return v
}

func (s *Store) SetInventoryMethod(method core.InventoryMethod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.setting = &core.GeneralSetting{ID: 1, InventoryMethod: method}
}

// Seed holds the IDs of the rows created by NewSeeded.
type Seed struct {
	Accounts  core.DefaultAccountMapping
	Supplier  core.Supplier
	Customer  core.Customer
	Widget    core.Product
	Gadget    core.Product
	VATRateID int
}

// Seeded chart of accounts.
const (
	CodeCash         = "1101"
	CodeReceivable   = "1201"
	CodeInventory    = "1301"
	CodeVATInput     = "1401"
	CodePayable      = "2101"
	CodeVATOutput    = "2201"
	CodeOwnerCapital = "3101"
	CodeSales        = "4101"
	CodeCOGS         = "5101"
)

// NewSeeded returns a store with a minimal chart of accounts, 10% VAT effective from
// 2020-01-01, FIFO costing, one supplier, one customer and two products.
// Cash and owner capital open at the given amount.
func NewSeeded(openingCash decimal.Decimal) (*Store, Seed) {
	s := New()
	cash := s.AddAccount(CodeCash, "Cash", openingCash)
	recv := s.AddAccount(CodeReceivable, "Accounts Receivable", decimal.Zero)
	inv := s.AddAccount(CodeInventory, "Inventory", decimal.Zero)
	vin := s.AddAccount(CodeVATInput, "VAT Input", decimal.Zero)
	pay := s.AddAccount(CodePayable, "Accounts Payable", decimal.Zero)
	vout := s.AddAccount(CodeVATOutput, "VAT Output", decimal.Zero)
	capital := s.AddAccount(CodeOwnerCapital, "Owner Capital", openingCash)
	sales := s.AddAccount(CodeSales, "Sales", decimal.Zero)
	cogs := s.AddAccount(CodeCOGS, "Cost of Goods Sold", decimal.Zero)

	m := core.DefaultAccountMapping{
		CashAccountID:         cash.ID,
		InventoryAccountID:    inv.ID,
		VATInputAccountID:     vin.ID,
		VATOutputAccountID:    vout.ID,
		PayableAccountID:      pay.ID,
		ReceivableAccountID:   recv.ID,
		SalesAccountID:        sales.ID,
		COGSAccountID:         cogs.ID,
		OwnerCapitalAccountID: capital.ID,
	}
	s.SetDefaultAccounts(m)
	s.SetInventoryMethod(core.FIFO)
	vat := s.AddVATRate(decimal.NewFromInt(10), time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))

	return s, Seed{
		Accounts:  m,
		Supplier:  s.AddSupplier("SUP-001", "Main Supplier"),
		Customer:  s.AddCustomer("CUS-001", "Walk-in Customer"),
		Widget:    s.AddProduct("PRD-001", "Widget", decimal.NewFromInt(500)),
		Gadget:    s.AddProduct("PRD-002", "Gadget", decimal.NewFromInt(200)),
		VATRateID: vat.ID,
	}
}

// sortedByID returns the values of m whose rows satisfy keep, in ascending key order.
func sortedByID[T any](m map[int]T, keep func(T) bool) []T {
	out := make([]T, 0, len(m))
	for _, id := range slices.Sorted(maps.Keys(m)) {
		if keep == nil || keep(m[id]) {
			out = append(out, m[id])
		}
	}
	return out
}
