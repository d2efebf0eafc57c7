package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"accounting-engine/internal/core"
)

type appService struct {
	purchases core.PurchaseService
	sales     core.SaleService
	returns   core.ReturnService
	payments  core.PaymentService
	settings  core.SettingService
	reports   core.ReportingService
	recon     core.ReconciliationService
}

// NewAppService wires every core service onto one executor over store.
func NewAppService(store core.Store, locker core.Locker, logger *logrus.Logger, txTimeout time.Duration) ApplicationService {
	exec := core.NewExecutor(store, locker, logger, txTimeout)
	return &appService{
		purchases: core.NewPurchaseService(exec),
		sales:     core.NewSaleService(exec),
		returns:   core.NewReturnService(exec),
		payments:  core.NewPaymentService(exec),
		settings:  core.NewSettingService(exec),
		reports:   core.NewReportingService(exec),
		recon:     core.NewReconciliationService(exec),
	}
}

func (s *appService) CreatePurchase(ctx context.Context, in core.PurchaseInput) (*core.Purchase, error) {
	return s.purchases.Create(ctx, in)
}

func (s *appService) UpdatePurchase(ctx context.Context, id int, in core.PurchaseInput) (*core.Purchase, error) {
	return s.purchases.Update(ctx, id, in)
}

func (s *appService) DeletePurchase(ctx context.Context, id int) error {
	return s.purchases.Delete(ctx, id)
}

func (s *appService) GetPurchase(ctx context.Context, id int) (*core.Purchase, error) {
	return s.purchases.Get(ctx, id)
}

func (s *appService) CreateSale(ctx context.Context, in core.SaleInput) (*core.Sale, error) {
	return s.sales.Create(ctx, in)
}

func (s *appService) UpdateSale(ctx context.Context, id int, in core.SaleInput) (*core.Sale, error) {
	return s.sales.Update(ctx, id, in)
}

func (s *appService) DeleteSale(ctx context.Context, id int) error {
	return s.sales.Delete(ctx, id)
}

func (s *appService) GetSale(ctx context.Context, id int) (*core.Sale, error) {
	return s.sales.Get(ctx, id)
}

func (s *appService) CreatePurchaseReturn(ctx context.Context, in core.PurchaseReturnInput) (*core.PurchaseReturn, error) {
	return s.returns.CreatePurchaseReturn(ctx, in)
}

func (s *appService) DeletePurchaseReturn(ctx context.Context, id int) error {
	return s.returns.DeletePurchaseReturn(ctx, id)
}

func (s *appService) GetPurchaseReturn(ctx context.Context, id int) (*core.PurchaseReturn, error) {
	return s.returns.GetPurchaseReturn(ctx, id)
}

func (s *appService) CreateSaleReturn(ctx context.Context, in core.SaleReturnInput) (*core.SaleReturn, error) {
	return s.returns.CreateSaleReturn(ctx, in)
}

func (s *appService) DeleteSaleReturn(ctx context.Context, id int) error {
	return s.returns.DeleteSaleReturn(ctx, id)
}

func (s *appService) GetSaleReturn(ctx context.Context, id int) (*core.SaleReturn, error) {
	return s.returns.GetSaleReturn(ctx, id)
}

func (s *appService) RecordPayment(ctx context.Context, kind core.ObligationKind, obligationID int, in core.PaymentInput) (*core.Payment, error) {
	return s.payments.Create(ctx, kind, obligationID, in)
}

func (s *appService) UpdatePayment(ctx context.Context, kind core.ObligationKind, paymentID int, in core.PaymentInput) (*core.Payment, error) {
	return s.payments.Update(ctx, kind, paymentID, in)
}

func (s *appService) DeletePayment(ctx context.Context, kind core.ObligationKind, paymentID int) error {
	return s.payments.Delete(ctx, kind, paymentID)
}

func (s *appService) GetObligation(ctx context.Context, kind core.ObligationKind, id int) (*ObligationResult, error) {
	o, err := s.payments.GetObligation(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.List(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []core.Payment{}
	}
	return &ObligationResult{Obligation: *o, Payments: payments}, nil
}

func (s *appService) ListObligations(ctx context.Context, kind core.ObligationKind) ([]core.Obligation, error) {
	return s.payments.ListObligations(ctx, kind)
}

func (s *appService) GetSettings(ctx context.Context) (*core.GeneralSetting, error) {
	return s.settings.Get(ctx)
}

func (s *appService) UpdateInventoryMethod(ctx context.Context, method core.InventoryMethod) (*core.GeneralSetting, error) {
	return s.settings.UpdateInventoryMethod(ctx, method)
}

func (s *appService) UpdateProfitMargin(ctx context.Context, productID int, margin decimal.Decimal) (*core.Product, error) {
	return s.settings.UpdateProfitMargin(ctx, productID, margin)
}

func (s *appService) GetTrialBalance(ctx context.Context) (*TrialBalanceResult, error) {
	rows, err := s.recon.TrialBalance(ctx)
	if err != nil {
		return nil, err
	}
	result := &TrialBalanceResult{Accounts: rows, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, r := range rows {
		if r.NormalBalance == core.DebitNormal {
			result.TotalDebit = result.TotalDebit.Add(r.Balance)
		} else {
			result.TotalCredit = result.TotalCredit.Add(r.Balance)
		}
	}
	result.Balanced = result.TotalDebit.Equal(result.TotalCredit)
	return result, nil
}

func (s *appService) Reconcile(ctx context.Context) (*core.ReconciliationReport, error) {
	return s.recon.Verify(ctx)
}

func (s *appService) GetStockLevels(ctx context.Context) ([]core.StockLevel, error) {
	return s.reports.GetStockLevels(ctx)
}

func (s *appService) GetJournal(ctx context.Context, id int) (*core.Journal, error) {
	return s.reports.GetJournal(ctx, id)
}
