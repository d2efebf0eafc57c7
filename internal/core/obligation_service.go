package core

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// ObligationService maintains payables and receivables. Amount == PaidAmount +
// RemainingAmount holds for every row, and Status always equals StatusFor of its figures.
type ObligationService interface {
	// CreateTx inserts an unpaid obligation for the full amount.
	CreateTx(ctx context.Context, tx Tx, o Obligation) (*Obligation, error)
	// RecordPaymentTx overwrites the settlement figures after a payment is added or removed.
	RecordPaymentTx(ctx context.Context, tx Tx, kind ObligationKind, id int,
		paid, remaining decimal.Decimal, status ObligationStatus) error
	// ApplyReturnAdjustmentTx reduces amount by reduceAmount and sets the new remaining figure.
	ApplyReturnAdjustmentTx(ctx context.Context, tx Tx, kind ObligationKind, id int,
		reduceAmount, newRemaining decimal.Decimal, newStatus ObligationStatus) error
	// DeleteTx removes an obligation that has no payments and is not PAID.
	DeleteTx(ctx context.Context, tx Tx, kind ObligationKind, id int) error
	// TotalOutstandingTx sums RemainingAmount over every obligation of kind.
	TotalOutstandingTx(ctx context.Context, tx Tx, kind ObligationKind) (decimal.Decimal, error)
}

type obligationService struct{}

func NewObligationService() ObligationService {
	return obligationService{}
}

// StatusFor is PAID when nothing remains, UNPAID when nothing has been paid, else PARTIAL.
func StatusFor(amount, paid, remaining decimal.Decimal) ObligationStatus {
	switch {
	case remaining.IsZero():
		return StatusPaid
	case paid.IsZero():
		return StatusUnpaid
	default:
		return StatusPartial
	}
}

// CheckObligation reports the first broken invariant of o, or nil.
func CheckObligation(o Obligation) error {
	if o.Amount.IsNegative() || o.PaidAmount.IsNegative() || o.RemainingAmount.IsNegative() {
		return InvariantViolationf("%s %d has a negative figure: amount %s, paid %s, remaining %s",
			o.Kind, o.ID, o.Amount.StringFixed(2), o.PaidAmount.StringFixed(2), o.RemainingAmount.StringFixed(2))
	}
	if !o.Amount.Equal(o.PaidAmount.Add(o.RemainingAmount)) {
		return InvariantViolationf("%s %d: amount %s != paid %s + remaining %s",
			o.Kind, o.ID, o.Amount.StringFixed(2), o.PaidAmount.StringFixed(2), o.RemainingAmount.StringFixed(2))
	}
	if want := StatusFor(o.Amount, o.PaidAmount, o.RemainingAmount); o.Status != want {
		return InvariantViolationf("%s %d: status %s, expected %s", o.Kind, o.ID, o.Status, want)
	}
	return nil
}

// settle returns the figures after a payment of amount.
func settle(o Obligation, amount decimal.Decimal) (paid, remaining decimal.Decimal, status ObligationStatus) {
	paid = o.PaidAmount.Add(amount)
	remaining = o.RemainingAmount.Sub(amount)
	return paid, remaining, StatusFor(o.Amount, paid, remaining)
}

// unsettle returns the figures after a payment of amount is removed.
func unsettle(o Obligation, amount decimal.Decimal) (paid, remaining decimal.Decimal, status ObligationStatus) {
	paid = o.PaidAmount.Sub(amount)
	remaining = o.RemainingAmount.Add(amount)
	return paid, remaining, StatusFor(o.Amount, paid, remaining)
}

func (obligationService) CreateTx(ctx context.Context, tx Tx, o Obligation) (*Obligation, error) {
	if !o.Amount.IsPositive() {
		return nil, InvariantViolationf("%s amount must be positive, got %s", o.Kind, o.Amount.StringFixed(2))
	}
	o.Amount = o.Amount.Round(2)
	o.PaidAmount = decimal.Zero
	o.RemainingAmount = o.Amount
	o.Status = StatusUnpaid
	created, err := tx.CreateObligation(ctx, o)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", o.Kind, err)
	}
	return created, nil
}

func (obligationService) RecordPaymentTx(ctx context.Context, tx Tx, kind ObligationKind, id int,
	paid, remaining decimal.Decimal, status ObligationStatus) error {

	o, err := tx.GetObligation(ctx, kind, id)
	if err != nil {
		return err
	}
	o.PaidAmount = paid
	o.RemainingAmount = remaining
	o.Status = status
	if err := CheckObligation(*o); err != nil {
		return err
	}
	if err := tx.UpdateObligation(ctx, *o); err != nil {
		return fmt.Errorf("failed to update %s %d: %w", kind, id, err)
	}
	return nil
}

func (obligationService) ApplyReturnAdjustmentTx(ctx context.Context, tx Tx, kind ObligationKind, id int,
	reduceAmount, newRemaining decimal.Decimal, newStatus ObligationStatus) error {

	o, err := tx.GetObligation(ctx, kind, id)
	if err != nil {
		return err
	}
	o.Amount = o.Amount.Sub(reduceAmount)
	o.RemainingAmount = newRemaining
	o.Status = newStatus
	if err := CheckObligation(*o); err != nil {
		return err
	}
	if err := tx.UpdateObligation(ctx, *o); err != nil {
		return fmt.Errorf("failed to update %s %d: %w", kind, id, err)
	}
	return nil
}

func (obligationService) DeleteTx(ctx context.Context, tx Tx, kind ObligationKind, id int) error {
	o, err := tx.GetObligation(ctx, kind, id)
	if err != nil {
		return err
	}
	payments, err := tx.ListPaymentsByObligation(ctx, kind, id)
	if err != nil {
		return fmt.Errorf("failed to list payments of %s %d: %w", kind, id, err)
	}
	if len(payments) > 0 || o.Status == StatusPaid {
		return Conflictf("%s %d has payments recorded", kind, id)
	}
	if err := tx.DeleteObligation(ctx, kind, id); err != nil {
		return fmt.Errorf("failed to delete %s %d: %w", kind, id, err)
	}
	return nil
}

func (obligationService) TotalOutstandingTx(ctx context.Context, tx Tx, kind ObligationKind) (decimal.Decimal, error) {
	list, err := tx.ListObligations(ctx, kind)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to list %s obligations: %w", kind, err)
	}
	total := decimal.Zero
	for _, o := range list {
		total = total.Add(o.RemainingAmount)
	}
	return total, nil
}
