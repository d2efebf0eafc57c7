package core

import (
	"context"
	"fmt"
	"time"
)

// PaymentService settles payables and receivables.
//
// A payable payment posts Dr payable / Cr cash and so decreases cash; a receivable
// payment posts Dr cash / Cr receivable and increases it. Both CASH and TRANSFER
// methods settle through the cash role account; only CASH payables require the cash
// balance to cover the payment.
type PaymentService interface {
	Create(ctx context.Context, kind ObligationKind, obligationID int, in PaymentInput) (*Payment, error)
	// Update removes the payment and records in against the same obligation, in one scope.
	Update(ctx context.Context, kind ObligationKind, paymentID int, in PaymentInput) (*Payment, error)
	Delete(ctx context.Context, kind ObligationKind, paymentID int) error
	List(ctx context.Context, kind ObligationKind, obligationID int) ([]Payment, error)
	GetObligation(ctx context.Context, kind ObligationKind, id int) (*Obligation, error)
	ListObligations(ctx context.Context, kind ObligationKind) ([]Obligation, error)
}

type paymentService struct {
	exec        *Executor
	journals    JournalService
	obligations ObligationService
	docs        DocumentService
}

func NewPaymentService(exec *Executor) PaymentService {
	return &paymentService{
		exec:        exec,
		journals:    NewJournalService(),
		obligations: NewObligationService(),
		docs:        NewDocumentService(),
	}
}

func checkKind(kind ObligationKind) error {
	if kind != Payable && kind != Receivable {
		return Validationf("unknown obligation kind %q", kind)
	}
	return nil
}

func (s *paymentService) Create(ctx context.Context, kind ObligationKind, obligationID int, in PaymentInput) (*Payment, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	if err := s.exec.Validate(in); err != nil {
		return nil, err
	}
	var out *Payment
	err := s.exec.Run(ctx, "payment.create", func(ctx context.Context, sc *Scope) error {
		p, err := s.createTx(ctx, sc, kind, obligationID, in)
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *paymentService) Update(ctx context.Context, kind ObligationKind, paymentID int, in PaymentInput) (*Payment, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	if err := s.exec.Validate(in); err != nil {
		return nil, err
	}
	var out *Payment
	err := s.exec.Run(ctx, "payment.update", func(ctx context.Context, sc *Scope) error {
		old, err := s.deleteTx(ctx, sc, kind, paymentID)
		if err != nil {
			return err
		}
		p, err := s.createTx(ctx, sc, kind, old.ObligationID, in)
		out = p
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *paymentService) Delete(ctx context.Context, kind ObligationKind, paymentID int) error {
	if err := checkKind(kind); err != nil {
		return err
	}
	return s.exec.Run(ctx, "payment.delete", func(ctx context.Context, sc *Scope) error {
		_, err := s.deleteTx(ctx, sc, kind, paymentID)
		return err
	})
}

func (s *paymentService) List(ctx context.Context, kind ObligationKind, obligationID int) ([]Payment, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	var out []Payment
	err := s.exec.Read(ctx, func(ctx context.Context, tx Tx) error {
		if _, err := tx.GetObligation(ctx, kind, obligationID); err != nil {
			return err
		}
		list, err := tx.ListPaymentsByObligation(ctx, kind, obligationID)
		out = list
		return err
	})
	return out, err
}

func (s *paymentService) GetObligation(ctx context.Context, kind ObligationKind, id int) (*Obligation, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	var out *Obligation
	err := s.exec.Read(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.GetObligation(ctx, kind, id)
		out = o
		return err
	})
	return out, err
}

func (s *paymentService) ListObligations(ctx context.Context, kind ObligationKind) ([]Obligation, error) {
	if err := checkKind(kind); err != nil {
		return nil, err
	}
	var out []Obligation
	err := s.exec.Read(ctx, func(ctx context.Context, tx Tx) error {
		list, err := tx.ListObligations(ctx, kind)
		out = list
		return err
	})
	return out, err
}

// originDate is the date of the purchase or sale that created the obligation.
func originDate(ctx context.Context, tx Tx, o *Obligation) (time.Time, error) {
	if o.Kind == Payable {
		p, err := tx.GetPurchase(ctx, o.SourceID)
		if err != nil {
			return time.Time{}, fmt.Errorf("failed to load purchase %d: %w", o.SourceID, err)
		}
		return DateOnly(p.Date), nil
	}
	sale, err := tx.GetSale(ctx, o.SourceID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load sale %d: %w", o.SourceID, err)
	}
	return DateOnly(sale.Date), nil
}

func (s *paymentService) createTx(ctx context.Context, sc *Scope, kind ObligationKind, obligationID int, in PaymentInput) (*Payment, error) {
	tx := sc.Tx
	d, err := sc.Defaults(ctx)
	if err != nil {
		return nil, err
	}
	o, err := tx.GetObligation(ctx, kind, obligationID)
	if err != nil {
		return nil, err
	}

	// 1. Validate date and amount
	date := DateOnly(in.PaymentDate)
	origin, err := originDate(ctx, tx, o)
	if err != nil {
		return nil, err
	}
	if date.Before(origin) {
		return nil, InvalidDatef("payment date %s is before transaction date %s",
			date.Format(time.DateOnly), origin.Format(time.DateOnly))
	}
	amount := in.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, Validationf("payment amount must be positive")
	}
	if amount.GreaterThan(o.RemainingAmount) {
		return nil, Validationf("payment amount %s exceeds remaining %s",
			amount.StringFixed(2), o.RemainingAmount.StringFixed(2))
	}

	// 2. Post the obligation⇄cash pair
	var lines []JournalLine
	var obligationAccount int
	prefix := PrefixReceivablePayment
	if kind == Payable {
		if in.Method == MethodCash {
			if err := requireCash(ctx, tx, d, amount); err != nil {
				return nil, err
			}
		}
		obligationAccount = d.Payable.ID
		prefix = PrefixPayablePayment
		lines = []JournalLine{DebitLine(d.Payable.ID, amount), CreditLine(d.Cash.ID, amount)}
	} else {
		obligationAccount = d.Receivable.ID
		lines = []JournalLine{DebitLine(d.Cash.ID, amount), CreditLine(d.Receivable.ID, amount)}
	}
	ref, err := s.docs.NextReferenceTx(ctx, tx, prefix)
	if err != nil {
		return nil, err
	}
	j, err := s.journals.CreateJournalTx(ctx, tx, date, fmt.Sprintf("Payment %s for %s %d", ref, kind, o.ID), ref)
	if err != nil {
		return nil, err
	}
	entries, err := s.journals.PostTx(ctx, tx, j.ID, lines)
	if err != nil {
		return nil, err
	}
	sc.touchJournal(j.ID)

	// 3. Settle the obligation
	paid, remaining, status := settle(*o, amount)
	if err := s.obligations.RecordPaymentTx(ctx, tx, kind, o.ID, paid, remaining, status); err != nil {
		return nil, err
	}
	sc.touchObligation(kind, o.ID)

	p, err := tx.CreatePayment(ctx, Payment{
		Kind:           kind,
		Reference:      ref,
		ObligationID:   o.ID,
		JournalID:      j.ID,
		JournalEntryID: entryFor(entries, obligationAccount),
		Amount:         amount,
		PaymentDate:    date,
		Method:         in.Method,
		CreatedBy:      createdBy(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}
	return p, nil
}

// deleteTx reverses a payment and restores the obligation figures. It returns the removed payment.
func (s *paymentService) deleteTx(ctx context.Context, sc *Scope, kind ObligationKind, paymentID int) (*Payment, error) {
	tx := sc.Tx
	p, err := tx.GetPayment(ctx, kind, paymentID)
	if err != nil {
		return nil, err
	}
	o, err := tx.GetObligation(ctx, kind, p.ObligationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s %d: %w", kind, p.ObligationID, err)
	}
	if kind == Receivable {
		// Reversal takes the received cash back out.
		d, err := sc.Defaults(ctx)
		if err != nil {
			return nil, err
		}
		if err := requireCash(ctx, tx, d, p.Amount); err != nil {
			return nil, err
		}
	}

	if err := s.journals.ReverseTx(ctx, tx, p.JournalID); err != nil {
		return nil, err
	}
	if err := s.journals.DeleteJournalTx(ctx, tx, p.JournalID); err != nil {
		return nil, err
	}
	paid, remaining, status := unsettle(*o, p.Amount)
	if err := s.obligations.RecordPaymentTx(ctx, tx, kind, o.ID, paid, remaining, status); err != nil {
		return nil, err
	}
	sc.touchObligation(kind, o.ID)
	if err := tx.DeletePayment(ctx, kind, paymentID); err != nil {
		return nil, fmt.Errorf("failed to delete payment %d: %w", paymentID, err)
	}
	return p, nil
}
