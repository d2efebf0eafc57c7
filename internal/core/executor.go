package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// PostingLockKey serializes posting across processes when a distributed locker is configured.
const PostingLockKey = "lock:ledger-posting"

// Locker serializes posting scopes. Acquire blocks or fails; release must be called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// NoopLocker never blocks. It is enough when one process owns the store.
type NoopLocker struct{}

func (NoopLocker) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

// Executor runs every mutating operation as one atomic unit of work:
// posting lock, one store transaction, lazily resolved defaults, post-condition checks.
type Executor struct {
	store     Store
	locker    Locker
	resolver  DefaultAccountResolver
	logger    *logrus.Logger
	validate  *validator.Validate
	txTimeout time.Duration
}

// NewExecutor wires the unit-of-work runner. A nil locker disables cross-process locking;
// a zero txTimeout leaves the caller's context deadline untouched.
func NewExecutor(store Store, locker Locker, logger *logrus.Logger, txTimeout time.Duration) *Executor {
	if locker == nil {
		locker = NoopLocker{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Executor{
		store:     store,
		locker:    locker,
		resolver:  NewDefaultAccountResolver(),
		logger:    logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		txTimeout: txTimeout,
	}
}

// Scope is the state of one transaction scope, passed explicitly through the call graph.
type Scope struct {
	Tx       Tx
	resolver DefaultAccountResolver
	defaults *DefaultAccounts
	touched  *touchSet
}

// Defaults resolves the role accounts once per scope. It is never cached across scopes.
func (s *Scope) Defaults(ctx context.Context) (*DefaultAccounts, error) {
	if s.defaults != nil {
		return s.defaults, nil
	}
	d, err := s.resolver.ResolveTx(ctx, s.Tx)
	if err != nil {
		return nil, err
	}
	s.defaults = d
	return d, nil
}

func (s *Scope) touchJournal(id int) { s.touched.journals[id] = struct{}{} }
func (s *Scope) touchProduct(id int) { s.touched.products[id] = struct{}{} }
func (s *Scope) touchObligation(kind ObligationKind, id int) {
	s.touched.obligations[obligationKey{kind, id}] = struct{}{}
}

// Run executes fn inside a locked transaction scope named op. Any error aborts the scope.
func (e *Executor) Run(ctx context.Context, op string, fn func(ctx context.Context, sc *Scope) error) error {
	start := time.Now()

	release, err := e.locker.Acquire(ctx, PostingLockKey)
	if err != nil {
		e.logAbort(op, start, err)
		return err
	}
	defer release()

	if e.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.txTimeout)
		defer cancel()
	}

	err = e.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		sc := &Scope{Tx: tx, resolver: e.resolver, touched: newTouchSet()}
		if err := fn(ctx, sc); err != nil {
			return err
		}
		return verifyPostconditions(ctx, tx, sc.touched)
	})
	if err != nil {
		e.logAbort(op, start, err)
		return err
	}

	e.logger.WithFields(logrus.Fields{
		"op":       op,
		"duration": time.Since(start).String(),
		"actor":    createdBy(ctx),
	}).Info("operation committed")
	return nil
}

// Read executes fn inside a transaction scope without taking the posting lock.
func (e *Executor) Read(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return e.store.InTx(ctx, fn)
}

func (e *Executor) logAbort(op string, start time.Time, err error) {
	entry := e.logger.WithFields(logrus.Fields{
		"op":       op,
		"duration": time.Since(start).String(),
		"kind":     string(KindOf(err)),
	})
	switch KindOf(err) {
	case KindInvariantViolation, KindInternal, KindNotConfigured:
		entry.Error(err.Error())
	default:
		entry.Warn(err.Error())
	}
}

// Validate checks the validate struct tags of an operation input.
func (e *Executor) Validate(input any) error {
	err := e.validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
		return Validationf("invalid input: %s", strings.Join(fields, ", "))
	}
	return Validationf("invalid input: %v", err)
}
