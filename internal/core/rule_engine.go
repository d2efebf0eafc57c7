package core

import (
	"context"
	"errors"
	"fmt"
)

// DefaultAccountResolver resolves the configured role accounts (cash, inventory, VAT,
// payable, receivable, sales, COGS, owner capital). It replaces hardcoded account
// constants in the orchestrators.
type DefaultAccountResolver interface {
	ResolveTx(ctx context.Context, tx Tx) (*DefaultAccounts, error)
}

type defaultAccountResolver struct{}

func NewDefaultAccountResolver() DefaultAccountResolver {
	return defaultAccountResolver{}
}

// ResolveTx reads the mapping row and every role account inside the caller's scope.
// A missing mapping or a mapping that names a missing account is ErrNotConfigured.
func (defaultAccountResolver) ResolveTx(ctx context.Context, tx Tx) (*DefaultAccounts, error) {
	m, err := tx.GetDefaultAccountMapping(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, NotConfiguredf("default account mapping is not configured")
		}
		return nil, fmt.Errorf("failed to read default account mapping: %w", err)
	}

	d := &DefaultAccounts{}
	roles := []struct {
		name string
		id   int
		dst  *Account
	}{
		{"cash", m.CashAccountID, &d.Cash},
		{"inventory", m.InventoryAccountID, &d.Inventory},
		{"vat input", m.VATInputAccountID, &d.VATInput},
		{"vat output", m.VATOutputAccountID, &d.VATOutput},
		{"payable", m.PayableAccountID, &d.Payable},
		{"receivable", m.ReceivableAccountID, &d.Receivable},
		{"sales", m.SalesAccountID, &d.Sales},
		{"cogs", m.COGSAccountID, &d.COGS},
		{"owner capital", m.OwnerCapitalAccountID, &d.OwnerCapital},
	}

	for _, r := range roles {
		if r.id == 0 {
			return nil, NotConfiguredf("default %s account is not configured", r.name)
		}
		acc, err := tx.GetAccount(ctx, r.id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, NotConfiguredf("default %s account %d does not exist", r.name, r.id)
			}
			return nil, fmt.Errorf("failed to resolve default %s account: %w", r.name, err)
		}
		*r.dst = *acc
	}
	return d, nil
}
