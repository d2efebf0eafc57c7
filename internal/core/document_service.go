package core

import (
	"context"
	"fmt"
)

// Reference prefixes, one gapless sequence each.
const (
	PrefixPurchase          = "PUR"
	PrefixSale              = "SAL"
	PrefixPurchaseReturn    = "PRT"
	PrefixSaleReturn        = "SRT"
	PrefixPayablePayment    = "PAY"
	PrefixReceivablePayment = "RCV"
)

// DocumentService issues human-readable reference numbers for posted documents.
type DocumentService interface {
	// NextReferenceTx draws the next number for prefix inside the caller's transaction,
	// so an aborted scope never consumes a number.
	NextReferenceTx(ctx context.Context, tx Tx, prefix string) (string, error)
}

type documentService struct{}

func NewDocumentService() DocumentService {
	return documentService{}
}

func (documentService) NextReferenceTx(ctx context.Context, tx Tx, prefix string) (string, error) {
	n, err := tx.NextSequence(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to generate gapless sequence number: %w", err)
	}
	return fmt.Sprintf("%s-%05d", prefix, n), nil
}
