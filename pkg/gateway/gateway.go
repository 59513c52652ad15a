// Package gateway looks up settlement records in the payment gateway's
// transaction ledger.
package gateway

import (
	"context"
	"fmt"

	"github.com/paulebil/UniHostel/config"
	"github.com/paulebil/UniHostel/internal/entity"
)

// Ledger returns the gateway's record for a transaction id, or
// entity.ErrTransactionNotFound. Any other error means the ledger could not
// be reached and the answer is unknown.
type Ledger interface {
	Lookup(ctx context.Context, transactionID string) (*entity.GatewayTransaction, error)
}

// TransactionStore is the subset of the transaction repository the table ledger reads.
type TransactionStore interface {
	GetByTransactionID(ctx context.Context, transactionID string) (*entity.GatewayTransaction, error)
}

type tableLedger struct {
	store TransactionStore
}

// NewTableLedger reads records the gateway pushed through the webhook.
func NewTableLedger(store TransactionStore) Ledger {
	return &tableLedger{store: store}
}

func (l *tableLedger) Lookup(ctx context.Context, transactionID string) (*entity.GatewayTransaction, error) {
	return l.store.GetByTransactionID(ctx, transactionID)
}

// New builds the ledger named by cfg.LedgerMode
func New(cfg *config.PaymentConfig, store TransactionStore) (Ledger, error) {
	switch cfg.LedgerMode {
	case "table", "":
		return NewTableLedger(store), nil
	case "http":
		if cfg.GatewayURL == "" {
			return nil, fmt.Errorf("payment.gateway_url is required for http ledger")
		}
		return NewHTTPLedger(cfg.GatewayURL, cfg.GatewayAPIKey, nil), nil
	default:
		return nil, fmt.Errorf("unknown ledger mode %q", cfg.LedgerMode)
	}
}
