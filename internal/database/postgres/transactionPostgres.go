package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paulebil/UniHostel/internal/entity"
)

type transactionRepository struct {
	db   *sql.DB
	opts options
}

func NewTransactionRepository(db *sql.DB, opts ...Option) TransactionRepository {
	return &transactionRepository{db: db, opts: newOptions(opts)}
}

// Upsert records the gateway's latest view of a transaction
func (r *transactionRepository) Upsert(ctx context.Context, txn *entity.GatewayTransaction) error {
	query := `
		INSERT INTO gateway_transactions (transaction_id, status, amount, currency, recorded_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (transaction_id) DO UPDATE
		SET status = EXCLUDED.status,
			amount = EXCLUDED.amount,
			currency = EXCLUDED.currency,
			recorded_at = EXCLUDED.recorded_at
	`

	if txn.RecordedAt.IsZero() {
		txn.RecordedAt = r.opts.now()
	}

	_, err := r.db.ExecContext(ctx, query, txn.TransactionID, txn.Status, txn.Amount, txn.Currency, txn.RecordedAt)
	if err != nil {
		return fmt.Errorf("failed to record gateway transaction: %w", err)
	}
	return nil
}

// GetByTransactionID retrieves the gateway record for a transaction
func (r *transactionRepository) GetByTransactionID(ctx context.Context, transactionID string) (*entity.GatewayTransaction, error) {
	query := `
		SELECT transaction_id, status, amount, currency, recorded_at
		FROM gateway_transactions
		WHERE transaction_id = $1
	`

	var txn entity.GatewayTransaction
	err := r.db.QueryRowContext(ctx, query, transactionID).Scan(
		&txn.TransactionID,
		&txn.Status,
		&txn.Amount,
		&txn.Currency,
		&txn.RecordedAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get gateway transaction: %w", err)
	}

	return &txn, nil
}
