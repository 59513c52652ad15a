package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paulebil/UniHostel/internal/entity"
)

const receiptColumns = `
	id, receipt_number, payment_id, status, file_name, bucket_name,
	object_name, version_id, etag, failure_reason, created_at, updated_at`

type receiptRepository struct {
	db   *sql.DB
	opts options
}

func NewReceiptRepository(db *sql.DB, opts ...Option) ReceiptRepository {
	return &receiptRepository{db: db, opts: newOptions(opts)}
}

func scanReceipt(row rowScanner) (*entity.Receipt, error) {
	var receipt entity.Receipt
	err := row.Scan(
		&receipt.ID,
		&receipt.ReceiptNumber,
		&receipt.PaymentID,
		&receipt.Status,
		&receipt.FileName,
		&receipt.BucketName,
		&receipt.ObjectName,
		&receipt.VersionID,
		&receipt.ETag,
		&receipt.FailureReason,
		&receipt.CreatedAt,
		&receipt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

// Create writes the attempt marker. It must exist before any upload starts.
func (r *receiptRepository) Create(ctx context.Context, receipt *entity.Receipt) error {
	query := `
		INSERT INTO receipts (
			receipt_number, payment_id, status, file_name, failure_reason, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	if receipt.Status == "" {
		receipt.Status = entity.ReceiptStatusPending
	}

	now := r.opts.now()
	err := r.db.QueryRowContext(ctx, query,
		receipt.ReceiptNumber,
		receipt.PaymentID,
		receipt.Status,
		receipt.FileName,
		receipt.FailureReason,
		now,
		now,
	).Scan(&receipt.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("receipt number %s already exists: %w", receipt.ReceiptNumber, entity.ErrInvalidInput)
	}
	if err != nil {
		return fmt.Errorf("failed to create receipt: %w", err)
	}

	receipt.CreatedAt = now
	receipt.UpdatedAt = now
	return nil
}

// MarkCompleted records the storage coordinates of an uploaded receipt
func (r *receiptRepository) MarkCompleted(ctx context.Context, id int64, object entity.StoredObject) error {
	query := `
		UPDATE receipts
		SET status = $1, bucket_name = $2, object_name = $3, version_id = $4, etag = $5, updated_at = $6
		WHERE id = $7
	`
	return r.exec(ctx, query,
		entity.ReceiptStatusCompleted, object.Bucket, object.Key, object.VersionID, object.ETag, r.opts.now(), id)
}

// MarkFailed records why the attempt did not produce a stored receipt
func (r *receiptRepository) MarkFailed(ctx context.Context, id int64, reason string) error {
	query := `UPDATE receipts SET status = $1, failure_reason = $2, updated_at = $3 WHERE id = $4`
	return r.exec(ctx, query, entity.ReceiptStatusFailed, reason, r.opts.now(), id)
}

func (r *receiptRepository) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update receipt: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return entity.ErrReceiptNotFound
	}
	return nil
}

// GetByID retrieves a receipt by its ID
func (r *receiptRepository) GetByID(ctx context.Context, id int64) (*entity.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByNumber retrieves a receipt by its public receipt number
func (r *receiptRepository) GetByNumber(ctx context.Context, receiptNumber string) (*entity.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE receipt_number = $1`
	return r.getOne(ctx, query, receiptNumber)
}

func (r *receiptRepository) getOne(ctx context.Context, query string, arg interface{}) (*entity.Receipt, error) {
	receipt, err := scanReceipt(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, entity.ErrReceiptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return receipt, nil
}

// GetByPaymentID lists every generation attempt for a payment, oldest first
func (r *receiptRepository) GetByPaymentID(ctx context.Context, paymentID int64) ([]*entity.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE payment_id = $1 ORDER BY id`
	return r.queryReceipts(ctx, query, paymentID)
}

// GetByStatus lists receipts in a status, newest first. An empty status lists all.
func (r *receiptRepository) GetByStatus(ctx context.Context, status entity.ReceiptStatus, limit int) ([]*entity.Receipt, error) {
	if status == "" {
		query := `SELECT ` + receiptColumns + ` FROM receipts ORDER BY id DESC LIMIT $1`
		return r.queryReceipts(ctx, query, listLimit(limit))
	}
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE status = $1 ORDER BY id DESC LIMIT $2`
	return r.queryReceipts(ctx, query, status, listLimit(limit))
}

func (r *receiptRepository) queryReceipts(ctx context.Context, query string, args ...interface{}) ([]*entity.Receipt, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*entity.Receipt
	for rows.Next() {
		receipt, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, receipt)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating receipts: %w", err)
	}

	return receipts, nil
}
