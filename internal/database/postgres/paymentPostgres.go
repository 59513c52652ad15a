package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/paulebil/UniHostel/internal/entity"
)

const paymentColumns = `
	p.id, p.booking_id, p.transaction_id, p.amount, p.currency,
	p.payment_method, p.payment_status, p.created_at, p.updated_at`

type paymentRepository struct {
	db   *sql.DB
	opts options
}

func NewPaymentRepository(db *sql.DB, opts ...Option) PaymentRepository {
	return &paymentRepository{db: db, opts: newOptions(opts)}
}

func scanPayment(row rowScanner) (*entity.Payment, error) {
	var payment entity.Payment
	err := row.Scan(
		&payment.ID,
		&payment.BookingID,
		&payment.TransactionID,
		&payment.Amount,
		&payment.Currency,
		&payment.Method,
		&payment.Status,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// Create inserts a pending payment. The unique index on transaction_id is the
// final word on duplicates, even when two requests race past the pre-check.
func (r *paymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (
			booking_id, transaction_id, amount, currency,
			payment_method, payment_status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	if payment.Status == "" {
		payment.Status = entity.PaymentStatusPending
	}

	now := r.opts.now()
	err := r.db.QueryRowContext(ctx, query,
		payment.BookingID,
		payment.TransactionID,
		payment.Amount,
		payment.Currency,
		payment.Method,
		payment.Status,
		now,
		now,
	).Scan(&payment.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("transaction %s: %w", payment.TransactionID, entity.ErrDuplicateTransaction)
	}
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	payment.CreatedAt = now
	payment.UpdatedAt = now
	return nil
}

// GetByID retrieves a payment by its ID
func (r *paymentRepository) GetByID(ctx context.Context, id int64) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p WHERE p.id = $1`

	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// GetByTransactionID retrieves a payment by the gateway transaction id
func (r *paymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p WHERE p.transaction_id = $1`

	payment, err := scanPayment(r.db.QueryRowContext(ctx, query, transactionID))
	if err == sql.ErrNoRows {
		return nil, entity.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get payment by transaction: %w", err)
	}
	return payment, nil
}

// GetByBookingID lists every payment attempt for a booking
func (r *paymentRepository) GetByBookingID(ctx context.Context, bookingID int64) ([]*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments p WHERE p.booking_id = $1 ORDER BY p.id`
	return r.queryPayments(ctx, query, bookingID)
}

// UpdateStatus moves a payment that is not yet completed to another status
func (r *paymentRepository) UpdateStatus(ctx context.Context, id int64, status entity.PaymentStatus) error {
	query := `
		UPDATE payments
		SET payment_status = $1, updated_at = $2
		WHERE id = $3 AND payment_status <> $4
	`

	result, err := r.db.ExecContext(ctx, query, status, r.opts.now(), id, entity.PaymentStatusCompleted)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return entity.ErrPaymentAlreadyCompleted
	}

	return nil
}

// Complete locks the payment, marks it completed and confirms the booking.
// beforeCommit is where the receipt task gets scheduled: if scheduling
// fails the whole promotion rolls back.
func (r *paymentRepository) Complete(ctx context.Context, id int64, beforeCommit func(ctx context.Context) error) (*entity.Payment, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + paymentColumns + ` FROM payments p WHERE p.id = $1` + r.opts.lockClause
	payment, err := scanPayment(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock payment: %w", err)
	}

	switch {
	case payment.Status == entity.PaymentStatusCompleted:
		return nil, entity.ErrPaymentAlreadyCompleted
	case !payment.Status.Recheckable():
		return nil, fmt.Errorf("payment %d is %s: %w", id, payment.Status, entity.ErrPaymentRejected)
	}

	now := r.opts.now()
	query = `UPDATE payments SET payment_status = $1, updated_at = $2 WHERE id = $3`
	if _, err := tx.ExecContext(ctx, query, entity.PaymentStatusCompleted, now, id); err != nil {
		return nil, fmt.Errorf("failed to complete payment: %w", err)
	}

	query = `UPDATE bookings SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	result, err := tx.ExecContext(ctx, query, entity.BookingStatusConfirmed, now, payment.BookingID, entity.BookingStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm booking: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("booking %d: %w", payment.BookingID, entity.ErrBookingNotPayable)
	}

	if beforeCommit != nil {
		if err := beforeCommit(ctx); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	payment.Status = entity.PaymentStatusCompleted
	payment.UpdatedAt = now
	return payment, nil
}

// GetCompletedWithoutReceipt finds completed payments that never got a
// receipt attempt, which happens when the process dies between commit and task run.
func (r *paymentRepository) GetCompletedWithoutReceipt(ctx context.Context, updatedBefore time.Time, limit int) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments p
		LEFT JOIN receipts rc ON rc.payment_id = p.id
		WHERE p.payment_status = $1 AND p.updated_at < $2 AND rc.id IS NULL
		ORDER BY p.updated_at
		LIMIT $3
	`
	return r.queryPayments(ctx, query, entity.PaymentStatusCompleted, updatedBefore, listLimit(limit))
}

// GetRecheckable finds payments still waiting on the gateway
func (r *paymentRepository) GetRecheckable(ctx context.Context, updatedBefore time.Time, limit int) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments p
		WHERE p.payment_status IN ($1, $2) AND p.updated_at < $3
		ORDER BY p.updated_at
		LIMIT $4
	`
	return r.queryPayments(ctx, query,
		entity.PaymentStatusPending, entity.PaymentStatusNotReceived, updatedBefore, listLimit(limit))
}

func (r *paymentRepository) queryPayments(ctx context.Context, query string, args ...interface{}) ([]*entity.Payment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []*entity.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, payment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payments: %w", err)
	}

	return payments, nil
}
