package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/paulebil/UniHostel/internal/entity"
)

type HostelRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Hostel, error)
}

// RoomRepository is the storage side of the capacity ledger. It is the only
// code that writes rooms.occupancy.
type RoomRepository interface {
	GetByID(ctx context.Context, id int64) (*entity.Room, error)
	Reserve(ctx context.Context, roomID int64) error
	Release(ctx context.Context, roomID int64) error
}

type BookingRepository interface {
	// CreateWithReservation takes a room slot and inserts the booking in one transaction.
	CreateWithReservation(ctx context.Context, booking *entity.Booking) error
	// CancelWithRelease marks the booking cancelled and gives its slot back in one transaction.
	CancelWithRelease(ctx context.Context, id int64, reason string) (*entity.Booking, error)

	GetByID(ctx context.Context, id int64) (*entity.Booking, error)
	GetByStudentID(ctx context.Context, studentID int64) ([]*entity.Booking, error)
	GetByOwnerID(ctx context.Context, ownerID int64) ([]*entity.Booking, error)
	GetByHostelID(ctx context.Context, hostelID int64) ([]*entity.Booking, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	GetByID(ctx context.Context, id int64) (*entity.Payment, error)
	GetByTransactionID(ctx context.Context, transactionID string) (*entity.Payment, error)
	GetByBookingID(ctx context.Context, bookingID int64) ([]*entity.Payment, error)
	UpdateStatus(ctx context.Context, id int64, status entity.PaymentStatus) error

	// Complete promotes the payment and confirms its booking. beforeCommit runs
	// inside the transaction; if it fails nothing is committed.
	Complete(ctx context.Context, id int64, beforeCommit func(ctx context.Context) error) (*entity.Payment, error)

	GetCompletedWithoutReceipt(ctx context.Context, updatedBefore time.Time, limit int) ([]*entity.Payment, error)
	GetRecheckable(ctx context.Context, updatedBefore time.Time, limit int) ([]*entity.Payment, error)
}

type ReceiptRepository interface {
	Create(ctx context.Context, receipt *entity.Receipt) error
	MarkCompleted(ctx context.Context, id int64, object entity.StoredObject) error
	MarkFailed(ctx context.Context, id int64, reason string) error

	GetByID(ctx context.Context, id int64) (*entity.Receipt, error)
	GetByNumber(ctx context.Context, receiptNumber string) (*entity.Receipt, error)
	GetByPaymentID(ctx context.Context, paymentID int64) ([]*entity.Receipt, error)
	GetByStatus(ctx context.Context, status entity.ReceiptStatus, limit int) ([]*entity.Receipt, error)
}

// TransactionRepository stores the gateway's settlement records.
type TransactionRepository interface {
	Upsert(ctx context.Context, txn *entity.GatewayTransaction) error
	GetByTransactionID(ctx context.Context, transactionID string) (*entity.GatewayTransaction, error)
}

// Option tunes SQL generation per driver.
type Option func(*options)

type options struct {
	lockClause string
	now        func() time.Time
}

func newOptions(opts []Option) options {
	o := options{
		lockClause: " FOR UPDATE",
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithoutRowLocks drops FOR UPDATE for drivers that serialize writers
// themselves (sqlite).
func WithoutRowLocks() Option {
	return func(o *options) { o.lockClause = "" }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

const defaultListLimit = 100

func listLimit(limit int) int {
	if limit <= 0 || limit > 1000 {
		return defaultListLimit
	}
	return limit
}

// isUniqueViolation detects duplicate-key errors from lib/pq, with a message
// fallback for other drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
