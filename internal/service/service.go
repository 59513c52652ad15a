package service

import (
	"context"
	"time"

	"github.com/paulebil/UniHostel/internal/entity"
)

// LedgerService owns room occupancy. Nothing else changes it.
type LedgerService interface {
	Reserve(ctx context.Context, roomID int64) error
	Release(ctx context.Context, roomID int64) error
	CapacityOf(ctx context.Context, roomID int64) (int, error)
	OccupancyOf(ctx context.Context, roomID int64) (int, error)
	Availability(ctx context.Context, roomID int64) (*entity.RoomCapacity, error)
}

// BookingService определяет интерфейс для операций с бронированиями
type BookingService interface {
	CreateBooking(ctx context.Context, principal entity.Principal, req *CreateBookingRequest) (*entity.Booking, error)
	CancelBooking(ctx context.Context, principal entity.Principal, bookingID int64, reason string) (*entity.Booking, error)
	GetBooking(ctx context.Context, principal entity.Principal, bookingID int64) (*entity.Booking, error)

	ListBookingsByGuest(ctx context.Context, studentID int64) ([]*entity.Booking, error)
	ListBookingsByOwner(ctx context.Context, ownerID int64) ([]*entity.Booking, error)
	ListBookingsByHostel(ctx context.Context, principal entity.Principal, hostelID int64) ([]*entity.Booking, error)
}

type PaymentService interface {
	// CreatePayment records a payment and confirms it against the transaction
	// ledger. The returned payment is non-nil whenever a row was written, even
	// when err reports it as not settled or the ledger as unavailable.
	CreatePayment(ctx context.Context, principal entity.Principal, req *CreatePaymentRequest) (*entity.Payment, error)
	RecheckPayment(ctx context.Context, paymentID int64) (*entity.Payment, error)
	RecheckPending(ctx context.Context) error

	GetPayment(ctx context.Context, principal entity.Principal, paymentID int64) (*entity.Payment, error)
	ListPaymentsByBooking(ctx context.Context, principal entity.Principal, bookingID int64) ([]*entity.Payment, error)

	RecordGatewayTransaction(ctx context.Context, txn *entity.GatewayTransaction) error
}

type ReceiptService interface {
	// GenerateReceipt is the body of the generate_receipt task. Once the
	// attempt row exists it returns a nil error whatever the outcome.
	GenerateReceipt(ctx context.Context, paymentID int64) (*entity.Receipt, error)
	RegenerateReceipt(ctx context.Context, paymentID int64) error
	ScheduleMissingReceipts(ctx context.Context, olderThan time.Duration, limit int) (int, error)

	GetReceipt(ctx context.Context, receiptID int64) (*entity.Receipt, error)
	ListReceipts(ctx context.Context, status entity.ReceiptStatus, limit int) ([]*entity.Receipt, error)
	ListReceiptsByPayment(ctx context.Context, paymentID int64) ([]*entity.Receipt, error)
	ReceiptDownloadURL(ctx context.Context, receiptID int64) (*DownloadURL, error)
}

// CreateBookingRequest is what a student submits to hold a room slot
type CreateBookingRequest struct {
	HostelID   int64  `json:"hostel_id" validate:"required,gt=0"`
	RoomID     int64  `json:"room_id" validate:"required,gt=0"`
	FirstName  string `json:"first_name" validate:"required,max=100"`
	LastName   string `json:"last_name" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email,max=254"`
	Phone      string `json:"phone" validate:"required,phone"`
	University string `json:"university" validate:"required,max=100"`
}

// CreatePaymentRequest references a transaction the student already made at the gateway
type CreatePaymentRequest struct {
	BookingID     int64        `json:"booking_id" validate:"required,gt=0"`
	Amount        entity.Money `json:"amount" validate:"gt=0"`
	Currency      string       `json:"currency" validate:"required,len=3,alpha"`
	TransactionID string       `json:"transaction_id" validate:"required,max=255"`
	Method        string       `json:"payment_method" validate:"required,max=50"`
}

type DownloadURL struct {
	ReceiptID int64     `json:"receipt_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TaskPublisher интерфейс для публикации задач в очередь
type TaskPublisher interface {
	Publish(ctx context.Context, task *Task) error
}

// Task представляет задачу для очереди
type Task struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Data       map[string]interface{} `json:"data"`
	ExecuteAt  time.Time              `json:"execute_at"`
	MaxRetries int                    `json:"max_retries"`
}

// EventPublisher emits domain events after a state change is committed
type EventPublisher interface {
	Publish(ctx context.Context, event entity.DomainEvent) error
}
