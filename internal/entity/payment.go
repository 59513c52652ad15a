package entity

import "time"

type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "pending"
	PaymentStatusCompleted   PaymentStatus = "completed"
	PaymentStatusNotReceived PaymentStatus = "not_received"
	PaymentStatusFailed      PaymentStatus = "failed"
)

// Recheckable reports whether the payment may still be confirmed against the ledger.
func (s PaymentStatus) Recheckable() bool {
	return s == PaymentStatusPending || s == PaymentStatusNotReceived
}

type Payment struct {
	ID            int64         `json:"id" db:"id"`
	BookingID     int64         `json:"booking_id" db:"booking_id"`
	TransactionID string        `json:"transaction_id" db:"transaction_id"`
	Amount        Money         `json:"amount" db:"amount"`
	Currency      string        `json:"currency" db:"currency"`
	Method        string        `json:"payment_method" db:"payment_method"`
	Status        PaymentStatus `json:"payment_status" db:"payment_status"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

type GatewayStatus string

const (
	GatewayStatusSettled GatewayStatus = "settled"
	GatewayStatusPending GatewayStatus = "pending"
	GatewayStatusFailed  GatewayStatus = "failed"
)

// GatewayTransaction is the payment gateway's own record of a transaction.
type GatewayTransaction struct {
	TransactionID string        `json:"transaction_id" db:"transaction_id" validate:"required,max=255"`
	Status        GatewayStatus `json:"status" db:"status" validate:"oneof=settled pending failed"`
	Amount        Money         `json:"amount" db:"amount" validate:"gt=0"`
	Currency      string        `json:"currency" db:"currency" validate:"required,len=3,alpha"`
	RecordedAt    time.Time     `json:"recorded_at" db:"recorded_at"`
}
