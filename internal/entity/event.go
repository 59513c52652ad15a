package entity

import (
	"time"
)

type EventType string

const (
	EventBookingCreated   EventType = "booking.created"
	EventBookingCancelled EventType = "booking.cancelled"
	EventPaymentCompleted EventType = "payment.completed"
	EventPaymentOrphaned  EventType = "payment.orphaned"
	EventReceiptCompleted EventType = "receipt.completed"
	EventReceiptFailed    EventType = "receipt.failed"
)

// DomainEvent is published after a state transition has been committed.
type DomainEvent struct {
	Type       EventType              `json:"type"`
	Key        string                 `json:"key"`
	Payload    map[string]interface{} `json:"payload"`
	OccurredAt time.Time              `json:"occurred_at"`
}
