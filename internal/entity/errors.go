package entity

import (
	"errors"
	"fmt"
)

// Kind classifies an error so transports can map it without string matching.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindCapacityExceeded
	KindConflict
	KindNotSettled
	KindUpstreamUnavailable
	KindForbidden
	KindRender
	KindStorage
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindCapacityExceeded:
		return "capacity_exceeded"
	case KindConflict:
		return "conflict"
	case KindNotSettled:
		return "not_settled"
	case KindUpstreamUnavailable:
		return "upstream_unavailable"
	case KindForbidden:
		return "forbidden"
	case KindRender:
		return "render"
	case KindStorage:
		return "storage"
	default:
		return "internal"
	}
}

// Error is a classified domain error. Sentinels below are *Error values so
// errors.Is keeps working through fmt.Errorf("...: %w") chains.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Validation builds a validation error with a formatted message.
func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Upstream wraps a collaborator failure (ledger lookup, queue, object store).
func Upstream(msg string, err error) error {
	return &Error{Kind: KindUpstreamUnavailable, Msg: msg, Err: err}
}

var (
	// Room errors
	ErrRoomNotFound    = newError(KindNotFound, "room not found")
	ErrRoomFull        = newError(KindCapacityExceeded, "room is at full capacity")
	ErrRoomNotInHostel = newError(KindValidation, "room does not belong to hostel")
	ErrHostelNotFound  = newError(KindNotFound, "hostel not found")

	// Booking errors
	ErrBookingNotFound    = newError(KindNotFound, "booking not found")
	ErrBookingNotPayable  = newError(KindConflict, "booking cannot accept payment")
	ErrRoomOversubscribed = newError(KindConflict, "room occupancy exceeds capacity")

	// Payment errors
	ErrPaymentNotFound         = newError(KindNotFound, "payment not found")
	ErrDuplicateTransaction    = newError(KindConflict, "transaction id already recorded")
	ErrPaymentNotReceived      = newError(KindNotSettled, "payment not received by gateway")
	ErrPaymentAlreadyCompleted = newError(KindConflict, "payment already completed")
	ErrPaymentRejected         = newError(KindConflict, "payment rejected by gateway")
	ErrAmountMismatch          = newError(KindConflict, "settled amount does not match payment")
	ErrTransactionNotFound     = newError(KindNotFound, "transaction not found in ledger")
	ErrPaymentNotCompleted     = newError(KindConflict, "payment is not completed")

	// Receipt errors
	ErrReceiptNotFound  = newError(KindNotFound, "receipt not found")
	ErrReceiptNotStored = newError(KindConflict, "receipt has no stored object")
	ErrReceiptRender    = newError(KindRender, "failed to render receipt")
	ErrReceiptStorage   = newError(KindStorage, "failed to store receipt")

	// General errors
	ErrInvalidInput = newError(KindValidation, "invalid input")
	ErrForbidden    = newError(KindForbidden, "forbidden operation")
)
