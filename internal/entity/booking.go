package entity

import (
	"time"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// HoldsSlot reports whether a booking in this status counts toward room occupancy.
func (s BookingStatus) HoldsSlot() bool {
	return s == BookingStatusPending || s == BookingStatusConfirmed
}

// Guest is the student profile captured on the booking.
type Guest struct {
	FirstName  string `json:"first_name" db:"first_name"`
	LastName   string `json:"last_name" db:"last_name"`
	Email      string `json:"email" db:"email"`
	Phone      string `json:"phone" db:"phone"`
	University string `json:"university" db:"university"`
}

func (g Guest) FullName() string {
	return g.FirstName + " " + g.LastName
}

type Booking struct {
	ID           int64         `json:"id" db:"id"`
	StudentID    int64         `json:"student_id" db:"student_id"`
	HostelID     int64         `json:"hostel_id" db:"hostel_id"`
	RoomID       int64         `json:"room_id" db:"room_id"`
	Guest        Guest         `json:"guest"`
	Status       BookingStatus `json:"status" db:"status"`
	CancelReason string        `json:"cancel_reason,omitempty" db:"cancel_reason"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
	CancelledAt  *time.Time    `json:"cancelled_at,omitempty" db:"cancelled_at"`
}
