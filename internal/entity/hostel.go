package entity

import "time"

type Hostel struct {
	ID        int64     `json:"id" db:"id"`
	OwnerID   int64     `json:"owner_id" db:"owner_id"`
	Name      string    `json:"name" db:"name"`
	Location  string    `json:"location" db:"location"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Room occupancy is changed only through the capacity ledger.
type Room struct {
	ID         int64     `json:"id" db:"id"`
	HostelID   int64     `json:"hostel_id" db:"hostel_id"`
	RoomNumber string    `json:"room_number" db:"room_number"`
	Capacity   int       `json:"capacity" db:"capacity"`
	Occupancy  int       `json:"occupancy" db:"occupancy"`
	Price      Money     `json:"price" db:"price"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// Available reports whether at least one slot is free.
func (r *Room) Available() bool {
	return r.Occupancy < r.Capacity
}

// RoomCapacity is the read view served by the ledger.
type RoomCapacity struct {
	RoomID    int64 `json:"room_id"`
	Capacity  int   `json:"capacity"`
	Occupancy int   `json:"occupancy"`
	Available bool  `json:"availability"`
}
