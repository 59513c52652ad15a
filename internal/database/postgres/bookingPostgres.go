package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paulebil/UniHostel/internal/entity"
)

const bookingColumns = `
	b.id, b.student_id, b.hostel_id, b.room_id,
	b.first_name, b.last_name, b.email, b.phone, b.university,
	b.status, b.cancel_reason, b.created_at, b.updated_at, b.cancelled_at`

type bookingRepository struct {
	db   *sql.DB
	opts options
}

func NewBookingRepository(db *sql.DB, opts ...Option) BookingRepository {
	return &bookingRepository{db: db, opts: newOptions(opts)}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBooking(row rowScanner) (*entity.Booking, error) {
	var booking entity.Booking
	var cancelledAt sql.NullTime

	err := row.Scan(
		&booking.ID,
		&booking.StudentID,
		&booking.HostelID,
		&booking.RoomID,
		&booking.Guest.FirstName,
		&booking.Guest.LastName,
		&booking.Guest.Email,
		&booking.Guest.Phone,
		&booking.Guest.University,
		&booking.Status,
		&booking.CancelReason,
		&booking.CreatedAt,
		&booking.UpdatedAt,
		&cancelledAt,
	)
	if err != nil {
		return nil, err
	}

	if cancelledAt.Valid {
		t := cancelledAt.Time
		booking.CancelledAt = &t
	}
	return &booking, nil
}

// CreateWithReservation reserves a slot in the room and inserts the booking
// inside the same transaction, so a failed insert never leaks occupancy.
func (r *bookingRepository) CreateWithReservation(ctx context.Context, booking *entity.Booking) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := reserveRoom(ctx, tx, r.opts, booking.RoomID); err != nil {
		return err
	}

	query := `
		INSERT INTO bookings (
			student_id, hostel_id, room_id,
			first_name, last_name, email, phone, university,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`

	now := r.opts.now()
	err = tx.QueryRowContext(ctx, query,
		booking.StudentID,
		booking.HostelID,
		booking.RoomID,
		booking.Guest.FirstName,
		booking.Guest.LastName,
		booking.Guest.Email,
		booking.Guest.Phone,
		booking.Guest.University,
		entity.BookingStatusPending,
		now,
		now,
	).Scan(&booking.ID)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	booking.Status = entity.BookingStatusPending
	booking.CreatedAt = now
	booking.UpdatedAt = now
	return nil
}

// CancelWithRelease cancels a booking that still holds a slot and releases
// that slot exactly once. Cancelling twice reports ErrBookingNotFound.
func (r *bookingRepository) CancelWithRelease(ctx context.Context, id int64, reason string) (*entity.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1` + r.opts.lockClause
	booking, err := scanBooking(tx.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock booking: %w", err)
	}

	if !booking.Status.HoldsSlot() {
		return nil, entity.ErrBookingNotFound
	}

	if err := releaseRoom(ctx, tx, r.opts, booking.RoomID); err != nil {
		return nil, err
	}

	now := r.opts.now()
	query = `
		UPDATE bookings
		SET status = $1, cancel_reason = $2, cancelled_at = $3, updated_at = $4
		WHERE id = $5
	`
	if _, err := tx.ExecContext(ctx, query, entity.BookingStatusCancelled, reason, now, now, id); err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	booking.Status = entity.BookingStatusCancelled
	booking.CancelReason = reason
	booking.CancelledAt = &now
	booking.UpdatedAt = now
	return booking, nil
}

// GetByID retrieves a booking by its ID
func (r *bookingRepository) GetByID(ctx context.Context, id int64) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1`

	booking, err := scanBooking(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, entity.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	return booking, nil
}

// GetByStudentID retrieves all bookings made by a student
func (r *bookingRepository) GetByStudentID(ctx context.Context, studentID int64) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.student_id = $1 ORDER BY b.created_at DESC, b.id DESC`
	return r.queryBookings(ctx, query, studentID)
}

// GetByOwnerID retrieves bookings across every hostel of an owner
func (r *bookingRepository) GetByOwnerID(ctx context.Context, ownerID int64) ([]*entity.Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		JOIN hostels h ON h.id = b.hostel_id
		WHERE h.owner_id = $1
		ORDER BY b.created_at DESC, b.id DESC
	`
	return r.queryBookings(ctx, query, ownerID)
}

// GetByHostelID retrieves bookings for one hostel
func (r *bookingRepository) GetByHostelID(ctx context.Context, hostelID int64) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.hostel_id = $1 ORDER BY b.created_at DESC, b.id DESC`
	return r.queryBookings(ctx, query, hostelID)
}

func (r *bookingRepository) queryBookings(ctx context.Context, query string, args ...interface{}) ([]*entity.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %w", err)
	}

	return bookings, nil
}
