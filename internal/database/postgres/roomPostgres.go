package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paulebil/UniHostel/internal/entity"
)

type roomRepository struct {
	db   *sql.DB
	opts options
}

func NewRoomRepository(db *sql.DB, opts ...Option) RoomRepository {
	return &roomRepository{db: db, opts: newOptions(opts)}
}

// GetByID retrieves a room with its current occupancy
func (r *roomRepository) GetByID(ctx context.Context, id int64) (*entity.Room, error) {
	query := `
		SELECT id, hostel_id, room_number, capacity, occupancy, price, created_at, updated_at
		FROM rooms
		WHERE id = $1
	`

	var room entity.Room
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&room.ID,
		&room.HostelID,
		&room.RoomNumber,
		&room.Capacity,
		&room.Occupancy,
		&room.Price,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	return &room, nil
}

// Reserve takes one slot in the room under a row lock
func (r *roomRepository) Reserve(ctx context.Context, roomID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := reserveRoom(ctx, tx, r.opts, roomID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Release gives one slot back, never going below zero
func (r *roomRepository) Release(ctx context.Context, roomID int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := releaseRoom(ctx, tx, r.opts, roomID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// reserveRoom is the locked read-check-increment. Callers own the transaction.
func reserveRoom(ctx context.Context, tx *sql.Tx, opts options, roomID int64) error {
	var capacity, occupancy int
	query := `SELECT capacity, occupancy FROM rooms WHERE id = $1` + opts.lockClause
	err := tx.QueryRowContext(ctx, query, roomID).Scan(&capacity, &occupancy)
	if err == sql.ErrNoRows {
		return entity.ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock room: %w", err)
	}

	if occupancy >= capacity {
		return fmt.Errorf("room %d (%d/%d): %w", roomID, occupancy, capacity, entity.ErrRoomFull)
	}

	query = `UPDATE rooms SET occupancy = occupancy + 1, updated_at = $1 WHERE id = $2`
	if _, err := tx.ExecContext(ctx, query, opts.now(), roomID); err != nil {
		return fmt.Errorf("failed to increment occupancy: %w", err)
	}
	return nil
}

// releaseRoom is the locked decrement, floored at zero. Callers own the transaction.
func releaseRoom(ctx context.Context, tx *sql.Tx, opts options, roomID int64) error {
	var occupancy int
	query := `SELECT occupancy FROM rooms WHERE id = $1` + opts.lockClause
	err := tx.QueryRowContext(ctx, query, roomID).Scan(&occupancy)
	if err == sql.ErrNoRows {
		return entity.ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock room: %w", err)
	}

	if occupancy == 0 {
		return nil
	}

	query = `UPDATE rooms SET occupancy = occupancy - 1, updated_at = $1 WHERE id = $2 AND occupancy > 0`
	if _, err := tx.ExecContext(ctx, query, opts.now(), roomID); err != nil {
		return fmt.Errorf("failed to decrement occupancy: %w", err)
	}
	return nil
}
