package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paulebil/UniHostel/internal/entity"
)

type hostelRepository struct {
	db *sql.DB
}

func NewHostelRepository(db *sql.DB) HostelRepository {
	return &hostelRepository{db: db}
}

// GetByID retrieves a hostel by its ID
func (r *hostelRepository) GetByID(ctx context.Context, id int64) (*entity.Hostel, error) {
	query := `SELECT id, owner_id, name, location, created_at FROM hostels WHERE id = $1`

	var hostel entity.Hostel
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&hostel.ID,
		&hostel.OwnerID,
		&hostel.Name,
		&hostel.Location,
		&hostel.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, entity.ErrHostelNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get hostel: %w", err)
	}

	return &hostel, nil
}
