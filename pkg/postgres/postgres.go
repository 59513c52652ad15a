package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/paulebil/UniHostel/config"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq"
)

func NewPostgresDB(cfg *config.DatabaseConfig) (*sql.DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"host":   cfg.Host,
		"dbname": cfg.DBName,
	}).Info("Successfully connected to PostgreSQL")
	return db, nil
}

// Migrations is the ordered schema. Statements are idempotent.
var Migrations = []string{
	`CREATE TABLE IF NOT EXISTS hostels (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		name VARCHAR(255) NOT NULL,
		location VARCHAR(255) NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS rooms (
		id BIGSERIAL PRIMARY KEY,
		hostel_id BIGINT NOT NULL REFERENCES hostels(id) ON DELETE RESTRICT,
		room_number VARCHAR(50) NOT NULL,
		capacity INTEGER NOT NULL CHECK (capacity > 0),
		occupancy INTEGER NOT NULL DEFAULT 0 CHECK (occupancy >= 0 AND occupancy <= capacity),
		price BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (hostel_id, room_number)
	)`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGSERIAL PRIMARY KEY,
		student_id BIGINT NOT NULL,
		hostel_id BIGINT NOT NULL REFERENCES hostels(id) ON DELETE RESTRICT,
		room_id BIGINT NOT NULL REFERENCES rooms(id) ON DELETE RESTRICT,
		first_name VARCHAR(100) NOT NULL,
		last_name VARCHAR(100) NOT NULL,
		email VARCHAR(255) NOT NULL,
		phone VARCHAR(32) NOT NULL,
		university VARCHAR(255) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		cancel_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		cancelled_at TIMESTAMPTZ
	)`,

	`CREATE TABLE IF NOT EXISTS payments (
		id BIGSERIAL PRIMARY KEY,
		booking_id BIGINT NOT NULL REFERENCES bookings(id) ON DELETE RESTRICT,
		transaction_id VARCHAR(255) NOT NULL,
		amount BIGINT NOT NULL CHECK (amount > 0),
		currency VARCHAR(3) NOT NULL,
		payment_method VARCHAR(50) NOT NULL,
		payment_status VARCHAR(20) NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS receipts (
		id BIGSERIAL PRIMARY KEY,
		receipt_number VARCHAR(64) NOT NULL,
		payment_id BIGINT NOT NULL REFERENCES payments(id) ON DELETE RESTRICT,
		status VARCHAR(20) NOT NULL DEFAULT 'pending',
		file_name VARCHAR(255) NOT NULL DEFAULT '',
		bucket_name VARCHAR(255) NOT NULL DEFAULT '',
		object_name VARCHAR(512) NOT NULL DEFAULT '',
		version_id VARCHAR(255) NOT NULL DEFAULT '',
		etag VARCHAR(255) NOT NULL DEFAULT '',
		failure_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS gateway_transactions (
		id BIGSERIAL PRIMARY KEY,
		transaction_id VARCHAR(255) NOT NULL,
		status VARCHAR(20) NOT NULL,
		amount BIGINT NOT NULL,
		currency VARCHAR(3) NOT NULL,
		recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	// Indexes
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_transaction_id ON payments(transaction_id)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_receipts_receipt_number ON receipts(receipt_number)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_gateway_transactions_transaction_id ON gateway_transactions(transaction_id)`,
	`CREATE INDEX IF NOT EXISTS idx_rooms_hostel_id ON rooms(hostel_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_student_id ON bookings(student_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_hostel_id ON bookings(hostel_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_room_status ON bookings(room_id, status)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_booking_id ON payments(booking_id)`,
	`CREATE INDEX IF NOT EXISTS idx_payments_status ON payments(payment_status)`,
	`CREATE INDEX IF NOT EXISTS idx_receipts_payment_id ON receipts(payment_id)`,
	`CREATE INDEX IF NOT EXISTS idx_receipts_status ON receipts(status)`,
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	for i, migration := range Migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("failed to execute migration %d: %w", i, err)
		}
	}

	logrus.WithField("statements", len(Migrations)).Info("Database migrations completed successfully")
	return nil
}
