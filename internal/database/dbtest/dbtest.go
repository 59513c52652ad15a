// Package dbtest opens throwaway databases with the booking schema for tests.
// Sqlite is the default; Postgres is used when PostgresURLEnv is set.
package dbtest

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/paulebil/UniHostel/internal/entity"
	"github.com/paulebil/UniHostel/pkg/postgres"
)

// PostgresURLEnv names the connection string for tests that need real row locks.
const PostgresURLEnv = "UNIHOSTEL_TEST_DATABASE_URL"

// sqlite has no FOR UPDATE and no BIGSERIAL, so the schema is kept separately
// from the Postgres migrations. Keep the two in step.
var schema = []string{
	`CREATE TABLE hostels (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		owner_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		location TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE rooms (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hostel_id INTEGER NOT NULL REFERENCES hostels(id),
		room_number TEXT NOT NULL,
		capacity INTEGER NOT NULL CHECK (capacity > 0),
		occupancy INTEGER NOT NULL DEFAULT 0 CHECK (occupancy >= 0 AND occupancy <= capacity),
		price INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (hostel_id, room_number)
	)`,
	`CREATE TABLE bookings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		student_id INTEGER NOT NULL,
		hostel_id INTEGER NOT NULL REFERENCES hostels(id),
		room_id INTEGER NOT NULL REFERENCES rooms(id),
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		university TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		cancel_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		cancelled_at TIMESTAMP
	)`,
	`CREATE TABLE payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		booking_id INTEGER NOT NULL REFERENCES bookings(id),
		transaction_id TEXT NOT NULL UNIQUE,
		amount INTEGER NOT NULL CHECK (amount > 0),
		currency TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		payment_status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE receipts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		receipt_number TEXT NOT NULL UNIQUE,
		payment_id INTEGER NOT NULL REFERENCES payments(id),
		status TEXT NOT NULL DEFAULT 'pending',
		file_name TEXT NOT NULL DEFAULT '',
		bucket_name TEXT NOT NULL DEFAULT '',
		object_name TEXT NOT NULL DEFAULT '',
		version_id TEXT NOT NULL DEFAULT '',
		etag TEXT NOT NULL DEFAULT '',
		failure_reason TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE gateway_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL,
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		recorded_at TIMESTAMP NOT NULL
	)`,
}

// Open returns a file-backed sqlite database with one connection, so
// concurrent transactions queue up the way row locks make them queue in Postgres.
func Open(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "unihostel.db")
	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	for _, stmt := range schema {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	return db
}

// OpenPostgres connects to the database named by PostgresURLEnv, applies the
// migrations and empties every table. The test is skipped when the variable is unset.
func OpenPostgres(t *testing.T) *sql.DB {
	t.Helper()

	url := os.Getenv(PostgresURLEnv)
	if url == "" {
		t.Skipf("%s not set", PostgresURLEnv)
	}

	db, err := sql.Open("postgres", url)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, db.PingContext(ctx))
	require.NoError(t, postgres.RunMigrations(ctx, db))

	truncate := func() {
		_, err := db.Exec(`TRUNCATE gateway_transactions, receipts, payments, bookings, rooms, hostels RESTART IDENTITY CASCADE`)
		require.NoError(t, err)
	}
	truncate()
	t.Cleanup(truncate)
	return db
}

// SeedHostel inserts a hostel and returns its id.
func SeedHostel(t *testing.T, db *sql.DB, ownerID int64, name string) int64 {
	t.Helper()

	var id int64
	err := db.QueryRowContext(context.Background(),
		`INSERT INTO hostels (owner_id, name, location, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		ownerID, name, "Kampala", time.Now().UTC(),
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// SeedRoom inserts an empty room and returns its id.
func SeedRoom(t *testing.T, db *sql.DB, hostelID int64, number string, capacity int, price entity.Money) int64 {
	t.Helper()

	now := time.Now().UTC()
	var id int64
	err := db.QueryRowContext(context.Background(),
		`INSERT INTO rooms (hostel_id, room_number, capacity, occupancy, price, created_at, updated_at)
		 VALUES ($1, $2, $3, 0, $4, $5, $6) RETURNING id`,
		hostelID, number, capacity, int64(price), now, now,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// Occupancy reads a room's occupancy directly.
func Occupancy(t *testing.T, db *sql.DB, roomID int64) int {
	t.Helper()

	var occupancy int
	require.NoError(t, db.QueryRow(`SELECT occupancy FROM rooms WHERE id = $1`, roomID).Scan(&occupancy))
	return occupancy
}

// Guest returns a valid guest profile.
func Guest(first string) entity.Guest {
	return entity.Guest{
		FirstName:  first,
		LastName:   "Okello",
		Email:      first + "@students.mak.ac.ug",
		Phone:      "+256700000001",
		University: "Makerere University",
	}
}
