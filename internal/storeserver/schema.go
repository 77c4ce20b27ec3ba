package storeserver

import (
	"database/sql"
	"fmt"
)

// Schema for the directory/booking store. SQLite keeps the dev
// deployment a single file; timestamps are stored as RFC 3339 text.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		uuid           TEXT PRIMARY KEY,
		email          TEXT NOT NULL DEFAULT '',
		name           TEXT NOT NULL,
		role           TEXT NOT NULL,
		specialization TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS booking_requests (
		id             TEXT PRIMARY KEY,
		customer_name  TEXT NOT NULL,
		sender_id      TEXT NOT NULL,
		receiver_id    TEXT NOT NULL,
		session        TEXT NOT NULL DEFAULT '',
		booking_status TEXT NOT NULL DEFAULT 'PENDING',
		timestamp      TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS appointments (
		id              TEXT PRIMARY KEY,
		customer_id     TEXT NOT NULL,
		customer_name   TEXT NOT NULL,
		counsellor_id   TEXT NOT NULL,
		counsellor_name TEXT NOT NULL,
		session_date    TEXT NOT NULL,
		session_time    TEXT NOT NULL,
		session         TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_requests_pair ON booking_requests(sender_id, receiver_id)`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_counsellor ON appointments(counsellor_id)`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_customer ON appointments(customer_id)`,
}

func migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration %d: %w", i, err)
		}
	}
	return nil
}
