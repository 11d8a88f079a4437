package db

import (
	"database/sql"
	"fmt"
)

// schema is the full database schema.
//
// Claim details live inline on the items row so a status transition and its
// claim data commit in a single UPDATE. The status CHECK mirrors the
// lifecycle states; forward-only ordering is enforced by the store's
// conditional updates, not the schema.
const schema = `
CREATE TABLE IF NOT EXISTS users (
    id            INTEGER PRIMARY KEY,
    username      TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    role          TEXT NOT NULL DEFAULT 'guard' CHECK (role IN ('admin', 'guard')),
    created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    deleted_at    DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_active
    ON users(username) WHERE deleted_at IS NULL;

CREATE TABLE IF NOT EXISTS items (
    id               TEXT PRIMARY KEY,
    name             TEXT NOT NULL CHECK (length(name) BETWEEN 1 AND 100),
    description      TEXT CHECK (description IS NULL OR length(description) <= 500),
    category         TEXT NOT NULL CHECK (category IN (
        'Electronics', 'Clothing', 'Study Material', 'Accessories',
        'ID Cards', 'Keys', 'Other')),
    location         TEXT NOT NULL CHECK (location IN (
        'Main Building', 'Canteen Area', 'Library', 'Computer Lab',
        'Auditorium', 'Sports Field', 'Parking Lot', 'Other')),
    found_date       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    status           TEXT NOT NULL DEFAULT 'available' CHECK (status IN ('available', 'claimed', 'delivered')),
    image            TEXT NOT NULL,
    claimant_name    TEXT,
    claimant_roll    TEXT,
    claimant_year    TEXT,
    claimant_contact TEXT,
    claimed_at       DATETIME,
    claim_image      TEXT,
    added_by         TEXT NOT NULL,
    created_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);
CREATE INDEX IF NOT EXISTS idx_items_created_at ON items(created_at);

CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS revoked_tokens (
    jti        TEXT PRIMARY KEY,
    expires_at DATETIME NOT NULL
);
`

// EnsureSchema creates all tables and indexes if they don't already exist.
func EnsureSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
