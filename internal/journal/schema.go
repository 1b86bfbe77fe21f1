// Package journal is the SQLite-backed local journal of waterings, reminders
// and inbox uploads.
package journal

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS waterings (
	id          TEXT PRIMARY KEY,
	plant       TEXT NOT NULL,
	watered_on  TEXT NOT NULL,
	recorded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS reminders (
	id            TEXT PRIMARY KEY,
	plant         TEXT NOT NULL,
	days_since    INTEGER NOT NULL,
	interval_days INTEGER NOT NULL,
	message       TEXT NOT NULL,
	emitted_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS uploads (
	checksum    TEXT PRIMARY KEY,
	plant       TEXT NOT NULL,
	file_name   TEXT NOT NULL DEFAULT '',
	photo_id    TEXT NOT NULL DEFAULT '',
	uploaded_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_waterings_plant ON waterings(plant, watered_on);
CREATE INDEX IF NOT EXISTS idx_reminders_emitted ON reminders(emitted_at);
`

// DB wraps a sql.DB with journal operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("journal: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
