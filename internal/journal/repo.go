package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/plantcare/internal/apperr"
	"github.com/starford/plantcare/internal/watering"
)

const defaultLimit = 50

// Watering is one recorded watering of a plant.
type Watering struct {
	ID         string    `json:"id"`
	Plant      string    `json:"plantName"`
	WateredOn  string    `json:"wateredOn"`
	RecordedAt time.Time `json:"recordedAt"`
}

// ReminderEntry is one emitted reminder.
type ReminderEntry struct {
	ID           string    `json:"id"`
	Plant        string    `json:"plantName"`
	DaysSince    int       `json:"daysSince"`
	IntervalDays int       `json:"intervalDays"`
	Message      string    `json:"message"`
	EmittedAt    time.Time `json:"emittedAt"`
}

// Upload is a photo uploaded from the inbox, keyed by file checksum.
type Upload struct {
	Checksum   string    `json:"checksum"`
	Plant      string    `json:"plantName"`
	FileName   string    `json:"fileName"`
	PhotoID    string    `json:"photoId"`
	UploadedAt time.Time `json:"uploadedAt"`
}

// RecordWatering stores a watering of plant on the calendar date wateredOn.
func (db *DB) RecordWatering(plant, wateredOn string, at time.Time) (Watering, error) {
	w := Watering{ID: uuid.NewString(), Plant: plant, WateredOn: wateredOn, RecordedAt: at.UTC()}
	_, err := db.conn.Exec(
		`INSERT INTO waterings (id, plant, watered_on, recorded_at) VALUES (?, ?, ?, ?)`,
		w.ID, w.Plant, w.WateredOn, w.RecordedAt)
	if err != nil {
		return Watering{}, fmt.Errorf("journal: record watering: %w", err)
	}
	return w, nil
}

// WateringHistory returns a plant's waterings, most recent first.
func (db *DB) WateringHistory(plant string, limit int) ([]Watering, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := db.conn.Query(`
		SELECT id, plant, watered_on, recorded_at FROM waterings
		WHERE plant = ?
		ORDER BY watered_on DESC, recorded_at DESC
		LIMIT ?`, plant, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: watering history: %w", err)
	}
	defer rows.Close()

	out := []Watering{}
	for rows.Next() {
		var w Watering
		if err := rows.Scan(&w.ID, &w.Plant, &w.WateredOn, &w.RecordedAt); err != nil {
			return nil, fmt.Errorf("journal: scan watering: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// RecordReminders stores a batch of emitted reminders in one transaction.
func (db *DB) RecordReminders(reminders []watering.Reminder, at time.Time) error {
	if len(reminders) == 0 {
		return nil
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("journal: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.Prepare(`
		INSERT INTO reminders (id, plant, days_since, interval_days, message, emitted_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("journal: prepare reminder insert: %w", err)
	}
	defer stmt.Close()

	emitted := at.UTC()
	for _, r := range reminders {
		if _, err := stmt.Exec(uuid.NewString(), r.PlantName, r.DaysSince, r.IntervalDays, r.Message, emitted); err != nil {
			return fmt.Errorf("journal: insert reminder: %w", err)
		}
	}
	return tx.Commit()
}

// RecentReminders returns the latest emitted reminders, newest first.
func (db *DB) RecentReminders(limit int) ([]ReminderEntry, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	rows, err := db.conn.Query(`
		SELECT id, plant, days_since, interval_days, message, emitted_at FROM reminders
		ORDER BY emitted_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent reminders: %w", err)
	}
	defer rows.Close()

	out := []ReminderEntry{}
	for rows.Next() {
		var e ReminderEntry
		if err := rows.Scan(&e.ID, &e.Plant, &e.DaysSince, &e.IntervalDays, &e.Message, &e.EmittedAt); err != nil {
			return nil, fmt.Errorf("journal: scan reminder: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// RecordUpload stores an inbox upload. Recording the same checksum twice
// keeps the first entry.
func (db *DB) RecordUpload(u Upload) error {
	if u.UploadedAt.IsZero() {
		u.UploadedAt = time.Now()
	}
	_, err := db.conn.Exec(`
		INSERT INTO uploads (checksum, plant, file_name, photo_id, uploaded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(checksum) DO NOTHING`,
		u.Checksum, u.Plant, u.FileName, u.PhotoID, u.UploadedAt.UTC())
	if err != nil {
		return fmt.Errorf("journal: record upload: %w", err)
	}
	return nil
}

// UploadByChecksum returns the upload with the given checksum, or
// apperr.ErrNotFound.
func (db *DB) UploadByChecksum(checksum string) (*Upload, error) {
	var u Upload
	err := db.conn.QueryRow(`
		SELECT checksum, plant, file_name, photo_id, uploaded_at FROM uploads WHERE checksum = ?`,
		checksum).Scan(&u.Checksum, &u.Plant, &u.FileName, &u.PhotoID, &u.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("journal: upload by checksum: %w", err)
	}
	return &u, nil
}
