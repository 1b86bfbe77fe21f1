package journal

import (
	"time"

	"github.com/starford/plantcare/internal/watering"
)

// Journal records what plantcare did on the user's behalf: waterings,
// emitted reminders and photos uploaded from the inbox. Consumers depend on
// this interface rather than *DB.
type Journal interface {
	RecordWatering(plant, wateredOn string, at time.Time) (Watering, error)
	WateringHistory(plant string, limit int) ([]Watering, error)
	RecordReminders(reminders []watering.Reminder, at time.Time) error
	RecentReminders(limit int) ([]ReminderEntry, error)
	RecordUpload(u Upload) error
	UploadByChecksum(checksum string) (*Upload, error)
	Close() error
}

// Verify *DB satisfies Journal at compile time.
var _ Journal = (*DB)(nil)
