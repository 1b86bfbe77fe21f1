package watering

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/plantcare/internal/models"
)

// State is the logical watering state of a plant. It is derived, never stored.
type State string

const (
	// StateHydrated means fewer than interval days have elapsed.
	StateHydrated State = "hydrated"
	// StateDue means at least interval days have elapsed.
	StateDue State = "due"
)

const day = 24 * time.Hour

// Status is the evaluated watering state of one plant at a point in time.
type Status struct {
	PlantName    string `json:"plantName"`
	DaysSince    int    `json:"daysSince"`
	IntervalDays int    `json:"intervalDays"`
	Overdue      bool   `json:"overdue"`
	DaysOverdue  int    `json:"daysOverdue"`
	State        State  `json:"state"`
}

// Summary renders the one-line list description of the status.
func (s Status) Summary() string {
	last := "today"
	if s.DaysSince != 0 {
		last = fmt.Sprintf("%d days ago", s.DaysSince)
	}
	return fmt.Sprintf("Last watered: %s • Every %d days", last, s.IntervalDays)
}

// Alert returns the overdue banner, or "" while the plant is hydrated.
func (s Status) Alert() string {
	if !s.Overdue {
		return ""
	}
	return fmt.Sprintf("Needs water! (%d days overdue)", s.DaysOverdue)
}

// Reminder is a single due-for-water notice.
type Reminder struct {
	PlantName    string `json:"plantName"`
	DaysSince    int    `json:"daysSince"`
	IntervalDays int    `json:"intervalDays"`
	Message      string `json:"message"`
}

// DaysSince returns the whole days elapsed between lastWatered and now,
// counted in calendar days of now's location. Future dates give negative
// values; unparseable dates give 0.
func DaysSince(lastWatered string, now time.Time) int {
	n, err := daysSince(lastWatered, now)
	if err != nil {
		return 0
	}
	return n
}

func daysSince(lastWatered string, now time.Time) (int, error) {
	last, err := parseCalendarDate(lastWatered)
	if err != nil {
		return 0, err
	}
	// Both sides are UTC midnights, so the difference is a whole number of
	// days and daylight-saving shifts in the local zone cannot skew it.
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(today.Sub(last) / day), nil
}

// IsOverdue reports whether the plant has gone at least its effective
// interval without water.
func IsOverdue(p models.PlantRecord, now time.Time) bool {
	return DaysSince(p.LastWatered, now) >= p.EffectiveInterval()
}

// Evaluate computes the status of a plant. It fails only when the plant's
// last-watered date cannot be read.
func Evaluate(p models.PlantRecord, now time.Time) (Status, error) {
	elapsed, err := daysSince(p.LastWatered, now)
	if err != nil {
		return Status{}, fmt.Errorf("plant %q: %w", p.Name, err)
	}
	return statusOf(p, elapsed), nil
}

// Describe is Evaluate for display: an unreadable date counts as watered today.
func Describe(p models.PlantRecord, now time.Time) Status {
	return statusOf(p, DaysSince(p.LastWatered, now))
}

func statusOf(p models.PlantRecord, elapsed int) Status {
	interval := p.EffectiveInterval()
	st := Status{
		PlantName:    p.Name,
		DaysSince:    elapsed,
		IntervalDays: interval,
		State:        StateHydrated,
	}
	if elapsed >= interval {
		st.Overdue = true
		st.DaysOverdue = elapsed - interval
		st.State = StateDue
	}
	return st
}

// ReminderMessage renders the reminder text for an overdue status.
func ReminderMessage(s Status) string {
	return fmt.Sprintf("%s needs watering! (%d days since last watered, interval: %d days)",
		s.PlantName, s.DaysSince, s.IntervalDays)
}

// DueReminders returns one reminder per overdue plant, in input order.
// Plants that cannot be evaluated are logged and skipped.
func DueReminders(plants []models.PlantRecord, now time.Time) []Reminder {
	var out []Reminder
	for _, p := range plants {
		st, err := Evaluate(p, now)
		if err != nil {
			slog.Warn("reminder check skipped plant",
				slog.String("plant", p.Name),
				slog.String("error", err.Error()))
			continue
		}
		if !st.Overdue {
			continue
		}
		out = append(out, Reminder{
			PlantName:    st.PlantName,
			DaysSince:    st.DaysSince,
			IntervalDays: st.IntervalDays,
			Message:      ReminderMessage(st),
		})
	}
	return out
}

// BuildReminders returns the reminder messages for every overdue plant, in
// input order. The result is empty when nothing is due.
func BuildReminders(plants []models.PlantRecord, now time.Time) []string {
	due := DueReminders(plants, now)
	msgs := make([]string, 0, len(due))
	for _, r := range due {
		msgs = append(msgs, r.Message)
	}
	return msgs
}
