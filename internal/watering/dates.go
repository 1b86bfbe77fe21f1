package watering

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// APIDateLayout is the calendar-date format used on the wire.
const APIDateLayout = "2006-01-02"

const displayDateLayout = "Mon, Jan 2, 2006"

var apiDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// parseCalendarDate reads the leading YYYY-MM-DD of s. Timestamps that the
// store may produce on re-serialisation ("2024-03-01T00:00:00Z") keep their
// calendar date, so elapsed days do not drift with the encoding.
func parseCalendarDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(APIDateLayout) {
		return time.Time{}, fmt.Errorf("watering: invalid date %q", s)
	}
	if rest := s[len(APIDateLayout):]; rest != "" && rest[0] != 'T' && rest[0] != ' ' {
		return time.Time{}, fmt.Errorf("watering: invalid date %q", s)
	}
	d, err := time.Parse(APIDateLayout, s[:len(APIDateLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("watering: invalid date %q: %w", s, err)
	}
	return d, nil
}

// IsAPIDate reports whether s is exactly a valid YYYY-MM-DD calendar date.
func IsAPIDate(s string) bool {
	if !apiDateRe.MatchString(s) {
		return false
	}
	_, err := time.Parse(APIDateLayout, s)
	return err == nil
}

// FormatAPIDate renders the calendar date of t in t's own location.
func FormatAPIDate(t time.Time) string {
	return t.Format(APIDateLayout)
}

// ParseAPIDate returns the calendar date of s at midnight in now's location,
// or now itself when s is empty or unparseable.
func ParseAPIDate(s string, now time.Time) time.Time {
	d, err := parseCalendarDate(s)
	if err != nil {
		return now
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, now.Location())
}

// FormatDisplayDate renders s as "Mon, Jan 2, 2006", or returns s unchanged
// when it cannot be parsed.
func FormatDisplayDate(s string) string {
	d, err := parseCalendarDate(s)
	if err != nil {
		return s
	}
	return d.Format(displayDateLayout)
}

// CalendarDate returns the calendar date of s as a UTC midnight. It accepts a
// bare YYYY-MM-DD or a timestamp beginning with one.
func CalendarDate(s string) (time.Time, bool) {
	d, err := parseCalendarDate(s)
	return d, err == nil
}
