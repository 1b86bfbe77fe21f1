// Package watering derives watering intervals from species care data and
// evaluates whether plants are due for water.
package watering

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/plantcare/internal/models"
)

const (
	daysPerWeek  = 7
	daysPerMonth = 30
)

var (
	benchmarkRe = regexp.MustCompile(`(\d+)(?:-(\d+))?`)
	perWeekRe   = regexp.MustCompile(`(\d+)\s*(?:times?\s*(?:a|per)\s*week|week)`)
	perMonthRe  = regexp.MustCompile(`(\d+)\s*(?:times?\s*(?:a|per)\s*month|month)`)
)

// Sources reported by Explain.
const (
	SourceBenchmark = "benchmark"
	SourceDefault   = "default"
)

// descriptionRule maps a lower-cased watering description to a number of
// days. Rules are evaluated in order and the first match wins.
type descriptionRule struct {
	name  string
	match func(text string) bool
	days  func(text string) int
}

var descriptionRules = []descriptionRule{
	{
		name:  "daily",
		match: containsAny("daily", "every day"),
		days:  constant(1),
	},
	{
		name:  "twice-weekly",
		match: containsAny("twice a week"),
		days:  constant(3),
	},
	{
		name: "weekly",
		match: func(text string) bool {
			return strings.Contains(text, "week") && !strings.Contains(text, "month")
		},
		days: perPeriod(perWeekRe, daysPerWeek),
	},
	{
		name:  "monthly",
		match: containsAny("month"),
		days:  perPeriod(perMonthRe, daysPerMonth),
	},
	{
		name:  "frequent",
		match: containsAny("frequent"),
		days:  constant(2),
	},
	{
		name:  "minimal",
		match: containsAny("minimal", "rare"),
		days:  constant(14),
	},
}

// ResolveInterval converts species care metadata into a watering interval in
// days. It always returns a value of at least one.
//
// A usable benchmark wins; otherwise the watering description is matched
// against the ordered rule table; otherwise the default interval is used.
func ResolveInterval(md models.SpeciesCareMetadata) int {
	days, _ := Explain(md)
	return days
}

// Explain is ResolveInterval that also names what produced the interval:
// SourceBenchmark, SourceDefault, or the name of the matching description rule.
func Explain(md models.SpeciesCareMetadata) (days int, source string) {
	if d, ok := intervalFromBenchmark(md.WateringBenchmark); ok {
		return d, SourceBenchmark
	}
	if d, rule, ok := intervalFromDescription(md.WateringDescription); ok {
		return d, rule
	}
	return models.DefaultWateringIntervalDays, SourceDefault
}

// intervalFromBenchmark reads a numeric benchmark, or the first "N" or "N-M"
// found in a textual one. Zero, negative and digit-free values are unusable.
func intervalFromBenchmark(v *models.BenchmarkValue) (int, bool) {
	if v == nil {
		return 0, false
	}
	if v.Number != nil {
		f := *v.Number
		if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
			return 0, false
		}
		return max(roundHalfUp(f), 1), true
	}

	m := benchmarkRe.FindStringSubmatch(v.Text)
	if m == nil {
		return 0, false
	}
	lo, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	hi := lo
	if m[2] != "" {
		if hi, err = strconv.Atoi(m[2]); err != nil {
			return 0, false
		}
	}
	days := roundHalfUp(float64(lo+hi) / 2)
	if days <= 0 {
		return 0, false
	}
	return days, true
}

func intervalFromDescription(desc string) (int, string, bool) {
	text := strings.ToLower(strings.TrimSpace(desc))
	if text == "" {
		return 0, "", false
	}
	for _, r := range descriptionRules {
		if r.match(text) {
			return r.days(text), r.name, true
		}
	}
	return 0, "", false
}

func containsAny(needles ...string) func(string) bool {
	return func(text string) bool {
		for _, n := range needles {
			if strings.Contains(text, n) {
				return true
			}
		}
		return false
	}
}

func constant(days int) func(string) int {
	return func(string) int { return days }
}

// perPeriod divides a period length by the "N times per period" count found
// in the text. A missing or zero count yields the whole period.
func perPeriod(re *regexp.Regexp, periodDays int) func(string) int {
	return func(text string) int {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return periodDays
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			return periodDays
		}
		return max(roundHalfUp(float64(periodDays)/float64(n)), 1)
	}
}

// roundHalfUp rounds .5 toward positive infinity.
func roundHalfUp(f float64) int {
	return int(math.Floor(f + 0.5))
}

// ParseBenchmark reads a benchmark given as text: numbers stay numeric,
// anything else is kept as text.
func ParseBenchmark(s string) *models.BenchmarkValue {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return models.NumericBenchmark(f)
	}
	return models.TextBenchmark(s)
}
