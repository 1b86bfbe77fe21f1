package mcpserver

// WateringRules describes how plantcare derives watering intervals and
// decides a plant is due.
const WateringRules = `# Plantcare Watering Rules

## Interval resolution

A species' watering interval (in days) is taken from the first source that
yields a usable value:

1. **Benchmark.** A positive number is rounded half-up (minimum 1). Text is
   scanned for the first ` + "`N`" + ` or ` + "`N-M`" + `; a range uses its midpoint,
   rounded half-up. Zero, negative and digit-free benchmarks are unusable.
2. **Description**, lower-cased, first matching rule wins:

| Rule | Matches | Days |
|---|---|---|
| daily | "daily", "every day" | 1 |
| twice-weekly | "twice a week" | 3 |
| weekly | "week" without "month" | 7 / N for "N times a week" |
| monthly | "month" | 30 / N for "N times a month" |
| frequent | "frequent" | 2 |
| minimal | "minimal", "rare" | 14 |

3. **Default.** 7 days.

The species catalog's "Frequent", "Average" and "Minimum" values therefore
resolve to 2, 7 (default) and 7 (default) days.

## Due status

- ` + "`daysSince`" + ` counts calendar days from ` + "`lastWatered`" + ` (YYYY-MM-DD) to today.
- A plant is **due** once ` + "`daysSince >= interval`" + `; watering on the due day
  itself already counts.
- A missing or non-positive interval means 7.
- A plant whose date cannot be read is never reported as due.

## Reminders

While at least one plant is tracked, plants are checked every minute. Each
due plant yields:

` + "```" + `
<name> needs watering! (<daysSince> days since last watered, interval: <interval> days)
` + "```" + `
`
