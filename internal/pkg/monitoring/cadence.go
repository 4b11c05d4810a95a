package monitoring

import (
	"math"
	"time"

	"github.com/accessradar/accessradar/app/models"
)

// Cadence bounds.
const (
	minIntervalDays    = 1
	maxIntervalDays    = 60
	defaultInterval    = 14
	minMonthlyRuns     = 2
	maxMonthlyRuns     = 8
	defaultMonthlyRuns = 2
)

// WeekdayMask packs a weekday set into the CadenceValue of weekly targets.
func WeekdayMask(days []time.Weekday) int {
	mask := 0
	for _, d := range days {
		if d < 0 || d > 6 {
			continue
		}
		mask |= 1 << uint(d)
	}
	return mask
}

// MaskWeekdays unpacks a weekday bitmask, defaulting to Monday when empty.
func MaskWeekdays(mask int) []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if mask&(1<<uint(d)) != 0 {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return []time.Weekday{time.Monday}
	}
	return days
}

// NormalizeCadenceMode maps arbitrary input to a known mode. Custom cadence
// configuration defaults to interval_days, weekly only when asked for.
func NormalizeCadenceMode(mode string) string {
	switch mode {
	case models.CadenceModeWeekly:
		return models.CadenceModeWeekly
	case models.CadenceModeMonthlyRuns:
		return models.CadenceModeMonthlyRuns
	default:
		return models.CadenceModeIntervalDays
	}
}

// NormalizeCadenceValue clamps a cadence value into its mode's bounds. Zero
// means unset and takes the mode default.
func NormalizeCadenceValue(mode string, value int) int {
	switch mode {
	case models.CadenceModeWeekly:
		if value == 0 {
			return WeekdayMask([]time.Weekday{time.Monday})
		}
		return value
	case models.CadenceModeMonthlyRuns:
		if value == 0 {
			return defaultMonthlyRuns
		}
		return clamp(value, minMonthlyRuns, maxMonthlyRuns)
	default:
		if value == 0 {
			return defaultInterval
		}
		return clamp(value, minIntervalDays, maxIntervalDays)
	}
}

// CadenceDays converts a non-weekly cadence into a day step. Monthly runs
// spread evenly over a 30-day month.
func CadenceDays(mode string, value int) int {
	if mode == models.CadenceModeMonthlyRuns {
		runs := clamp(value, minMonthlyRuns, maxMonthlyRuns)
		days := int(math.Round(30.0 / float64(runs)))
		if days < 1 {
			days = 1
		}
		return days
	}
	if value < 1 {
		return 1
	}
	return value
}

// ComputeNextWeeklyRun returns the next instant strictly after from that
// falls on one of the scheduled weekdays, preserving the time of day. The
// scan looks two weeks ahead and falls back to one week out, so a malformed
// weekday set can never stall a target.
func ComputeNextWeeklyRun(from time.Time, weekdays []time.Weekday) time.Time {
	daySet := make(map[time.Weekday]struct{})
	for _, d := range weekdays {
		if d >= 0 && d <= 6 {
			daySet[d] = struct{}{}
		}
	}
	if len(daySet) == 0 {
		daySet[time.Monday] = struct{}{}
	}

	from = from.UTC()
	for offset := 1; offset <= 14; offset++ {
		next := from.AddDate(0, 0, offset)
		if _, ok := daySet[next.Weekday()]; ok {
			return next
		}
	}
	return from.AddDate(0, 0, 7)
}

// NextRunAt computes the successor run instant for a target's cadence.
func NextRunAt(from time.Time, mode string, value int) time.Time {
	if mode == models.CadenceModeWeekly {
		return ComputeNextWeeklyRun(from, MaskWeekdays(value))
	}
	return from.UTC().AddDate(0, 0, CadenceDays(mode, value))
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
