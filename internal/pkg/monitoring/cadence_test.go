package monitoring

import (
	"testing"
	"time"

	"github.com/accessradar/accessradar/app/models"
)

func TestWeekdayMaskRoundTrip(t *testing.T) {
	days := []time.Weekday{time.Monday, time.Thursday}
	mask := WeekdayMask(days)
	got := MaskWeekdays(mask)
	if len(got) != 2 || got[0] != time.Monday || got[1] != time.Thursday {
		t.Fatalf("round trip = %v", got)
	}
}

func TestMaskWeekdaysEmptyDefaultsToMonday(t *testing.T) {
	got := MaskWeekdays(0)
	if len(got) != 1 || got[0] != time.Monday {
		t.Fatalf("default = %v", got)
	}
}

func TestComputeNextWeeklyRunPreservesTimeOfDay(t *testing.T) {
	// Wednesday 10:30 UTC.
	from := time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC)
	next := ComputeNextWeeklyRun(from, []time.Weekday{time.Monday})

	if next.Weekday() != time.Monday {
		t.Fatalf("weekday = %v", next.Weekday())
	}
	if next.Hour() != 10 || next.Minute() != 30 {
		t.Fatalf("time of day not preserved: %v", next)
	}
	if !next.After(from) {
		t.Fatalf("next %v is not after from %v", next, from)
	}
	// Next Monday is March 9.
	if next.Day() != 9 {
		t.Fatalf("day = %d, want 9", next.Day())
	}
}

func TestComputeNextWeeklyRunSameWeekdayMovesAWeek(t *testing.T) {
	// Monday 08:00 must schedule next Monday, not today.
	from := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	next := ComputeNextWeeklyRun(from, []time.Weekday{time.Monday})
	if next.Day() != 9 || next.Weekday() != time.Monday {
		t.Fatalf("next = %v", next)
	}
}

func TestComputeNextWeeklyRunTwoDays(t *testing.T) {
	// Tuesday schedules Thursday for a Monday+Thursday cadence.
	from := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	next := ComputeNextWeeklyRun(from, []time.Weekday{time.Monday, time.Thursday})
	if next.Weekday() != time.Thursday || next.Day() != 5 {
		t.Fatalf("next = %v", next)
	}
}

func TestComputeNextWeeklyRunInvalidDaysFallBack(t *testing.T) {
	from := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	next := ComputeNextWeeklyRun(from, []time.Weekday{99, -3})
	// Falls back to Monday.
	if next.Weekday() != time.Monday {
		t.Fatalf("next = %v", next)
	}
}

func TestNormalizeCadenceMode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "weekly", want: models.CadenceModeWeekly},
		{in: "monthly_runs", want: models.CadenceModeMonthlyRuns},
		{in: "interval_days", want: models.CadenceModeIntervalDays},
		{in: "", want: models.CadenceModeIntervalDays},
		{in: "bogus", want: models.CadenceModeIntervalDays},
	}
	for _, tt := range tests {
		if got := NormalizeCadenceMode(tt.in); got != tt.want {
			t.Fatalf("NormalizeCadenceMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeCadenceValue(t *testing.T) {
	tests := []struct {
		mode  string
		value int
		want  int
	}{
		{mode: models.CadenceModeIntervalDays, value: 0, want: 14},
		{mode: models.CadenceModeIntervalDays, value: -5, want: 1},
		{mode: models.CadenceModeIntervalDays, value: 90, want: 60},
		{mode: models.CadenceModeIntervalDays, value: 7, want: 7},
		{mode: models.CadenceModeMonthlyRuns, value: 0, want: 2},
		{mode: models.CadenceModeMonthlyRuns, value: 1, want: 2},
		{mode: models.CadenceModeMonthlyRuns, value: 20, want: 8},
		{mode: models.CadenceModeMonthlyRuns, value: 4, want: 4},
	}
	for _, tt := range tests {
		if got := NormalizeCadenceValue(tt.mode, tt.value); got != tt.want {
			t.Fatalf("NormalizeCadenceValue(%s, %d) = %d, want %d", tt.mode, tt.value, got, tt.want)
		}
	}
}

func TestCadenceDays(t *testing.T) {
	tests := []struct {
		mode  string
		value int
		want  int
	}{
		{mode: models.CadenceModeIntervalDays, value: 14, want: 14},
		{mode: models.CadenceModeIntervalDays, value: 0, want: 1},
		{mode: models.CadenceModeMonthlyRuns, value: 2, want: 15},
		{mode: models.CadenceModeMonthlyRuns, value: 4, want: 8},
		{mode: models.CadenceModeMonthlyRuns, value: 8, want: 4},
	}
	for _, tt := range tests {
		if got := CadenceDays(tt.mode, tt.value); got != tt.want {
			t.Fatalf("CadenceDays(%s, %d) = %d, want %d", tt.mode, tt.value, got, tt.want)
		}
	}
}

func TestNextRunAtInterval(t *testing.T) {
	from := time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)
	next := NextRunAt(from, models.CadenceModeIntervalDays, 14)
	if want := from.AddDate(0, 0, 14); !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextRunAtWeeklyUsesMask(t *testing.T) {
	// Wednesday, mask Monday+Thursday: next is Thursday.
	from := time.Date(2026, 3, 4, 6, 0, 0, 0, time.UTC)
	mask := WeekdayMask([]time.Weekday{time.Monday, time.Thursday})
	next := NextRunAt(from, models.CadenceModeWeekly, mask)
	if next.Weekday() != time.Thursday || next.Day() != 5 {
		t.Fatalf("next = %v", next)
	}
}
