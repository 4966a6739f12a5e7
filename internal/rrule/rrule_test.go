package rrule

import (
	"testing"
	"time"

	"github.com/hray3182/chronoparse/internal/models"
)

func shanghai(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestBuildWeeklyByDay(t *testing.T) {
	loc := shanghai(t)
	start := time.Date(2025, 1, 6, 9, 0, 0, 0, loc) // Monday

	r, err := Build(&models.Recurrence{
		Freq:  models.FreqWeekly,
		ByDay: []models.Weekday{models.Monday, models.Wednesday},
		Count: 4,
	}, start, loc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	got := r.All()
	want := []time.Time{
		time.Date(2025, 1, 6, 9, 0, 0, 0, loc),
		time.Date(2025, 1, 8, 9, 0, 0, 0, loc),
		time.Date(2025, 1, 13, 9, 0, 0, 0, loc),
		time.Date(2025, 1, 15, 9, 0, 0, 0, loc),
	}
	if len(got) != len(want) {
		t.Fatalf("occurrences = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("occurrence %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBuildUntilDate(t *testing.T) {
	loc := shanghai(t)
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, loc)

	r, err := Build(&models.Recurrence{Freq: models.FreqDaily, Until: "2025-01-03"}, start, loc)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if n := len(r.All()); n != 3 {
		t.Errorf("occurrences = %d, want 3 (until is inclusive of the whole day)", n)
	}
}

func TestBuildUnboundedIsAccepted(t *testing.T) {
	loc := shanghai(t)
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, loc)

	r, err := Build(&models.Recurrence{Freq: models.FreqMonthly}, start, loc)
	if err != nil {
		t.Fatalf("unbounded recurrence must be accepted: %v", err)
	}
	next := NextOccurrences(r, start, 5)
	if len(next) != 5 {
		t.Fatalf("next occurrences = %d, want 5", len(next))
	}
	if want := time.Date(2025, 6, 1, 8, 0, 0, 0, loc); !next[4].Equal(want) {
		t.Errorf("fifth occurrence = %v, want %v", next[4], want)
	}
}

func TestBuildErrors(t *testing.T) {
	loc := shanghai(t)
	start := time.Date(2025, 1, 1, 8, 0, 0, 0, loc)

	tests := []struct {
		name string
		rec  *models.Recurrence
	}{
		{"missing freq", &models.Recurrence{}},
		{"unknown freq", &models.Recurrence{Freq: "HOURLY"}},
		{"unknown day", &models.Recurrence{Freq: models.FreqWeekly, ByDay: []models.Weekday{"XX"}}},
		{"bad until", &models.Recurrence{Freq: models.FreqDaily, Until: "someday"}},
		{"negative count", &models.Recurrence{Freq: models.FreqDaily, Count: -1}},
	}

	for _, tt := range tests {
		if _, err := Build(tt.rec, start, loc); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestString(t *testing.T) {
	loc := shanghai(t)
	got := String(&models.Recurrence{
		Freq:     models.FreqWeekly,
		Interval: 2,
		ByDay:    []models.Weekday{models.Tuesday, models.Thursday},
		Until:    "2025-03-01T00:00:00+08:00",
	}, loc)
	want := "FREQ=WEEKLY;INTERVAL=2;BYDAY=TU,TH;UNTIL=20250228T160000Z"
	if got != want {
		t.Errorf("String = %q, want %q", got, want)
	}
}
