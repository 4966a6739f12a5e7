package format

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/hray3182/chronoparse/internal/models"
)

func strPtr(s string) *string { return &s }

func TestWhen(t *testing.T) {
	tests := []struct {
		name string
		ev   models.CalendarEvent
		want string
	}{
		{
			"same day",
			models.CalendarEvent{Start: "2025-01-16T15:00:00+08:00", End: "2025-01-16T16:00:00+08:00"},
			"2025-01-16 15:00 - 16:00 +08:00",
		},
		{
			"overnight",
			models.CalendarEvent{Start: "2025-01-16T23:00:00+08:00", End: "2025-01-17T01:00:00+08:00"},
			"2025-01-16 23:00 - 2025-01-17 01:00 +08:00",
		},
		{
			"all day",
			models.CalendarEvent{Start: "2025-01-16T00:00:00+08:00", End: "2025-01-17T00:00:00+08:00", AllDay: true},
			"2025-01-16 (all day)",
		},
		{
			"multi day",
			models.CalendarEvent{Start: "2025-01-16T00:00:00+08:00", End: "2025-01-19T00:00:00+08:00", AllDay: true},
			"2025-01-16 - 2025-01-19 (all day)",
		},
		{
			"unparseable",
			models.CalendarEvent{Start: "tomorrow", End: "later"},
			"tomorrow - later",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := When(tt.ev); got != tt.want {
				t.Errorf("When = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEvents(t *testing.T) {
	events := []models.CalendarEvent{
		{
			Title:         "开会",
			Start:         "2025-01-16T15:00:00+08:00",
			End:           "2025-01-16T16:00:00+08:00",
			ExtendedProps: &models.ExtendedProps{Category: models.CategoryWork, Location: strPtr("会议室A")},
			Metadata:      models.EventMetadata{Confidence: 0.92, InferredFields: []string{"end"}},
		},
		{
			Title: "Standup",
			Start: "2025-01-20T09:00:00+08:00",
			End:   "2025-01-20T09:15:00+08:00",
			Recurrence: &models.Recurrence{
				Freq:  models.FreqWeekly,
				ByDay: []models.Weekday{models.Monday},
				Count: 3,
			},
			Metadata: models.EventMetadata{Confidence: 0.8, InferredFields: []string{}},
		},
	}
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.FixedZone("CST", 8*3600))

	var buf bytes.Buffer
	if err := Events(&buf, events, now, 5); err != nil {
		t.Fatalf("Events: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"1. 开会",
		"Where:    会议室A",
		"Category: work",
		"Confidence: 0.92 (inferred: end)",
		"2. Standup",
		"Repeats:  FREQ=WEEKLY;BYDAY=MO;COUNT=3",
		"Next:     2025-01-20 09:00, 2025-01-27 09:00, 2025-02-03 09:00\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestEventsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := Events(&buf, nil, time.Now(), 3); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "No events found.\n" {
		t.Errorf("output = %q", buf.String())
	}
}
