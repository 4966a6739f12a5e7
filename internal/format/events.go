// Package format renders parsed events for terminal output.
package format

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hray3182/chronoparse/internal/models"
	"github.com/hray3182/chronoparse/internal/rrule"
)

const timeLayout = "2006-01-02 15:04"

// Events writes a numbered listing of events. Recurring events show their
// RRULE and the next upcoming occurrences after now.
func Events(w io.Writer, events []models.CalendarEvent, now time.Time, upcoming int) error {
	var sb strings.Builder
	if len(events) == 0 {
		sb.WriteString("No events found.\n")
		_, err := io.WriteString(w, sb.String())
		return err
	}

	for i, ev := range events {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, ev.Title))
		sb.WriteString(fmt.Sprintf("   When:     %s\n", When(ev)))

		if loc := location(ev); loc != "" {
			sb.WriteString(fmt.Sprintf("   Where:    %s\n", loc))
		}
		if ev.ExtendedProps != nil && ev.ExtendedProps.Category != "" {
			sb.WriteString(fmt.Sprintf("   Category: %s\n", ev.ExtendedProps.Category))
		}
		if ev.Recurrence != nil {
			writeRecurrence(&sb, ev, now, upcoming)
		}
		sb.WriteString(fmt.Sprintf("   Confidence: %.2f", ev.Metadata.Confidence))
		if len(ev.Metadata.InferredFields) > 0 {
			sb.WriteString(fmt.Sprintf(" (inferred: %s)", strings.Join(ev.Metadata.InferredFields, ", ")))
		}
		sb.WriteString("\n\n")
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// When formats the event's span in its own offset.
func When(ev models.CalendarEvent) string {
	start, err := time.Parse(time.RFC3339, ev.Start)
	if err != nil {
		return ev.Start + " - " + ev.End
	}
	end, err := time.Parse(time.RFC3339, ev.End)
	if err != nil {
		return start.Format(timeLayout) + " - " + ev.End
	}

	if ev.AllDay {
		if end.Sub(start) <= 24*time.Hour {
			return start.Format(time.DateOnly) + " (all day)"
		}
		return start.Format(time.DateOnly) + " - " + end.Format(time.DateOnly) + " (all day)"
	}
	if start.Format(time.DateOnly) == end.Format(time.DateOnly) {
		return start.Format(timeLayout) + " - " + end.Format("15:04") + " " + start.Format("-07:00")
	}
	return start.Format(timeLayout) + " - " + end.Format(timeLayout) + " " + start.Format("-07:00")
}

func location(ev models.CalendarEvent) string {
	if ev.Location != nil && *ev.Location != "" {
		return *ev.Location
	}
	if ev.ExtendedProps != nil && ev.ExtendedProps.Location != nil {
		return *ev.ExtendedProps.Location
	}
	return ""
}

func writeRecurrence(sb *strings.Builder, ev models.CalendarEvent, now time.Time, upcoming int) {
	start, err := time.Parse(time.RFC3339, ev.Start)
	if err != nil {
		return
	}
	loc := start.Location()

	sb.WriteString(fmt.Sprintf("   Repeats:  %s\n", rrule.String(ev.Recurrence, loc)))
	if upcoming <= 0 {
		return
	}

	r, err := rrule.Build(ev.Recurrence, start, loc)
	if err != nil {
		return
	}
	next := rrule.NextOccurrences(r, now, upcoming)
	if len(next) == 0 {
		return
	}
	parts := make([]string, len(next))
	for i, t := range next {
		parts[i] = t.In(loc).Format(timeLayout)
	}
	sb.WriteString(fmt.Sprintf("   Next:     %s\n", strings.Join(parts, ", ")))
}
