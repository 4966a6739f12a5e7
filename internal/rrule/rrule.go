package rrule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hray3182/chronoparse/internal/models"
	"github.com/hray3182/chronoparse/internal/timecheck"
	"github.com/teambition/rrule-go"
)

var freqMap = map[models.Frequency]rrule.Frequency{
	models.FreqDaily:   rrule.DAILY,
	models.FreqWeekly:  rrule.WEEKLY,
	models.FreqMonthly: rrule.MONTHLY,
	models.FreqYearly:  rrule.YEARLY,
}

var weekdayMap = map[models.Weekday]rrule.Weekday{
	models.Monday:    rrule.MO,
	models.Tuesday:   rrule.TU,
	models.Wednesday: rrule.WE,
	models.Thursday:  rrule.TH,
	models.Friday:    rrule.FR,
	models.Saturday:  rrule.SA,
	models.Sunday:    rrule.SU,
}

var ErrMissingFreq = errors.New("recurrence freq is required")

// ParseUntil accepts either a full timestamp or a bare date. A bare date
// means "through the end of that day" in loc.
func ParseUntil(until string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if d, err := time.ParseInLocation("2006-01-02", until, loc); err == nil {
		return d.Add(24*time.Hour - time.Second), nil
	}
	t, err := timecheck.ParseInstant(until, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid until %q: %w", until, err)
	}
	return t, nil
}

// Build compiles rec into an RFC 5545 rule anchored at dtstart. It does not
// bound the series: a rule with neither Until nor Count stays open-ended.
func Build(rec *models.Recurrence, dtstart time.Time, loc *time.Location) (*rrule.RRule, error) {
	if rec == nil {
		return nil, errors.New("recurrence is nil")
	}
	if rec.Freq == "" {
		return nil, ErrMissingFreq
	}
	freq, ok := freqMap[rec.Freq]
	if !ok {
		return nil, fmt.Errorf("unsupported freq %q", rec.Freq)
	}
	if rec.Interval < 0 {
		return nil, fmt.Errorf("interval must be >= 1, got %d", rec.Interval)
	}
	if rec.Count < 0 {
		return nil, fmt.Errorf("count must be >= 1, got %d", rec.Count)
	}

	opt := rrule.ROption{
		Freq:     freq,
		Interval: rec.Interval,
		Dtstart:  dtstart,
		Count:    rec.Count,
	}
	for _, d := range rec.ByDay {
		wd, ok := weekdayMap[d]
		if !ok {
			return nil, fmt.Errorf("unsupported byDay value %q", d)
		}
		opt.Byweekday = append(opt.Byweekday, wd)
	}
	if rec.Until != "" {
		until, err := ParseUntil(rec.Until, loc)
		if err != nil {
			return nil, err
		}
		opt.Until = until
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("failed to build RRULE: %w", err)
	}
	return r, nil
}

// String renders rec as an RRULE value (without the "RRULE:" prefix).
func String(rec *models.Recurrence, loc *time.Location) string {
	if rec == nil {
		return ""
	}
	parts := []string{"FREQ=" + string(rec.Freq)}

	if rec.Interval > 1 {
		parts = append(parts, fmt.Sprintf("INTERVAL=%d", rec.Interval))
	}

	if len(rec.ByDay) > 0 {
		days := make([]string, len(rec.ByDay))
		for i, d := range rec.ByDay {
			days[i] = string(d)
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}

	if rec.Count > 0 {
		parts = append(parts, fmt.Sprintf("COUNT=%d", rec.Count))
	}

	if rec.Until != "" {
		if until, err := ParseUntil(rec.Until, loc); err == nil {
			parts = append(parts, "UNTIL="+until.UTC().Format("20060102T150405Z"))
		}
	}

	return strings.Join(parts, ";")
}

// NextOccurrences returns up to n occurrences strictly after the given time.
// Callers must pass a positive n; open-ended rules are never fully expanded.
func NextOccurrences(r *rrule.RRule, after time.Time, n int) []time.Time {
	var results []time.Time
	next := r.Iterator()
	for len(results) < n {
		t, ok := next()
		if !ok {
			break
		}
		if t.After(after) {
			results = append(results, t)
		}
	}
	return results
}
