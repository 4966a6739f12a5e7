package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/hray3182/chronoparse/internal/errcode"
	"github.com/hray3182/chronoparse/internal/models"
	"github.com/hray3182/chronoparse/internal/rrule"
	"github.com/hray3182/chronoparse/internal/timecheck"
)

const retrySuggestion = "Retry the request"

var fencePattern = regexp.MustCompile("(?s)^```[A-Za-z]*[ \t]*\n?(.*?)\n?[ \t]*```$")

// Result is a validated event list plus aggregate data.
type Result struct {
	Events          []models.CalendarEvent
	ConfidenceScore float64
	// Dropped counts events removed by truncation.
	Dropped int
	// Past counts events that start before the request's current time.
	Past int
}

type rawEvent struct {
	ID              models.Optional[string]           `json:"id"`
	Title           models.Optional[string]           `json:"title"`
	Start           models.Optional[string]           `json:"start"`
	End             models.Optional[string]           `json:"end"`
	AllDay          models.Optional[bool]             `json:"allDay"`
	Description     models.Optional[string]           `json:"description"`
	Location        models.Optional[string]           `json:"location"`
	BackgroundColor models.Optional[string]           `json:"backgroundColor"`
	BorderColor     models.Optional[string]           `json:"borderColor"`
	TextColor       models.Optional[string]           `json:"textColor"`
	ExtendedProps   models.Optional[rawExtendedProps] `json:"extendedProps"`
	Recurrence      models.Optional[rawRecurrence]    `json:"recurrence"`
	Metadata        models.Optional[rawMetadata]      `json:"metadata"`
}

type rawExtendedProps struct {
	Description models.Optional[string] `json:"description"`
	Location    models.Optional[string] `json:"location"`
	Category    models.Optional[string] `json:"category"`
	Timezone    models.Optional[string] `json:"timezone"`
	Priority    models.Optional[string] `json:"priority"`
}

type rawRecurrence struct {
	Freq     models.Optional[string]   `json:"freq"`
	Interval models.Optional[int]      `json:"interval"`
	ByDay    models.Optional[[]string] `json:"byDay"`
	Until    models.Optional[string]   `json:"until"`
	Count    models.Optional[int]      `json:"count"`
}

type rawMetadata struct {
	Confidence     models.Optional[float64]  `json:"confidence"`
	SourceText     models.Optional[string]   `json:"sourceText"`
	InferredFields models.Optional[[]string] `json:"inferredFields"`
}

// StripFence removes a surrounding Markdown code fence, which free-form JSON
// mode sometimes adds.
func StripFence(content string) string {
	content = strings.TrimSpace(content)
	if m := fencePattern.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return content
}

// Response parses raw model output and returns canonical events. Validation
// is idempotent: feeding the marshaled events back in yields equal events.
func Response(content string, req *models.ParseRequest, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var envelope struct {
		Events json.RawMessage `json:"events"`
	}
	if err := json.Unmarshal([]byte(StripFence(content)), &envelope); err != nil {
		logger.Error("failed to parse AI response", "content", preview(content), "error", err)
		return nil, errcode.Wrap(errcode.ParsingFailed, err, "AI response is not valid JSON", retrySuggestion)
	}
	trimmed := bytes.TrimSpace(envelope.Events)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		logger.Error("invalid AI response structure", "content", preview(content))
		return nil, errcode.New(errcode.ParsingFailed, "AI response has no events array", retrySuggestion)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, errcode.Wrap(errcode.ParsingFailed, err, "AI response has no events array", retrySuggestion)
	}

	maxEvents := req.Options.MaxEvents
	if maxEvents <= 0 {
		maxEvents = models.DefaultMaxEvents
	}
	res := &Result{Events: make([]models.CalendarEvent, 0, min(len(items), maxEvents))}
	if len(items) > maxEvents {
		logger.Warn("too many events parsed, truncating", "count", len(items), "max", maxEvents)
		res.Dropped = len(items) - maxEvents
		items = items[:maxEvents]
	}

	seen := make(map[string]int, len(items))
	var total float64
	for i, item := range items {
		n := i + 1
		var raw rawEvent
		if err := json.Unmarshal(item, &raw); err != nil {
			logger.Error("malformed event", "index", n, "error", err)
			return nil, errcode.Wrap(errcode.ParsingFailed, err, fmt.Sprintf("event %d is malformed", n), retrySuggestion)
		}

		ev, start, err := event(n, raw, req, logger)
		if err != nil {
			return nil, err
		}

		if prev, ok := seen[ev.ID]; ok {
			logger.Warn("duplicate event id", "id", ev.ID, "index", n, "first", prev)
		} else {
			seen[ev.ID] = n
		}
		if !req.Options.AllowPastEvents && start.Before(req.Now) {
			logger.Warn("past event detected", "index", n, "start", ev.Start, "current_time", req.Context.CurrentTime)
			res.Past++
		}

		total += ev.Metadata.Confidence
		res.Events = append(res.Events, ev)
	}

	if len(res.Events) > 0 {
		res.ConfidenceScore = total / float64(len(res.Events))
	}
	return res, nil
}

func event(n int, raw rawEvent, req *models.ParseRequest, logger *slog.Logger) (models.CalendarEvent, time.Time, error) {
	fail := func(format string, args ...any) (models.CalendarEvent, time.Time, error) {
		details := fmt.Sprintf("event %d ", n) + fmt.Sprintf(format, args...)
		logger.Error("invalid event", "index", n, "details", details)
		return models.CalendarEvent{}, time.Time{}, errcode.New(errcode.ParsingFailed, details, retrySuggestion)
	}

	var missing []string
	if strings.TrimSpace(raw.ID.Value) == "" {
		missing = append(missing, "id")
	}
	if strings.TrimSpace(raw.Title.Value) == "" {
		missing = append(missing, "title")
	}
	if raw.Start.Value == "" {
		missing = append(missing, "start")
	}
	if raw.End.Value == "" {
		missing = append(missing, "end")
	}
	if !raw.AllDay.Valid {
		missing = append(missing, "allDay")
	}
	if !raw.Metadata.Valid || !raw.Metadata.Value.Confidence.Valid {
		missing = append(missing, "metadata")
	}
	if len(missing) > 0 {
		return fail("is missing required fields: %s", strings.Join(missing, ", "))
	}

	start, err := timecheck.ParseInstant(raw.Start.Value, req.Location)
	if err != nil {
		return fail("has an invalid start time %q", raw.Start.Value)
	}
	end, err := timecheck.ParseInstant(raw.End.Value, req.Location)
	if err != nil {
		return fail("has an invalid end time %q", raw.End.Value)
	}
	if !end.After(start) {
		return fail("must end after it starts")
	}
	if !timecheck.HasExplicitOffset(raw.Start.Value) {
		return fail("start time has no UTC offset")
	}

	meta := raw.Metadata.Value
	confidence := meta.Confidence.Value
	if confidence < 0 || confidence > 1 {
		return fail("has confidence %v outside [0, 1]", confidence)
	}
	inferred := meta.InferredFields.Or(nil)
	if inferred == nil {
		inferred = []string{}
	}

	ev := models.CalendarEvent{
		ID:              raw.ID.Value,
		Title:           raw.Title.Value,
		Start:           raw.Start.Value,
		End:             raw.End.Value,
		AllDay:          raw.AllDay.Value,
		Description:     raw.Description.Ptr(),
		Location:        raw.Location.Ptr(),
		BackgroundColor: raw.BackgroundColor.Ptr(),
		BorderColor:     raw.BorderColor.Ptr(),
		TextColor:       raw.TextColor.Ptr(),
		ExtendedProps:   extendedProps(n, raw.ExtendedProps, logger),
		Metadata: models.EventMetadata{
			Confidence:     confidence,
			SourceText:     meta.SourceText.Or(""),
			InferredFields: inferred,
		},
	}

	rec, err := recurrence(raw.Recurrence)
	if err != nil {
		return fail("has an invalid recurrence: %v", err)
	}
	if rec != nil {
		if _, err := rrule.Build(rec, start, req.Location); err != nil {
			return fail("has an invalid recurrence: %v", err)
		}
		if rec.IsUnbounded() {
			logger.Debug("open-ended recurrence", "index", n, "freq", rec.Freq)
		}
		ev.Recurrence = rec
	}

	return ev, start, nil
}

// extendedProps collapses an all-null object to nil so that both upstream
// representations of "unset" normalize alike.
func extendedProps(n int, o models.Optional[rawExtendedProps], logger *slog.Logger) *models.ExtendedProps {
	if !o.Valid {
		return nil
	}
	raw := o.Value
	props := &models.ExtendedProps{
		Description: raw.Description.Ptr(),
		Location:    raw.Location.Ptr(),
		Timezone:    raw.Timezone.Or(""),
		Priority:    raw.Priority.Or(""),
	}
	if c := models.Category(raw.Category.Or("")); c != "" {
		if !c.Valid() {
			logger.Warn("unknown category, using other", "index", n, "category", c)
			c = models.CategoryOther
		}
		props.Category = c
	}

	if *props == (models.ExtendedProps{}) {
		return nil
	}
	return props
}

func recurrence(o models.Optional[rawRecurrence]) (*models.Recurrence, error) {
	if !o.Valid {
		return nil, nil
	}
	raw := o.Value
	if !raw.Freq.Valid && !raw.Interval.Valid && !raw.ByDay.Valid && !raw.Until.Valid && !raw.Count.Valid {
		return nil, nil
	}

	freq := models.Frequency(strings.ToUpper(strings.TrimSpace(raw.Freq.Or(""))))
	if freq == "" {
		return nil, rrule.ErrMissingFreq
	}
	if !freq.Valid() {
		return nil, fmt.Errorf("unknown freq %q", freq)
	}

	rec := &models.Recurrence{
		Freq:  freq,
		Until: raw.Until.Or(""),
	}
	if raw.Interval.Valid {
		if raw.Interval.Value < 1 {
			return nil, fmt.Errorf("interval must be >= 1, got %d", raw.Interval.Value)
		}
		rec.Interval = raw.Interval.Value
	}
	if raw.Count.Valid {
		if raw.Count.Value < 1 {
			return nil, fmt.Errorf("count must be >= 1, got %d", raw.Count.Value)
		}
		rec.Count = raw.Count.Value
	}
	for _, d := range raw.ByDay.Or(nil) {
		wd := models.Weekday(strings.ToUpper(strings.TrimSpace(d)))
		if !wd.Valid() {
			return nil, fmt.Errorf("unknown byDay value %q", d)
		}
		rec.ByDay = append(rec.ByDay, wd)
	}
	return rec, nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= 200 {
		return s
	}
	return string(r[:200])
}
