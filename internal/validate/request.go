// Package validate checks inbound parse requests and normalizes model output
// into calendar events.
package validate

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"

	"github.com/hray3182/chronoparse/internal/errcode"
	"github.com/hray3182/chronoparse/internal/models"
	"github.com/hray3182/chronoparse/internal/timecheck"
)

const (
	minDuration  = 1
	maxDuration  = 1440
	minMaxEvents = 1
	maxMaxEvents = 50
)

// Request runs the inbound checks in a fixed order and returns the first
// failure. On success the result carries defaults and the parsed instant.
func Request(raw *models.RawParseRequest, logger *slog.Logger) (*models.ParseRequest, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if raw == nil {
		return nil, errcode.New(errcode.InvalidInput, "request body is empty", "Send a JSON body with text and context")
	}

	text := strings.TrimSpace(raw.Text)
	if text == "" {
		return nil, errcode.New(errcode.InvalidInput, "text must not be empty",
			"Describe the schedule, e.g. 明天下午3点开会")
	}
	if n := utf8.RuneCountInString(raw.Text); n > models.MaxTextLength {
		return nil, errcode.New(errcode.InvalidInput,
			fmt.Sprintf("text must be at most %d characters, got %d", models.MaxTextLength, n),
			"Shorten the input text")
	}

	c := raw.Context
	if c == nil {
		return nil, errcode.New(errcode.MissingContext, "context is required",
			"Provide context.current_time and context.timezone")
	}
	if c.CurrentTime == "" {
		return nil, errcode.New(errcode.MissingContext, "context.current_time is required",
			"Provide the current time in ISO 8601 format with offset")
	}
	now, err := timecheck.ParseISO8601WithOffset(c.CurrentTime)
	if err != nil {
		return nil, errcode.Wrap(errcode.MissingContext, err, "context.current_time is malformed",
			"Use ISO 8601 with an explicit offset, e.g. 2025-01-01T20:00:00+08:00")
	}
	if c.Timezone == "" {
		return nil, errcode.New(errcode.MissingContext, "context.timezone is required",
			"Provide an IANA timezone identifier, e.g. Asia/Shanghai")
	}
	if !timecheck.IsValidTimezone(c.Timezone) {
		return nil, errcode.New(errcode.InvalidTimezone, "invalid timezone: "+c.Timezone,
			"Use a valid IANA timezone identifier, e.g. Asia/Shanghai, America/New_York")
	}
	loc, err := timecheck.LoadTimezone(c.Timezone)
	if err != nil {
		return nil, errcode.Wrap(errcode.InvalidTimezone, err, "invalid timezone: "+c.Timezone,
			"Use a valid IANA timezone identifier, e.g. Asia/Shanghai, America/New_York")
	}

	opts, err := options(raw.Options)
	if err != nil {
		return nil, err
	}

	return &models.ParseRequest{
		Text: text,
		Context: models.ParseContext{
			CurrentTime: c.CurrentTime,
			Timezone:    c.Timezone,
			Locale:      canonicalLocale(c.Locale, logger),
		},
		Options:  opts,
		Now:      now,
		Location: loc,
	}, nil
}

func options(raw *models.RawOptions) (models.ParseOptions, error) {
	opts := models.DefaultOptions()
	if raw == nil {
		return opts, nil
	}

	duration := raw.DefaultDurationMinutes
	if duration == nil {
		duration = raw.DefaultDuration
	}
	if duration != nil {
		if *duration < minDuration || *duration > maxDuration {
			return opts, errcode.New(errcode.InvalidInput,
				fmt.Sprintf("default_duration_minutes must be between %d and %d", minDuration, maxDuration),
				"Provide a duration in minutes")
		}
		opts.DefaultDurationMinutes = *duration
	}

	if raw.MaxEvents != nil {
		if *raw.MaxEvents < minMaxEvents || *raw.MaxEvents > maxMaxEvents {
			return opts, errcode.New(errcode.InvalidInput,
				fmt.Sprintf("max_events must be between %d and %d", minMaxEvents, maxMaxEvents),
				"Provide a valid event count limit")
		}
		opts.MaxEvents = *raw.MaxEvents
	}

	if raw.AllowPastEvents != nil {
		opts.AllowPastEvents = *raw.AllowPastEvents
	}
	return opts, nil
}

// canonicalLocale normalizes a BCP 47 tag ("zh_cn" -> "zh-CN"). Unparseable
// tags fall back to the default and are never rejected.
func canonicalLocale(locale string, logger *slog.Logger) string {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return models.DefaultLocale
	}
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		logger.Warn("unparseable locale, using default", "locale", locale, "default", models.DefaultLocale, "error", err)
		return models.DefaultLocale
	}
	return tag.String()
}
