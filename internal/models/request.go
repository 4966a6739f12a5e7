package models

import "time"

const (
	DefaultDurationMinutes = 60
	DefaultMaxEvents       = 10
	DefaultLocale          = "zh-CN"
	MaxTextLength          = 2000
)

// TimestampLayout is the response timestamp format, always rendered in UTC
// with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ParseContext is the caller's temporal frame for resolving relative
// expressions such as "tomorrow".
type ParseContext struct {
	CurrentTime string `json:"current_time"`
	Timezone    string `json:"timezone"`
	Locale      string `json:"locale"`
}

type ParseOptions struct {
	DefaultDurationMinutes int  `json:"default_duration_minutes"`
	MaxEvents              int  `json:"max_events"`
	AllowPastEvents        bool `json:"allow_past_events"`
}

func DefaultOptions() ParseOptions {
	return ParseOptions{
		DefaultDurationMinutes: DefaultDurationMinutes,
		MaxEvents:              DefaultMaxEvents,
		AllowPastEvents:        false,
	}
}

// RawParseRequest is the inbound JSON body before validation. Pointers mark
// fields whose absence matters.
type RawParseRequest struct {
	Text    string      `json:"text"`
	Context *RawContext `json:"context"`
	Options *RawOptions `json:"options"`
}

type RawContext struct {
	CurrentTime string `json:"current_time"`
	Timezone    string `json:"timezone"`
	Locale      string `json:"locale"`
}

type RawOptions struct {
	DefaultDurationMinutes *int  `json:"default_duration_minutes"`
	DefaultDuration        *int  `json:"default_duration"` // older clients
	MaxEvents              *int  `json:"max_events"`
	AllowPastEvents        *bool `json:"allow_past_events"`
}

// ParseRequest is a validated request with defaults applied.
type ParseRequest struct {
	Text     string
	Context  ParseContext
	Options  ParseOptions
	Now      time.Time
	Location *time.Location
}

// ParseResponse is the success body of POST /api/v1/events/parse.
type ParseResponse struct {
	Success   bool             `json:"success"`
	Timestamp string           `json:"timestamp"`
	RequestID string           `json:"request_id"`
	Events    []CalendarEvent  `json:"events"`
	Metadata  ResponseMetadata `json:"metadata"`
}

type ResponseMetadata struct {
	TotalEvents          int     `json:"total_events"`
	ParsingTimeMS        int64   `json:"parsing_time_ms"`
	ConfidenceScore      float64 `json:"confidence_score"`
	Model                string  `json:"model"`
	UseStructuredOutputs bool    `json:"use_structured_outputs"`
}
