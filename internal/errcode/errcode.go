// Package errcode maps internal failure kinds to the stable codes, messages
// and HTTP statuses returned to API callers.
package errcode

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hray3182/chronoparse/internal/models"
)

type Kind string

const (
	InvalidInput        Kind = "INVALID_INPUT"
	MissingContext      Kind = "MISSING_CONTEXT"
	InvalidTimezone     Kind = "INVALID_TIMEZONE"
	AmbiguousTime       Kind = "AMBIGUOUS_TIME"
	PastEventNotAllowed Kind = "PAST_EVENT_NOT_ALLOWED"
	TooManyEvents       Kind = "TOO_MANY_EVENTS"
	NotFound            Kind = "NOT_FOUND"
	AIServiceError      Kind = "AI_SERVICE_ERROR"
	ParsingFailed       Kind = "PARSING_FAILED"
	Timeout             Kind = "TIMEOUT"
	RateLimitExceeded   Kind = "RATE_LIMIT_EXCEEDED"
	InternalError       Kind = "INTERNAL_ERROR"
)

type definition struct {
	code       string
	message    string
	httpStatus int
}

// E1xxx are caller mistakes, E5xxx are server-side failures.
var definitions = map[Kind]definition{
	InvalidInput:        {"E1001", "Input text is empty or malformed", http.StatusBadRequest},
	MissingContext:      {"E1002", "Required context parameter is missing or malformed", http.StatusBadRequest},
	InvalidTimezone:     {"E1003", "Timezone is not a valid IANA identifier", http.StatusBadRequest},
	AmbiguousTime:       {"E1004", "Time expression is too ambiguous to resolve", http.StatusBadRequest},
	PastEventNotAllowed: {"E1005", "Past events are not allowed", http.StatusBadRequest},
	TooManyEvents:       {"E1006", "Event count exceeds max_events", http.StatusBadRequest},
	NotFound:            {"E4004", "Resource not found", http.StatusNotFound},
	AIServiceError:      {"E5001", "AI parsing service is temporarily unavailable", http.StatusServiceUnavailable},
	ParsingFailed:       {"E5002", "Parsing failed, the AI returned invalid data", http.StatusInternalServerError},
	Timeout:             {"E5003", "Request timed out", http.StatusGatewayTimeout},
	RateLimitExceeded:   {"E5004", "Too many requests, please try again later", http.StatusTooManyRequests},
	InternalError:       {"E5005", "Internal server error", http.StatusInternalServerError},
}

func lookup(k Kind) definition {
	if d, ok := definitions[k]; ok {
		return d
	}
	return definitions[InternalError]
}

// Error is a classified failure ready to be rendered on the wire.
type Error struct {
	Kind       Kind
	Details    string
	Suggestion string
	Err        error
}

func New(kind Kind, details, suggestion string) *Error {
	return &Error{Kind: kind, Details: details, Suggestion: suggestion}
}

// Wrap classifies err as kind while keeping it reachable through errors.Unwrap.
func Wrap(kind Kind, err error, details, suggestion string) *Error {
	return &Error{Kind: kind, Details: details, Suggestion: suggestion, Err: err}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s (%s)", lookup(e.Kind).code, e.Kind)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Code() string    { return lookup(e.Kind).code }
func (e *Error) Message() string { return lookup(e.Kind).message }
func (e *Error) HTTPStatus() int { return lookup(e.Kind).httpStatus }

// Body is the "error" object of a failed response.
type Body struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Response is the complete wire shape of a failed request.
type Response struct {
	Success   bool   `json:"success"`
	Timestamp string `json:"timestamp"`
	Error     Body   `json:"error"`
}

func (e *Error) Response(now time.Time) Response {
	return Response{
		Success:   false,
		Timestamp: now.UTC().Format(models.TimestampLayout),
		Error: Body{
			Code:       e.Code(),
			Message:    e.Message(),
			Details:    e.Details,
			Suggestion: e.Suggestion,
		},
	}
}

// Write renders e as the JSON error body with its HTTP status.
func Write(w http.ResponseWriter, e *Error, now time.Time) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(e.HTTPStatus())
	return json.NewEncoder(w).Encode(e.Response(now))
}

// From returns err as an *Error. Anything not already classified becomes
// INTERNAL_ERROR; its message is only exposed when diagnostic is set.
func From(err error, diagnostic bool) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	details := "internal server error"
	if diagnostic && err != nil {
		details = err.Error()
	}
	return Wrap(InternalError, err, details, "Retry later or contact support")
}
