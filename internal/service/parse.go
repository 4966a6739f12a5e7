// Package service runs the parse pipeline: request validation, prompt
// construction, model invocation and response normalization.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hray3182/chronoparse/internal/ai"
	"github.com/hray3182/chronoparse/internal/errcode"
	"github.com/hray3182/chronoparse/internal/metrics"
	"github.com/hray3182/chronoparse/internal/models"
	"github.com/hray3182/chronoparse/internal/validate"
)

// Invoker obtains raw model output for a prompt.
type Invoker interface {
	Complete(ctx context.Context, req ai.Request) (*ai.Completion, error)
}

type Options struct {
	// Diagnostic exposes underlying error messages to callers.
	Diagnostic bool
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

type Service struct {
	invoker    Invoker
	diagnostic bool
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

func New(invoker Invoker, opts Options) *Service {
	s := &Service{
		invoker:    invoker,
		diagnostic: opts.Diagnostic,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Parse runs one request end to end. Every returned error is an
// *errcode.Error.
func (s *Service) Parse(ctx context.Context, raw *models.RawParseRequest) (*models.ParseResponse, error) {
	start := s.now()

	resp, err := s.parse(ctx, raw, start)
	elapsed := s.now().Sub(start)
	if err != nil {
		e := errcode.From(err, s.diagnostic)
		s.metrics.ObserveRequest(e.Code(), 0, elapsed)
		return nil, e
	}
	s.metrics.ObserveRequest("ok", len(resp.Events), elapsed)
	return resp, nil
}

func (s *Service) parse(ctx context.Context, raw *models.RawParseRequest, start time.Time) (*models.ParseResponse, error) {
	req, err := validate.Request(raw, s.logger)
	if err != nil {
		return nil, err
	}

	s.logger.Info("parsing schedule request",
		"text_length", len([]rune(req.Text)),
		"timezone", req.Context.Timezone,
		"locale", req.Context.Locale,
		"max_events", req.Options.MaxEvents,
	)

	completion, err := s.invoker.Complete(ctx, ai.Request{
		SystemPrompt: ai.BuildSystemPrompt(req.Context, req.Options),
		UserText:     req.Text,
	})
	if err != nil {
		return nil, s.invokeError(ctx, err)
	}

	result, err := validate.Response(completion.Content, req, s.logger)
	if err != nil {
		return nil, err
	}

	now := s.now()
	resp := &models.ParseResponse{
		Success:   true,
		Timestamp: now.UTC().Format(models.TimestampLayout),
		RequestID: NewRequestID(now),
		Events:    result.Events,
		Metadata: models.ResponseMetadata{
			TotalEvents:          len(result.Events),
			ParsingTimeMS:        now.Sub(start).Milliseconds(),
			ConfidenceScore:      result.ConfidenceScore,
			Model:                completion.Model,
			UseStructuredOutputs: completion.Structured(),
		},
	}

	s.logger.Info("schedule parsed successfully",
		"request_id", resp.RequestID,
		"events", resp.Metadata.TotalEvents,
		"dropped", result.Dropped,
		"past", result.Past,
		"strategy", completion.Strategy,
		"transport", completion.Transport,
		"attempts", completion.Attempts,
		"parsing_time_ms", resp.Metadata.ParsingTimeMS,
	)
	return resp, nil
}

// invokeError maps a terminal invoker state to the caller-facing taxonomy.
func (s *Service) invokeError(ctx context.Context, err error) error {
	s.logger.Error("AI invocation failed", "error", err)

	if errors.Is(err, ai.ErrEmptyCompletion) {
		return errcode.Wrap(errcode.ParsingFailed, err, "AI returned no content", "Retry the request")
	}

	var ie *ai.InvokeError
	if !errors.As(err, &ie) {
		return err
	}

	switch ie.State {
	case ai.StateCanceled:
		details := "request was canceled before the AI answered"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			details = "request deadline exceeded while waiting for the AI"
		}
		return errcode.Wrap(errcode.Timeout, err, details, "Retry later")
	case ai.StateFailedAuth:
		return errcode.Wrap(errcode.AIServiceError, err, "AI API authentication failed", "Check the API key configuration")
	case ai.StateFailedRateLimited:
		return errcode.Wrap(errcode.RateLimitExceeded, err, "AI API rate limit reached", "Retry later")
	case ai.StateFailedTransport:
		return errcode.Wrap(errcode.AIServiceError, err, s.detail("network error contacting the AI API", ie),
			"Check the network, firewall or proxy settings (ENABLE_PROXY, HTTPS_PROXY)")
	default:
		return errcode.Wrap(errcode.AIServiceError, err, s.detail("AI API rejected the request", ie),
			"Check the model configuration or retry later")
	}
}

func (s *Service) detail(summary string, ie *ai.InvokeError) string {
	if !s.diagnostic || ie.Err == nil {
		return summary
	}
	return fmt.Sprintf("%s: %v", summary, ie.Err)
}

// NewRequestID returns req_<unix millis>_<9 hex chars>.
func NewRequestID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
	return fmt.Sprintf("req_%d_%s", now.UnixMilli(), suffix)
}
