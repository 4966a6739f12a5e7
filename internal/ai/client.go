package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hray3182/chronoparse/internal/metrics"
)

const (
	DefaultMaxAttempts  = 3
	DefaultBaseDelay    = 2 * time.Second
	DefaultTimeout      = 30 * time.Second
	DefaultProxyTimeout = 90 * time.Second
	DefaultTemperature  = 0.3
	DefaultMaxTokens    = 4000
)

// State is a node of the invocation state machine.
type State int

const (
	StateAttemptStructured State = iota
	StateAttemptDegraded
	StateSucceeded
	StateFailedTransport
	StateFailedAuth
	StateFailedRateLimited
	StateFailedFatal
	StateCanceled
)

func (s State) String() string {
	switch s {
	case StateAttemptStructured:
		return "attempt_structured"
	case StateAttemptDegraded:
		return "attempt_degraded"
	case StateSucceeded:
		return "succeeded"
	case StateFailedTransport:
		return "failed_transport"
	case StateFailedAuth:
		return "failed_auth"
	case StateFailedRateLimited:
		return "failed_rate_limited"
	case StateCanceled:
		return "canceled"
	default:
		return "failed_fatal"
	}
}

// Terminal reports whether no further transition leaves s.
func (s State) Terminal() bool {
	return s != StateAttemptStructured && s != StateAttemptDegraded
}

// transition is the FSM edge for a failed attempt run. Retries inside a run
// never reach here; only the class that ended the run does.
func transition(s State, c Class) State {
	switch c {
	case ClassSchemaUnsupported:
		if s == StateAttemptStructured {
			return StateAttemptDegraded
		}
		return StateFailedFatal
	case ClassTransport:
		return StateFailedTransport
	case ClassAuth:
		return StateFailedAuth
	case ClassRateLimit:
		return StateFailedRateLimited
	case ClassCanceled:
		return StateCanceled
	default:
		return StateFailedFatal
	}
}

func strategyFor(s State) Strategy {
	if s == StateAttemptDegraded {
		return StrategyDegraded
	}
	return StrategyStructured
}

// InvokeError is returned when the machine ends in a failed state.
type InvokeError struct {
	State     State
	Class     Class
	Transport string
	Attempts  int
	Err       error
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("ai invocation %s after %d attempt(s) via %s: %v", e.State, e.Attempts, e.Transport, e.Err)
}

func (e *InvokeError) Unwrap() error { return e.Err }

// Request is what the pipeline hands to the invoker.
type Request struct {
	SystemPrompt string
	UserText     string
}

// Completion is the raw model text plus how it was obtained.
type Completion struct {
	Content   string
	Strategy  Strategy
	Transport string
	Attempts  int
	Model     string
}

// Structured reports whether the structured-output contract was enforced.
func (c *Completion) Structured() bool { return c.Strategy == StrategyStructured }

type Options struct {
	Model       string
	Transports  []Transport
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Timeout bounds a single attempt.
	Timeout     time.Duration
	Temperature float32
	MaxTokens   int
	// DisableStructured starts the machine in degraded mode.
	DisableStructured bool
	Classifier        Classifier
	// Sleep waits between attempts; tests replace it.
	Sleep   func(ctx context.Context, d time.Duration) error
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Client drives one completion request through the state machine. It holds
// no per-request state and is safe for concurrent use.
type Client struct {
	model             string
	transports        []Transport
	maxAttempts       int
	baseDelay         time.Duration
	maxDelay          time.Duration
	timeout           time.Duration
	temperature       float32
	maxTokens         int
	disableStructured bool
	classify          Classifier
	sleep             func(ctx context.Context, d time.Duration) error
	metrics           *metrics.Metrics
	logger            *slog.Logger
}

func New(opts Options) (*Client, error) {
	if len(opts.Transports) == 0 {
		return nil, errors.New("ai: at least one transport is required")
	}
	if opts.Model == "" {
		return nil, errors.New("ai: model is required")
	}

	c := &Client{
		model:             opts.Model,
		transports:        opts.Transports,
		maxAttempts:       opts.MaxAttempts,
		baseDelay:         opts.BaseDelay,
		maxDelay:          opts.MaxDelay,
		timeout:           opts.Timeout,
		temperature:       opts.Temperature,
		maxTokens:         opts.MaxTokens,
		disableStructured: opts.DisableStructured,
		classify:          opts.Classifier,
		sleep:             opts.Sleep,
		metrics:           opts.Metrics,
		logger:            opts.Logger,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.baseDelay <= 0 {
		c.baseDelay = DefaultBaseDelay
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.temperature == 0 {
		c.temperature = DefaultTemperature
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.classify == nil {
		c.classify = Classify
	}
	if c.sleep == nil {
		c.sleep = sleepContext
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

func (c *Client) Model() string { return c.model }

// Complete runs the state machine to a terminal state. Each strategy has one
// attempt budget shared by the whole transport chain: a transport-class
// failure moves the next attempt to the next transport without resetting the
// count. The degraded fallback starts a fresh budget on the transport that
// rejected the schema.
func (c *Client) Complete(ctx context.Context, req Request) (*Completion, error) {
	state := StateAttemptStructured
	if c.disableStructured {
		state = StateAttemptDegraded
	}

	var (
		class   Class
		lastErr error
		ti      int
		total   int
	)
	for !state.Terminal() {
		strategy := strategyFor(state)
		content, last, attempts, err := c.run(ctx, ti, strategy, req)
		ti = last
		total += attempts
		name := c.transports[ti].Name()
		if err == nil {
			c.logger.Debug("completion succeeded",
				"transport", name,
				"strategy", strategy,
				"attempts", total,
			)
			return &Completion{
				Content:   content,
				Strategy:  strategy,
				Transport: name,
				Attempts:  total,
				Model:     c.model,
			}, nil
		}

		class = c.classify(err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			class = ClassCanceled
			if !errors.Is(err, ctxErr) {
				err = fmt.Errorf("%w: %w", ctxErr, err)
			}
		}
		next := transition(state, class)
		c.logger.Warn("completion run failed",
			"transport", name,
			"strategy", strategy,
			"class", class,
			"from", state,
			"to", next,
			"error", err,
		)
		if next == StateAttemptDegraded {
			c.metrics.IncFallback()
		}
		lastErr = err
		state = next
	}

	return nil, &InvokeError{
		State:     state,
		Class:     class,
		Transport: c.transports[ti].Name(),
		Attempts:  total,
		Err:       lastErr,
	}
}

// run performs up to maxAttempts calls with one strategy, starting on
// transport ti. Only transport-class failures are retried, and each retry goes
// to the next transport in the chain, wrapping around. It returns the index of
// the transport used last.
func (c *Client) run(ctx context.Context, ti int, strategy Strategy, req Request) (string, int, int, error) {
	chat := ChatRequest{
		Model:        c.model,
		SystemPrompt: req.SystemPrompt,
		UserText:     req.UserText,
		Strategy:     strategy,
		Temperature:  c.temperature,
		MaxTokens:    c.maxTokens,
	}
	backoff := newBackoff(c.baseDelay, c.maxDelay, c.maxAttempts)

	attempts := 0
	for {
		tr := c.transports[ti]
		attempts++
		content, class, err := c.attempt(ctx, tr, chat)
		if err == nil {
			return content, ti, attempts, nil
		}
		if class != ClassTransport || ctx.Err() != nil {
			return "", ti, attempts, err
		}

		delay, stop := backoff.Next()
		if stop {
			return "", ti, attempts, err
		}
		next := (ti + 1) % len(c.transports)
		c.logger.Info("retrying completion",
			"transport", tr.Name(),
			"next_transport", c.transports[next].Name(),
			"strategy", strategy,
			"attempt", attempts,
			"delay", delay,
			"error", err,
		)
		if serr := c.sleep(ctx, delay); serr != nil {
			return "", ti, attempts, fmt.Errorf("%w: %w", serr, err)
		}
		ti = next
	}
}

func (c *Client) attempt(ctx context.Context, tr Transport, chat ChatRequest) (string, Class, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	content, err := tr.Complete(ctx, chat)
	outcome := "ok"
	var class Class
	if err != nil {
		class = c.classify(err)
		outcome = class.String()
	}
	c.metrics.ObserveAttempt(string(chat.Strategy), tr.Name(), outcome, time.Since(start))
	return content, class, err
}
