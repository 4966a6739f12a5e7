package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hray3182/chronoparse/internal/errcode"
	"github.com/hray3182/chronoparse/internal/middleware"
	"github.com/hray3182/chronoparse/internal/models"
)

const (
	ServiceName  = "chronoparse"
	maxBodyBytes = 10 << 20
)

// Parser runs the parse pipeline. Returned errors should be *errcode.Error.
type Parser interface {
	Parse(ctx context.Context, raw *models.RawParseRequest) (*models.ParseResponse, error)
}

type Options struct {
	Version    string
	Diagnostic bool
	// Gatherer backs GET /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	Now      func() time.Time
}

type Server struct {
	parser     Parser
	version    string
	diagnostic bool
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
	now        func() time.Time
}

func New(parser Parser, opts Options) *Server {
	s := &Server{
		parser:     parser,
		version:    opts.Version,
		diagnostic: opts.Diagnostic,
		gatherer:   opts.Gatherer,
		logger:     opts.Logger,
		now:        opts.Now,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.version == "" {
		s.version = "dev"
	}
	return s
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.indexHandler)
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("POST /api/v1/events/parse", s.parseHandler)
	if s.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("/", s.notFoundHandler)

	var h http.Handler = mux
	h = middleware.CORS(h)
	h = middleware.Recover(s.logger.With("component", "recover"))(h)
	return middleware.RequestLogger(s.logger.With("component", "http"))(h)
}

func (s *Server) parseHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var raw models.RawParseRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.writeError(w, s.decodeError(err))
		return
	}

	resp, err := s.parser.Parse(r.Context(), &raw)
	if err != nil {
		s.writeError(w, errcode.From(err, s.diagnostic))
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) decodeError(err error) *errcode.Error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errcode.Wrap(errcode.InvalidInput, err,
			fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), "Send a smaller request body")
	}
	details := "request body is not valid JSON"
	if s.diagnostic {
		details += ": " + err.Error()
	}
	return errcode.Wrap(errcode.InvalidInput, err, details, "Send a JSON object with text and context fields")
}

type endpoint struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	endpoints := map[string]endpoint{
		"health": {http.MethodGet, "/health", "Health check"},
		"parse":  {http.MethodPost, "/api/v1/events/parse", "Parse a natural-language schedule description into calendar events"},
	}
	if s.gatherer != nil {
		endpoints["metrics"] = endpoint{http.MethodGet, "/metrics", "Prometheus metrics"}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"service":     ServiceName,
		"version":     s.version,
		"description": "Turns natural-language schedule text into structured calendar events",
		"endpoints":   endpoints,
		"timestamp":   s.timestamp(),
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"timestamp": s.timestamp(),
		"service":   ServiceName,
		"version":   s.version,
	})
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, errcode.New(errcode.NotFound,
		fmt.Sprintf("path not found: %s %s", r.Method, r.URL.Path),
		"Available paths: GET /health, POST /api/v1/events/parse"))
}

func (s *Server) timestamp() string {
	return s.now().UTC().Format(models.TimestampLayout)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, e *errcode.Error) {
	if e.HTTPStatus() >= http.StatusInternalServerError {
		s.logger.Error("request failed", "code", e.Code(), "error", e)
	}
	if err := errcode.Write(w, e, s.now()); err != nil {
		s.logger.Warn("failed to write error response", "error", err)
	}
}
