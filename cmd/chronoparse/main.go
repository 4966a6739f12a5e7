package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/urfave/cli/v2"

	"github.com/hray3182/chronoparse/internal/ai"
	"github.com/hray3182/chronoparse/internal/config"
	"github.com/hray3182/chronoparse/internal/errcode"
	"github.com/hray3182/chronoparse/internal/format"
	"github.com/hray3182/chronoparse/internal/logging"
	"github.com/hray3182/chronoparse/internal/metrics"
	"github.com/hray3182/chronoparse/internal/models"
	"github.com/hray3182/chronoparse/internal/server"
	"github.com/hray3182/chronoparse/internal/service"
	"github.com/hray3182/chronoparse/internal/timecheck"
)

var version = "dev"

func main() {
	app := &cli.App{
		Name:    "chronoparse",
		Usage:   "Turn natural-language schedule text into structured calendar events.",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "Path to an optional YAML config file.", EnvVars: []string{"CHRONOPARSE_CONFIG"}},
		},
		Commands: []*cli.Command{
			serveCommand(),
			parseCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	service  *service.Service
}

// bootstrap loads configuration and wires the parse pipeline.
func bootstrap(c *cli.Context) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if listen := c.String("listen"); listen != "" {
		cfg.Listen = listen
	}

	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	httpClient := ai.NewHTTPClient(cfg.ProxyURL)
	var transports []ai.Transport
	for _, name := range cfg.AI.Transports {
		switch name {
		case "sdk":
			transports = append(transports, ai.NewSDKTransport(cfg.AI.APIKey, cfg.AI.BaseURL, httpClient))
		case "http":
			transports = append(transports, ai.NewHTTPTransport(cfg.AI.APIKey, cfg.AI.BaseURL, httpClient))
		}
	}

	if cfg.ProxyURL != nil {
		logger.Info("using proxy for AI requests", "proxy", cfg.RedactedProxy(), "timeout", cfg.AttemptTimeout())
	} else {
		logger.Info("connecting to AI API directly", "timeout", cfg.AttemptTimeout())
	}
	if cfg.StructuredOutputs() && !cfg.SupportsStructuredOutputs() {
		logger.Warn("model is not known to support structured outputs, requests may fall back to JSON mode",
			"model", cfg.AI.Model, "supported", config.StructuredOutputModels)
	}

	client, err := ai.New(ai.Options{
		Model:             cfg.AI.Model,
		Transports:        transports,
		MaxAttempts:       cfg.AI.MaxAttempts,
		BaseDelay:         cfg.AI.RetryBaseDelay,
		MaxDelay:          cfg.AI.RetryMaxDelay,
		Timeout:           cfg.AttemptTimeout(),
		Temperature:       cfg.AI.Temperature,
		MaxTokens:         cfg.AI.MaxTokens,
		DisableStructured: !cfg.StructuredOutputs(),
		Metrics:           m,
		Logger:            logger.With("component", "ai"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AI client: %w", err)
	}
	logger.Info("AI client initialized", "model", client.Model(), "transports", cfg.AI.Transports, "base_url", cfg.AI.BaseURL)

	svc := service.New(client, service.Options{
		Diagnostic: cfg.Diagnostic(),
		Metrics:    m,
		Logger:     logger.With("component", "service"),
	})

	return &app{cfg: cfg, logger: logger, registry: reg, service: svc}, nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "Listen address, overrides LISTEN and PORT."},
			&cli.DurationFlag{Name: "shutdown-timeout", Value: 10 * time.Second, Usage: "Grace period for in-flight requests."},
		},
		Action: func(c *cli.Context) error {
			a, err := bootstrap(c)
			if err != nil {
				return err
			}

			srv := server.New(a.service, server.Options{
				Version:    version,
				Diagnostic: a.cfg.Diagnostic(),
				Gatherer:   a.registry,
				Logger:     a.logger,
			})
			httpServer := &http.Server{
				Addr:              a.cfg.Listen,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("server listening", "addr", a.cfg.Listen, "env", a.cfg.AppEnv, "version", version)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			case <-ctx.Done():
			}

			a.logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), c.Duration("shutdown-timeout"))
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown error: %w", err)
			}
			return nil
		},
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "Parse one piece of text and print the JSON response.",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Text to parse; the first argument is used when omitted."},
			&cli.StringFlag{Name: "now", Usage: "Current time in ISO 8601 with offset (default: now in --timezone)."},
			&cli.StringFlag{Name: "timezone", Aliases: []string{"tz"}, Value: "UTC", Usage: "IANA timezone of the caller."},
			&cli.StringFlag{Name: "locale", Value: models.DefaultLocale, Usage: "Caller locale."},
			&cli.IntFlag{Name: "max-events", Value: models.DefaultMaxEvents, Usage: "Maximum events to return."},
			&cli.IntFlag{Name: "duration", Value: models.DefaultDurationMinutes, Usage: "Default event duration in minutes."},
			&cli.BoolFlag{Name: "allow-past", Usage: "Allow events before the current time."},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "json", Usage: "Output format: json or text."},
			&cli.IntFlag{Name: "upcoming", Value: 3, Usage: "Occurrences to list for recurring events in text output."},
		},
		Action: func(c *cli.Context) error {
			a, err := bootstrap(c)
			if err != nil {
				return err
			}

			text := c.String("text")
			if text == "" {
				text = c.Args().First()
			}
			now := c.String("now")
			if now == "" {
				loc, err := time.LoadLocation(c.String("timezone"))
				if err != nil {
					loc = time.UTC
				}
				now = timecheck.FormatOffset(time.Now().In(loc))
			}

			maxEvents, duration, allowPast := c.Int("max-events"), c.Int("duration"), c.Bool("allow-past")
			raw := &models.RawParseRequest{
				Text: text,
				Context: &models.RawContext{
					CurrentTime: now,
					Timezone:    c.String("timezone"),
					Locale:      c.String("locale"),
				},
				Options: &models.RawOptions{
					DefaultDurationMinutes: &duration,
					MaxEvents:              &maxEvents,
					AllowPastEvents:        &allowPast,
				},
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)

			resp, err := a.service.Parse(ctx, raw)
			if err != nil {
				e := errcode.From(err, a.cfg.Diagnostic())
				if encErr := enc.Encode(e.Response(time.Now())); encErr != nil {
					return encErr
				}
				return cli.Exit("", 1)
			}
			if c.String("output") == "text" {
				current, _ := timecheck.ParseISO8601WithOffset(now)
				return format.Events(c.App.Writer, resp.Events, current, c.Int("upcoming"))
			}
			return enc.Encode(resp)
		},
	}
}
