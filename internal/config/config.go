package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultListen  = ":5000"
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-2024-08-06"
)

// StructuredOutputModels are known to accept json_schema response formats.
// Other models still work through the degraded path.
var StructuredOutputModels = []string{
	"gpt-4o-2024-08-06",
	"gpt-4o-2024-11-20",
	"gpt-4o-mini-2024-07-18",
	"gpt-4o",
}

type AIConfig struct {
	APIKey         string        `yaml:"api_key"`
	BaseURL        string        `yaml:"base_url"`
	Model          string        `yaml:"model"`
	Transports     []string      `yaml:"transports"`
	MaxAttempts    int           `yaml:"max_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay"` // zero leaves backoff uncapped
	Timeout        time.Duration `yaml:"timeout"`
	ProxyTimeout   time.Duration `yaml:"proxy_timeout"`
	Temperature    float32       `yaml:"temperature"`
	MaxTokens      int           `yaml:"max_tokens"`
	// StructuredOutputs disables json_schema requests when false.
	StructuredOutputs *bool `yaml:"structured_outputs"`
}

type ProxyConfig struct {
	// Enabled set to false ignores any proxy URL, including the environment.
	Enabled *bool  `yaml:"enabled"`
	URL     string `yaml:"url"`
}

type Config struct {
	Listen    string      `yaml:"listen"`
	AppEnv    string      `yaml:"app_env"`
	LogLevel  string      `yaml:"log_level"`
	LogFormat string      `yaml:"log_format"`
	AI        AIConfig    `yaml:"ai"`
	Proxy     ProxyConfig `yaml:"proxy"`

	// ProxyURL is resolved once by Load; nil means direct connections.
	ProxyURL *url.URL `yaml:"-"`
}

func Default() *Config {
	return &Config{
		Listen:    DefaultListen,
		AppEnv:    "production",
		LogLevel:  "info",
		LogFormat: "text",
		AI: AIConfig{
			BaseURL:        DefaultBaseURL,
			Model:          DefaultModel,
			Transports:     []string{"sdk", "http"},
			MaxAttempts:    3,
			RetryBaseDelay: 2 * time.Second,
			Timeout:        30 * time.Second,
			ProxyTimeout:   90 * time.Second,
			Temperature:    0.3,
			MaxTokens:      4000,
		},
	}
}

// Load builds the process configuration: defaults, then the optional YAML
// file at path, then a .env file, then the environment. The result is
// validated and must not be mutated afterwards.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// .env file is optional in production
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()

	proxy, err := cfg.resolveProxy()
	if err != nil {
		return nil, err
	}
	cfg.ProxyURL = proxy

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.AI.APIKey = strings.TrimSpace(getEnvOrDefault("OPENAI_API_KEY", getEnvOrDefault("AI_API_KEY", c.AI.APIKey)))
	c.AI.BaseURL = getEnvOrDefault("AI_BASE_URL", c.AI.BaseURL)
	c.AI.Model = getEnvOrDefault("OPENAI_MODEL", getEnvOrDefault("AI_MODEL", c.AI.Model))
	if v := os.Getenv("AI_TRANSPORTS"); v != "" {
		c.AI.Transports = splitList(v)
	}

	var errs []error
	if v := os.Getenv("AI_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, wrapEnv("AI_MAX_ATTEMPTS", err))
		c.AI.MaxAttempts = n
	}
	if v := os.Getenv("AI_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, wrapEnv("AI_MAX_TOKENS", err))
		c.AI.MaxTokens = n
	}
	if v := os.Getenv("AI_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 32)
		errs = append(errs, wrapEnv("AI_TEMPERATURE", err))
		c.AI.Temperature = float32(f)
	}
	for key, dst := range map[string]*time.Duration{
		"AI_RETRY_BASE_DELAY": &c.AI.RetryBaseDelay,
		"AI_RETRY_MAX_DELAY":  &c.AI.RetryMaxDelay,
		"AI_TIMEOUT":          &c.AI.Timeout,
		"AI_PROXY_TIMEOUT":    &c.AI.ProxyTimeout,
	} {
		if v := os.Getenv(key); v != "" {
			d, err := parseDuration(v)
			errs = append(errs, wrapEnv(key, err))
			*dst = d
		}
	}
	if v := os.Getenv("AI_STRUCTURED_OUTPUTS"); v != "" {
		b, err := strconv.ParseBool(v)
		errs = append(errs, wrapEnv("AI_STRUCTURED_OUTPUTS", err))
		c.AI.StructuredOutputs = &b
	}
	if v := os.Getenv("ENABLE_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		errs = append(errs, wrapEnv("ENABLE_PROXY", err))
		c.Proxy.Enabled = &b
	}

	if v := os.Getenv("LISTEN"); v != "" {
		c.Listen = v
	} else if port := os.Getenv("PORT"); port != "" {
		c.Listen = ":" + port
	}
	c.AppEnv = getEnvOrDefault("APP_ENV", getEnvOrDefault("NODE_ENV", c.AppEnv))
	c.LogLevel = getEnvOrDefault("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnvOrDefault("LOG_FORMAT", c.LogFormat)

	return errors.Join(errs...)
}

func (c *Config) normalize() {
	d := Default()
	if c.Listen == "" {
		c.Listen = d.Listen
	}
	if c.AI.BaseURL == "" {
		c.AI.BaseURL = d.AI.BaseURL
	}
	c.AI.BaseURL = strings.TrimRight(c.AI.BaseURL, "/")
	if c.AI.Model == "" {
		c.AI.Model = d.AI.Model
	}
	if len(c.AI.Transports) == 0 {
		c.AI.Transports = d.AI.Transports
	}
	for i, t := range c.AI.Transports {
		c.AI.Transports[i] = strings.ToLower(strings.TrimSpace(t))
	}
	if c.AI.MaxAttempts == 0 {
		c.AI.MaxAttempts = d.AI.MaxAttempts
	}
	if c.AI.RetryBaseDelay == 0 {
		c.AI.RetryBaseDelay = d.AI.RetryBaseDelay
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = d.AI.Timeout
	}
	if c.AI.ProxyTimeout == 0 {
		c.AI.ProxyTimeout = d.AI.ProxyTimeout
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = d.AI.Temperature
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = d.AI.MaxTokens
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.LogFormat = strings.ToLower(c.LogFormat)
}

// resolveProxy picks the proxy URL: an explicit config value first, then
// HTTPS_PROXY, HTTP_PROXY and their lowercase forms.
func (c *Config) resolveProxy() (*url.URL, error) {
	if c.Proxy.Enabled != nil && !*c.Proxy.Enabled {
		return nil, nil
	}
	raw := c.Proxy.URL
	for _, key := range []string{"HTTPS_PROXY", "HTTP_PROXY", "https_proxy", "http_proxy"} {
		if raw != "" {
			break
		}
		raw = os.Getenv(key)
	}
	if raw == "" {
		return nil, nil
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid proxy URL %q", redact(raw))
	}
	return u, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	var errs []error
	if c.AI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is not set"))
	}
	if _, err := url.ParseRequestURI(c.AI.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("invalid AI base URL %q: %w", c.AI.BaseURL, err))
	}
	for _, t := range c.AI.Transports {
		if t != "sdk" && t != "http" {
			errs = append(errs, fmt.Errorf("unknown transport %q (want sdk or http)", t))
		}
	}
	if c.AI.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max attempts must be >= 1, got %d", c.AI.MaxAttempts))
	}
	if c.AI.RetryBaseDelay < 0 || c.AI.RetryMaxDelay < 0 || c.AI.Timeout < 0 || c.AI.ProxyTimeout < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if c.AI.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("max tokens must be >= 1, got %d", c.AI.MaxTokens))
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be in [0, 2], got %v", c.AI.Temperature))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q (want text or json)", c.LogFormat))
	}
	return errors.Join(errs...)
}

// Diagnostic reports whether error details may be exposed to callers.
func (c *Config) Diagnostic() bool {
	return c.AppEnv == "development"
}

// StructuredOutputs reports whether json_schema requests are attempted.
func (c *Config) StructuredOutputs() bool {
	return c.AI.StructuredOutputs == nil || *c.AI.StructuredOutputs
}

// SupportsStructuredOutputs reports whether the model is on the known list.
func (c *Config) SupportsStructuredOutputs() bool {
	return slices.Contains(StructuredOutputModels, c.AI.Model)
}

// AttemptTimeout is the per-attempt deadline for the resolved connection mode.
func (c *Config) AttemptTimeout() time.Duration {
	if c.ProxyURL != nil {
		return c.AI.ProxyTimeout
	}
	return c.AI.Timeout
}

// RedactedProxy is safe to log.
func (c *Config) RedactedProxy() string {
	if c.ProxyURL == nil {
		return ""
	}
	return c.ProxyURL.Redacted()
}

func redact(raw string) string {
	if u, err := url.Parse(raw); err == nil {
		return u.Redacted()
	}
	return "<unparseable>"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseDuration accepts Go durations ("2s") or bare milliseconds ("2000").
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}

func wrapEnv(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("invalid %s: %w", key, err)
}
