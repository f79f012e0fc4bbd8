package inference

import (
	"log/slog"
	"net/http"
	"time"
)

// Config holds upstream client configuration.
type Config struct {
	// Connection
	BaseURL string // API base URL
	APIKey  string // API key

	// Models
	RealtimeModel string
	VisionModel   string

	// Request defaults
	VisionMaxTokens int

	// Timeouts
	Timeout time.Duration

	// Retry configuration. Zero retries by default: a failed call is
	// reported and the user retries.
	MaxRetries int
	RetryDelay time.Duration

	// HTTPClient overrides the client built from Timeout.
	HTTPClient *http.Client

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithBaseURL sets the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithRealtimeModel sets the default realtime session model.
func WithRealtimeModel(model string) Option {
	return func(c *Config) { c.RealtimeModel = model }
}

// WithVisionModel sets the vision model.
func WithVisionModel(model string) Option {
	return func(c *Config) { c.VisionModel = model }
}

// WithVisionMaxTokens sets the completion budget for vision answers.
func WithVisionMaxTokens(n int) Option {
	return func(c *Config) { c.VisionMaxTokens = n }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry configures retry behavior.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
		c.RetryDelay = delay
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Config) { c.HTTPClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns defaults for OpenAI.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "https://api.openai.com/v1",
		RealtimeModel:   "gpt-realtime-mini",
		VisionModel:     "gpt-4o",
		VisionMaxTokens: 512,
		Timeout:         120 * time.Second,
		MaxRetries:      0,
		RetryDelay:      250 * time.Millisecond,
		Logger:          slog.Default(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	return nil
}
