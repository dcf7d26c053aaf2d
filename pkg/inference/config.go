package inference

import (
	"log/slog"
	"time"
)

// Config is shared by Client and Gemini. Advice lookups are single short
// sentences on a tight budget, so the defaults are small.
type Config struct {
	BaseURL string
	APIKey  string // optional for local OpenAI-compatible servers
	Model   string

	MaxTokens   int
	Temperature float64

	// Timeout bounds one HTTP exchange. Callers usually pass a shorter
	// context deadline per lookup.
	Timeout time.Duration

	Logger *slog.Logger
}

// Option configures a provider.
type Option func(*Config)

// WithBaseURL sets the API base URL, e.g. "http://localhost:11434/v1".
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the default model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig targets the OpenAI API.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:     "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		MaxTokens:   64,
		Temperature: 0.2,
		Timeout:     5 * time.Second,
		Logger:      slog.Default(),
	}
}

func newConfig(base *Config, opts []Option) (*Config, error) {
	for _, opt := range opts {
		opt(base)
	}
	if base.Model == "" {
		return nil, ErrNoModel
	}
	if base.Logger == nil {
		base.Logger = slog.Default()
	}
	return base, nil
}
