// Package config loads facegate settings from the environment and the
// optional thresholds file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/teslashibe/facegate/pkg/quality"
)

// Prefix for environment variables: FACEGATE_CAMERA, FACEGATE_WEB_PORT, ...
const Prefix = "facegate"

// LLM providers accepted by Settings.LLMProvider.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// ErrInvalidSettings wraps every settings validation failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings is the process configuration.
type Settings struct {
	// Capture
	Camera       int    `envconfig:"CAMERA" default:"0"`
	CameraPreset string `envconfig:"CAMERA_PRESET" default:"default"`
	VideoFile    string `envconfig:"VIDEO_FILE"`
	ModelPath    string `envconfig:"MODEL_PATH" default:"models/face_detection_yunet.onnx"`

	// Output
	OutputDir      string `envconfig:"OUTPUT_DIR" default:"out"`
	ThresholdsFile string `envconfig:"THRESHOLDS_FILE"`

	// Dashboard
	WebPort string `envconfig:"WEB_PORT" default:"8080"`
	NoWeb   bool   `envconfig:"NO_WEB" default:"false"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Advice
	UseLLM         bool          `envconfig:"USE_LLM" default:"false"`
	LLMProvider    string        `envconfig:"LLM_PROVIDER" default:"openai"`
	LLMModel       string        `envconfig:"LLM_MODEL"`
	LLMBaseURL     string        `envconfig:"LLM_BASE_URL"`
	LLMTimeout     time.Duration `envconfig:"LLM_TIMEOUT" default:"2s"`
	AdviceInterval time.Duration `envconfig:"ADVICE_INTERVAL" default:"3s"`
	OpenAIAPIKey   string        `envconfig:"OPENAI_API_KEY"`
	GeminiAPIKey   string        `envconfig:"GEMINI_API_KEY"`

	// Audit
	AuditInterval time.Duration `envconfig:"AUDIT_INTERVAL" default:"1s"`
}

// Load reads .env if present, then the environment.
func Load() (*Settings, error) {
	_ = godotenv.Load()

	var s Settings
	if err := envconfig.Process(Prefix, &s); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks value ranges.
func (s *Settings) Validate() error {
	var errs []error
	if s.Camera < 0 {
		errs = append(errs, fmt.Errorf("camera index %d is negative", s.Camera))
	}
	if s.LLMProvider != ProviderOpenAI && s.LLMProvider != ProviderGemini {
		errs = append(errs, fmt.Errorf("llm provider %q is not %s or %s", s.LLMProvider, ProviderOpenAI, ProviderGemini))
	}
	if s.LLMTimeout <= 0 {
		errs = append(errs, errors.New("llm timeout must be positive"))
	}
	if s.AdviceInterval < 0 {
		errs = append(errs, errors.New("advice interval must not be negative"))
	}
	if s.AuditInterval < 0 {
		errs = append(errs, errors.New("audit interval must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, errors.Join(errs...))
	}
	return nil
}

// LoadThresholds reads a YAML thresholds file. Keys missing from the file keep
// their default value. An empty path returns the defaults.
func LoadThresholds(path string) (quality.Thresholds, error) {
	t := quality.DefaultThresholds()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read thresholds %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse thresholds %q: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("thresholds %q: %w", path, err)
	}
	return t, nil
}
