package pipeline

import (
	"time"

	"github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/resilience"
)

// Default configuration values.
const (
	DefaultAudioKey    = "audio/file.ogg"
	DefaultContentType = "audio/ogg"
	DefaultFailureText = "Sorry, I could not process that voice message."
	DefaultRunTimeout  = 15 * time.Minute
)

// Config holds orchestrator settings.
type Config struct {
	// AudioKey is the fixed storage key every upload overwrites.
	AudioKey string `mapstructure:"audio_key" json:"audio_key"`
	// ContentType is sent with the upload.
	ContentType string `mapstructure:"content_type" json:"content_type"`
	// LanguageCode overrides the registry's language. Empty uses the registry's.
	LanguageCode string `mapstructure:"language_code" json:"language_code"`
	// NotifyOnFailure sends FailureText when a run fails before delivery.
	NotifyOnFailure bool   `mapstructure:"notify_on_failure" json:"notify_on_failure"`
	FailureText     string `mapstructure:"failure_text" json:"failure_text"`
	// RunTimeout bounds a whole run. Zero means no bound beyond the caller's.
	RunTimeout time.Duration `mapstructure:"run_timeout" json:"run_timeout"`
	// Retry applies to upload, submit and fetch. RetryIf is always
	// replaced so only retryable app errors are retried.
	Retry resilience.RetryConfig `mapstructure:"-" json:"-"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.AudioKey == "" {
		c.AudioKey = DefaultAudioKey
	}
	if c.ContentType == "" {
		c.ContentType = DefaultContentType
	}
	if c.FailureText == "" {
		c.FailureText = DefaultFailureText
	}
	if c.RunTimeout < 0 {
		c.RunTimeout = DefaultRunTimeout
	}
	c.Retry.ApplyDefaults()
	c.Retry.RetryIf = errors.IsRetryable
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.AudioKey == "" {
		return errors.Validation("pipeline: audio_key is required")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.Validation("pipeline: retry.max_attempts must be at least 1")
	}
	return nil
}
