package transcription

import (
	"errors"
	"time"
)

// Default configuration values.
const (
	DefaultJobName        = "transcription_job"
	DefaultLanguageCode   = "en-US"
	DefaultPollInterval   = 5 * time.Second
	DefaultPollTimeout    = 10 * time.Minute
	DefaultMaxResultBytes = int64(16 << 20)
)

// Config holds transcription settings.
type Config struct {
	// JobName is the fixed job slot name.
	JobName string `mapstructure:"job_name" json:"job_name"`
	// LanguageCode is passed to the backend with every job.
	LanguageCode string `mapstructure:"language_code" json:"language_code"`
	// PollInterval is the delay between status reads.
	PollInterval time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
	// PollTimeout bounds total polling time. Zero means unbounded.
	PollTimeout time.Duration `mapstructure:"poll_timeout" json:"poll_timeout"`
	// MaxPolls bounds the number of status reads. Zero means unbounded.
	MaxPolls int `mapstructure:"max_polls" json:"max_polls"`
	// MaxResultBytes caps the size of a result artifact.
	MaxResultBytes int64 `mapstructure:"max_result_bytes" json:"max_result_bytes"`
}

// ApplyDefaults fills in zero-valued fields. PollTimeout and MaxPolls keep
// zero as "unbounded", so only a negative timeout is reset.
func (c *Config) ApplyDefaults() {
	if c.JobName == "" {
		c.JobName = DefaultJobName
	}
	if c.LanguageCode == "" {
		c.LanguageCode = DefaultLanguageCode
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PollTimeout < 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.MaxResultBytes <= 0 {
		c.MaxResultBytes = DefaultMaxResultBytes
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.JobName == "" {
		return errors.New("transcription: job_name is required")
	}
	if c.MaxPolls < 0 {
		return errors.New("transcription: max_polls must not be negative")
	}
	return nil
}
