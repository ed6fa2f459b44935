package main

import (
	"fmt"
	"time"

	"github.com/kbukum/voicebot/awsclient"
	"github.com/kbukum/voicebot/config"
	"github.com/kbukum/voicebot/llm"
	"github.com/kbukum/voicebot/observability"
	"github.com/kbukum/voicebot/pipeline"
	"github.com/kbukum/voicebot/redis"
	"github.com/kbukum/voicebot/resilience"
	"github.com/kbukum/voicebot/server"
	"github.com/kbukum/voicebot/speech"
	"github.com/kbukum/voicebot/storage"
	"github.com/kbukum/voicebot/telegram"
	"github.com/kbukum/voicebot/transcription"
	"github.com/kbukum/voicebot/transcription/awstranscribe"
)

const serviceName = "voicebot"

// Slot backends.
const (
	SlotLocal = "local"
	SlotRedis = "redis"
)

// SlotConfig selects how runs are serialized on the fixed job slot.
type SlotConfig struct {
	// Backend is "local" (one process) or "redis" (shared across replicas).
	Backend string `yaml:"backend" mapstructure:"backend"`
	// MaxWait bounds the queue wait. Zero waits until the run is canceled.
	MaxWait time.Duration `yaml:"max_wait" mapstructure:"max_wait"`
	// TTL bounds how long a crashed replica holds the redis slot.
	TTL time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// AppConfig is the full voicebot configuration.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	AWS           awsclient.Config       `yaml:"aws" mapstructure:"aws"`
	Storage       storage.Config         `yaml:"storage" mapstructure:"storage"`
	Pipeline      pipeline.Config        `yaml:"pipeline" mapstructure:"pipeline"`
	Transcription transcription.Config   `yaml:"transcription" mapstructure:"transcription"`
	Transcribe    awstranscribe.Options  `yaml:"transcribe" mapstructure:"transcribe"`
	LLM           llm.Config             `yaml:"llm" mapstructure:"llm"`
	Telegram      telegram.Config        `yaml:"telegram" mapstructure:"telegram"`
	Slot          SlotConfig             `yaml:"slot" mapstructure:"slot"`
	Redis         redis.Config           `yaml:"redis" mapstructure:"redis"`
	Retry         resilience.RetryConfig `yaml:"retry" mapstructure:"retry"`
	Speech        speech.Config          `yaml:"speech" mapstructure:"speech"`
	Server        server.Config          `yaml:"server" mapstructure:"server"`
	Telemetry     observability.Config   `yaml:"telemetry" mapstructure:"telemetry"`
}

// ApplyDefaults fills every section. The shared retry policy is copied into
// the pipeline before the pipeline pins its retry predicate.
func (c *AppConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = serviceName
	}
	c.ServiceConfig.ApplyDefaults()
	c.AWS.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Transcription.ApplyDefaults()
	c.LLM.ApplyDefaults()
	c.Telegram.ApplyDefaults()
	c.Redis.ApplyDefaults()
	c.Speech.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Telemetry.ApplyDefaults()

	if c.Slot.Backend == "" {
		c.Slot.Backend = SlotLocal
	}
	if c.Slot.TTL <= 0 {
		c.Slot.TTL = pipeline.DefaultRunTimeout
	}

	c.Retry.ApplyDefaults()
	c.Pipeline.Retry = c.Retry
	if c.Pipeline.LanguageCode == "" {
		c.Pipeline.LanguageCode = c.Transcription.LanguageCode
	}
	c.Pipeline.ApplyDefaults()

	// the webhook route lives on the HTTP server
	if c.Telegram.Mode == telegram.ModeWebhook {
		c.Server.Enabled = true
	}
}

// Validate checks every section and the cross-section constraints.
func (c *AppConfig) Validate() error {
	checks := []struct {
		section string
		fn      func() error
	}{
		{"service", c.ServiceConfig.Validate},
		{"aws", c.AWS.Validate},
		{"storage", c.Storage.Validate},
		{"pipeline", c.Pipeline.Validate},
		{"transcription", c.Transcription.Validate},
		{"llm", c.LLM.Validate},
		{"telegram", c.Telegram.Validate},
		{"redis", c.Redis.Validate},
		{"speech", c.Speech.Validate},
		{"server", c.Server.Validate},
		{"telemetry", c.Telemetry.Validate},
	}
	for _, chk := range checks {
		if err := chk.fn(); err != nil {
			return fmt.Errorf("%s: %w", chk.section, err)
		}
	}

	switch c.Slot.Backend {
	case SlotLocal:
	case SlotRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("slot: backend redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("slot: unsupported backend %q", c.Slot.Backend)
	}
	if c.Slot.MaxWait < 0 {
		return fmt.Errorf("slot: max_wait must not be negative")
	}
	return nil
}

// envAliases keeps the environment names operators already use.
var envAliases = map[string]string{
	"AWS_ACCESS_KEY":        "aws.access_key",
	"AWS_SECRET_ACCESS_KEY": "aws.secret_key",
	"AWS_REGION":            "aws.region",
	"TELEGRAM_BOT_TOKEN":    "telegram.token",
	"OPENAI_API_KEY":        "llm.api_key",
}

// defaults seeds every key so environment variables can address it even
// when config.yml leaves it out.
func defaults() map[string]any {
	return map[string]any{
		"name":                     serviceName,
		"environment":              "development",
		"version":                  "",
		"logging.level":            "info",
		"logging.format":           "console",
		"logging.output":           "stdout",
		"aws.region":               awsclient.DefaultRegion,
		"aws.access_key":           "",
		"aws.secret_key":           "",
		"aws.endpoint":             "",
		"storage.provider":         storage.DefaultProvider,
		"storage.bucket":           storage.DefaultBucket,
		"storage.base_path":        storage.DefaultBasePath,
		"storage.force_path_style": false,
		"storage.max_file_size":    storage.DefaultMaxFileSize,

		"pipeline.audio_key":         pipeline.DefaultAudioKey,
		"pipeline.content_type":      pipeline.DefaultContentType,
		"pipeline.language_code":     "",
		"pipeline.notify_on_failure": false,
		"pipeline.failure_text":      pipeline.DefaultFailureText,
		"pipeline.run_timeout":       pipeline.DefaultRunTimeout.String(),

		"transcription.job_name":         transcription.DefaultJobName,
		"transcription.language_code":    transcription.DefaultLanguageCode,
		"transcription.poll_interval":    transcription.DefaultPollInterval.String(),
		"transcription.poll_timeout":     transcription.DefaultPollTimeout.String(),
		"transcription.max_polls":        0,
		"transcription.max_result_bytes": transcription.DefaultMaxResultBytes,
		"transcribe.media_format":        "ogg",
		"transcribe.output_bucket":       "",

		"llm.dialect":     llm.DefaultDialect,
		"llm.base_url":    llm.DefaultBaseURL,
		"llm.model":       llm.DefaultModel,
		"llm.api_key":     "",
		"llm.max_tokens":  llm.DefaultMaxTokens,
		"llm.temperature": llm.DefaultTemperature,
		"llm.timeout":     llm.DefaultTimeout.String(),

		"telegram.token":          "",
		"telegram.base_url":       telegram.DefaultBaseURL,
		"telegram.mode":           telegram.ModePolling,
		"telegram.webhook_url":    "",
		"telegram.webhook_secret": "",
		"telegram.poll_timeout":   telegram.DefaultPollTimeout.String(),
		"telegram.timeout":        telegram.DefaultTimeout.String(),
		"telegram.start_text":     telegram.DefaultStartText,

		"slot.backend":  SlotLocal,
		"slot.max_wait": "0s",
		"slot.ttl":      pipeline.DefaultRunTimeout.String(),

		"redis.enabled":    false,
		"redis.addr":       "localhost:6379",
		"redis.password":   "",
		"redis.db":         0,
		"redis.key_prefix": "voicebot:",

		"retry.max_attempts":    3,
		"retry.initial_backoff": "500ms",
		"retry.max_backoff":     "10s",
		"retry.backoff_factor":  2.0,
		"retry.jitter":          0.0,

		"speech.enabled":     false,
		"speech.voice_id":    speech.DefaultVoiceID,
		"speech.format":      speech.DefaultFormat,
		"speech.engine":      speech.DefaultEngine,
		"speech.sample_rate": "",

		"server.enabled":        false,
		"server.host":           "",
		"server.port":           server.DefaultPort,
		"server.max_body_bytes": server.DefaultMaxBodyBytes,

		"telemetry.enabled":     false,
		"telemetry.endpoint":    "localhost:4318",
		"telemetry.insecure":    true,
		"telemetry.sample_rate": 1.0,
	}
}
