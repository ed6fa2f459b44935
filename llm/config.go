package llm

import (
	"fmt"
	"time"
)

const (
	DefaultDialect     = "openai"
	DefaultBaseURL     = "https://api.openai.com"
	DefaultModel       = "text-davinci-003"
	DefaultMaxTokens   = 256
	DefaultTemperature = 0.7
	DefaultTimeout     = 60 * time.Second
)

// Config holds configuration for the completion adapter. The Dialect field
// selects the provider mapping.
type Config struct {
	// Name identifies this adapter instance in logs and spans.
	Name string `yaml:"name" mapstructure:"name"`

	// Dialect selects the provider mapping ("openai", "openai-chat", "ollama").
	// Must match a dialect registered via RegisterDialect.
	Dialect string `yaml:"dialect" mapstructure:"dialect" validate:"required"`

	// BaseURL is the provider's API base URL.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"required,url"`

	// Model is the fixed model sent with every request.
	Model string `yaml:"model" mapstructure:"model" validate:"required"`

	// APIKey is sent as a bearer token when set.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// Temperature is the sampling temperature.
	Temperature float64 `yaml:"temperature" mapstructure:"temperature" validate:"gte=0,lte=2"`

	// MaxTokens caps the reply length.
	MaxTokens int `yaml:"max_tokens" mapstructure:"max_tokens" validate:"gte=0"`

	// Timeout bounds a single HTTP request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`

	// Headers are additional HTTP headers sent with every request.
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
}

// ApplyDefaults sets default values for unset config fields.
func (c *Config) ApplyDefaults() {
	if c.Dialect == "" {
		c.Dialect = DefaultDialect
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Temperature == 0 {
		c.Temperature = DefaultTemperature
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Name == "" {
		c.Name = c.Dialect + "-llm"
	}
}

// Validate checks the config after defaults have been applied.
func (c *Config) Validate() error {
	if c.Dialect == "" {
		return fmt.Errorf("llm: dialect is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("llm: base_url is required")
	}
	if c.Model == "" {
		return fmt.Errorf("llm: model is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("llm: timeout must be positive")
	}
	return nil
}
