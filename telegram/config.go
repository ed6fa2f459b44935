package telegram

import (
	"fmt"
	"time"
)

// Update delivery modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.telegram.org"
	DefaultPollTimeout = 30 * time.Second
	DefaultTimeout     = 30 * time.Second
	DefaultStartText   = "Bot started!"
	DefaultWebhookPath = "/webhook/telegram"
)

// Config holds Telegram Bot API settings.
type Config struct {
	// Token is the bot token. TELEGRAM_BOT_TOKEN also sets it.
	Token string `mapstructure:"token" json:"-" validate:"required"`
	// BaseURL is the Bot API root.
	BaseURL string `mapstructure:"base_url" json:"base_url" validate:"omitempty,url"`
	// Mode is "polling" (getUpdates) or "webhook".
	Mode string `mapstructure:"mode" json:"mode" validate:"omitempty,oneof=polling webhook"`
	// WebhookURL is registered with setWebhook in webhook mode. Empty leaves
	// the registration to the operator.
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url" validate:"omitempty,url"`
	// WebhookSecret is checked against X-Telegram-Bot-Api-Secret-Token.
	WebhookSecret string `mapstructure:"webhook_secret" json:"-"`
	// PollTimeout is the getUpdates long-poll timeout.
	PollTimeout time.Duration `mapstructure:"poll_timeout" json:"poll_timeout"`
	// Timeout bounds every other API call.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
	// StartText answers /start.
	StartText string `mapstructure:"start_text" json:"start_text"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Mode == "" {
		c.Mode = ModePolling
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = DefaultPollTimeout
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.StartText == "" {
		c.StartText = DefaultStartText
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Token == "" {
		return fmt.Errorf("telegram: token is required")
	}
	if c.Mode != ModePolling && c.Mode != ModeWebhook {
		return fmt.Errorf("telegram: unsupported mode %q", c.Mode)
	}
	return nil
}
