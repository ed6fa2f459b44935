// Package speech configures optional spoken replies.
package speech

import "fmt"

// Default configuration values.
const (
	DefaultVoiceID = "Joanna"
	DefaultFormat  = "mp3"
	DefaultEngine  = "standard"
)

// Config selects the synthesis voice.
type Config struct {
	// Enabled sends a spoken copy of every reply.
	Enabled bool `mapstructure:"enabled" json:"enabled"`
	// VoiceID is the Polly voice.
	VoiceID string `mapstructure:"voice_id" json:"voice_id"`
	// Format is mp3, ogg_vorbis or pcm.
	Format string `mapstructure:"format" json:"format"`
	// Engine is standard or neural.
	Engine string `mapstructure:"engine" json:"engine"`
	// SampleRate in Hz. Empty uses the format default.
	SampleRate string `mapstructure:"sample_rate" json:"sample_rate"`
}

// ApplyDefaults fills zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.VoiceID == "" {
		c.VoiceID = DefaultVoiceID
	}
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if c.Engine == "" {
		c.Engine = DefaultEngine
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Format {
	case "mp3", "ogg_vorbis", "pcm":
	default:
		return fmt.Errorf("speech: unsupported format %q", c.Format)
	}
	switch c.Engine {
	case "standard", "neural":
	default:
		return fmt.Errorf("speech: unsupported engine %q", c.Engine)
	}
	return nil
}
