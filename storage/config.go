package storage

import (
	"errors"
	"fmt"
)

// Provider names for the bundled backends.
const (
	ProviderLocal = "local"
	ProviderS3    = "s3"
)

// Default configuration values.
const (
	DefaultProvider    = ProviderS3
	DefaultBucket      = "chat-teste"
	DefaultBasePath    = "/tmp/voicebot"
	DefaultMaxFileSize = int64(50 << 20)
)

// Config holds storage configuration.
type Config struct {
	// Provider selects the backend: "s3" or "local".
	Provider string `mapstructure:"provider" json:"provider"`

	// Bucket is the S3 bucket name.
	Bucket string `mapstructure:"bucket" json:"bucket"`

	// BasePath is the root directory for the local backend.
	BasePath string `mapstructure:"base_path" json:"base_path"`

	// ForcePathStyle makes the s3 backend use path-style addressing, which
	// S3-compatible endpoints usually need.
	ForcePathStyle bool `mapstructure:"force_path_style" json:"force_path_style"`

	// MaxFileSize caps a single Put. Larger bodies fail the upload.
	MaxFileSize int64 `mapstructure:"max_file_size" json:"max_file_size"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.Bucket == "" {
		c.Bucket = DefaultBucket
	}
	if c.BasePath == "" {
		c.BasePath = DefaultBasePath
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
}

// Validate checks that the configuration is valid for the selected provider.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.BasePath == "" {
			return errors.New("storage: base_path is required for local provider")
		}
	case ProviderS3:
		if c.Bucket == "" {
			return errors.New("storage: bucket is required for s3 provider")
		}
	default:
		return fmt.Errorf("storage: unsupported provider %q", c.Provider)
	}
	return nil
}
