package awsclient

import "errors"

// DefaultRegion is used when no region is configured.
const DefaultRegion = "us-east-1"

// Config holds the AWS settings shared by the S3, Transcribe and Polly clients.
type Config struct {
	// Region is the AWS region.
	Region string `mapstructure:"region" json:"region"`

	// AccessKey and SecretKey select static credentials. When both are empty
	// the SDK default chain (env, shared profile, instance role) is used.
	AccessKey string `mapstructure:"access_key" json:"access_key"`
	SecretKey string `mapstructure:"secret_key" json:"-"`

	// Endpoint overrides the service endpoint (LocalStack, MinIO).
	Endpoint string `mapstructure:"endpoint" json:"endpoint"`
}

// ApplyDefaults fills in zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Region == "" {
		c.Region = DefaultRegion
	}
}

// Validate rejects half-configured static credentials.
func (c *Config) Validate() error {
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return errors.New("aws: access_key and secret_key must be set together")
	}
	return nil
}
