package bootstrap

import "github.com/kbukum/voicebot/config"

// Config is the constraint for application configuration types. Embedding
// config.ServiceConfig provides GetServiceConfig; the application type
// supplies ApplyDefaults and Validate for its own sections.
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
