package storage

import (
	"fmt"
	"sync"

	"github.com/kbukum/voicebot/logger"
)

// Factory builds a Store from core config plus backend-specific input.
// The s3 backend expects an aws.Config; the local backend ignores it.
type Factory func(cfg Config, providerCfg any, log *logger.Logger) (Store, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory registers a backend under a provider name. Backend
// packages call it from init.
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// New creates the Store selected by cfg.Provider.
func New(cfg Config, providerCfg any, log *logger.Logger) (Store, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: provider %q not registered", cfg.Provider)
	}

	l := log.WithComponent("storage")
	l.Info("initializing storage", map[string]interface{}{"provider": cfg.Provider, "bucket": cfg.Bucket})
	return f(cfg, providerCfg, l)
}
