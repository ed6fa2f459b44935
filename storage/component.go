package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/kbukum/voicebot/component"
	"github.com/kbukum/voicebot/logger"
)

const pingTimeout = 5 * time.Second

// Component builds the Store on Start and reports backend reachability.
type Component struct {
	store       Store
	cfg         Config
	providerCfg any
	log         *logger.Logger
}

// NewComponent creates a storage component. providerCfg is passed to the
// backend factory (an aws.Config for s3).
func NewComponent(cfg Config, providerCfg any, log *logger.Logger) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, providerCfg: providerCfg, log: log}
}

// Store returns the underlying Store, or nil before Start.
func (c *Component) Store() Store { return c.store }

// Name returns the component name.
func (c *Component) Name() string { return "storage" }

// Start initializes the backend.
func (c *Component) Start(_ context.Context) error {
	s, err := New(c.cfg, c.providerCfg, c.log)
	if err != nil {
		return fmt.Errorf("storage start: %w", err)
	}
	c.store = s
	return nil
}

// Stop releases the store.
func (c *Component) Stop(_ context.Context) error {
	c.store = nil
	return nil
}

// Health pings the backend when it supports it.
func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	if c.store == nil {
		h.Status, h.Message = component.StatusUnhealthy, "storage not initialized"
		return h
	}
	p, ok := c.store.(Pinger)
	if !ok {
		return h
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := p.Ping(ctx); err != nil {
		h.Status, h.Message = component.StatusUnhealthy, err.Error()
	}
	return h
}

// Describe returns summary info for the startup banner.
func (c *Component) Describe() component.Description {
	details := "provider=" + c.cfg.Provider
	switch c.cfg.Provider {
	case ProviderS3:
		details += " bucket=" + c.cfg.Bucket
	case ProviderLocal:
		details += " path=" + c.cfg.BasePath
	}
	return component.Description{Name: "Storage", Type: "storage", Details: details}
}

var _ component.Component = (*Component)(nil)
