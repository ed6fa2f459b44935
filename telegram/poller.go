package telegram

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/voicebot/component"
	"github.com/kbukum/voicebot/logger"
	"github.com/kbukum/voicebot/resilience"
)

const maxPollBackoff = 30 * time.Second

// Poller receives updates with getUpdates long polling. It implements
// component.Component.
type Poller struct {
	client     *Client
	dispatcher *Dispatcher
	log        *logger.Logger

	mu      sync.Mutex
	offset  int64
	lastErr error
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

var _ component.Component = (*Poller)(nil)
var _ component.Describable = (*Poller)(nil)

// NewPoller creates a long-polling receiver.
func NewPoller(client *Client, dispatcher *Dispatcher, log *logger.Logger) *Poller {
	return &Poller{client: client, dispatcher: dispatcher, log: log.WithComponent("telegram.poller")}
}

// Name returns the component name.
func (p *Poller) Name() string { return "telegram" }

// identify checks the token with getMe so a bad token fails startup.
func identify(ctx context.Context, c *Client, log *logger.Logger) error {
	me, err := c.GetMe(ctx)
	if err != nil {
		return err
	}
	log.Info("bot identified", map[string]interface{}{"bot_id": me.ID, "username": me.Username})
	return nil
}

// Start checks the token, removes any webhook, which would block
// getUpdates, and starts polling.
func (p *Poller) Start(ctx context.Context) error {
	if err := identify(ctx, p.client, p.log); err != nil {
		return err
	}
	if err := p.client.DeleteWebhook(ctx); err != nil {
		p.log.Warn("deleteWebhook failed; polling anyway", map[string]interface{}{logger.FieldError: err.Error()})
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.mu.Unlock()

	go p.loop(loopCtx)
	p.log.Info("telegram polling started")
	return nil
}

func (p *Poller) loop(ctx context.Context) {
	defer close(p.done)
	backoff := time.Second
	for {
		updates, err := p.client.GetUpdates(ctx, p.currentOffset())
		if ctx.Err() != nil {
			return
		}
		p.setErr(err)
		if err != nil {
			p.log.Warn("getUpdates failed", map[string]interface{}{
				logger.FieldError: err.Error(),
				"backoff_ms":      backoff.Milliseconds(),
			})
			if resilience.SleepContext(ctx, backoff) != nil {
				return
			}
			backoff = min(backoff*2, maxPollBackoff)
			continue
		}
		backoff = time.Second

		for _, u := range updates {
			p.advance(u.UpdateID)
			p.dispatcher.Dispatch(u)
		}
	}
}

func (p *Poller) currentOffset() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}

func (p *Poller) advance(updateID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if updateID >= p.offset {
		p.offset = updateID + 1
	}
}

func (p *Poller) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
}

// Stop ends polling and drains in-flight runs until ctx is done.
func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done, running := p.cancel, p.done, p.running
	p.running = false
	p.mu.Unlock()
	if !running {
		return nil
	}

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
	}
	p.dispatcher.Shutdown(ctx)
	return nil
}

// Health reports the last getUpdates outcome.
func (p *Poller) Health(_ context.Context) component.Health {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := component.Health{Name: p.Name(), Status: component.StatusHealthy}
	switch {
	case !p.running:
		h.Status, h.Message = component.StatusUnhealthy, "not polling"
	case p.lastErr != nil:
		h.Status, h.Message = component.StatusDegraded, p.lastErr.Error()
	}
	return h
}

// Describe returns summary info for the startup banner.
func (p *Poller) Describe() component.Description {
	return component.Description{Name: "Telegram", Type: "telegram", Details: "mode=polling"}
}
