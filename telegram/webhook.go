package telegram

import (
	"context"
	"crypto/subtle"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/voicebot/component"
	"github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/logger"
	"github.com/kbukum/voicebot/validation"
)

// SecretHeader carries the secret set with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookHandler accepts pushed updates. The update is dispatched in the
// background and acknowledged at once so Telegram does not redeliver it.
func WebhookHandler(d *Dispatcher, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader(SecretHeader)), []byte(secret)) != 1 {
			respondError(c, errors.Unauthorized("invalid webhook secret"))
			return
		}

		var u Update
		if err := c.ShouldBindJSON(&u); err != nil {
			respondError(c, errors.InvalidInput("body", err.Error()))
			return
		}
		if err := validation.Validate(u); err != nil {
			respondError(c, err)
			return
		}

		d.Dispatch(u)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func respondError(c *gin.Context, err error) {
	appErr := errors.FromError(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}

// Webhook is the push-mode counterpart of Poller. It registers the webhook
// on Start and drains runs on Stop; the route itself is served by the HTTP
// server.
type Webhook struct {
	client     *Client
	dispatcher *Dispatcher
	cfg        Config
	log        *logger.Logger
	started    atomic.Bool
}

var _ component.Component = (*Webhook)(nil)
var _ component.RouteProvider = (*Webhook)(nil)

// NewWebhook creates the webhook component.
func NewWebhook(client *Client, dispatcher *Dispatcher, cfg Config, log *logger.Logger) *Webhook {
	cfg.ApplyDefaults()
	return &Webhook{client: client, dispatcher: dispatcher, cfg: cfg, log: log.WithComponent("telegram.webhook")}
}

// Name returns the component name.
func (w *Webhook) Name() string { return "telegram" }

// Handler returns the gin handler for the webhook route.
func (w *Webhook) Handler() gin.HandlerFunc {
	return WebhookHandler(w.dispatcher, w.cfg.WebhookSecret)
}

// Start checks the token and registers WebhookURL when one is configured.
func (w *Webhook) Start(ctx context.Context) error {
	if err := identify(ctx, w.client, w.log); err != nil {
		return err
	}
	w.started.Store(true)
	if w.cfg.WebhookURL == "" {
		w.log.Info("webhook url not set; assuming it is registered externally")
		return nil
	}
	if err := w.client.SetWebhook(ctx, w.cfg.WebhookURL, w.cfg.WebhookSecret); err != nil {
		return err
	}
	w.log.Info("webhook registered", map[string]interface{}{"url": w.cfg.WebhookURL})
	return nil
}

// Stop drains in-flight runs until ctx is done.
func (w *Webhook) Stop(ctx context.Context) error {
	w.dispatcher.Shutdown(ctx)
	w.started.Store(false)
	return nil
}

// Health reports whether the component was started.
func (w *Webhook) Health(_ context.Context) component.Health {
	if !w.started.Load() {
		return component.Health{Name: w.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: w.Name(), Status: component.StatusHealthy}
}

// Routes lists the webhook route for the startup summary.
func (w *Webhook) Routes() []component.Route {
	return []component.Route{{Method: http.MethodPost, Path: DefaultWebhookPath, Handler: "telegram.WebhookHandler"}}
}
