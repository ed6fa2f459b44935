package telegram

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/kbukum/voicebot/logger"
	"github.com/kbukum/voicebot/pipeline"
)

// Handler runs one voice message. *pipeline.Orchestrator implements it.
type Handler interface {
	Handle(ctx context.Context, ev pipeline.AudioEvent, sink pipeline.Sink) error
}

// Dispatcher turns updates into pipeline runs. Each update is handled on
// its own goroutine, so a long transcription never blocks intake.
type Dispatcher struct {
	client    *Client
	handler   Handler
	startText string
	log       *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher replying through client.
func NewDispatcher(client *Client, handler Handler, cfg Config, log *logger.Logger) *Dispatcher {
	cfg.ApplyDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		client:    client,
		handler:   handler,
		startText: cfg.StartText,
		log:       log.WithComponent("telegram.dispatcher"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Dispatch handles u asynchronously. /start is answered; voice and audio
// messages start a pipeline run; everything else is ignored.
func (d *Dispatcher) Dispatch(u Update) {
	msg := u.Message
	if msg == nil {
		return
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	switch {
	case isCommand(msg.Text, "start"):
		d.spawn(func(ctx context.Context) {
			if err := d.client.SendText(ctx, chatID, d.startText); err != nil {
				d.log.Warn("start reply failed", map[string]interface{}{
					logger.FieldConversationID: chatID,
					logger.FieldError:          err.Error(),
				})
			}
		})
	case msg.Voice != nil:
		d.spawn(func(ctx context.Context) { d.runAudio(ctx, msg, msg.Voice.FileID, msg.Voice.MimeType) })
	case msg.Audio != nil:
		d.spawn(func(ctx context.Context) { d.runAudio(ctx, msg, msg.Audio.FileID, msg.Audio.MimeType) })
	default:
		d.log.Debug("ignoring update", map[string]interface{}{"update_id": u.UpdateID})
	}
}

func (d *Dispatcher) runAudio(ctx context.Context, msg *Message, fileID, mimeType string) {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	file, err := d.client.GetFile(ctx, fileID)
	if err != nil {
		d.log.Error("resolving voice file failed", map[string]interface{}{
			logger.FieldConversationID: chatID,
			logger.FieldError:          err.Error(),
		})
		return
	}

	ev := pipeline.AudioEvent{
		ConversationID: chatID,
		AudioURI:       d.client.FileURL(file.FilePath),
		MessageID:      strconv.FormatInt(msg.MessageID, 10),
		ContentType:    mimeType,
	}
	// the orchestrator logs failures with full context
	_ = d.handler.Handle(ctx, ev, d.client)
}

func (d *Dispatcher) spawn(fn func(ctx context.Context)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn(d.ctx)
	}()
}

// Shutdown waits for in-flight runs until ctx is done, then cancels them
// and waits for them to return.
func (d *Dispatcher) Shutdown(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		d.log.Warn("cancelling in-flight runs")
		d.cancel()
		<-done
	}
	d.cancel()
}

// isCommand matches "/name", "/name@bot" and "/name args".
func isCommand(text, name string) bool {
	if !strings.HasPrefix(text, "/") {
		return false
	}
	cmd := strings.Fields(text)[0][1:]
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	return cmd == name
}
