package pipeline

import (
	"context"
	"io"

	"github.com/kbukum/voicebot/storage"
	"github.com/kbukum/voicebot/transcription"
)

// AudioEvent is one inbound voice message.
type AudioEvent struct {
	// ConversationID addresses the reply.
	ConversationID string `json:"conversation_id" validate:"required"`
	// AudioURI is where the raw audio can be fetched.
	AudioURI string `json:"audio_uri" validate:"required"`
	// MessageID is the channel's id for the message, if any.
	MessageID string `json:"message_id,omitempty"`
	// ContentType overrides the configured upload content type.
	ContentType string `json:"content_type,omitempty"`
}

// Source opens the audio behind an AudioEvent.
type Source interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// Sink delivers text to a conversation.
type Sink interface {
	SendText(ctx context.Context, conversationID, text string) error
}

// VoiceSink is implemented by sinks that can also deliver audio.
type VoiceSink interface {
	SendVoice(ctx context.Context, conversationID string, audio io.Reader, fileName string) error
}

// Speaker synthesizes a reply into audio.
type Speaker interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// Completer turns a transcript into a reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Submitter replaces the job in the fixed slot.
type Submitter interface {
	Submit(ctx context.Context, ref storage.Ref, languageCode string) (transcription.Handle, error)
	JobName() string
}

// JobPoller waits for a job to reach a terminal status.
type JobPoller interface {
	Poll(ctx context.Context, h transcription.Handle) (string, error)
}

// ResultFetcher reads the transcript behind a result location.
type ResultFetcher interface {
	Fetch(ctx context.Context, uri string) (transcription.Transcript, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, conversationID, text string) error

// SendText implements Sink.
func (f SinkFunc) SendText(ctx context.Context, conversationID, text string) error {
	return f(ctx, conversationID, text)
}

// Stage names used in logs, spans and metrics.
const (
	StageSlot     = "slot"
	StageUpload   = "upload"
	StageSubmit   = "submit"
	StagePoll     = "poll"
	StageFetch    = "fetch"
	StageComplete = "complete"
	StageDeliver  = "deliver"
	StageSpeak    = "speak"
)
