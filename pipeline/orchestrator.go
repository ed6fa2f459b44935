package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/logger"
	"github.com/kbukum/voicebot/observability"
	"github.com/kbukum/voicebot/provider"
	"github.com/kbukum/voicebot/storage"
	"github.com/kbukum/voicebot/transcription"
	"github.com/kbukum/voicebot/validation"
)

const (
	notifyTimeout  = 10 * time.Second
	speechFileName = "reply.mp3"
)

// Deps are the collaborators of an Orchestrator. Slot, Speaker and Metrics
// are optional.
type Deps struct {
	Source    Source
	Store     storage.Store
	Registry  Submitter
	Poller    JobPoller
	Fetcher   ResultFetcher
	Completer Completer
	Slot      Slot
	Speaker   Speaker
	Metrics   *observability.Metrics
}

// Orchestrator runs AudioEvents through the pipeline.
type Orchestrator struct {
	cfg       Config
	registry  Submitter
	completer Completer
	slot      Slot
	speaker   Speaker
	metrics   *observability.Metrics
	log       *logger.Logger

	upload provider.RequestResponse[AudioEvent, storage.Ref]
	submit provider.RequestResponse[storage.Ref, transcription.Handle]
	poll   provider.RequestResponse[transcription.Handle, string]
	fetch  provider.RequestResponse[string, transcription.Transcript]
}

// New creates an Orchestrator. Without a Slot, runs queue on a LocalSlot
// named after the registry's job.
func New(cfg Config, deps Deps, log *logger.Logger) (*Orchestrator, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch {
	case deps.Source == nil:
		return nil, fmt.Errorf("pipeline: source is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("pipeline: store is required")
	case deps.Registry == nil:
		return nil, fmt.Errorf("pipeline: registry is required")
	case deps.Poller == nil:
		return nil, fmt.Errorf("pipeline: poller is required")
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("pipeline: fetcher is required")
	case deps.Completer == nil:
		return nil, fmt.Errorf("pipeline: completer is required")
	}
	if deps.Slot == nil {
		deps.Slot = NewLocalSlot(deps.Registry.JobName(), 0)
	}

	o := &Orchestrator{
		cfg:       cfg,
		registry:  deps.Registry,
		completer: deps.Completer,
		slot:      deps.Slot,
		speaker:   deps.Speaker,
		metrics:   deps.Metrics,
		log:       log.WithComponent("pipeline"),
	}

	o.upload = withRetry(o, StageUpload, func(ctx context.Context, ev AudioEvent) (storage.Ref, error) {
		body, err := deps.Source.Open(ctx, ev.AudioURI)
		if err != nil {
			return storage.Ref{}, err
		}
		defer func() { _ = body.Close() }()
		contentType := ev.ContentType
		if contentType == "" {
			contentType = cfg.ContentType
		}
		return deps.Store.Put(ctx, cfg.AudioKey, body, contentType)
	})
	o.submit = withRetry(o, StageSubmit, func(ctx context.Context, ref storage.Ref) (transcription.Handle, error) {
		return deps.Registry.Submit(ctx, ref, cfg.LanguageCode)
	})
	// Poll carries its own timeout and attempt bounds; a retry would reset them.
	o.poll = provider.NewFunc(StagePoll, deps.Poller.Poll)
	o.fetch = withRetry(o, StageFetch, deps.Fetcher.Fetch)
	return o, nil
}

// withRetry wraps one stage in the retry policy. Each attempt of the
// upload stage reopens the source, so a half-read body is never reused.
func withRetry[I, O any](o *Orchestrator, stage string, fn func(context.Context, I) (O, error)) provider.RequestResponse[I, O] {
	retry := o.cfg.Retry
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		o.log.Warn("retrying stage", map[string]interface{}{
			logger.FieldStage:   stage,
			logger.FieldAttempt: attempt,
			logger.FieldError:   err.Error(),
			"backoff_ms":        backoff.Milliseconds(),
		})
	}
	return provider.WithResilience[I, O](provider.NewFunc(stage, fn), provider.ResilienceConfig{Retry: &retry})
}

// Handle runs ev to completion and sends the reply through sink exactly
// once. On failure nothing is sent unless NotifyOnFailure is set, and the
// typed error is returned.
func (o *Orchestrator) Handle(ctx context.Context, ev AudioEvent, sink Sink) error {
	if err := validation.Validate(ev); err != nil {
		return err
	}

	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	runID := uuid.NewString()
	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun, trace.WithAttributes(
		attribute.String(observability.AttrRunID, runID),
		attribute.String(observability.AttrConversationID, ev.ConversationID),
		attribute.String(observability.AttrJobName, o.registry.JobName()),
	))
	defer span.End()

	ctx = logger.ContextWithRunID(ctx, runID)
	ctx = logger.ContextWith(ctx, logger.FieldConversationID, ev.ConversationID)
	if traceID, spanID := observability.TraceIDs(ctx); traceID != "" {
		ctx = logger.ContextWith(ctx, logger.FieldTraceID, traceID)
		ctx = logger.ContextWith(ctx, logger.FieldSpanID, spanID)
	}
	log := o.log.WithContext(ctx)

	start := time.Now()
	log.Info("pipeline run started", map[string]interface{}{"message_id": ev.MessageID})

	reply, stage, err := o.run(ctx, ev)
	if err == nil {
		stage = StageDeliver
		_, err = runStage(ctx, o, StageDeliver, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, sink.SendText(ctx, ev.ConversationID, reply)
		})
	}
	if err != nil {
		o.fail(ctx, log, ev, sink, stage, err)
		return err
	}

	o.speak(ctx, log, ev, sink, reply)

	if o.metrics != nil {
		o.metrics.RecordRun(ctx, "ok")
	}
	log.Info("pipeline run finished", map[string]interface{}{
		logger.FieldDuration: time.Since(start).Milliseconds(),
	})
	return nil
}

// run produces the reply. The returned stage names where a failure happened.
func (o *Orchestrator) run(ctx context.Context, ev AudioEvent) (string, string, error) {
	release, err := runStage(ctx, o, StageSlot, o.slot.Acquire)
	if err != nil {
		return "", StageSlot, err
	}

	transcript, stage, err := o.transcribe(ctx, ev, release)
	if err != nil {
		return "", stage, err
	}

	reply, err := runStage(ctx, o, StageComplete, func(ctx context.Context) (string, error) {
		return o.completer.Complete(ctx, transcript.Text)
	})
	if err != nil {
		return "", StageComplete, err
	}
	return reply, "", nil
}

// transcribe holds the slot from upload through fetch.
func (o *Orchestrator) transcribe(ctx context.Context, ev AudioEvent, release func()) (transcription.Transcript, string, error) {
	defer release()

	ref, err := runStage(ctx, o, StageUpload, func(ctx context.Context) (storage.Ref, error) {
		return o.upload.Execute(ctx, ev)
	})
	if err != nil {
		return transcription.Transcript{}, StageUpload, err
	}

	handle, err := runStage(ctx, o, StageSubmit, func(ctx context.Context) (transcription.Handle, error) {
		return o.submit.Execute(ctx, ref)
	})
	if err != nil {
		return transcription.Transcript{}, StageSubmit, err
	}

	resultURI, err := runStage(ctx, o, StagePoll, func(ctx context.Context) (string, error) {
		return o.poll.Execute(ctx, handle)
	})
	if err != nil {
		return transcription.Transcript{}, StagePoll, err
	}

	transcript, err := runStage(ctx, o, StageFetch, func(ctx context.Context) (transcription.Transcript, error) {
		return o.fetch.Execute(ctx, resultURI)
	})
	if err != nil {
		return transcription.Transcript{}, StageFetch, err
	}
	return transcript, "", nil
}

func (o *Orchestrator) fail(ctx context.Context, log *logger.Logger, ev AudioEvent, sink Sink, stage string, err error) {
	code := errorCode(err)
	observability.SetSpanError(ctx, err)
	observability.SetSpanAttribute(ctx, observability.AttrErrorCode, code)
	observability.SetSpanAttribute(ctx, observability.AttrStage, stage)

	fields := map[string]interface{}{
		logger.FieldStage:   stage,
		logger.FieldJobName: o.registry.JobName(),
		logger.FieldError:   err.Error(),
		"error_code":        code,
	}
	if status, body, ok := errors.UpstreamDetails(err); ok {
		fields["http_status"] = status
		fields["http_body"] = body
	}
	log.Error("pipeline run failed", fields)

	if o.metrics != nil {
		o.metrics.RecordRun(ctx, code)
	}

	// A failed delivery already reached the sink once.
	if !o.cfg.NotifyOnFailure || stage == StageDeliver || stderrors.Is(err, context.Canceled) {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if nerr := sink.SendText(nctx, ev.ConversationID, o.cfg.FailureText); nerr != nil {
		log.Warn("failure notification not delivered", map[string]interface{}{logger.FieldError: nerr.Error()})
	}
}

// speak sends the reply as audio when a Speaker is configured and the sink
// can carry voice. Failures are logged; the text reply already went out.
func (o *Orchestrator) speak(ctx context.Context, log *logger.Logger, ev AudioEvent, sink Sink, reply string) {
	if o.speaker == nil {
		return
	}
	vs, ok := sink.(VoiceSink)
	if !ok {
		log.Debug("sink cannot deliver voice")
		return
	}
	_, err := runStage(ctx, o, StageSpeak, func(ctx context.Context) (struct{}, error) {
		audio, err := o.speaker.Synthesize(ctx, reply)
		if err != nil {
			return struct{}{}, err
		}
		defer func() { _ = audio.Close() }()
		name := speechFileName
		if n, ok := o.speaker.(interface{ FileName() string }); ok {
			name = n.FileName()
		}
		return struct{}{}, vs.SendVoice(ctx, ev.ConversationID, audio, name)
	})
	if err != nil {
		log.Warn("voice reply not delivered", map[string]interface{}{logger.FieldError: err.Error()})
	}
}

// runStage wraps one stage in a span, a duration metric and a debug log.
func runStage[T any](ctx context.Context, o *Orchestrator, stage string, fn func(context.Context) (T, error)) (T, error) {
	ctx, span := observability.StartSpan(ctx, "pipeline."+stage,
		trace.WithAttributes(attribute.String(observability.AttrStage, stage)))
	defer span.End()

	start := time.Now()
	v, err := fn(ctx)
	elapsed := time.Since(start)

	status := "ok"
	if err != nil {
		status = errorCode(err)
		observability.SetSpanError(ctx, err)
		observability.SetSpanAttribute(ctx, observability.AttrErrorCode, status)
	}
	if o.metrics != nil {
		o.metrics.RecordStage(ctx, stage, status, elapsed)
	}
	o.log.WithContext(ctx).Debug("stage finished", map[string]interface{}{
		logger.FieldStage:    stage,
		logger.FieldStatus:   status,
		logger.FieldDuration: elapsed.Milliseconds(),
	})
	return v, err
}

func errorCode(err error) string {
	if code := errors.Code(err); code != "" {
		return string(code)
	}
	switch {
	case stderrors.Is(err, context.Canceled):
		return "CANCELED"
	case stderrors.Is(err, context.DeadlineExceeded):
		return "TIMEOUT"
	default:
		return "ERROR"
	}
}
