package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/httpclient"
	"github.com/kbukum/voicebot/logger"
	"github.com/kbukum/voicebot/resilience"
	"github.com/kbukum/voicebot/transcription"
)

type harness struct {
	store     *memStore
	backend   *fakeBackend
	source    *fakeSource
	completer *fakeCompleter
	clock     *fakeClock
	slot      *LocalSlot
	deps      Deps
	cfg       Config
}

func newHarness() *harness {
	store := newMemStore()
	h := &harness{
		store:     store,
		backend:   newFakeBackend(store),
		source:    &fakeSource{audio: map[string]string{}},
		completer: &fakeCompleter{replies: map[string]string{}},
		clock:     newFakeClock(),
		slot:      NewLocalSlot(transcription.DefaultJobName, 0),
		cfg: Config{
			Retry: resilience.RetryConfig{
				MaxAttempts:    3,
				InitialBackoff: time.Millisecond,
				MaxBackoff:     time.Millisecond,
			},
		},
	}
	return h
}

func (h *harness) build(t *testing.T) *Orchestrator {
	t.Helper()
	tcfg := transcription.Config{PollInterval: 5 * time.Second}
	registry := transcription.NewRegistry(h.backend, tcfg, logger.Nop())
	h.deps.Source = h.source
	h.deps.Store = h.store
	h.deps.Registry = registry
	h.deps.Poller = transcription.NewPoller(registry, tcfg, transcription.WithClock(h.clock))
	h.deps.Fetcher = transcription.NewFetcher(nil, h.store, 0)
	h.deps.Completer = h.completer
	h.deps.Slot = h.slot

	o, err := New(h.cfg, h.deps, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return o
}

func TestHandle_EndToEnd(t *testing.T) {
	h := newHarness()
	h.source.audio["https://files/voice.oga"] = "turn on the lights"
	h.completer.replies["turn on the lights"] = "Sure, turning on the lights."
	o := h.build(t)

	sink := &recordingSink{}
	err := o.Handle(context.Background(), AudioEvent{ConversationID: "42", AudioURI: "https://files/voice.oga"}, sink)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	msgs := sink.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one reply, got %d", len(msgs))
	}
	if msgs[0] != (sentMessage{"42", "Sure, turning on the lights."}) {
		t.Errorf("unexpected reply %+v", msgs[0])
	}

	if audio, _ := h.store.get(DefaultAudioKey); audio != "turn on the lights" {
		t.Errorf("expected audio under %s, got %q", DefaultAudioKey, audio)
	}
	if got := h.backend.count("get"); got != 3 {
		t.Errorf("expected 3 status reads, got %d", got)
	}
	if len(h.clock.waits) != 2 || h.clock.waits[0] != 5*time.Second {
		t.Errorf("expected two 5s waits, got %v", h.clock.waits)
	}
	if h.completer.calls() != 1 {
		t.Errorf("completion must be called once, got %d", h.completer.calls())
	}
	if h.slot.Held() {
		t.Error("slot still held after run")
	}
}

func TestHandle_SubmitDeletesBeforeCreate(t *testing.T) {
	h := newHarness()
	h.source.audio["a"] = "hello"
	o := h.build(t)

	if err := o.Handle(context.Background(), AudioEvent{ConversationID: "1", AudioURI: "a"}, &recordingSink{}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	calls := h.backend.calls
	if len(calls) < 3 || calls[0] != "list" || calls[1] != "delete" || calls[2] != "create" {
		t.Errorf("expected list, delete, create first, got %v", calls)
	}
}

func TestHandle_SequentialRunsLeaveOneJobAndObject(t *testing.T) {
	h := newHarness()
	h.source.audio["first"] = "first words"
	h.source.audio["second"] = "second words"
	o := h.build(t)
	sink := &recordingSink{}

	for _, uri := range []string{"first", "second"} {
		if err := o.Handle(context.Background(), AudioEvent{ConversationID: uri, AudioURI: uri}, sink); err != nil {
			t.Fatalf("Handle(%s): %v", uri, err)
		}
	}

	if n := h.backend.jobCount(); n != 1 {
		t.Errorf("expected one job, got %d", n)
	}
	if keys := h.store.keysWithPrefix("audio/"); len(keys) != 1 {
		t.Errorf("expected one audio object, got %v", keys)
	}
	if audio, _ := h.store.get(DefaultAudioKey); audio != "second words" {
		t.Errorf("expected second upload to win, got %q", audio)
	}
	msgs := sink.messages()
	if len(msgs) != 2 || msgs[1].text != "echo: second words" {
		t.Errorf("unexpected replies %+v", msgs)
	}
}

func TestHandle_ConcurrentRunsAreIsolated(t *testing.T) {
	h := newHarness()
	const runs = 5
	for i := 0; i < runs; i++ {
		h.source.audio[fmt.Sprintf("uri-%d", i)] = fmt.Sprintf("words %d", i)
	}
	o := h.build(t)
	sink := &recordingSink{}

	var wg sync.WaitGroup
	for i := 0; i < runs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ev := AudioEvent{ConversationID: fmt.Sprintf("conv-%d", i), AudioURI: fmt.Sprintf("uri-%d", i)}
			if err := o.Handle(context.Background(), ev, sink); err != nil {
				t.Errorf("run %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	msgs := sink.messages()
	if len(msgs) != runs {
		t.Fatalf("expected %d replies, got %d", runs, len(msgs))
	}
	for _, m := range msgs {
		var i int
		if _, err := fmt.Sscanf(m.conversationID, "conv-%d", &i); err != nil {
			t.Fatalf("bad conversation id %q", m.conversationID)
		}
		if want := fmt.Sprintf("echo: words %d", i); m.text != want {
			t.Errorf("conversation %s got %q, want %q", m.conversationID, m.text, want)
		}
	}
	if h.backend.collisions != 0 {
		t.Errorf("a run replaced another run's unfinished job %d times", h.backend.collisions)
	}
}

func TestHandle_FailuresDeliverNothing(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(h *harness)
		wantCode  errors.ErrorCode
		completes int
	}{
		{
			name:     "job failed",
			setup:    func(h *harness) { h.backend.script = []string{"IN_PROGRESS", "FAILED"}; h.backend.reason = "bad audio" },
			wantCode: errors.ErrCodeJobFailed,
		},
		{
			name:     "unknown status",
			setup:    func(h *harness) { h.backend.script = []string{"WEDGED"} },
			wantCode: errors.ErrCodeJobFailed,
		},
		{
			name: "malformed artifact",
			setup: func(h *harness) {
				h.backend.artifact = func(string) []byte { return []byte(`{"results":{}}`) }
			},
			wantCode: errors.ErrCodeParse,
		},
		{
			name: "registry down",
			setup: func(h *harness) {
				h.backend.createFails = 10
				h.backend.createErr = stderrors.New("throttled")
			},
			wantCode: errors.ErrCodeRegistry,
		},
		{
			name:      "completion upstream error",
			setup:     func(h *harness) { h.completer.err = errors.Upstream(429, `{"error":"rate limited"}`) },
			wantCode:  errors.ErrCodeUpstream,
			completes: 1,
		},
		{
			name:     "audio unavailable",
			setup:    func(h *harness) { h.source.failures = 10 },
			wantCode: errors.ErrCodeTransferFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			h.source.audio["a"] = "hello"
			tt.setup(h)
			o := h.build(t)
			sink := &recordingSink{}

			err := o.Handle(context.Background(), AudioEvent{ConversationID: "1", AudioURI: "a"}, sink)
			if !errors.Is(err, tt.wantCode) {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
			if n := len(sink.messages()); n != 0 {
				t.Errorf("expected no reply, got %d", n)
			}
			if got := h.completer.calls(); got != tt.completes {
				t.Errorf("expected %d completion calls, got %d", tt.completes, got)
			}
			if h.slot.Held() {
				t.Error("slot still held after failed run")
			}
		})
	}
}

func TestHandle_UpstreamDetailsSurvive(t *testing.T) {
	h := newHarness()
	h.source.audio["a"] = "hello"
	h.completer.err = errors.Upstream(500, "boom")
	o := h.build(t)

	err := o.Handle(context.Background(), AudioEvent{ConversationID: "1", AudioURI: "a"}, &recordingSink{})
	status, body, ok := errors.UpstreamDetails(err)
	if !ok || status != 500 || body != "boom" {
		t.Errorf("expected upstream details 500/boom, got %d %q %v", status, body, ok)
	}
}

func TestHandle_RetriesTransferAndRegistryOnly(t *testing.T) {
	t.Run("transfer recovers", func(t *testing.T) {
		h := newHarness()
		h.source.audio["a"] = "hello"
		h.source.failures = 2
		o := h.build(t)
		sink := &recordingSink{}

		if err := o.Handle(context.Background(), AudioEvent{ConversationID: "1", AudioURI: "a"}, sink); err != nil {
			t.Fatalf("expected recovery, got %v", err)
		}
		if h.source.opens != 3 {
			t.Errorf("expected 3 opens, got %d", h.source.opens)
		}
		if len(sink.messages()) != 1 {
			t.Error("expected one reply")
		}
	})

	t.Run("registry recovers", func(t *testing.T) {
		h := newHarness()
		h.source.audio["a"] = "hello"
		h.backend.createFails = 1
		h.backend.createErr = stderrors.New("throttled")
		o := h.build(t)

		if err := o.Handle(context.Background(), AudioEvent{ConversationID: "1", AudioURI: "a"}, &recordingSink{}); err != nil {
			t.Fatalf("expected recovery, got %v", err)
		}
		if got := h.backend.count("create"); got != 2 {
			t.Errorf("expected 2 creates, got %d", got)
		}
	})

	t.Run("registry gives up after max attempts", func(t *testing.T) {
		h := newHarness()
		h.source.audio["a"] = "hello"
		h.backend.createFails = 10
		h.backend.createErr = stderrors.New("throttled")
		o := h.build(t)

		_ = o.Handle(context.Background(), AudioEvent{ConversationID: "1", AudioURI: "a"}, &recordingSink{})
		if got := h.backend.count("create"); got != 3 {
			t.Errorf("expected 3 creates, got %d", got)
		}
	})

	t.Run("parse is not retried", func(t *testing.T) {
		h := newHarness()
		h.source.audio["a"] = "hello"
		h.backend.artifact = func(string) []byte { return []byte("not json") }
		o := h.build(t)

		_ = o.Handle(context.Background(), AudioEvent{ConversationID: "1", AudioURI: "a"}, &recordingSink{})
		if got := h.store.opens["s3://chat-teste/results/transcription_job.json"]; got != 1 {
			t.Errorf("expected one artifact read, got %d", got)
		}
	})

	t.Run("poll is not retried", func(t *testing.T) {
		h := newHarness()
		h.source.audio["a"] = "hello"
		h.backend.getErr = stderrors.New("throttled")
		o := h.build(t)

		err := o.Handle(context.Background(), AudioEvent{ConversationID: "1", AudioURI: "a"}, &recordingSink{})
		if !errors.Is(err, errors.ErrCodeRegistry) {
			t.Fatalf("expected REGISTRY_ERROR, got %v", err)
		}
		if got := h.backend.count("get"); got != 1 {
			t.Errorf("expected one status read, got %d", got)
		}
	})

	t.Run("job failure is not retried", func(t *testing.T) {
		h := newHarness()
		h.source.audio["a"] = "hello"
		h.backend.script = []string{"FAILED"}
		o := h.build(t)

		_ = o.Handle(context.Background(), AudioEvent{ConversationID: "1", AudioURI: "a"}, &recordingSink{})
		if got := h.backend.count("get"); got != 1 {
			t.Errorf("expected one status read, got %d", got)
		}
	})
}

func TestHandle_NotifyOnFailure(t *testing.T) {
	h := newHarness()
	h.source.audio["a"] = "hello"
	h.backend.script = []string{"FAILED"}
	h.cfg.NotifyOnFailure = true
	o := h.build(t)
	sink := &recordingSink{}

	if err := o.Handle(context.Background(), AudioEvent{ConversationID: "7", AudioURI: "a"}, sink); err == nil {
		t.Fatal("expected error")
	}
	msgs := sink.messages()
	if len(msgs) != 1 || msgs[0] != (sentMessage{"7", DefaultFailureText}) {
		t.Errorf("expected one failure notice, got %+v", msgs)
	}
}

func TestHandle_DeliveryFailureIsNotNotified(t *testing.T) {
	h := newHarness()
	h.source.audio["a"] = "hello"
	h.cfg.NotifyOnFailure = true
	o := h.build(t)
	sink := &recordingSink{err: errors.Transfer("send message", stderrors.New("reset"))}

	err := o.Handle(context.Background(), AudioEvent{ConversationID: "7", AudioURI: "a"}, sink)
	if !errors.Is(err, errors.ErrCodeTransferFailed) {
		t.Fatalf("expected transfer error, got %v", err)
	}
	if n := len(sink.messages()); n != 1 {
		t.Errorf("sink must be called exactly once, got %d", n)
	}
}

func TestHandle_CancellationReleasesSlot(t *testing.T) {
	h := newHarness()
	h.source.audio["a"] = "hello"
	h.clock.hold = true
	o := h.build(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- o.Handle(ctx, AudioEvent{ConversationID: "1", AudioURI: "a"}, &recordingSink{})
	}()

	select {
	case <-h.clock.waited:
	case <-time.After(5 * time.Second):
		t.Fatal("poll never started waiting")
	}
	if !h.slot.Held() {
		t.Error("expected slot held while polling")
	}
	cancel()

	select {
	case err := <-done:
		if !stderrors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Handle did not return after cancel")
	}
	if h.slot.Held() {
		t.Error("slot not released after cancel")
	}

	h.clock.mu.Lock()
	h.clock.hold = false
	h.clock.mu.Unlock()
	if err := o.Handle(context.Background(), AudioEvent{ConversationID: "2", AudioURI: "a"}, &recordingSink{}); err != nil {
		t.Errorf("next run failed: %v", err)
	}
}

func TestHandle_SlotBusy(t *testing.T) {
	h := newHarness()
	h.source.audio["a"] = "hello"
	h.slot = NewLocalSlot("transcription_job", -1)
	o := h.build(t)

	release, err := h.slot.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	err = o.Handle(context.Background(), AudioEvent{ConversationID: "1", AudioURI: "a"}, &recordingSink{})
	if !errors.Is(err, errors.ErrCodeSlotBusy) {
		t.Errorf("expected SLOT_BUSY, got %v", err)
	}
	if h.source.opens != 0 {
		t.Error("audio must not be fetched without the slot")
	}
}

func TestHandle_InvalidEvent(t *testing.T) {
	h := newHarness()
	o := h.build(t)
	sink := &recordingSink{}

	err := o.Handle(context.Background(), AudioEvent{ConversationID: "1"}, sink)
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("expected INVALID_INPUT, got %v", err)
	}
	if len(sink.messages()) != 0 {
		t.Error("expected no reply")
	}
}

func TestHandle_SpeaksReplyAfterText(t *testing.T) {
	h := newHarness()
	h.source.audio["a"] = "hello"
	h.deps.Speaker = fakeSpeaker{}
	o := h.build(t)
	sink := &voiceSink{}

	if err := o.Handle(context.Background(), AudioEvent{ConversationID: "1", AudioURI: "a"}, sink); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sink.messages()) != 1 {
		t.Errorf("expected one text reply")
	}
	if len(sink.voices) != 1 || sink.voices[0] != "mp3:echo: hello" || sink.names[0] != "reply.mp3" {
		t.Errorf("unexpected voice replies %v %v", sink.voices, sink.names)
	}
}

func TestHandle_SpeechFailureKeepsRunSuccessful(t *testing.T) {
	h := newHarness()
	h.source.audio["a"] = "hello"
	h.deps.Speaker = fakeSpeaker{err: stderrors.New("polly down")}
	o := h.build(t)
	sink := &voiceSink{}

	if err := o.Handle(context.Background(), AudioEvent{ConversationID: "1", AudioURI: "a"}, sink); err != nil {
		t.Fatalf("speech failure must not fail the run: %v", err)
	}
	if len(sink.voices) != 0 {
		t.Error("expected no voice reply")
	}
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Config{}, Deps{}, logger.Nop()); err == nil {
		t.Error("expected error for missing deps")
	}
}

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.AudioKey != "audio/file.ogg" || cfg.ContentType != "audio/ogg" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.Retry.MaxAttempts != 3 || cfg.Retry.RetryIf == nil {
		t.Errorf("unexpected retry defaults %+v", cfg.Retry)
	}
	if cfg.Retry.RetryIf(errors.Parse("x", nil)) {
		t.Error("parse errors must not be retryable")
	}
	if !cfg.Retry.RetryIf(errors.Transfer("x", nil)) {
		t.Error("transfer errors must be retryable")
	}
}

func TestLocalSlot(t *testing.T) {
	slot := NewLocalSlot("job", 10*time.Millisecond)
	release, err := slot.Acquire(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := slot.Acquire(context.Background()); !errors.Is(err, errors.ErrCodeSlotBusy) {
		t.Errorf("expected SLOT_BUSY after max wait, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	waiting := NewLocalSlot("job", 0)
	r2, _ := waiting.Acquire(context.Background())
	if _, err := waiting.Acquire(ctx); !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	r2()

	release()
	release()
	if slot.Held() {
		t.Error("release must free the slot")
	}
	r3, err := slot.Acquire(context.Background())
	if err != nil {
		t.Errorf("reacquire: %v", err)
	}
	r3()
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/file/bot123/voice/file_1.oga" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("OggS"))
	}))
	defer srv.Close()

	client, err := httpclient.New(httpclient.Config{Name: "files"})
	if err != nil {
		t.Fatal(err)
	}
	src := NewHTTPSource(client)

	body, err := src.Open(context.Background(), srv.URL+"/file/bot123/voice/file_1.oga")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(body)
	_ = body.Close()
	if string(data) != "OggS" {
		t.Errorf("unexpected body %q", data)
	}

	if _, err := src.Open(context.Background(), srv.URL+"/missing"); !errors.Is(err, errors.ErrCodeTransferFailed) {
		t.Errorf("expected TRANSFER_FAILED, got %v", err)
	}
}

func TestHTTPSource_ErrorsHideURLPath(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	client, err := httpclient.New(httpclient.Config{Name: "files", Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	src := NewHTTPSource(client)

	_, err = src.Open(context.Background(), base+"/file/bot123456:SECRETTOKEN/voice/file_1.oga")
	if !errors.Is(err, errors.ErrCodeTransferFailed) {
		t.Fatalf("expected TRANSFER_FAILED, got %v", err)
	}
	if strings.Contains(err.Error(), "SECRETTOKEN") {
		t.Errorf("error leaks the url path: %v", err)
	}
	if !strings.Contains(err.Error(), base+"/<redacted>") {
		t.Errorf("expected the host to stay visible, got %v", err)
	}
}

func TestRedactURL_KeepsChain(t *testing.T) {
	uri := "https://api.telegram.org/file/bot1:tok/voice.oga"
	cause := &url.Error{Op: "Get", URL: uri, Err: context.Canceled}

	err := redactURL(cause, uri)
	if strings.Contains(err.Error(), "bot1:tok") {
		t.Errorf("error leaks the url path: %v", err)
	}
	if !stderrors.Is(err, context.Canceled) {
		t.Error("redaction must keep the wrapped error reachable")
	}

	plain := stderrors.New("HTTP 404")
	if redactURL(plain, uri) != plain {
		t.Error("errors without the url must pass through unchanged")
	}
}
