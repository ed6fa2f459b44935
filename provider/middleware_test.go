package provider_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/logger"
	"github.com/kbukum/voicebot/observability"
	"github.com/kbukum/voicebot/provider"
	"github.com/kbukum/voicebot/resilience"
)

func echo() provider.RequestResponse[string, string] {
	return provider.NewFunc("echo", func(_ context.Context, in string) (string, error) {
		return "echo:" + in, nil
	})
}

func failing(err error, calls *int32) provider.RequestResponse[string, string] {
	return provider.NewFunc("failing", func(context.Context, string) (string, error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		return "", err
	})
}

func TestChain_Order(t *testing.T) {
	var order []string
	mw := func(tag string) provider.Middleware[string, string] {
		return func(inner provider.RequestResponse[string, string]) provider.RequestResponse[string, string] {
			return provider.NewFunc(inner.Name(), func(ctx context.Context, in string) (string, error) {
				order = append(order, tag+">")
				out, err := inner.Execute(ctx, in)
				order = append(order, "<"+tag)
				return out, err
			})
		}
	}

	wrapped := provider.Chain(mw("A"), mw("B"))(echo())
	out, err := wrapped.Execute(context.Background(), "x")
	if err != nil || out != "echo:x" {
		t.Fatalf("unexpected result %q %v", out, err)
	}
	if got := strings.Join(order, ""); got != "A>B><B<A" {
		t.Errorf("expected A outermost, got %s", got)
	}
	if wrapped.Name() != "echo" {
		t.Errorf("expected name to pass through, got %q", wrapped.Name())
	}
}

func TestWithLogging_LogsUpstreamDetails(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, &buf, "test")

	wrapped := provider.WithLogging[string, string](log)(failing(errors.Upstream(500, "boom"), nil))
	if _, err := wrapped.Execute(context.Background(), "x"); err == nil {
		t.Fatal("expected error")
	}

	line := buf.String()
	for _, want := range []string{`"provider":"failing"`, `"error_code":"UPSTREAM_ERROR"`, `"http_status":500`, `"http_body":"boom"`} {
		if !strings.Contains(line, want) {
			t.Errorf("expected %s in log line %s", want, line)
		}
	}
}

func TestWithLogging_Success(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, &buf, "test")

	out, err := provider.WithLogging[string, string](log)(echo()).Execute(context.Background(), "hi")
	if err != nil || out != "echo:hi" {
		t.Fatalf("unexpected result %q %v", out, err)
	}
	if !strings.Contains(buf.String(), "provider execute ok") {
		t.Errorf("expected debug line, got %s", buf.String())
	}
}

func TestWithTracing_RecordsSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	defer func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	}()

	wrapped := provider.WithTracing[string, string]("voicebot")(failing(errors.Transport(stderrors.New("dial")), nil))
	_, _ = wrapped.Execute(context.Background(), "x")

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "voicebot.failing" {
		t.Errorf("unexpected span name %q", spans[0].Name)
	}
	var code string
	for _, kv := range spans[0].Attributes {
		if kv.Key == attribute.Key(observability.AttrErrorCode) {
			code = kv.Value.AsString()
		}
	}
	if code != "TRANSPORT_ERROR" {
		t.Errorf("expected error code attribute, got %q", code)
	}
}

func TestWithMetrics_PassesThrough(t *testing.T) {
	metrics, err := observability.NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatal(err)
	}
	wrapped := provider.WithMetrics[string, string](metrics)(echo())
	if out, err := wrapped.Execute(context.Background(), "m"); err != nil || out != "echo:m" {
		t.Errorf("unexpected result %q %v", out, err)
	}
	if !wrapped.IsAvailable(context.Background()) {
		t.Error("expected availability to pass through")
	}
}

func fastRetry(attempts int) *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
		RetryIf:        errors.IsRetryable,
	}
}

func TestWithResilience_RetriesOnlyRetryable(t *testing.T) {
	var calls int32
	wrapped := provider.WithResilience(failing(errors.Transfer("upload", stderrors.New("reset")), &calls),
		provider.ResilienceConfig{Retry: fastRetry(3)})
	_, err := wrapped.Execute(context.Background(), "x")
	if !errors.Is(err, errors.ErrCodeTransferFailed) {
		t.Errorf("expected typed error to survive, got %v", err)
	}
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}

	calls = 0
	wrapped = provider.WithResilience(failing(errors.Parse("missing field", nil), &calls),
		provider.ResilienceConfig{Retry: fastRetry(3)})
	_, _ = wrapped.Execute(context.Background(), "x")
	if calls != 1 {
		t.Errorf("parse errors must not be retried, got %d attempts", calls)
	}
}

func TestWithResilience_RecoversTransient(t *testing.T) {
	var calls int32
	p := provider.NewFunc("flaky", func(context.Context, string) (string, error) {
		if atomic.AddInt32(&calls, 1) < 2 {
			return "", errors.Registry("create job", stderrors.New("throttled"))
		}
		return "ok", nil
	})
	out, err := provider.Chain(provider.Resilient[string, string](provider.ResilienceConfig{Retry: fastRetry(3)}))(p).
		Execute(context.Background(), "x")
	if err != nil || out != "ok" {
		t.Errorf("expected recovery, got %q %v", out, err)
	}
}

func TestWithResilience_BulkheadRejectsAsSlotBusy(t *testing.T) {
	hold := make(chan struct{})
	entered := make(chan struct{})
	p := provider.NewFunc("slow", func(context.Context, string) (string, error) {
		close(entered)
		<-hold
		return "done", nil
	})
	wrapped := provider.WithResilience[string, string](p, provider.ResilienceConfig{
		Bulkhead: &resilience.BulkheadConfig{Name: "job", MaxConcurrent: 1, MaxWait: -1},
	})

	go func() { _, _ = wrapped.Execute(context.Background(), "a") }()
	<-entered
	_, err := wrapped.Execute(context.Background(), "b")
	close(hold)
	if !errors.Is(err, errors.ErrCodeSlotBusy) {
		t.Errorf("expected SlotBusy, got %v", err)
	}
}

func TestWithResilience_EmptyConfigPassthrough(t *testing.T) {
	p := echo()
	if provider.WithResilience(p, provider.ResilienceConfig{}) != p {
		t.Error("empty config should return the provider unchanged")
	}
}
