package bootstrap

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/voicebot/component"
	"github.com/kbukum/voicebot/config"
	"github.com/kbukum/voicebot/logger"
)

type testConfig struct {
	config.ServiceConfig
}

type mockComponent struct {
	name     string
	startErr error
	health   component.Health
	events   *eventLog
	started  bool
	stopped  bool
}

func (m *mockComponent) Name() string { return m.name }
func (m *mockComponent) Start(context.Context) error {
	m.events.add("start:" + m.name)
	m.started = true
	return m.startErr
}
func (m *mockComponent) Stop(context.Context) error {
	m.events.add("stop:" + m.name)
	m.stopped = true
	return nil
}
func (m *mockComponent) Health(context.Context) component.Health {
	if m.health.Name == "" {
		return component.Health{Name: m.name, Status: component.StatusHealthy}
	}
	return m.health
}

type describedComponent struct {
	mockComponent
}

func (d *describedComponent) Describe() component.Description {
	return component.Description{Name: "HTTP Server", Type: "server", Details: "0.0.0.0:8080", Port: 8080}
}

func (d *describedComponent) Routes() []component.Route {
	return []component.Route{{Method: "POST", Path: "/webhook/telegram", Handler: "telegram.WebhookHandler"}}
}

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, s)
}

func (e *eventLog) String() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return strings.Join(e.events, ",")
}

func newTestApp(t *testing.T) (*App[*testConfig], *bytes.Buffer) {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "voicebot", Version: "1.0.0"}}
	out := &bytes.Buffer{}
	app, err := NewApp(cfg, WithLogger(logger.Nop()), WithSummaryOutput(out), WithGracefulTimeout(time.Second))
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app, out
}

func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

func TestNewApp(t *testing.T) {
	app, _ := newTestApp(t)
	if app.Name != "voicebot" || app.Version != "1.0.0" {
		t.Errorf("unexpected identity %s %s", app.Name, app.Version)
	}
	if app.Cfg.Environment != "development" {
		t.Errorf("expected defaults applied, got environment %q", app.Cfg.Environment)
	}
	if app.gracefulTimeout != time.Second {
		t.Errorf("expected graceful timeout option applied, got %v", app.gracefulTimeout)
	}
}

func TestNewApp_ValidationFails(t *testing.T) {
	if _, err := NewApp(&testConfig{}, WithLogger(logger.Nop())); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestRun_Lifecycle(t *testing.T) {
	app, out := newTestApp(t)
	events := &eventLog{}

	infra := &describedComponent{mockComponent{name: "http-server", events: events}}
	if err := app.RegisterComponent(infra); err != nil {
		t.Fatalf("RegisterComponent: %v", err)
	}
	late := &mockComponent{name: "telegram", events: events}

	app.OnStart(func(context.Context) error { events.add("onStart"); return nil })
	app.OnConfigure(func(_ context.Context, a *App[*testConfig]) error {
		events.add("configure")
		return a.RegisterComponent(late)
	})
	app.OnReady(func(context.Context) error { events.add("onReady"); return nil })
	app.OnStop(func(context.Context) error { events.add("onStop"); return nil })

	if err := app.Run(canceledContext()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := "start:http-server,onStart,configure,start:telegram,onReady,onStop,stop:telegram,stop:http-server"
	if got := events.String(); got != want {
		t.Errorf("lifecycle order\n got: %s\nwant: %s", got, want)
	}

	summary := out.String()
	for _, s := range []string{"voicebot v1.0.0", "HTTP Server [server]: 0.0.0.0:8080 (:8080)", "/webhook/telegram", "Health: healthy"} {
		if !strings.Contains(summary, s) {
			t.Errorf("summary missing %q:\n%s", s, summary)
		}
	}
}

func TestRun_StartupFailureStopsStarted(t *testing.T) {
	app, _ := newTestApp(t)
	events := &eventLog{}
	first := &mockComponent{name: "storage", events: events}
	broken := &mockComponent{name: "redis", events: events, startErr: fmt.Errorf("connection refused")}
	_ = app.RegisterComponent(first)
	_ = app.RegisterComponent(broken)

	err := app.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("expected start error, got %v", err)
	}
	if !first.stopped {
		t.Error("started component must be stopped after a failed startup")
	}
	if broken.stopped {
		t.Error("a component that failed to start must not be stopped")
	}
}

func TestRun_ConfigureErrorAborts(t *testing.T) {
	app, _ := newTestApp(t)
	app.OnConfigure(func(context.Context, *App[*testConfig]) error { return fmt.Errorf("missing token") })
	readyRan := false
	app.OnReady(func(context.Context) error { readyRan = true; return nil })

	if err := app.Run(canceledContext()); err == nil || !strings.Contains(err.Error(), "configuration failed") {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if readyRan {
		t.Error("onReady must not run after a configure failure")
	}
}

func TestRegisterComponent_Duplicate(t *testing.T) {
	app, _ := newTestApp(t)
	_ = app.RegisterComponent(&mockComponent{name: "storage", events: &eventLog{}})
	if err := app.RegisterComponent(&mockComponent{name: "storage", events: &eventLog{}}); err == nil {
		t.Error("expected duplicate registration error")
	}
}

func TestReadyCheck(t *testing.T) {
	app, _ := newTestApp(t)
	if err := app.ReadyCheck(context.Background()); err != nil {
		t.Errorf("empty registry must be ready, got %v", err)
	}

	_ = app.RegisterComponent(&mockComponent{
		name:   "telegram",
		events: &eventLog{},
		health: component.Health{Name: "telegram", Status: component.StatusDegraded, Message: "getUpdates failing"},
	})
	err := app.ReadyCheck(context.Background())
	if err == nil || !strings.Contains(err.Error(), "telegram=degraded(getUpdates failing)") {
		t.Errorf("unexpected ready check result %v", err)
	}
}

func TestHookErrorStopsExecution(t *testing.T) {
	calls := 0
	err := runHooks(context.Background(), []Hook{
		func(context.Context) error { calls++; return fmt.Errorf("boom") },
		func(context.Context) error { calls++; return nil },
	})
	if err == nil || calls != 1 {
		t.Errorf("expected first hook error and one call, got %v after %d calls", err, calls)
	}
}
