package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/kbukum/voicebot/component"
	"github.com/kbukum/voicebot/logger"
	"github.com/kbukum/voicebot/observability"
	"github.com/kbukum/voicebot/server/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, healths []component.Health) *Server {
	t.Helper()
	metrics, err := observability.NewMetrics(noop.NewMeterProvider().Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	s := New(Config{Host: "127.0.0.1", MaxBodyBytes: 64}, logger.Nop())
	s.ApplyDefaults("voicebot", func(context.Context) []component.Health { return healths }, metrics)
	return s
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Engine().ServeHTTP(rr, req)
	return rr
}

func TestHealth_FoldsComponentStatus(t *testing.T) {
	tests := []struct {
		name       string
		healths    []component.Health
		wantCode   int
		wantStatus string
	}{
		{"healthy", []component.Health{{Name: "storage", Status: component.StatusHealthy}}, http.StatusOK, "healthy"},
		{"degraded", []component.Health{{Name: "telegram", Status: component.StatusDegraded}}, http.StatusOK, "degraded"},
		{"unhealthy", []component.Health{
			{Name: "telegram", Status: component.StatusDegraded},
			{Name: "redis", Status: component.StatusUnhealthy},
		}, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := serve(newTestServer(t, tc.healths), httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			var body struct {
				Status  string `json:"status"`
				Service string `json:"service"`
			}
			if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if body.Status != tc.wantStatus || body.Service != "voicebot" {
				t.Errorf("unexpected body %+v", body)
			}
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	rr := serve(newTestServer(t, nil), httptest.NewRequest(http.MethodGet, "/version", http.NoBody))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"version"`) {
		t.Errorf("missing version field: %s", rr.Body.String())
	}
}

func TestRequestID(t *testing.T) {
	s := newTestServer(t, nil)

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if rr.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("expected a generated request id")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", http.NoBody)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	rr = serve(s, req)
	if got := rr.Header().Get(middleware.RequestIDHeader); got != "req-42" {
		t.Errorf("expected caller id echoed, got %q", got)
	}
}

func TestRecovery(t *testing.T) {
	s := newTestServer(t, nil)
	s.Engine().GET("/boom", func(*gin.Context) { panic("boom") })

	rr := serve(s, httptest.NewRequest(http.MethodGet, "/boom", http.NoBody))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "INTERNAL_ERROR") {
		t.Errorf("expected structured error body, got %s", rr.Body.String())
	}
}

func TestBodySizeLimit(t *testing.T) {
	s := newTestServer(t, nil)
	s.Engine().POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.AbortWithStatus(http.StatusRequestEntityTooLarge)
			return
		}
		c.Status(http.StatusNoContent)
	})

	rr := serve(s, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(make([]byte, 32))))
	if rr.Code != http.StatusNoContent {
		t.Errorf("small body: expected 204, got %d", rr.Code)
	}
	rr = serve(s, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewReader(make([]byte, 128))))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("large body: expected 413, got %d", rr.Code)
	}
}

func TestComponent_Lifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	s.Engine().POST("/webhook/telegram", func(c *gin.Context) { c.Status(http.StatusOK) })
	c := NewComponent(s)

	if h := c.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if h := c.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy while serving, got %s", h.Status)
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/health", s.Addr()))
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	routes := c.Routes()
	if len(routes) != 3 || routes[0].Path != "/webhook/telegram" {
		t.Errorf("expected application route first, got %+v", routes)
	}

	if err := c.Stop(context.Background()); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h := c.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy after stop, got %s", h.Status)
	}
}

func TestHandlerName(t *testing.T) {
	tests := map[string]string{
		"github.com/kbukum/voicebot/telegram.WebhookHandler.func1":  "telegram.WebhookHandler",
		"github.com/kbukum/voicebot/server/endpoint.Health.func1":   "endpoint.Health",
		"github.com/kbukum/voicebot/telegram.(*Webhook).Handler-fm": "telegram.Webhook.Handler",
	}
	for in, want := range tests {
		if got := handlerName(in); got != want {
			t.Errorf("handlerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Port != DefaultPort || cfg.MaxBodyBytes != DefaultMaxBodyBytes || cfg.ReadTimeout != DefaultReadTimeout {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	cfg.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("expected port error")
	}
}
