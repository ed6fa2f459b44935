package component

import "context"

// HealthStatus is the state a component reports.
type HealthStatus string

// Health states, ordered from best to worst by Overall.
const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// Health is one component's entry in /health and the startup summary.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is a piece of infrastructure with a lifecycle: storage, redis,
// the Telegram poller or webhook, the HTTP server, telemetry.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}

// Description is what a component reports about itself at startup, e.g.
// {Name: "Storage", Type: "storage", Details: "s3 bucket=chat-teste"}.
type Description struct {
	Name    string
	Type    string
	Details string
	Port    int // 0 when the component does not listen
}

// Describable components are listed under infrastructure in the summary.
type Describable interface {
	Describe() Description
}

// Route is one HTTP route served by a component.
type Route struct {
	Method  string
	Path    string
	Handler string
}

// RouteProvider components list their routes in the summary.
type RouteProvider interface {
	Routes() []Route
}
