// Package component defines the lifecycle interface shared by the service's
// infrastructure pieces (HTTP server, Telegram poller, Redis, storage,
// telemetry) and a Registry that starts them in order and stops them in
// reverse.
package component
