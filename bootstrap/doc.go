// Package bootstrap runs a service through its lifecycle: infrastructure
// components start first, OnConfigure callbacks wire what depends on them,
// late-registered components start, and a summary is printed. Shutdown on
// SIGINT or SIGTERM stops everything in reverse order.
package bootstrap
