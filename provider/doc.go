// Package provider defines the RequestResponse abstraction used for every
// outbound call of the pipeline, and the middleware that wraps it.
//
// Middleware[I, O] wraps a RequestResponse provider. Use Chain to compose:
//
//	wrapped := provider.Chain(
//	    provider.WithTracing[In, Out]("voicebot"),
//	    provider.WithLogging[In, Out](log),
//	    provider.WithMetrics[In, Out](metrics),
//	)(rawProvider)
//
// WithResilience adds rate limiting, bulkhead, circuit breaker and retry in
// that order around Execute. Plain functions become providers via NewFunc.
package provider
