package provider

import "context"

// Provider names an outbound dependency and reports whether it can serve.
// Stage providers built with NewFunc are always available; the completion
// adapter probes its backend.
type Provider interface {
	Name() string
	IsAvailable(ctx context.Context) bool
}

// Middleware wraps a RequestResponse with one cross-cutting concern.
type Middleware[I, O any] func(RequestResponse[I, O]) RequestResponse[I, O]

// Chain composes middleware outermost first:
// Chain(a, b, c)(p) is a(b(c(p))).
func Chain[I, O any](middlewares ...Middleware[I, O]) Middleware[I, O] {
	return func(p RequestResponse[I, O]) RequestResponse[I, O] {
		for i := len(middlewares) - 1; i >= 0; i-- {
			p = middlewares[i](p)
		}
		return p
	}
}
