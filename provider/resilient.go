package provider

import (
	"context"
	stderrors "errors"

	"github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/resilience"
)

// WithResilience wraps a RequestResponse provider with resilience policies.
// Execution chain: RateLimiter → Bulkhead → CircuitBreaker → Retry → Execute.
// An empty config returns the provider unchanged.
func WithResilience[I, O any](p RequestResponse[I, O], cfg ResilienceConfig) RequestResponse[I, O] {
	if cfg.IsEmpty() {
		return p
	}
	return &resilientRR[I, O]{inner: p, state: BuildResilience(cfg)}
}

// Resilient is WithResilience as a Middleware, for use inside Chain.
func Resilient[I, O any](cfg ResilienceConfig) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return WithResilience(inner, cfg)
	}
}

type resilientRR[I, O any] struct {
	inner RequestResponse[I, O]
	state *ResilienceState
}

func (r *resilientRR[I, O]) Name() string                         { return r.inner.Name() }
func (r *resilientRR[I, O]) IsAvailable(ctx context.Context) bool { return r.inner.IsAvailable(ctx) }

func (r *resilientRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	return ExecuteWithResilience(ctx, r.state, func() (O, error) {
		return r.inner.Execute(ctx, input)
	})
}

// ExecuteWithResilience runs fn through the resilience chain:
// RateLimiter.Wait → Bulkhead → CircuitBreaker → Retry → fn.
// Errors returned by fn come back unchanged so callers keep their typed
// identity; only bulkhead rejections are translated, into SlotBusy.
func ExecuteWithResilience[T any](ctx context.Context, s *ResilienceState, fn func() (T, error)) (T, error) {
	if s == nil {
		return fn()
	}

	if s.rl != nil {
		if err := s.rl.Wait(ctx); err != nil {
			var zero T
			return zero, err
		}
	}

	call := fn
	if s.retryCfg != nil {
		retryCfg := *s.retryCfg
		call = func() (T, error) {
			return resilience.Retry(ctx, retryCfg, fn)
		}
	}

	if s.cb != nil {
		cbCall := call
		call = func() (T, error) {
			var result T
			var resultErr error
			cbErr := s.cb.Execute(func() error {
				result, resultErr = cbCall()
				return resultErr
			})
			if cbErr != nil && resultErr == nil {
				return result, cbErr
			}
			return result, resultErr
		}
	}

	if s.bh != nil {
		var result T
		var resultErr error
		err := s.bh.Execute(ctx, func() error {
			result, resultErr = call()
			return resultErr
		})
		if err != nil && resultErr == nil {
			return result, wrapBulkheadError(s.bh.Name(), err)
		}
		return result, resultErr
	}

	return call()
}

func wrapBulkheadError(name string, err error) error {
	if stderrors.Is(err, resilience.ErrBulkheadFull) || stderrors.Is(err, resilience.ErrBulkheadTimeout) {
		return errors.SlotBusy(name).WithCause(err)
	}
	return err
}
