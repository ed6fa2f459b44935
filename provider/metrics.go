package provider

import (
	"context"
	"time"

	"github.com/kbukum/voicebot/errors"
	"github.com/kbukum/voicebot/observability"
)

// WithMetrics returns a Middleware that records operation count, duration
// and errors. Errors are counted under their AppError code, or "error".
func WithMetrics[I, O any](metrics *observability.Metrics) Middleware[I, O] {
	return func(inner RequestResponse[I, O]) RequestResponse[I, O] {
		return &metricsRR[I, O]{inner: inner, metrics: metrics}
	}
}

type metricsRR[I, O any] struct {
	inner   RequestResponse[I, O]
	metrics *observability.Metrics
}

func (m *metricsRR[I, O]) Name() string                         { return m.inner.Name() }
func (m *metricsRR[I, O]) IsAvailable(ctx context.Context) bool { return m.inner.IsAvailable(ctx) }

func (m *metricsRR[I, O]) Execute(ctx context.Context, input I) (O, error) {
	start := time.Now()
	output, err := m.inner.Execute(ctx, input)

	status := "ok"
	if err != nil {
		status = "error"
		errType := string(errors.Code(err))
		if errType == "" {
			errType = "error"
		}
		m.metrics.RecordError(ctx, errType, m.inner.Name())
	}
	m.metrics.RecordOperation(ctx, m.inner.Name(), "execute", status, time.Since(start))

	return output, err
}
