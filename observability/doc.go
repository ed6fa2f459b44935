// Package observability provides OpenTelemetry tracing and metrics.
//
// Tracing:
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun)
//	defer span.End()
//
// Metrics:
//
//	metrics, err := observability.NewMetrics(observability.Meter("voicebot"))
//	metrics.RecordStage(ctx, "upload", "ok", elapsed)
//
// The Component installs OTLP HTTP exporters when telemetry is enabled.
// Until then the global no-op providers absorb all spans and measurements.
package observability
