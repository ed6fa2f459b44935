// Package resilience provides the fault-tolerance primitives the pipeline
// leans on.
//
//   - Retry: bounded retries with exponential backoff for transfer and
//     registry failures
//   - Bulkhead: concurrency limiting; with one slot it serialises the
//     shared transcription job slot
//   - CircuitBreaker: fails fast when the messaging API is down
//   - RateLimiter: token bucket pacing for outbound messages
//
// Retrying an upload:
//
//	err := resilience.RetryFunc(ctx, cfg, func() error {
//	    return store.Put(ctx, key, r)
//	})
package resilience
