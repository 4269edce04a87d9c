// Package metrics provides real-time metrics collection for the monitoring
// engine.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Check counts and failure counts per endpoint
//   - Check latencies with percentile calculations (P50, P95, P99)
//   - HTTP status code distribution
//   - Health monitor state transitions
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the check path. Events are sent via a buffered channel with
// non-blocking semantics so a saturated collector degrades to dropped
// samples, never to slower checks. Shutdown drains the buffer first.
package metrics
