// Package health implements the circuit breaker that gates the scheduler.
//
// The monitor has two states:
//
//   - CLOSED: healthy, scheduling proceeds
//   - OPEN: unhealthy, scheduling paused
//
// Three consecutive failed probes open the gate; three consecutive
// successful probes close it again. A probe verifies both backing-store
// connectivity and network reachability, and real probes are throttled to
// one per interval. The monitor also exposes the queue high-water check, a
// second backpressure signal layered on top of the breaker.
package health
