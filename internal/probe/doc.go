// Package probe performs the HTTP checks themselves.
//
// One Prober is shared by every worker. Its transport caps total connections
// at twice the worker count and per-host connections at ten, resolves
// hostnames through a short-TTL DNS cache, and bounds every request with a
// timeout so no worker can be stuck longer than one probe. A failed first
// attempt gets exactly one retry after a fixed delay; either way a single
// CheckResult comes out.
package probe
