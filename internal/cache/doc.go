// Package cache provides a generic TTL memoization combinator: a pure
// lookup-or-compute-and-store wrapper around any keyed loader function.
// The engine uses it for auxiliary read paths such as per-user notification
// settings, which change rarely but are consulted on every failed check.
package cache
