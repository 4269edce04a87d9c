// Package registry implements the in-memory endpoint registry.
//
// The registry maps endpoint ID to its runtime record and scheduling state.
// It is kept consistent with the backing store through change events pushed
// by the API layer, never by polling, and it is the only structure in the
// engine mutated by more than one task type. All operations are linearizable
// behind a single mutex.
//
// The critical operation is SnapshotDue: selecting the due entries and
// advancing their next-check times happens atomically, which is what makes a
// slow scan safe to overlap with the next tick.
package registry
