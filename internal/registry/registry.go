package registry

import (
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/lookout-hq/lookout/internal/models"
)

// entry pairs a record with its parsed cron schedule, so an expression is
// parsed once per upsert instead of once per scan.
type entry struct {
	record models.EndpointRecord
	sched  cron.Schedule
}

// Registry is the in-memory source of truth for what to check and when.
// It is the single structure mutated by the scanner, the change feed and the
// result writer, so every operation serializes on one mutex; callers never
// see partial state and never hold locks themselves.
type Registry struct {
	mutex        sync.Mutex
	endpoints    map[string]*entry
	initialDelay time.Duration
	logger       *slog.Logger
}

// New creates an empty registry. Brand-new endpoints get their first check
// after initialDelay rather than a full cadence, so a just-created endpoint
// is verified quickly.
func New(initialDelay time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		endpoints:    make(map[string]*entry),
		initialDelay: initialDelay,
		logger:       logger,
	}
}

// Load replaces the registry wholesale. Startup only. Records without a
// NextCheckAt are scheduled one full cadence out, matching a restart where
// every endpoint was just implicitly "checked" by the operator looking at it.
func (r *Registry) Load(records []models.EndpointRecord) {
	now := time.Now()

	fresh := make(map[string]*entry, len(records))
	for _, rec := range records {
		e := newEntry(rec)
		if e.record.NextCheckAt.IsZero() {
			e.record.NextCheckAt = e.next(now)
		}
		fresh[rec.ID] = e
	}

	r.mutex.Lock()
	r.endpoints = fresh
	r.mutex.Unlock()

	r.logger.Info("registry loaded", slog.Int("endpoints", len(fresh)))
}

// Upsert inserts or replaces a record. A new ID is seeded with the short
// initial delay; an update keeps the existing schedule position and failure
// count unless the cadence itself changed.
func (r *Registry) Upsert(rec models.EndpointRecord) {
	now := time.Now()
	e := newEntry(rec)

	r.mutex.Lock()
	defer r.mutex.Unlock()

	prev, exists := r.endpoints[rec.ID]
	if !exists {
		e.record.NextCheckAt = now.Add(r.initialDelay)
		e.record.ConsecutiveFailures = 0
		r.endpoints[rec.ID] = e
		return
	}

	if sameCadence(prev.record, rec) {
		e.record.NextCheckAt = prev.record.NextCheckAt
	} else {
		e.record.NextCheckAt = e.next(now)
	}
	e.record.ConsecutiveFailures = prev.record.ConsecutiveFailures
	r.endpoints[rec.ID] = e
}

// Remove deletes an entry. Removing a missing ID is a no-op.
func (r *Registry) Remove(id string) {
	r.mutex.Lock()
	delete(r.endpoints, id)
	r.mutex.Unlock()
}

// Get returns a copy of the record, or false if the ID is not registered.
func (r *Registry) Get(id string) (models.EndpointRecord, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e, ok := r.endpoints[id]
	if !ok {
		return models.EndpointRecord{}, false
	}
	return cloneRecord(e.record), true
}

// Size returns the number of registered endpoints.
func (r *Registry) Size() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.endpoints)
}

// SnapshotDue returns every active entry whose NextCheckAt has passed, and
// advances each returned entry to its next slot before returning. The select
// and the advance are one critical section, so overlapping scans can never
// pick the same endpoint twice.
func (r *Registry) SnapshotDue(now time.Time) []models.WorkItem {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	var due []models.WorkItem
	for id, e := range r.endpoints {
		if !e.record.IsActive {
			continue
		}
		if e.record.NextCheckAt.After(now) {
			continue
		}

		due = append(due, models.WorkItem{
			EndpointID:  id,
			ScheduledAt: e.record.NextCheckAt,
		})
		e.record.NextCheckAt = e.next(now)
	}

	return due
}

// Reschedule restores an entry's NextCheckAt. The scanner uses it to re-arm
// items it could not enqueue, so a full queue delays a check by one tick
// instead of one full cadence.
func (r *Registry) Reschedule(id string, at time.Time) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if e, ok := r.endpoints[id]; ok {
		e.record.NextCheckAt = at
	}
}

// ApplyResult folds a check outcome into the failure counter: reset on
// success, incremented on failure. Returns the new count and whether the
// endpoint is still registered.
func (r *Registry) ApplyResult(id string, success bool, checkedAt time.Time) (int, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	e, ok := r.endpoints[id]
	if !ok {
		return 0, false
	}

	if success {
		e.record.ConsecutiveFailures = 0
	} else {
		e.record.ConsecutiveFailures++
	}
	t := checkedAt
	e.record.LastCheckedAt = &t

	return e.record.ConsecutiveFailures, true
}

func newEntry(rec models.EndpointRecord) *entry {
	e := &entry{record: cloneRecord(rec)}
	if rec.Schedule != "" {
		if sched, err := cron.ParseStandard(rec.Schedule); err == nil {
			e.sched = sched
		}
	}
	return e
}

// next computes the slot after now: the cron schedule when one is set and
// parseable, the fixed frequency otherwise.
func (e *entry) next(now time.Time) time.Time {
	if e.sched != nil {
		return e.sched.Next(now)
	}
	return now.Add(e.record.Frequency())
}

func sameCadence(a, b models.EndpointRecord) bool {
	return a.FrequencySeconds == b.FrequencySeconds && a.Schedule == b.Schedule
}

func cloneRecord(rec models.EndpointRecord) models.EndpointRecord {
	out := rec
	if rec.Headers != nil {
		out.Headers = maps.Clone(rec.Headers)
	}
	if rec.Body != nil {
		out.Body = append([]byte(nil), rec.Body...)
	}
	if rec.LastCheckedAt != nil {
		t := *rec.LastCheckedAt
		out.LastCheckedAt = &t
	}
	return out
}
