package models

import "time"

// EndpointRecord is the runtime configuration and scheduling state for one
// monitored endpoint. The registry holds exactly one live record per ID.
type EndpointRecord struct {
	ID          string
	Name        string
	URL         string
	Method      string
	Headers     map[string]string
	Body        []byte
	UserID      string
	WorkspaceID string

	// FrequencySeconds is the check cadence. Schedule, when non-empty, is a
	// cron expression that takes precedence over the fixed frequency.
	FrequencySeconds int
	Schedule         string

	// ExpectedStatus narrows success to one exact status code.
	// Zero means any 2xx counts as success.
	ExpectedStatus int

	// TimeoutSeconds overrides the prober's default per-request timeout.
	// Zero means use the default.
	TimeoutSeconds int

	NextCheckAt         time.Time
	ConsecutiveFailures int
	IsActive            bool
	LastCheckedAt       *time.Time
}

// Frequency returns the check cadence as a duration.
func (r EndpointRecord) Frequency() time.Duration {
	return time.Duration(r.FrequencySeconds) * time.Second
}

// WorkItem is the unit handed from the scanner to the worker pool. It carries
// the NextCheckAt value that made the endpoint due; the record itself is
// looked up again at execution time so a concurrently deleted endpoint is a
// no-op rather than a stale check.
type WorkItem struct {
	EndpointID  string
	ScheduledAt time.Time
}

// CheckResult is the immutable outcome of a single executed WorkItem.
// A retried probe still produces exactly one CheckResult.
type CheckResult struct {
	EndpointID string
	StatusCode *int // nil on transport failure
	LatencyMS  int64
	Success    bool
	Error      *string // nil on success
	CheckedAt  time.Time
}

// NotificationSettings are per-user outage notification preferences.
type NotificationSettings struct {
	UserID           string
	Enabled          bool
	FailureThreshold int
}
