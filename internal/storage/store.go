package storage

import (
	"context"
	"errors"
	"time"

	"github.com/lookout-hq/lookout/internal/models"
)

// ErrNotFound is returned when a referenced row does not exist. The result
// writer relies on it to detect endpoints deleted mid-flight.
var ErrNotFound = errors.New("not found")

// Store is the persistence boundary of the engine: the endpoint
// configuration table and the append-only check results table, plus per-user
// notification settings.
type Store interface {
	// ListActiveEndpoints is the single startup read that seeds the registry.
	ListActiveEndpoints(ctx context.Context) ([]models.EndpointRecord, error)

	CreateEndpoint(ctx context.Context, rec models.EndpointRecord) error
	DeleteEndpoint(ctx context.Context, id string) error

	// InsertCheckResult appends one result as its own atomic write. It must
	// succeed even when the endpoint row is already gone; the results log is
	// never the write that is allowed to fail silently.
	InsertCheckResult(ctx context.Context, result *models.CheckResult) error

	// UpdateEndpointStatus writes the last-checked timestamp and failure
	// count back to the endpoint row. Returns ErrNotFound when the row no
	// longer exists.
	UpdateEndpointStatus(ctx context.Context, id string, lastChecked time.Time, consecutiveFailures int) error

	ListCheckResults(ctx context.Context, endpointID string, limit int) ([]models.CheckResult, error)

	// NotificationSettings returns the user's outage notification
	// preferences, or ErrNotFound when the user has never configured any.
	NotificationSettings(ctx context.Context, userID string) (models.NotificationSettings, error)

	// Ping verifies connectivity; the health monitor probes it.
	Ping(ctx context.Context) error

	Close() error
}
