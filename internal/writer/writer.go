package writer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/lookout-hq/lookout/internal/cache"
	"github.com/lookout-hq/lookout/internal/models"
	"github.com/lookout-hq/lookout/internal/notify"
	"github.com/lookout-hq/lookout/internal/registry"
	"github.com/lookout-hq/lookout/internal/storage"
)

// Options configures the writer.
type Options struct {
	// DefaultThreshold applies to users without stored notification
	// settings.
	DefaultThreshold int
	// SettingsTTL bounds how stale a cached per-user settings row may be.
	SettingsTTL time.Duration
}

// Writer persists check outcomes and drives outage notifications.
//
// Each result goes through three independent writes on purpose: the raw
// result append, the endpoint metadata update, and the registry refresh.
// Losing the second or third after the first succeeded is an acceptable
// degradation; losing the first is not, so it always happens first and a
// failure there aborts the rest.
type Writer struct {
	store    storage.Store
	registry *registry.Registry
	notifier notify.Notifier
	settings *cache.Memoized[string, models.NotificationSettings]

	defaultThreshold int
	logger           *slog.Logger
}

func New(store storage.Store, reg *registry.Registry, notifier notify.Notifier, opts Options, logger *slog.Logger) *Writer {
	if opts.DefaultThreshold <= 0 {
		opts.DefaultThreshold = 5
	}
	if opts.SettingsTTL <= 0 {
		opts.SettingsTTL = 5 * time.Minute
	}

	return &Writer{
		store:            store,
		registry:         reg,
		notifier:         notifier,
		settings:         cache.Memoize(opts.SettingsTTL, store.NotificationSettings),
		defaultThreshold: opts.DefaultThreshold,
		logger:           logger,
	}
}

// Close releases the settings cache.
func (w *Writer) Close() {
	w.settings.Stop()
}

// Write records one check outcome. Workers call it synchronously, which is
// what caps in-flight work at the worker count.
func (w *Writer) Write(ctx context.Context, rec models.EndpointRecord, result models.CheckResult) {
	if err := w.store.InsertCheckResult(ctx, &result); err != nil {
		w.logger.Error("failed to persist check result",
			slog.String("endpoint_id", result.EndpointID),
			slog.String("error", err.Error()))
		return
	}

	newCount := w.nextFailureCount(rec, result.Success)

	err := w.store.UpdateEndpointStatus(ctx, rec.ID, result.CheckedAt, newCount)
	if errors.Is(err, storage.ErrNotFound) {
		// Endpoint deleted while the check was in flight. Evict and move
		// on; the raw result above is already durable.
		w.registry.Remove(rec.ID)
		w.logger.Info("endpoint deleted concurrently, evicted from registry",
			slog.String("endpoint_id", rec.ID))
		return
	}
	if err != nil {
		w.logger.Error("failed to update endpoint status",
			slog.String("endpoint_id", rec.ID),
			slog.String("error", err.Error()))
		return
	}

	w.registry.ApplyResult(rec.ID, result.Success, result.CheckedAt)

	if !result.Success {
		w.maybeNotify(ctx, rec, newCount)
	}
}

// nextFailureCount prefers the registry's live count over the snapshot the
// worker dispatched with, so back-to-back failures accumulate correctly.
func (w *Writer) nextFailureCount(rec models.EndpointRecord, success bool) int {
	if success {
		return 0
	}
	current := rec.ConsecutiveFailures
	if live, ok := w.registry.Get(rec.ID); ok {
		current = live.ConsecutiveFailures
	}
	return current + 1
}

// maybeNotify invokes the notification collaborator only at the exact
// threshold crossing: the Nth consecutive failure fires, N-1 and N+1 do not.
func (w *Writer) maybeNotify(ctx context.Context, rec models.EndpointRecord, count int) {
	settings := w.settingsFor(ctx, rec.UserID)
	if !settings.Enabled || count != settings.FailureThreshold {
		return
	}

	outage := notify.Outage{
		UserID:              rec.UserID,
		EndpointID:          rec.ID,
		EndpointName:        rec.Name,
		FailureThreshold:    settings.FailureThreshold,
		ConsecutiveFailures: count,
	}
	if err := w.notifier.NotifyOutage(ctx, outage); err != nil {
		w.logger.Error("failed to send outage notification",
			slog.String("endpoint_id", rec.ID),
			slog.String("error", err.Error()))
	}
}

func (w *Writer) settingsFor(ctx context.Context, userID string) models.NotificationSettings {
	settings, err := w.settings.Get(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return models.NotificationSettings{
			UserID:           userID,
			Enabled:          true,
			FailureThreshold: w.defaultThreshold,
		}
	}
	if err != nil {
		w.logger.Warn("failed to load notification settings, using defaults",
			slog.String("user_id", userID),
			slog.String("error", err.Error()))
		return models.NotificationSettings{
			UserID:           userID,
			Enabled:          true,
			FailureThreshold: w.defaultThreshold,
		}
	}
	if settings.FailureThreshold <= 0 {
		settings.FailureThreshold = w.defaultThreshold
	}
	return settings
}
