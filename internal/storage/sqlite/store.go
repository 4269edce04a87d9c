package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/lookout-hq/lookout/internal/models"
	"github.com/lookout-hq/lookout/internal/storage"
)

// Store implements storage.Store on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database file and runs migrations. WAL keeps
// readers from blocking the result writers; the busy timeout makes concurrent
// workers wait out a locked database instead of failing with SQLITE_BUSY.
func New(ctx context.Context, dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the connection is still usable.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// migrate ensures the schema exists. check_results deliberately has no
// foreign key on endpoint_id: the results log must accept rows for endpoints
// deleted mid-flight, and deletion must never cascade into history.
func (s *Store) migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS endpoints (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL DEFAULT '',
	url                  TEXT NOT NULL,
	method               TEXT NOT NULL DEFAULT 'GET',
	headers              TEXT,
	body                 BLOB,
	user_id              TEXT NOT NULL,
	workspace_id         TEXT NOT NULL DEFAULT '',
	frequency_seconds    INTEGER NOT NULL,
	schedule             TEXT NOT NULL DEFAULT '',
	expected_status      INTEGER NOT NULL DEFAULT 0,
	timeout_seconds      INTEGER NOT NULL DEFAULT 0,
	consecutive_failures INTEGER NOT NULL DEFAULT 0,
	is_active            INTEGER NOT NULL DEFAULT 1,
	last_check_at        TEXT,
	created_at           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_endpoints_is_active ON endpoints (is_active);

CREATE TABLE IF NOT EXISTS check_results (
	id          TEXT PRIMARY KEY,
	endpoint_id TEXT NOT NULL,
	status_code INTEGER,
	latency_ms  INTEGER NOT NULL,
	success     INTEGER NOT NULL,
	error       TEXT,
	checked_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_check_results_endpoint_checked ON check_results (endpoint_id, checked_at DESC);

CREATE TABLE IF NOT EXISTS user_notification_settings (
	user_id           TEXT PRIMARY KEY,
	enabled           INTEGER NOT NULL DEFAULT 1,
	failure_threshold INTEGER NOT NULL DEFAULT 5
);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// ListActiveEndpoints returns every active endpoint configuration.
func (s *Store) ListActiveEndpoints(ctx context.Context) ([]models.EndpointRecord, error) {
	query := `
SELECT id, name, url, method, headers, body, user_id, workspace_id,
       frequency_seconds, schedule, expected_status, timeout_seconds,
       consecutive_failures, is_active, last_check_at
FROM endpoints
WHERE is_active = 1`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list endpoints: %w", err)
	}
	defer rows.Close()

	var records []models.EndpointRecord
	for rows.Next() {
		rec, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// CreateEndpoint inserts a new endpoint configuration row.
func (s *Store) CreateEndpoint(ctx context.Context, rec models.EndpointRecord) error {
	headers, err := marshalHeaders(rec.Headers)
	if err != nil {
		return err
	}

	query := `
INSERT INTO endpoints (id, name, url, method, headers, body, user_id, workspace_id,
                       frequency_seconds, schedule, expected_status, timeout_seconds,
                       consecutive_failures, is_active, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.Name, rec.URL, rec.Method, headers, rec.Body,
		rec.UserID, rec.WorkspaceID, rec.FrequencySeconds, rec.Schedule,
		rec.ExpectedStatus, rec.TimeoutSeconds, rec.ConsecutiveFailures,
		boolToInt(rec.IsActive), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert endpoint: %w", err)
	}
	return nil
}

// DeleteEndpoint removes an endpoint row. Deleting a missing row is not an
// error.
func (s *Store) DeleteEndpoint(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM endpoints WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete endpoint: %w", err)
	}
	return nil
}

// InsertCheckResult appends one check outcome.
func (s *Store) InsertCheckResult(ctx context.Context, result *models.CheckResult) error {
	query := `
INSERT INTO check_results (id, endpoint_id, status_code, latency_ms, success, error, checked_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		uuid.NewString(), result.EndpointID, result.StatusCode, result.LatencyMS,
		boolToInt(result.Success), result.Error,
		result.CheckedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert check result: %w", err)
	}
	return nil
}

// UpdateEndpointStatus writes the post-check metadata to the endpoint row.
func (s *Store) UpdateEndpointStatus(ctx context.Context, id string, lastChecked time.Time, consecutiveFailures int) error {
	query := `
UPDATE endpoints SET last_check_at = ?, consecutive_failures = ?
WHERE id = ?`

	res, err := s.db.ExecContext(ctx, query,
		lastChecked.UTC().Format(time.RFC3339Nano), consecutiveFailures, id)
	if err != nil {
		return fmt.Errorf("failed to update endpoint status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListCheckResults returns the most recent results for an endpoint, newest
// first.
func (s *Store) ListCheckResults(ctx context.Context, endpointID string, limit int) ([]models.CheckResult, error) {
	query := `
SELECT endpoint_id, status_code, latency_ms, success, error, checked_at
FROM check_results
WHERE endpoint_id = ?
ORDER BY checked_at DESC
LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, endpointID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list check results: %w", err)
	}
	defer rows.Close()

	var results []models.CheckResult
	for rows.Next() {
		var (
			r         models.CheckResult
			success   int
			checkedAt string
		)
		if err := rows.Scan(&r.EndpointID, &r.StatusCode, &r.LatencyMS, &success, &r.Error, &checkedAt); err != nil {
			return nil, fmt.Errorf("failed to scan check result: %w", err)
		}
		r.Success = success != 0
		r.CheckedAt, _ = time.Parse(time.RFC3339Nano, checkedAt)
		results = append(results, r)
	}
	return results, rows.Err()
}

// NotificationSettings returns the user's notification preferences.
func (s *Store) NotificationSettings(ctx context.Context, userID string) (models.NotificationSettings, error) {
	query := `SELECT user_id, enabled, failure_threshold FROM user_notification_settings WHERE user_id = ?`

	var (
		settings models.NotificationSettings
		enabled  int
	)
	err := s.db.QueryRowContext(ctx, query, userID).Scan(&settings.UserID, &enabled, &settings.FailureThreshold)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NotificationSettings{}, storage.ErrNotFound
	}
	if err != nil {
		return models.NotificationSettings{}, fmt.Errorf("failed to load notification settings: %w", err)
	}
	settings.Enabled = enabled != 0
	return settings, nil
}

// SetNotificationSettings upserts a user's notification preferences.
func (s *Store) SetNotificationSettings(ctx context.Context, settings models.NotificationSettings) error {
	query := `
INSERT INTO user_notification_settings (user_id, enabled, failure_threshold)
VALUES (?, ?, ?)
ON CONFLICT(user_id) DO UPDATE SET enabled = excluded.enabled, failure_threshold = excluded.failure_threshold`

	_, err := s.db.ExecContext(ctx, query, settings.UserID, boolToInt(settings.Enabled), settings.FailureThreshold)
	if err != nil {
		return fmt.Errorf("failed to save notification settings: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEndpoint(row rowScanner) (models.EndpointRecord, error) {
	var (
		rec         models.EndpointRecord
		headers     sql.NullString
		body        []byte
		isActive    int
		lastChecked sql.NullString
	)

	err := row.Scan(&rec.ID, &rec.Name, &rec.URL, &rec.Method, &headers, &body,
		&rec.UserID, &rec.WorkspaceID, &rec.FrequencySeconds, &rec.Schedule,
		&rec.ExpectedStatus, &rec.TimeoutSeconds, &rec.ConsecutiveFailures,
		&isActive, &lastChecked)
	if err != nil {
		return models.EndpointRecord{}, fmt.Errorf("failed to scan endpoint: %w", err)
	}

	rec.Body = body
	rec.IsActive = isActive != 0
	if headers.Valid && headers.String != "" {
		if err := json.Unmarshal([]byte(headers.String), &rec.Headers); err != nil {
			return models.EndpointRecord{}, fmt.Errorf("failed to decode headers for %s: %w", rec.ID, err)
		}
	}
	if lastChecked.Valid {
		if t, err := time.Parse(time.RFC3339Nano, lastChecked.String); err == nil {
			rec.LastCheckedAt = &t
		}
	}
	return rec, nil
}

func marshalHeaders(headers map[string]string) (any, error) {
	if len(headers) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(headers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode headers: %w", err)
	}
	return string(data), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
