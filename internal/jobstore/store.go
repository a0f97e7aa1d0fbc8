package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"cardforge/internal/config"
)

// ErrNotFound reports a lookup for a job the store does not have.
var ErrNotFound = errors.New("jobstore: job not found")

// Store persists generation jobs in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the jobs database next to the cache files.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.CacheDir, "jobs.db"))
}

// OpenPath opens the jobs database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// NewJob inserts a pending job for a token/artifact pair and assigns a
// request id.
func (s *Store) NewJob(ctx context.Context, tokenID, artifact string) (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	requestID := uuid.NewString()

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO generation_jobs (
            request_id, token_id, artifact, status, attempts, created_at, updated_at
        ) VALUES (?, ?, ?, ?, 0, ?, ?)`,
		requestID,
		tokenID,
		artifact,
		StatusPending,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

const jobColumns = "id, request_id, token_id, artifact, job_handle, status, attempts, result_url, error_reason, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id          int64
		requestID   string
		tokenID     string
		artifact    string
		jobHandle   sql.NullString
		statusStr   string
		attempts    int64
		resultURL   sql.NullString
		errorReason sql.NullString
		createdRaw  string
		updatedRaw  string
	)
	if err := scanner.Scan(
		&id,
		&requestID,
		&tokenID,
		&artifact,
		&jobHandle,
		&statusStr,
		&attempts,
		&resultURL,
		&errorReason,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:          id,
		RequestID:   requestID,
		TokenID:     tokenID,
		Artifact:    artifact,
		JobHandle:   jobHandle.String,
		Status:      Status(statusStr),
		Attempts:    int(attempts),
		ResultURL:   resultURL.String,
		ErrorReason: errorReason.String,
	}
	job.CreatedAt = parseTimestamp(createdRaw)
	job.UpdatedAt = parseTimestamp(updatedRaw)
	return job, nil
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return parsed
	}
	return time.Time{}
}

// GetByID returns the job with the given row id.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM generation_jobs WHERE id = ?", id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// GetByRequestID returns the job with the given request id.
func (s *Store) GetByRequestID(ctx context.Context, requestID string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+" FROM generation_jobs WHERE request_id = ?", strings.TrimSpace(requestID))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", requestID, err)
	}
	return job, nil
}

// ActiveForToken returns the newest in-flight job for a token/artifact pair,
// or nil when none is running.
func (s *Store) ActiveForToken(ctx context.Context, tokenID, artifact string) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+jobColumns+` FROM generation_jobs
         WHERE token_id = ? AND artifact = ? AND status IN (?, ?, ?)
         ORDER BY id DESC LIMIT 1`,
		tokenID, artifact, StatusPending, StatusSubmitting, StatusPolling)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active job for %s/%s: %w", tokenID, artifact, err)
	}
	return job, nil
}

// List returns jobs newest-first, optionally filtered by status. limit <= 0
// returns all jobs.
func (s *Store) List(ctx context.Context, statuses []Status, limit int) ([]*Job, error) {
	query := "SELECT " + jobColumns + " FROM generation_jobs"
	args := make([]any, 0, len(statuses)+1)
	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, status := range statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		query += " WHERE status IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// SetSubmitting marks the job as submitting.
func (s *Store) SetSubmitting(ctx context.Context, id int64) error {
	return s.update(ctx, id, "status = ?", StatusSubmitting)
}

// SetPolling records the external task handle and marks the job as polling.
func (s *Store) SetPolling(ctx context.Context, id int64, handle string) error {
	return s.update(ctx, id, "status = ?, job_handle = ?", StatusPolling, handle)
}

// RecordAttempt updates the job's poll attempt counter.
func (s *Store) RecordAttempt(ctx context.Context, id int64, attempts int) error {
	return s.update(ctx, id, "attempts = ?", attempts)
}

// MarkCompleted finalizes the job with its result URL and attempt count.
func (s *Store) MarkCompleted(ctx context.Context, id int64, resultURL string, attempts int) error {
	return s.update(ctx, id, "status = ?, result_url = ?, attempts = ?, error_reason = NULL",
		StatusCompleted, resultURL, attempts)
}

// MarkFailed finalizes the job with a failure reason.
func (s *Store) MarkFailed(ctx context.Context, id int64, reason string) error {
	return s.update(ctx, id, "status = ?, error_reason = ?", StatusFailed, reason)
}

// ResetStale moves in-flight jobs back to failed on daemon startup. Jobs
// cannot survive a restart because the poll loop state lives in memory.
func (s *Store) ResetStale(ctx context.Context) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE generation_jobs SET status = ?, error_reason = ?, updated_at = ?
         WHERE status IN (?, ?, ?)`,
		StatusFailed, "interrupted by daemon restart", now,
		StatusPending, StatusSubmitting, StatusPolling)
	if err != nil {
		return 0, fmt.Errorf("reset stale jobs: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func (s *Store) update(ctx context.Context, id int64, assignment string, args ...any) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	args = append(args, now, id)
	res, err := s.db.ExecContext(ctx,
		"UPDATE generation_jobs SET "+assignment+", updated_at = ? WHERE id = ?", args...)
	if err != nil {
		return fmt.Errorf("update job %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
