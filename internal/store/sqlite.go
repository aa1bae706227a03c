package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/makeasinger/studio/internal/model"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// SQLite is a single-file Store. Writes are serialized through one
// connection, so a job update is a plain read-modify-write transaction.
type SQLite struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ Store = (*SQLite)(nil)

// OpenSQLite initializes or connects to the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

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

	s := &SQLite{db: db, path: path, now: time.Now}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database %s has version %d, expected %d",
			ErrSchemaMismatch, s.path, version, schemaVersion)
	}
	return nil
}

func (s *SQLite) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func (s *SQLite) CreateJob(ctx context.Context, job *model.Job) error {
	result, err := json.Marshal(nonNilResult(job.Result))
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin job tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `INSERT INTO jobs
		(id, type, status, progress, message, result, project_id, created_at, updated_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		job.ID, string(job.Type), string(job.Status), job.Progress, job.Message, string(result), job.ProjectID,
		formatTime(job.CreatedAt), formatTime(job.UpdatedAt), formatTimePtr(job.StartedAt), formatTimePtr(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	for _, line := range job.Logs {
		if _, err := tx.ExecContext(ctx, "INSERT INTO job_logs (job_id, line) VALUES (?, ?)", job.ID, line); err != nil {
			return fmt.Errorf("insert job log: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit job: %w", err)
	}
	return nil
}

func (s *SQLite) GetJob(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.loadJob(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, "SELECT line FROM job_logs WHERE job_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, fmt.Errorf("query job logs: %w", err)
	}
	defer rows.Close()

	job.Logs = []string{}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan job log: %w", err)
		}
		job.Logs = append(job.Logs, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job logs: %w", err)
	}
	return job, nil
}

func (s *SQLite) UpdateJob(ctx context.Context, id string, u JobUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin job tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	job, err := s.loadJob(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := u.Apply(job, s.now()); err != nil {
		return err
	}

	result, err := json.Marshal(nonNilResult(job.Result))
	if err != nil {
		return fmt.Errorf("marshal job result: %w", err)
	}
	_, err = tx.ExecContext(ctx, `UPDATE jobs SET
		status = ?, progress = ?, message = ?, result = ?, updated_at = ?, started_at = ?, completed_at = ?
		WHERE id = ?`,
		string(job.Status), job.Progress, job.Message, string(result), formatTime(job.UpdatedAt),
		formatTimePtr(job.StartedAt), formatTimePtr(job.CompletedAt), id,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit job update: %w", err)
	}
	return nil
}

func (s *SQLite) AppendJobLog(ctx context.Context, id, line string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin job tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, "SELECT status FROM jobs WHERE id = ?", id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read job status: %w", err)
	}
	if model.JobStatus(status).IsTerminal() {
		return ErrTerminal
	}

	if _, err := tx.ExecContext(ctx, "INSERT INTO job_logs (job_id, line) VALUES (?, ?)", id, line); err != nil {
		return fmt.Errorf("insert job log: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE jobs SET updated_at = ? WHERE id = ?", formatTime(s.now()), id); err != nil {
		return fmt.Errorf("touch job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit job log: %w", err)
	}
	return nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLite) loadJob(ctx context.Context, q queryRower, id string) (*model.Job, error) {
	var (
		job                     model.Job
		jobType, status, result string
		createdAt, updatedAt    string
		startedAt, completedAt  sql.NullString
	)
	err := q.QueryRowContext(ctx, `SELECT id, type, status, progress, message, result, project_id,
		created_at, updated_at, started_at, completed_at FROM jobs WHERE id = ?`, id).Scan(
		&job.ID, &jobType, &status, &job.Progress, &job.Message, &result, &job.ProjectID,
		&createdAt, &updatedAt, &startedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read job: %w", err)
	}

	job.Type = model.JobType(jobType)
	job.Status = model.JobStatus(status)
	if err := json.Unmarshal([]byte(result), &job.Result); err != nil {
		return nil, fmt.Errorf("unmarshal job result: %w", err)
	}
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	job.StartedAt = parseTimePtr(startedAt)
	job.CompletedAt = parseTimePtr(completedAt)
	return &job, nil
}

func (s *SQLite) CreateAsset(ctx context.Context, a *model.Asset) error {
	return s.insertDoc(ctx, "INSERT INTO assets (id, project_id, body, created_at) VALUES (?, ?, ?, ?) ON CONFLICT(id) DO NOTHING",
		a, a.ID, a.ProjectID)
}

func (s *SQLite) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	var a model.Asset
	if err := s.getDoc(ctx, "SELECT body FROM assets WHERE id = ?", id, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLite) CreateProject(ctx context.Context, p *model.Project) error {
	return s.insertDoc(ctx, "INSERT INTO projects (id, body, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING",
		p, p.ID)
}

func (s *SQLite) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	if err := s.getDoc(ctx, "SELECT body FROM projects WHERE id = ?", id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLite) CreateVoice(ctx context.Context, v *model.VoiceProfile) error {
	return s.insertDoc(ctx, "INSERT INTO voices (id, body, created_at) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING",
		v, v.ID)
}

func (s *SQLite) GetVoice(ctx context.Context, id string) (*model.VoiceProfile, error) {
	var v model.VoiceProfile
	if err := s.getDoc(ctx, "SELECT body FROM voices WHERE id = ?", id, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *SQLite) DeleteVoice(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM voices WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete voice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// insertDoc stores v as JSON. keys are the leading column values; body and
// created_at are appended.
func (s *SQLite) insertDoc(ctx context.Context, query string, v any, keys ...any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	args := append(keys, string(body), formatTime(s.now()))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrConflict
	}
	return nil
}

func (s *SQLite) getDoc(ctx context.Context, query, id string, v any) error {
	var body string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	return nil
}

func nonNilResult(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}
