package task

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const taskColumns = `id, stage, progress, message, status, raw_text, document, failure,
    hint_summary, hint_terms, source_name, created_at, updated_at, finished_at`

// SQLStore persists records in SQLite so several daemons (or a restarted
// one) can share task state.
type SQLStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenSQLStore opens or creates the task database at path.
func OpenSQLStore(ctx context.Context, path string) (*SQLStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLStore{db: db, path: path, now: func() time.Time { return time.Now().UTC() }}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *SQLStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *SQLStore) Path() string { return s.path }

func (s *SQLStore) initSchema(ctx context.Context) error {
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
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to recreate it)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *SQLStore) createSchema(ctx context.Context) error {
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

func (s *SQLStore) Create(ctx context.Context, sub Submission) (*Record, error) {
	record := newRecord(sub, s.now())
	err := retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			recordArgs(record)...,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	return record, nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return record, nil
}

// Update reads, patches, and writes the row inside one transaction.
func (s *SQLStore) Update(ctx context.Context, id string, patch Patch) (*Record, error) {
	var (
		updated  *Record
		terminal bool
	)
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
		current, err := scanRecord(row)
		if err != nil {
			return err
		}
		if current.IsTerminal() {
			updated, terminal = current, true
			return nil
		}
		patch.apply(current, s.now())
		args := recordArgs(current)
		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET stage = ?, progress = ?, message = ?, status = ?, raw_text = ?, document = ?,
                failure = ?, hint_summary = ?, hint_terms = ?, source_name = ?, created_at = ?, updated_at = ?,
                finished_at = ? WHERE id = ?`,
			append(args[1:], id)...,
		); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if terminal {
		return updated, ErrTerminal
	}
	return updated, nil
}

func (s *SQLStore) Expire(ctx context.Context, id string) error {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("expire task: %w", err)
	}
	if affected == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQLStore) ListFinishedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM tasks WHERE status IN (?, ?) AND finished_at IS NOT NULL AND finished_at < ?`,
		StatusCompleted, StatusFailed, formatTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("list finished tasks: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan task id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FailRunning marks every running record as failed with reason. The daemon
// calls it on startup since a previous process cannot resume its runs.
func (s *SQLStore) FailRunning(ctx context.Context, reason string) (int64, error) {
	now := formatTime(s.now())
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE tasks SET status = ?, failure = ?, message = ?, updated_at = ?, finished_at = ? WHERE status = ?`,
			StatusFailed, reason, reason, now, now, StatusRunning,
		)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("fail running tasks: %w", err)
	}
	return affected, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		record     Record
		status     string
		rawText    sql.NullString
		document   sql.NullString
		createdAt  string
		updatedAt  string
		finishedAt sql.NullString
	)
	if err := row.Scan(
		&record.ID, &record.Stage, &record.Progress, &record.Message, &status,
		&rawText, &document, &record.Failure,
		&record.Hints.Summary, &record.Hints.Terms, &record.SourceName,
		&createdAt, &updatedAt, &finishedAt,
	); err != nil {
		return nil, err
	}
	record.Status = Status(status)
	if record.Status == StatusCompleted && (rawText.Valid || document.Valid) {
		record.Result = &Result{RawText: rawText.String, Document: document.String}
	}
	record.CreatedAt = parseTime(createdAt)
	record.UpdatedAt = parseTime(updatedAt)
	if finishedAt.Valid {
		record.FinishedAt = parseTime(finishedAt.String)
	}
	return &record, nil
}

func recordArgs(r *Record) []any {
	var rawText, document any
	if r.Result != nil {
		rawText, document = r.Result.RawText, r.Result.Document
	}
	var finishedAt any
	if !r.FinishedAt.IsZero() {
		finishedAt = formatTime(r.FinishedAt)
	}
	return []any{
		r.ID, int(r.Stage), r.Progress, r.Message, string(r.Status),
		rawText, document, r.Failure,
		r.Hints.Summary, r.Hints.Terms, r.SourceName,
		formatTime(r.CreatedAt), formatTime(r.UpdatedAt), finishedAt,
	}
}

// Fixed-width layout so lexical comparison in SQL matches time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}
	}
	return t
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
