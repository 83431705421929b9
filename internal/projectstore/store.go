package projectstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"carbonscan/internal/config"
	"carbonscan/internal/services"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when schema.sql changes shape. Snapshot bodies are
// opaque to this layer, so version bumps are rare.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by an incompatible
// version of the tool.
var ErrSchemaMismatch = errors.New("project database schema mismatch")

// ErrProjectLocked indicates another session holds the project lock.
var ErrProjectLocked = errors.New("project is locked by another session")

const (
	sqliteBusyCode   = 5
	busyAttempts     = 5
	busyInitialDelay = 10 * time.Millisecond
	busyMaxDelay     = 200 * time.Millisecond
)

// Store persists run snapshots in SQLite. It implements runstate.Persister.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

// Open connects to the project database under the configured data directory,
// creating it on first use, and acquires the project lock.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "carbonscan.db"))
}

// OpenPath opens the database at an explicit path. The lock file sits next
// to the database.
func OpenPath(dbPath string) (*Store, error) {
	lock := flock.New(dbPath + ".lock")
	held, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire project lock: %w", err)
	}
	if !held {
		return nil, ErrProjectLocked
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open project db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, lock: lock}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

// Close releases the database and the project lock.
func (s *Store) Close() error {
	var errs []error
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close project db: %w", err))
		}
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("release project lock: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SaveSnapshot upserts the snapshot body for a project.
func (s *Store) SaveSnapshot(ctx context.Context, projectID string, body []byte) error {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return services.Wrap(services.ErrValidation, "projectstore", "save", "project id required", nil)
	}
	query, args, err := sq.Insert("snapshots").
		Columns("project_id", "body", "updated_at").
		Values(projectID, body, time.Now().UTC().Format(time.RFC3339Nano)).
		Suffix("ON CONFLICT(project_id) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build snapshot upsert: %w", err)
	}
	return s.execWithRetry(ctx, query, args...)
}

// LoadSnapshot returns the stored snapshot body for a project, or
// services.ErrNotFound when none exists.
func (s *Store) LoadSnapshot(ctx context.Context, projectID string) ([]byte, error) {
	query, args, err := sq.Select("body").
		From("snapshots").
		Where(sq.Eq{"project_id": strings.TrimSpace(projectID)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build snapshot select: %w", err)
	}
	var body []byte
	err = s.db.QueryRowContext(ensureContext(ctx), query, args...).Scan(&body)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, services.Wrap(services.ErrNotFound, "projectstore", "load", "no snapshot for "+projectID, nil)
	case err != nil:
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return body, nil
}

// DeleteSnapshot removes a project's snapshot. Missing rows are not an error.
func (s *Store) DeleteSnapshot(ctx context.Context, projectID string) error {
	query, args, err := sq.Delete("snapshots").
		Where(sq.Eq{"project_id": strings.TrimSpace(projectID)}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build snapshot delete: %w", err)
	}
	return s.execWithRetry(ctx, query, args...)
}

// ListProjects returns the ids of every stored project, most recently
// updated first.
func (s *Store) ListProjects(ctx context.Context) ([]string, error) {
	query, args, err := sq.Select("project_id").
		From("snapshots").
		OrderBy("updated_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build project list: %w", err)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return ids, nil
}

func (s *Store) initSchema(ctx context.Context) error {
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
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start over)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
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
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	delay := busyInitialDelay
	var lastErr error
	for attempt := 0; attempt < busyAttempts; attempt++ {
		_, lastErr = s.db.ExecContext(ctx, query, args...)
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyMaxDelay {
			delay = next
		}
	}
	return lastErr
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
