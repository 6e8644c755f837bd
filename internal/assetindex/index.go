package assetindex

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

// schemaVersion is bumped whenever schema.sql changes. Older databases are
// rejected; the index can be deleted safely since the cache files remain.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
	timeLayout              = time.RFC3339Nano
)

// Entry is the provenance of one cached clip.
type Entry struct {
	ID              int64
	Namespace       string
	Category        string
	FileName        string
	Title           string
	Locator         string
	Query           string
	Score           int
	Fallback        bool
	DurationSeconds float64
	SizeBytes       int64
	RateFactor      float64
	RunID           string
	FetchedAt       time.Time
}

// Index is the SQLite-backed provenance store.
type Index struct {
	db   *sql.DB
	path string
}

// Open creates or connects to the index at path.
func Open(path string) (*Index, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("asset index path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	idx := &Index{db: db, path: path}
	if err := idx.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// Path returns the database file location.
func (i *Index) Path() string {
	return i.path
}

// Close closes the underlying database connection.
func (i *Index) Close() error {
	if i == nil || i.db == nil {
		return nil
	}
	return i.db.Close()
}

func (i *Index) initSchema(ctx context.Context) error {
	var tableExists int
	err := i.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return i.createSchema(ctx)
	}

	var version int
	if err := i.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: index has version %d, expected %d (delete %s; cached clips are kept)",
			ErrSchemaMismatch, version, schemaVersion, i.path)
	}
	return nil
}

func (i *Index) createSchema(ctx context.Context) error {
	tx, err := i.db.BeginTx(ctx, nil)
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

// Record inserts or replaces the provenance of a cached file.
func (i *Index) Record(ctx context.Context, e Entry) error {
	if e.Namespace == "" || e.Category == "" || e.FileName == "" {
		return errors.New("asset index: namespace, category and file name are required")
	}
	if e.FetchedAt.IsZero() {
		e.FetchedAt = time.Now()
	}
	if e.RateFactor == 0 {
		e.RateFactor = 1
	}
	return i.execWithRetry(ctx, `
		INSERT INTO assets (namespace, category, file_name, title, locator, query, score, fallback,
			duration_seconds, size_bytes, rate_factor, run_id, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace, file_name) DO UPDATE SET
			category = excluded.category,
			title = excluded.title,
			locator = excluded.locator,
			query = excluded.query,
			score = excluded.score,
			fallback = excluded.fallback,
			duration_seconds = excluded.duration_seconds,
			size_bytes = excluded.size_bytes,
			rate_factor = excluded.rate_factor,
			run_id = excluded.run_id,
			fetched_at = excluded.fetched_at`,
		e.Namespace, e.Category, e.FileName, e.Title, e.Locator, e.Query, e.Score, boolToInt(e.Fallback),
		e.DurationSeconds, e.SizeBytes, e.RateFactor, e.RunID, e.FetchedAt.UTC().Format(timeLayout),
	)
}

// History returns entries for a namespace, newest first. An empty category
// returns every category. limit <= 0 means no limit.
func (i *Index) History(ctx context.Context, namespace, category string, limit int) ([]Entry, error) {
	query := `SELECT id, namespace, category, file_name, title, locator, query, score, fallback,
		duration_seconds, size_bytes, rate_factor, run_id, fetched_at
		FROM assets WHERE namespace = ?`
	args := []any{namespace}
	if category != "" {
		query += " AND category = ?"
		args = append(args, category)
	}
	query += " ORDER BY fetched_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			fallback int
			fetched  string
		)
		if err := rows.Scan(&e.ID, &e.Namespace, &e.Category, &e.FileName, &e.Title, &e.Locator, &e.Query,
			&e.Score, &fallback, &e.DurationSeconds, &e.SizeBytes, &e.RateFactor, &e.RunID, &fetched); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		e.Fallback = fallback != 0
		if ts, err := time.Parse(timeLayout, fetched); err == nil {
			e.FetchedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Forget removes the entries for the given files in a namespace.
func (i *Index) Forget(ctx context.Context, namespace string, fileNames ...string) error {
	for _, name := range fileNames {
		if err := i.execWithRetry(ctx, "DELETE FROM assets WHERE namespace = ? AND file_name = ?", namespace, name); err != nil {
			return fmt.Errorf("forget %s: %w", name, err)
		}
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
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

// retryOnBusy absorbs lock contention when several runs share one cache root.
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

func (i *Index) execWithRetry(ctx context.Context, query string, args ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return retryOnBusy(ctx, func() error {
		_, err := i.db.ExecContext(ctx, query, args...)
		return err
	})
}
