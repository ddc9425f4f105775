package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"courier/internal/config"
)

// snapshotKey is the fixed well-known key the queue snapshot lives under.
const snapshotKey = "queue"

// Store manages queue snapshot persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

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

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

// Open initializes or connects to the queue database under the data directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(filepath.Join(cfg.Paths.DataDir, "queue.db"))
}

// OpenPath initializes or connects to a queue database at an explicit path.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
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

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Save replaces the persisted snapshot with the provided items. The caller
// owns ordering; the snapshot is written exactly as given.
func (s *Store) Save(ctx context.Context, items []*Item) error {
	if items == nil {
		items = []*Item{}
	}
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal queue snapshot: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_snapshot (key, payload, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(key) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		snapshotKey,
		string(payload),
		now,
	); err != nil {
		return fmt.Errorf("save queue snapshot: %w", err)
	}
	return nil
}

// Load reads the persisted snapshot. Items found in-flight are reset to
// pending: an interrupted process must not strand work as permanently in
// progress. The number of items reset is returned alongside the items.
func (s *Store) Load(ctx context.Context) ([]*Item, int, error) {
	ctx = ensureContext(ctx)

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM queue_snapshot WHERE key = ?`, snapshotKey,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("load queue snapshot: %w", err)
	}

	var items []*Item
	if err := json.Unmarshal([]byte(payload), &items); err != nil {
		return nil, 0, fmt.Errorf("decode queue snapshot: %w", err)
	}

	reset := 0
	for _, item := range items {
		if item.Status == StatusInFlight {
			item.Status = StatusPending
			reset++
		}
	}
	return items, reset, nil
}

// Clear removes the persisted snapshot entirely.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.execWithRetry(ctx, `DELETE FROM queue_snapshot WHERE key = ?`, snapshotKey); err != nil {
		return fmt.Errorf("clear queue snapshot: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
