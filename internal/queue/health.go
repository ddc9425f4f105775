package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SnapshotExists   bool
	SnapshotBytes    int64
	SnapshotUpdated  time.Time
	FreeDiskBytes    uint64
	Error            string
}

// CheckHealth returns diagnostic information about the queue database.
// Evidence payloads ride inside the snapshot, so free disk space on the data
// volume is part of the check.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat queue database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	var stat unix.Statfs_t
	if err := unix.Statfs(filepath.Dir(s.path), &stat); err == nil {
		health.FreeDiskBytes = stat.Bavail * uint64(stat.Bsize)
	}

	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	var (
		size    int64
		updated string
	)
	row := s.db.QueryRowContext(connCtx,
		`SELECT LENGTH(payload), updated_at FROM queue_snapshot WHERE key = ?`, snapshotKey)
	if err := row.Scan(&size, &updated); err == nil {
		health.SnapshotExists = true
		health.SnapshotBytes = size
		if ts, parseErr := time.Parse(time.RFC3339Nano, updated); parseErr == nil {
			health.SnapshotUpdated = ts
		}
	}

	return health, nil
}
