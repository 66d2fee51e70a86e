// Package sqlite provides the SQLite-backed local durable store. Every write
// commits before the call returns so that a successful enqueue survives a
// crash or process restart.
package sqlite

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	platformerrors "github.com/louisbranch/outpost/internal/platform/errors"
	sqlitemigrate "github.com/louisbranch/outpost/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/outpost/internal/storage"
	"github.com/louisbranch/outpost/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

var _ storage.Store = (*Store)(nil)

// Store provides SQLite-backed persistence for all engine partitions.
type Store struct {
	sqlDB *sql.DB
}

// Open opens the engine store at path and applies migrations. Opening is
// idempotent: concurrent callers converge on the same initialized schema.
// A medium that denies access surfaces as STORAGE_UNAVAILABLE; callers must
// treat that as "offline capability disabled", not a fatal error.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.CodeStorageUnavailable, "open sqlite db", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, platformerrors.Wrap(platformerrors.CodeStorageUnavailable, "ping sqlite db", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, platformerrors.Wrap(platformerrors.CodeStorageUnavailable, "run migrations", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready() error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
