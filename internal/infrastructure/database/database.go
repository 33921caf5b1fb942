package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/nerrad567/devicelabel-core/internal/infrastructure/config"
)

// MemoryPath opens a private in-memory database, used by tests.
const MemoryPath = ":memory:"

// ErrNoPath is returned by Open when no database path is configured.
var ErrNoPath = errors.New("database: path is required")

const (
	dirMode  = 0o750
	fileMode = 0o600

	pingTimeout     = 5 * time.Second
	connMaxIdleTime = 30 * time.Minute
	connMaxLifetime = time.Hour
)

// Config is the database section of the service config.
type Config struct {
	// Path of the SQLite file. Missing parent directories are created.
	Path string

	// WALMode lets readers proceed while the catalog or inventory is written.
	WALMode bool

	// BusyTimeout is how long, in seconds, a statement waits for a lock.
	BusyTimeout int
}

// ConfigFrom converts the YAML database section.
func ConfigFrom(c config.DatabaseConfig) Config {
	return Config{Path: c.Path, WALMode: c.WALMode, BusyTimeout: c.BusyTimeout}
}

// DB is the SQLite pool holding the catalog, inventory and audit tables.
type DB struct {
	*sql.DB
	path string
}

// Open opens (creating if needed) the database at cfg.Path with foreign keys
// enforced, and pings it.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, ErrNoPath
	}
	inMemory := cfg.Path == MemoryPath

	if !inMemory {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), dirMode); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite3", dsn(cfg, inMemory))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory database
	// lives only as long as its connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	if !inMemory {
		sqlDB.SetConnMaxLifetime(connMaxLifetime)
		sqlDB.SetConnMaxIdleTime(connMaxIdleTime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("verifying database connection: %w", err)
	}

	if !inMemory {
		_ = os.Chmod(cfg.Path, fileMode) //nolint:errcheck // created lazily by the first write
	}
	return &DB{DB: sqlDB, path: cfg.Path}, nil
}

// dsn builds the go-sqlite3 connection string.
func dsn(cfg Config, inMemory bool) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", fmt.Sprint(cfg.BusyTimeout*int(time.Second/time.Millisecond)))
	if cfg.WALMode && !inMemory {
		q.Set("_journal_mode", "WAL")
		q.Set("_synchronous", "NORMAL")
	}
	return "file:" + cfg.Path + "?" + q.Encode()
}

// Close runs PRAGMA optimize and closes the pool. Safe on a nil pool.
func (db *DB) Close() error {
	if db.DB == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	_, _ = db.DB.ExecContext(ctx, "PRAGMA optimize") //nolint:errcheck // advisory

	if err := db.DB.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	return nil
}

// Path returns the configured database path.
func (db *DB) Path() string {
	return db.path
}

// HealthCheck confirms the database answers a trivial query.
func (db *DB) HealthCheck(ctx context.Context) error {
	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}

// WithTx runs fn in a transaction, committing when fn returns nil. fn's
// error is returned as-is so sentinels survive errors.Is.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
