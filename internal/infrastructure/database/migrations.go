package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"path"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"
)

// migrationFile matches YYYYMMDD_HHMMSS_name.up.sql and its .down.sql pair.
var migrationFile = regexp.MustCompile(`^(\d{8}_\d{6})_([a-z0-9_]+)\.(up|down)\.sql$`)

var (
	sourceMu  sync.RWMutex
	sourceFS  fs.FS
	sourceDir = "."
)

// UseMigrations sets the files Migrate reads: every matching name in dir of
// fsys. Package migrations calls it with the embedded schema. The returned
// func restores the previous set.
func UseMigrations(fsys fs.FS, dir string) (restore func()) {
	sourceMu.Lock()
	prevFS, prevDir := sourceFS, sourceDir
	sourceFS, sourceDir = fsys, dir
	sourceMu.Unlock()

	return func() {
		sourceMu.Lock()
		sourceFS, sourceDir = prevFS, prevDir
		sourceMu.Unlock()
	}
}

// Migration is one schema change.
type Migration struct {
	Version string // YYYYMMDD_HHMMSS
	Name    string
	Up      string
	Down    string // empty when the change cannot be rolled back
}

// MigrationStatus pairs a known migration with when it was applied.
type MigrationStatus struct {
	Migration
	AppliedAt *time.Time
}

// Migrate applies pending migrations in version order, each in its own
// transaction. A failure leaves earlier migrations committed; the next
// call resumes at the failed one.
func (db *DB) Migrate(ctx context.Context) error {
	_, err := db.MigrateUp(ctx)
	return err
}

// MigrateUp is Migrate returning the versions it applied.
func (db *DB) MigrateUp(ctx context.Context) ([]string, error) {
	status, err := db.Status(ctx)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, s := range status {
		if s.AppliedAt != nil {
			continue
		}
		m := s.Migration
		err := db.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.Up); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
				m.Version, time.Now().UTC().Format(time.RFC3339))
			return err
		})
		if err != nil {
			return done, fmt.Errorf("applying migration %s_%s: %w", m.Version, m.Name, err)
		}
		done = append(done, m.Version)
	}
	return done, nil
}

// MigrateDown rolls back the newest applied migration and returns it, or
// nil when nothing is applied.
func (db *DB) MigrateDown(ctx context.Context) (*Migration, error) {
	status, err := db.Status(ctx)
	if err != nil {
		return nil, err
	}

	idx := slices.IndexFunc(status, func(s MigrationStatus) bool { return s.AppliedAt == nil })
	if idx == -1 {
		idx = len(status)
	}
	if idx == 0 {
		return nil, nil
	}
	m := status[idx-1].Migration
	if m.Down == "" {
		return nil, fmt.Errorf("migration %s_%s has no down file", m.Version, m.Name)
	}

	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, m.Down); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM schema_migrations WHERE version = ?`, m.Version)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("rolling back migration %s_%s: %w", m.Version, m.Name, err)
	}
	return &m, nil
}

// Status lists every known migration in version order with its applied
// time. A version recorded in the database but missing from the files is
// an error.
func (db *DB) Status(ctx context.Context) ([]MigrationStatus, error) {
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("creating schema_migrations: %w", err)
	}

	known, err := loadMigrations()
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	applied, err := db.appliedVersions(ctx)
	if err != nil {
		return nil, err
	}

	status := make([]MigrationStatus, len(known))
	for i, m := range known {
		status[i].Migration = m
		if at, ok := applied[m.Version]; ok {
			status[i].AppliedAt = &at
			delete(applied, m.Version)
		}
	}
	if len(applied) > 0 {
		orphans := slices.Sorted(maps.Keys(applied))
		return nil, fmt.Errorf("applied migration %s has no file", orphans[0])
	}
	return status, nil
}

func (db *DB) appliedVersions(ctx context.Context) (map[string]time.Time, error) {
	rows, err := db.QueryContext(ctx, `SELECT version, applied_at FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("querying schema_migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]time.Time)
	for rows.Next() {
		var version, at string
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("scanning schema_migrations: %w", err)
		}
		t, _ := time.Parse(time.RFC3339, at) //nolint:errcheck // written by MigrateUp
		applied[version] = t
	}
	return applied, rows.Err()
}

// loadMigrations reads the registered files, pairing up and down halves.
func loadMigrations() ([]Migration, error) {
	sourceMu.RLock()
	fsys, dir := sourceFS, sourceDir
	sourceMu.RUnlock()

	if fsys == nil {
		return nil, nil
	}
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	byVersion := make(map[string]*Migration)
	for _, e := range entries {
		parts := migrationFile.FindStringSubmatch(e.Name())
		if e.IsDir() || parts == nil {
			continue
		}
		version, name, direction := parts[1], parts[2], parts[3]

		body, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		} else if m.Name != name {
			return nil, fmt.Errorf("version %s used by %q and %q", version, m.Name, name)
		}
		if direction == "up" {
			m.Up = string(body)
		} else {
			m.Down = string(body)
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		if strings.TrimSpace(m.Up) == "" {
			return nil, fmt.Errorf("migration %s_%s has no up file", m.Version, m.Name)
		}
		out = append(out, *m)
	}
	slices.SortFunc(out, func(a, b Migration) int { return strings.Compare(a.Version, b.Version) })
	return out, nil
}
