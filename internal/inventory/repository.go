package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines connection and device persistence.
type Repository interface {
	// GetConnection returns a connection by ID.
	// Returns ErrConnectionNotFound if it does not exist.
	GetConnection(ctx context.Context, id string) (*Connection, error)

	// ListConnections returns every connection ordered by ID.
	ListConnections(ctx context.Context) ([]Connection, error)

	// CreateConnection validates and inserts a connection.
	// Returns ErrConnectionExists if the ID is taken.
	CreateConnection(ctx context.Context, c *Connection) error

	// DeleteConnection removes a connection and, by cascade, its templates,
	// mappings and devices.
	DeleteConnection(ctx context.Context, id string) error

	// ListDevices returns a connection's devices ordered by name then serial.
	ListDevices(ctx context.Context, connectionID string) ([]Device, error)

	// GetDevice returns one device of a connection.
	// Returns ErrDeviceNotFound if the serial is not in the inventory.
	GetDevice(ctx context.Context, connectionID, serial string) (*Device, error)

	// ReplaceDevices makes devices the complete inventory of a connection and
	// stamps the connection's last sync time. It returns how many stale rows
	// were removed.
	ReplaceDevices(ctx context.Context, connectionID string, devices []Device, syncedAt time.Time) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

const connectionColumns = `id, name, meraki_org_id, api_key, last_synced_at, created_at, updated_at`

const deviceColumns = `connection_id, serial, name, model, product_type, network_id, mac, firmware, lan_ip, synced_at`

// GetConnection returns a connection by ID.
func (r *SQLiteRepository) GetConnection(ctx context.Context, id string) (*Connection, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM connections WHERE id = ?`, id)
	c, err := scanConnection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("querying connection %s: %w", id, err)
	}
	return c, nil
}

// ListConnections returns every connection ordered by ID.
func (r *SQLiteRepository) ListConnections(ctx context.Context) ([]Connection, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+connectionColumns+` FROM connections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	defer rows.Close()

	var conns []Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning connection: %w", err)
		}
		conns = append(conns, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connections: %w", err)
	}
	return conns, nil
}

// CreateConnection validates and inserts a connection.
func (r *SQLiteRepository) CreateConnection(ctx context.Context, c *Connection) error {
	if err := ValidateConnection(c); err != nil {
		return err
	}

	now := r.now()
	c.CreatedAt, c.UpdatedAt = now, now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO connections (id, name, meraki_org_id, api_key, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, strings.TrimSpace(c.Name), c.OrganizationID, c.APIKey, formatTime(now), formatTime(now),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: %s", ErrConnectionExists, c.ID)
		}
		return fmt.Errorf("inserting connection: %w", err)
	}
	return nil
}

// DeleteConnection removes a connection and everything it owns.
func (r *SQLiteRepository) DeleteConnection(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM connections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrConnectionNotFound
	}
	return nil
}

// ListDevices returns a connection's devices ordered by name then serial.
func (r *SQLiteRepository) ListDevices(ctx context.Context, connectionID string) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE connection_id = ? ORDER BY name, serial`,
		connectionID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating devices: %w", err)
	}
	return devices, nil
}

// GetDevice returns one device of a connection.
func (r *SQLiteRepository) GetDevice(ctx context.Context, connectionID, serial string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE connection_id = ? AND serial = ?`,
		connectionID, serial,
	)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, fmt.Errorf("querying device %s: %w", serial, err)
	}
	return d, nil
}

// ReplaceDevices upserts devices and deletes rows the sync did not return.
func (r *SQLiteRepository) ReplaceDevices(ctx context.Context, connectionID string, devices []Device, syncedAt time.Time) (int, error) {
	stamp := formatTime(syncedAt.UTC())

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	res, err := tx.ExecContext(ctx,
		`UPDATE connections SET last_synced_at = ?, updated_at = ? WHERE id = ?`,
		stamp, stamp, connectionID,
	)
	if err != nil {
		return 0, fmt.Errorf("stamping connection: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	} else if n == 0 {
		return 0, ErrConnectionNotFound
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO devices (`+deviceColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (connection_id, serial) DO UPDATE SET
			name = excluded.name,
			model = excluded.model,
			product_type = excluded.product_type,
			network_id = excluded.network_id,
			mac = excluded.mac,
			firmware = excluded.firmware,
			lan_ip = excluded.lan_ip,
			synced_at = excluded.synced_at`)
	if err != nil {
		return 0, fmt.Errorf("preparing device upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range devices {
		if d.Serial == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			connectionID, d.Serial, d.Name, d.Model, d.ProductType,
			d.NetworkID, d.MAC, d.Firmware, d.LanIP, stamp,
		); err != nil {
			return 0, fmt.Errorf("upserting device %s: %w", d.Serial, err)
		}
	}

	stale, err := staleSerials(ctx, tx, connectionID, devices)
	if err != nil {
		return 0, err
	}
	for _, serial := range stale {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM devices WHERE connection_id = ? AND serial = ?`,
			connectionID, serial,
		); err != nil {
			return 0, fmt.Errorf("removing stale device %s: %w", serial, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing device sync: %w", err)
	}
	return len(stale), nil
}

// staleSerials lists stored serials of a connection that are absent from devices.
func staleSerials(ctx context.Context, tx *sql.Tx, connectionID string, devices []Device) ([]string, error) {
	keep := make(map[string]struct{}, len(devices))
	for _, d := range devices {
		keep[d.Serial] = struct{}{}
	}

	rows, err := tx.QueryContext(ctx, `SELECT serial FROM devices WHERE connection_id = ?`, connectionID)
	if err != nil {
		return nil, fmt.Errorf("querying stored serials: %w", err)
	}
	defer rows.Close()

	var stale []string
	for rows.Next() {
		var serial string
		if err := rows.Scan(&serial); err != nil {
			return nil, fmt.Errorf("scanning serial: %w", err)
		}
		if _, ok := keep[serial]; !ok {
			stale = append(stale, serial)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating serials: %w", err)
	}
	return stale, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConnection(s scanner) (*Connection, error) {
	var c Connection
	var lastSynced sql.NullString
	var createdAt, updatedAt string
	if err := s.Scan(&c.ID, &c.Name, &c.OrganizationID, &c.APIKey, &lastSynced, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if lastSynced.Valid {
		t := parseTime(lastSynced.String)
		c.LastSyncedAt = &t
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}

func scanDevice(s scanner) (*Device, error) {
	var d Device
	var syncedAt string
	if err := s.Scan(&d.ConnectionID, &d.Serial, &d.Name, &d.Model, &d.ProductType,
		&d.NetworkID, &d.MAC, &d.Firmware, &d.LanIP, &syncedAt); err != nil {
		return nil, err
	}
	d.SyncedAt = parseTime(syncedAt)
	return &d, nil
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s) //nolint:errcheck // written by formatTime; zero on corruption
	return t
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// isUniqueConstraintError checks if an error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed"))
}
