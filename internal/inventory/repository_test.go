package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/devicelabel-core/internal/infrastructure/database"
	_ "github.com/nerrad567/devicelabel-core/migrations"
)

func setupTestRepo(t *testing.T) (*SQLiteRepository, *database.DB) {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return NewSQLiteRepository(db.DB), db
}

func mustCreateConnection(t *testing.T, repo *SQLiteRepository, id string) *Connection {
	t.Helper()
	c := &Connection{ID: id, Name: "Conn " + id, OrganizationID: "org-" + id, APIKey: "key-" + id}
	if err := repo.CreateConnection(context.Background(), c); err != nil {
		t.Fatalf("CreateConnection(%s) error = %v", id, err)
	}
	return c
}

func TestValidateConnection(t *testing.T) {
	valid := func() *Connection {
		return &Connection{ID: "conn-acme", Name: "Acme", OrganizationID: "123", APIKey: "k"}
	}

	tests := []struct {
		name    string
		mutate  func(c *Connection)
		wantErr bool
	}{
		{"valid", func(*Connection) {}, false},
		{"uppercase id", func(c *Connection) { c.ID = "Conn" }, true},
		{"empty id", func(c *Connection) { c.ID = "" }, true},
		{"blank name", func(c *Connection) { c.Name = "  " }, true},
		{"missing org", func(c *Connection) { c.OrganizationID = "" }, true},
		{"missing key", func(c *Connection) { c.APIKey = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := ValidateConnection(c)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateConnection() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConnection) {
				t.Errorf("error %v is not ErrInvalidConnection", err)
			}
		})
	}

	if !errors.Is(ValidateConnection(nil), ErrInvalidConnection) {
		t.Error("nil connection should be invalid")
	}
}

func TestConnections(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	mustCreateConnection(t, repo, "conn-b")
	mustCreateConnection(t, repo, "conn-a")

	err := repo.CreateConnection(ctx, &Connection{ID: "conn-a", Name: "dup", OrganizationID: "o", APIKey: "k"})
	if !errors.Is(err, ErrConnectionExists) {
		t.Errorf("duplicate CreateConnection() error = %v, want ErrConnectionExists", err)
	}

	conns, err := repo.ListConnections(ctx)
	if err != nil {
		t.Fatalf("ListConnections() error = %v", err)
	}
	if len(conns) != 2 || conns[0].ID != "conn-a" || conns[1].ID != "conn-b" {
		t.Fatalf("ListConnections() = %+v", conns)
	}

	got, err := repo.GetConnection(ctx, "conn-a")
	if err != nil {
		t.Fatalf("GetConnection() error = %v", err)
	}
	if got.APIKey != "key-conn-a" || got.OrganizationID != "org-conn-a" || got.LastSyncedAt != nil {
		t.Errorf("GetConnection() = %+v", got)
	}

	if _, err := repo.GetConnection(ctx, "missing"); !errors.Is(err, ErrConnectionNotFound) {
		t.Errorf("GetConnection(missing) error = %v", err)
	}
	if err := repo.DeleteConnection(ctx, "conn-b"); err != nil {
		t.Errorf("DeleteConnection() error = %v", err)
	}
	if err := repo.DeleteConnection(ctx, "conn-b"); !errors.Is(err, ErrConnectionNotFound) {
		t.Errorf("second DeleteConnection() error = %v", err)
	}
}

func TestReplaceDevices(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()
	mustCreateConnection(t, repo, "conn-a")
	mustCreateConnection(t, repo, "conn-b")

	t1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first := []Device{
		{Serial: "Q2XX-0001", Name: "Core switch", Model: "MS225-48FP", ProductType: "switch"},
		{Serial: "Q2XX-0002", Name: "Lobby AP", Model: "MR46", ProductType: "wireless"},
		{Serial: "Q2XX-0003", Name: "Edge", Model: "MX64W", ProductType: "appliance"},
	}
	removed, err := repo.ReplaceDevices(ctx, "conn-a", first, t1)
	if err != nil || removed != 0 {
		t.Fatalf("first ReplaceDevices() = %d, %v", removed, err)
	}
	if _, err := repo.ReplaceDevices(ctx, "conn-b", []Device{{Serial: "Q2XX-0001", Name: "Other tenant"}}, t1); err != nil {
		t.Fatalf("ReplaceDevices(conn-b) error = %v", err)
	}

	t2 := t1.Add(time.Hour)
	second := []Device{
		{Serial: "Q2XX-0001", Name: "Core switch (renamed)", Model: "MS225-48FP", ProductType: "switch", Firmware: "ms-17.1"},
		{Serial: "Q2XX-0004", Name: "Camera", Model: "MV12", ProductType: "camera"},
	}
	removed, err = repo.ReplaceDevices(ctx, "conn-a", second, t2)
	if err != nil {
		t.Fatalf("second ReplaceDevices() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	devices, err := repo.ListDevices(ctx, "conn-a")
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if len(devices) != 2 || devices[0].Serial != "Q2XX-0004" || devices[1].Name != "Core switch (renamed)" {
		t.Fatalf("ListDevices() = %+v", devices)
	}
	if devices[1].Firmware != "ms-17.1" || !devices[1].SyncedAt.Equal(t2) {
		t.Errorf("updated device = %+v", devices[1])
	}

	other, err := repo.GetDevice(ctx, "conn-b", "Q2XX-0001")
	if err != nil || other.Name != "Other tenant" {
		t.Errorf("conn-b device = %+v, %v; want untouched", other, err)
	}
	if _, err := repo.GetDevice(ctx, "conn-a", "Q2XX-0002"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("GetDevice(removed) error = %v", err)
	}

	conn, err := repo.GetConnection(ctx, "conn-a")
	if err != nil || conn.LastSyncedAt == nil || !conn.LastSyncedAt.Equal(t2) {
		t.Errorf("LastSyncedAt = %v, %v", conn.LastSyncedAt, err)
	}

	if _, err := repo.ReplaceDevices(ctx, "missing", nil, t2); !errors.Is(err, ErrConnectionNotFound) {
		t.Errorf("ReplaceDevices(missing) error = %v", err)
	}
}

func TestListDevices_Empty(t *testing.T) {
	repo, _ := setupTestRepo(t)
	mustCreateConnection(t, repo, "conn-a")

	devices, err := repo.ListDevices(context.Background(), "conn-a")
	if err != nil {
		t.Fatalf("ListDevices() error = %v", err)
	}
	if devices == nil || len(devices) != 0 {
		t.Errorf("ListDevices() = %#v, want empty non-nil slice", devices)
	}
}

func TestDeleteConnection_CascadesDevices(t *testing.T) {
	repo, db := setupTestRepo(t)
	ctx := context.Background()
	mustCreateConnection(t, repo, "conn-a")

	if _, err := repo.ReplaceDevices(ctx, "conn-a", []Device{{Serial: "S1"}}, time.Now()); err != nil {
		t.Fatalf("ReplaceDevices() error = %v", err)
	}
	if err := repo.DeleteConnection(ctx, "conn-a"); err != nil {
		t.Fatalf("DeleteConnection() error = %v", err)
	}

	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&n); err != nil {
		t.Fatalf("count devices: %v", err)
	}
	if n != 0 {
		t.Errorf("devices left after connection delete = %d", n)
	}
}

func TestDevice_MatchDevice(t *testing.T) {
	d := Device{ConnectionID: "conn-a", Serial: "S", Model: "MR46", ProductType: "wireless", Name: "AP"}
	m := d.MatchDevice()
	if m.Serial != "S" || m.Model != "MR46" || m.ProductType != "wireless" || m.TenantID != "conn-a" {
		t.Errorf("MatchDevice() = %+v", m)
	}
}
