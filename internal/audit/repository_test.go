package audit

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/nerrad567/devicelabel-core/internal/infrastructure/database"
	_ "github.com/nerrad567/devicelabel-core/migrations"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db.DB
}

func TestCreateAndList(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	entries := []AuditLog{
		{TenantID: "conn-a", Action: ActionCreate, EntityType: EntityTemplate, EntityID: "1", Source: SourceAPI, CreatedAt: base},
		{TenantID: "conn-a", Action: ActionSync, EntityType: EntityConnection, EntityID: "conn-a", Source: SourceCLI,
			Details: map[string]any{"devices": float64(12)}, CreatedAt: base.Add(time.Minute)},
		{TenantID: "conn-b", Action: ActionDelete, EntityType: EntityModelMapping, EntityID: "7", Source: SourceAPI, CreatedAt: base.Add(2 * time.Minute)},
		{Action: ActionPurge, EntityType: EntityCache, Source: SourceCLI, CreatedAt: base.Add(3 * time.Minute)},
	}
	for i := range entries {
		if err := repo.Create(ctx, &entries[i]); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if entries[i].ID == "" {
			t.Fatal("Create() did not assign an ID")
		}
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantFirst string
	}{
		{"all newest first", Filter{}, 4, ActionPurge},
		{"tenant", Filter{TenantID: "conn-a"}, 2, ActionSync},
		{"tenant and action", Filter{TenantID: "conn-a", Action: ActionCreate}, 1, ActionCreate},
		{"entity type", Filter{EntityType: EntityModelMapping}, 1, ActionDelete},
		{"no match", Filter{TenantID: "conn-z"}, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if got.Total != tt.wantTotal || len(got.Logs) != tt.wantTotal {
				t.Fatalf("List() total = %d, logs = %d, want %d", got.Total, len(got.Logs), tt.wantTotal)
			}
			if tt.wantFirst != "" && got.Logs[0].Action != tt.wantFirst {
				t.Errorf("first action = %q, want %q", got.Logs[0].Action, tt.wantFirst)
			}
		})
	}

	got, err := repo.List(ctx, Filter{TenantID: "conn-a", Action: ActionSync})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got.Logs[0].Details["devices"] != float64(12) || got.Logs[0].TenantID != "conn-a" {
		t.Errorf("sync entry = %+v", got.Logs[0])
	}
}

func TestList_Pagination(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := repo.Create(ctx, &AuditLog{
			Action: ActionCreate, EntityType: EntityTemplate, Source: SourceAPI,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repo.List(ctx, Filter{Limit: 2, Offset: 4})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got.Total != 5 || len(got.Logs) != 1 || got.Limit != 2 || got.Offset != 4 {
		t.Errorf("List() = total %d, logs %d, limit %d, offset %d", got.Total, len(got.Logs), got.Limit, got.Offset)
	}
	if !got.Logs[0].CreatedAt.Equal(base) {
		t.Errorf("last page entry created_at = %v, want %v", got.Logs[0].CreatedAt, base)
	}

	clamped, err := repo.List(ctx, Filter{Limit: 1000, Offset: -3})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if clamped.Limit != 200 || clamped.Offset != 0 {
		t.Errorf("clamped limit/offset = %d/%d", clamped.Limit, clamped.Offset)
	}
}

func TestSinceAndPrune(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Sub-second and whole-second stamps must still order correctly.
	stamps := []time.Time{
		base,
		base.Add(500 * time.Millisecond),
		base.Add(time.Second),
		base.Add(24 * time.Hour),
	}
	for _, ts := range stamps {
		if err := repo.Create(ctx, &AuditLog{
			TenantID: "conn-a", Action: ActionSync, EntityType: EntityConnection, Source: SourceBus, CreatedAt: ts,
		}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}

	got, err := repo.List(ctx, Filter{Since: base.Add(500 * time.Millisecond)})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got.Total != 3 {
		t.Errorf("since total = %d, want 3", got.Total)
	}
	if !got.Logs[0].CreatedAt.Equal(stamps[3]) || !got.Logs[2].CreatedAt.Equal(stamps[1]) {
		t.Errorf("order = %v, %v, %v", got.Logs[0].CreatedAt, got.Logs[1].CreatedAt, got.Logs[2].CreatedAt)
	}

	n, err := repo.Prune(ctx, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Prune() = %d, want 3", n)
	}
	remaining, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if remaining.Total != 1 || !remaining.Logs[0].CreatedAt.Equal(stamps[3]) {
		t.Errorf("after prune = %+v", remaining.Logs)
	}
}
