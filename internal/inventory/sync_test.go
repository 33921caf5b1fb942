package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/nerrad567/devicelabel-core/internal/audit"
	"github.com/nerrad567/devicelabel-core/internal/meraki"
)

type fakeSource struct {
	mu      sync.Mutex
	devices map[string][]meraki.Device // by organization ID
	errs    map[string]error
	keys    []string
}

func (f *fakeSource) ListOrganizationDevices(_ context.Context, apiKey, orgID string) ([]meraki.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, apiKey)
	if err := f.errs[orgID]; err != nil {
		return nil, err
	}
	return f.devices[orgID], nil
}

type published struct {
	topic string
	value any
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) PublishJSON(topic string, v any, _ byte, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, value: v})
	return p.err
}

func TestSyncer_Sync(t *testing.T) {
	repo, db := setupTestRepo(t)
	ctx := context.Background()
	mustCreateConnection(t, repo, "conn-a")

	source := &fakeSource{devices: map[string][]meraki.Device{
		"org-conn-a": {
			{Serial: "Q2XX-0001", Name: "Core", Model: "MS225-48FP", ProductType: "switch", LanIP: "10.0.0.2"},
			{Serial: "", Name: "ghost"},
			{Serial: "Q2XX-0002", Name: "AP", Model: "MR46", ProductType: "wireless"},
		},
	}}
	pub := &fakePublisher{err: errors.New("broker down")}
	auditRepo := audit.NewSQLiteRepository(db.DB)

	s := NewSyncer(repo, source)
	s.SetPublisher(pub)
	s.SetAudit(auditRepo, audit.SourceCLI)

	result, err := s.Sync(ctx, "conn-a")
	if err != nil {
		t.Fatalf("Sync() error = %v (publish failures must not fail a sync)", err)
	}
	if result.Devices != 2 || result.Removed != 0 || result.SyncedAt.IsZero() {
		t.Errorf("Sync() = %+v", result)
	}
	if len(source.keys) != 1 || source.keys[0] != "key-conn-a" {
		t.Errorf("API keys used = %v", source.keys)
	}

	devices, err := repo.ListDevices(ctx, "conn-a")
	if err != nil || len(devices) != 2 {
		t.Fatalf("ListDevices() = %+v, %v", devices, err)
	}
	if devices[1].LanIP != "10.0.0.2" {
		t.Errorf("device fields not copied: %+v", devices[1])
	}

	if len(pub.msgs) != 1 || pub.msgs[0].topic != "devicelabel/inventory/conn-a/synced" {
		t.Errorf("published = %+v", pub.msgs)
	}

	logs, err := auditRepo.List(ctx, audit.Filter{TenantID: "conn-a", Action: audit.ActionSync})
	if err != nil {
		t.Fatalf("audit List() error = %v", err)
	}
	if logs.Total != 1 || logs.Logs[0].Source != audit.SourceCLI || logs.Logs[0].Details["devices"] != float64(2) {
		t.Errorf("audit = %+v", logs.Logs)
	}
}

func TestSyncer_SyncErrors(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()
	mustCreateConnection(t, repo, "conn-a")

	s := NewSyncer(repo, &fakeSource{errs: map[string]error{"org-conn-a": meraki.ErrUnauthorized}})

	if _, err := s.Sync(ctx, "missing"); !errors.Is(err, ErrConnectionNotFound) {
		t.Errorf("Sync(missing) error = %v", err)
	}
	if _, err := s.Sync(ctx, "conn-a"); !errors.Is(err, meraki.ErrUnauthorized) {
		t.Errorf("Sync(unauthorized) error = %v", err)
	}
}

func TestSyncer_SyncAll(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()
	for _, id := range []string{"conn-c", "conn-a", "conn-b"} {
		mustCreateConnection(t, repo, id)
	}

	source := &fakeSource{
		devices: map[string][]meraki.Device{
			"org-conn-a": {{Serial: "A1"}, {Serial: "A2"}},
			"org-conn-c": {{Serial: "C1"}},
		},
		errs: map[string]error{"org-conn-b": meraki.ErrNotFound},
	}
	s := NewSyncer(repo, source)

	results, err := s.SyncAll(ctx, 2)
	if !errors.Is(err, meraki.ErrNotFound) {
		t.Errorf("SyncAll() error = %v, want joined ErrNotFound", err)
	}
	if len(results) != 3 {
		t.Fatalf("results = %+v", results)
	}

	want := []struct {
		id      string
		devices int
		failed  bool
	}{
		{"conn-a", 2, false},
		{"conn-b", 0, true},
		{"conn-c", 1, false},
	}
	for i, w := range want {
		r := results[i]
		if r.ConnectionID != w.id || r.Devices != w.devices || (r.Error != "") != w.failed {
			t.Errorf("results[%d] = %+v, want %+v", i, r, w)
		}
	}

	c, err := repo.ListDevices(ctx, "conn-c")
	if err != nil || len(c) != 1 {
		t.Errorf("conn-c devices = %+v, %v; other connections must sync despite a failure", c, err)
	}
}
