package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/devicelabel-core/internal/catalog"
)

const (
	tenantA = "conn-a"
	tenantB = "conn-b"
)

// fullCatalog seeds a store where every cascade step has a candidate for a
// switch with product type "switch".
func fullCatalog(s *fakeStore) (model, typ, product, tenantDefault, systemDefault catalog.Template) {
	systemDefault = s.addTemplate(catalog.Template{Scope: catalog.Global(), Name: "System", IsDefault: true, IsSystem: true})
	tenantDefault = s.addTemplate(catalog.Template{Scope: catalog.Tenant(tenantA), Name: "Tenant default", IsDefault: true})
	product = s.addTemplate(catalog.Template{Scope: catalog.Tenant(tenantA), Name: "Switch product", ProductTypeFilter: "switch"})
	typ = s.addTemplate(catalog.Template{Scope: catalog.Global(), Name: "Switch type"})
	model = s.addTemplate(catalog.Template{Scope: catalog.Tenant(tenantA), Name: "MS225 model"})

	s.addModel(catalog.ModelMapping{Scope: catalog.Tenant(tenantA), DeviceModel: "MS225-48FP", TemplateID: model.ID, Priority: 10})
	s.addType(catalog.TypeMapping{Scope: catalog.Global(), Category: "switch", TemplateID: typ.ID, Priority: 10})
	return model, typ, product, tenantDefault, systemDefault
}

func TestResolver_Cascade(t *testing.T) {
	tests := []struct {
		name          string
		device        Device
		tenant        string
		mutate        func(s *fakeStore)
		wantName      string
		wantReason    Reason
		wantConf      float64
		wantMatchedBy string
	}{
		{
			name:          "model match wins over every other step",
			device:        Device{Serial: "Q2XX-0001", Model: "MS225-48FP", ProductType: "switch"},
			tenant:        tenantA,
			wantName:      "MS225 model",
			wantReason:    ReasonModelMatch,
			wantConf:      ConfidenceModel,
			wantMatchedBy: "MS225-48FP",
		},
		{
			name:          "type match when model is unmapped",
			device:        Device{Serial: "Q2XX-0002", Model: "MS120-8", ProductType: "switch"},
			tenant:        tenantA,
			wantName:      "Switch type",
			wantReason:    ReasonTypeMatch,
			wantConf:      ConfidenceType,
			wantMatchedBy: "switch",
		},
		{
			name:          "model match is case-sensitive",
			device:        Device{Serial: "Q2XX-0003", Model: "ms225-48fp"},
			tenant:        tenantA,
			wantName:      "Switch type",
			wantReason:    ReasonTypeMatch,
			wantConf:      ConfidenceType,
			wantMatchedBy: "switch",
		},
		{
			name:          "product type when no mapping applies",
			device:        Device{Serial: "Q2XX-0004", Model: "MR46", ProductType: "SWITCH"},
			tenant:        tenantA,
			wantName:      "Switch product",
			wantReason:    ReasonTypeMatch,
			wantConf:      ConfidenceProductType,
			wantMatchedBy: "SWITCH",
		},
		{
			name:       "tenant default",
			device:     Device{Serial: "Q2XX-0005", Model: "MR46", ProductType: "wireless"},
			tenant:     tenantA,
			wantName:   "Tenant default",
			wantReason: ReasonUserDefault,
			wantConf:   ConfidenceUserDefault,
		},
		{
			name:       "system default for a tenant without one",
			device:     Device{Serial: "Q2XX-0006", Model: "MR46"},
			tenant:     tenantB,
			wantName:   "System",
			wantReason: ReasonSystemDefault,
			wantConf:   ConfidenceSystemDefault,
		},
		{
			name:   "fallback picks the lowest visible ID",
			device: Device{Serial: "Q2XX-0007", Model: "MR46"},
			tenant: tenantB,
			mutate: func(s *fakeStore) {
				for i := range s.templates {
					s.templates[i].IsDefault = false
				}
			},
			wantName:   "System",
			wantReason: ReasonFallback,
			wantConf:   ConfidenceFallback,
		},
		{
			name:          "other tenant's model mapping is invisible",
			device:        Device{Serial: "Q2XX-0008", Model: "MS225-48FP"},
			tenant:        tenantB,
			wantName:      "Switch type",
			wantReason:    ReasonTypeMatch,
			wantConf:      ConfidenceType,
			wantMatchedBy: "switch",
		},
		{
			name:   "unknown category can be mapped explicitly",
			device: Device{Serial: "Q2XX-0009", Model: "AP-515"},
			tenant: tenantA,
			mutate: func(s *fakeStore) {
				u := s.addTemplate(catalog.Template{Scope: catalog.Tenant(tenantA), Name: "Unclassified"})
				s.addType(catalog.TypeMapping{Scope: catalog.Tenant(tenantA), Category: "unknown", TemplateID: u.ID})
			},
			wantName:      "Unclassified",
			wantReason:    ReasonTypeMatch,
			wantConf:      ConfidenceType,
			wantMatchedBy: "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			fullCatalog(store)
			if tt.mutate != nil {
				tt.mutate(store)
			}
			r := NewResolver(store, nil)

			got, err := r.Resolve(context.Background(), tt.device, tt.tenant)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.Template.Name != tt.wantName {
				t.Errorf("template = %q, want %q", got.Template.Name, tt.wantName)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", got.Reason, tt.wantReason)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
			if got.MatchedBy != tt.wantMatchedBy {
				t.Errorf("matchedBy = %q, want %q", got.MatchedBy, tt.wantMatchedBy)
			}
		})
	}
}

// Step 2 must run before step 3 even though step 3 exists and its
// confidence is only cosmetic.
func TestResolver_TypeMatchBeforeProductType(t *testing.T) {
	store := newFakeStore()
	product := store.addTemplate(catalog.Template{Scope: catalog.Tenant(tenantA), Name: "Product", ProductTypeFilter: "appliance", IsDefault: true})
	typ := store.addTemplate(catalog.Template{Scope: catalog.Global(), Name: "Type"})
	store.addType(catalog.TypeMapping{Scope: catalog.Global(), Category: "gateway", TemplateID: typ.ID, Priority: 50})

	got, err := NewResolver(store, nil).ResolveUncached(context.Background(),
		Device{Serial: "Q2MX-0001", Model: "MX64W", ProductType: "appliance"}, tenantA)
	if err != nil {
		t.Fatalf("ResolveUncached() error = %v", err)
	}
	if got.Template.ID != typ.ID || got.Reason != ReasonTypeMatch || got.MatchedBy != "gateway" {
		t.Errorf("got %+v, want type match on %d (not product template %d)", got, typ.ID, product.ID)
	}
}

func TestResolver_ModelPriority(t *testing.T) {
	store := newFakeStore()
	low := store.addTemplate(catalog.Template{Scope: catalog.Global(), Name: "Priority 1"})
	high := store.addTemplate(catalog.Template{Scope: catalog.Global(), Name: "Priority 2"})
	tie := store.addTemplate(catalog.Template{Scope: catalog.Tenant(tenantA), Name: "Priority 1 later"})

	// Inserted out of order; the fake store returns rows unsorted.
	store.addModel(catalog.ModelMapping{ID: 30, Scope: catalog.Global(), DeviceModel: "MR32", TemplateID: high.ID, Priority: 2})
	store.addModel(catalog.ModelMapping{ID: 40, Scope: catalog.Tenant(tenantA), DeviceModel: "MR32", TemplateID: tie.ID, Priority: 1})
	store.addModel(catalog.ModelMapping{ID: 20, Scope: catalog.Global(), DeviceModel: "MR32", TemplateID: low.ID, Priority: 1})

	r := NewResolver(store, nil)
	for i := 0; i < 5; i++ {
		got, err := r.ResolveUncached(context.Background(), Device{Model: "MR32"}, tenantA)
		if err != nil {
			t.Fatalf("ResolveUncached() error = %v", err)
		}
		if got.Template.ID != low.ID {
			t.Fatalf("template = %d (%s), want %d: lowest priority then lowest mapping ID", got.Template.ID, got.Template.Name, low.ID)
		}
	}
}

func TestResolver_ProductTypePreference(t *testing.T) {
	store := newFakeStore()
	store.addTemplate(catalog.Template{Scope: catalog.Global(), Name: "Global wireless", ProductTypeFilter: "wireless"})
	first := store.addTemplate(catalog.Template{Scope: catalog.Tenant(tenantA), Name: "Wireless A", ProductTypeFilter: "Wireless"})
	store.addTemplate(catalog.Template{Scope: catalog.Tenant(tenantA), Name: "Wireless B", ProductTypeFilter: "wireless"})

	r := NewResolver(store, nil)
	device := Device{Model: "XYZ", ProductType: "wireless"}

	got, err := r.ResolveUncached(context.Background(), device, tenantA)
	if err != nil {
		t.Fatalf("ResolveUncached() error = %v", err)
	}
	if got.Template.ID != first.ID {
		t.Errorf("without default: template = %q, want lowest ID %q", got.Template.Name, first.Name)
	}

	def := store.addTemplate(catalog.Template{Scope: catalog.Tenant(tenantA), Name: "Wireless default", ProductTypeFilter: "WIRELESS", IsDefault: true})
	got, err = r.ResolveUncached(context.Background(), device, tenantA)
	if err != nil {
		t.Fatalf("ResolveUncached() error = %v", err)
	}
	if got.Template.ID != def.ID || got.Reason != ReasonTypeMatch || got.Confidence != ConfidenceProductType {
		t.Errorf("with default: got %+v, want %q", got, def.Name)
	}

	// Global templates never satisfy the product-type step.
	got, err = r.ResolveUncached(context.Background(), device, tenantB)
	if err != nil {
		t.Fatalf("ResolveUncached() error = %v", err)
	}
	if got.Reason != ReasonFallback {
		t.Errorf("tenant B reason = %q, want fallback", got.Reason)
	}
}

func TestResolver_MultipleTenantDefaultsUseLowestID(t *testing.T) {
	store := newFakeStore()
	first := store.addTemplate(catalog.Template{Scope: catalog.Tenant(tenantA), Name: "First", IsDefault: true})
	store.addTemplate(catalog.Template{Scope: catalog.Tenant(tenantA), Name: "Second", IsDefault: true})

	got, err := NewResolver(store, nil).ResolveUncached(context.Background(), Device{Model: "MR32"}, tenantA)
	if err != nil {
		t.Fatalf("ResolveUncached() error = %v", err)
	}
	if got.Template.ID != first.ID || got.Reason != ReasonUserDefault {
		t.Errorf("got %+v, want user default %d", got, first.ID)
	}
}

func TestResolver_EmptyCatalog(t *testing.T) {
	store := newFakeStore()
	cache := NewMemoryCache(DefaultTTL)
	r := NewResolver(store, cache)
	device := Device{Serial: "Q2XX-0001", Model: "MS225-48FP"}
	ctx := context.Background()

	_, err := r.Resolve(ctx, device, tenantA)
	if !errors.Is(err, ErrNoTemplatesAvailable) {
		t.Fatalf("Resolve() error = %v, want ErrNoTemplatesAvailable", err)
	}
	if cache.Len() != 0 {
		t.Fatalf("error result was cached")
	}

	only := store.addTemplate(catalog.Template{Scope: catalog.Global(), Name: "Only"})

	got, err := r.Resolve(ctx, device, tenantA)
	if err != nil {
		t.Fatalf("Resolve() after seeding error = %v", err)
	}
	if got.Reason != ReasonFallback || got.Template.ID != only.ID {
		t.Errorf("got %+v, want fallback to %d", got, only.ID)
	}
}

func TestResolver_OtherTenantTemplatesNotUsedAsFallback(t *testing.T) {
	store := newFakeStore()
	store.addTemplate(catalog.Template{Scope: catalog.Tenant(tenantB), Name: "B only", IsDefault: true})

	_, err := NewResolver(store, nil).ResolveUncached(context.Background(), Device{Model: "MR32"}, tenantA)
	if !errors.Is(err, ErrNoTemplatesAvailable) {
		t.Errorf("ResolveUncached() error = %v, want ErrNoTemplatesAvailable", err)
	}
}

func TestResolver_Idempotent(t *testing.T) {
	store := newFakeStore()
	fullCatalog(store)
	r := NewResolver(store, nil)

	devices := []Device{
		{Serial: "A", Model: "MS225-48FP", ProductType: "switch"},
		{Serial: "B", Model: "MR46", ProductType: "switch"},
		{Serial: "C", Model: "MV12"},
	}
	for _, d := range devices {
		first, err := r.ResolveUncached(context.Background(), d, tenantA)
		if err != nil {
			t.Fatalf("ResolveUncached(%s) error = %v", d.Serial, err)
		}
		second, err := r.ResolveUncached(context.Background(), d, tenantA)
		if err != nil {
			t.Fatalf("ResolveUncached(%s) error = %v", d.Serial, err)
		}
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("ResolveUncached(%s) not idempotent (-first +second):\n%s", d.Serial, diff)
		}
	}
}

func TestResolver_StoreErrorPropagates(t *testing.T) {
	store := newFakeStore()
	errDB := errors.New("database is locked")
	store.err = errDB
	cache := NewMemoryCache(DefaultTTL)

	_, err := NewResolver(store, cache).Resolve(context.Background(), Device{Serial: "X", Model: "MR32"}, tenantA)
	if !errors.Is(err, errDB) {
		t.Fatalf("Resolve() error = %v, want wrapped store error", err)
	}
	if errors.Is(err, ErrNoTemplatesAvailable) {
		t.Error("store failure must not look like an empty catalog")
	}
	if cache.Len() != 0 {
		t.Error("store failure was cached")
	}
}

func TestResolver_TenantMismatch(t *testing.T) {
	store := newFakeStore()
	store.addTemplate(catalog.Template{Scope: catalog.Global(), Name: "Any"})
	r := NewResolver(store, nil)

	device := Device{Serial: "X", Model: "MR32", TenantID: tenantB}
	if _, err := r.Resolve(context.Background(), device, tenantA); !errors.Is(err, ErrTenantMismatch) {
		t.Errorf("Resolve() error = %v, want ErrTenantMismatch", err)
	}
	if _, err := r.FindAlternates(context.Background(), device, tenantA, nil); !errors.Is(err, ErrTenantMismatch) {
		t.Errorf("FindAlternates() error = %v, want ErrTenantMismatch", err)
	}
	if store.queryCount() != 0 {
		t.Errorf("store queried %d times for a foreign device", store.queryCount())
	}
}

func TestResolver_Observer(t *testing.T) {
	store := newFakeStore()
	fullCatalog(store)
	obs := &recordingObserver{}
	r := NewResolver(store, NewMemoryCache(DefaultTTL), WithObserver(obs))
	device := Device{Serial: "Q2XX-0001", Model: "MS225-48FP"}

	for i := 0; i < 2; i++ {
		if _, err := r.Resolve(context.Background(), device, tenantA); err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
	}

	seen := obs.observations()
	if len(seen) != 2 {
		t.Fatalf("observations = %d, want 2", len(seen))
	}
	if seen[0].CacheHit || !seen[1].CacheHit {
		t.Errorf("cache hit flags = %v, %v; want false, true", seen[0].CacheHit, seen[1].CacheHit)
	}
	if seen[1].Result.Reason != ReasonModelMatch || seen[1].TenantID != tenantA {
		t.Errorf("observation = %+v", seen[1])
	}
}

func TestResolver_FindAlternates(t *testing.T) {
	store := newFakeStore()
	g1 := store.addTemplate(catalog.Template{Scope: catalog.Global(), Name: "G1"})
	a1 := store.addTemplate(catalog.Template{Scope: catalog.Tenant(tenantA), Name: "A1"})
	store.addTemplate(catalog.Template{Scope: catalog.Tenant(tenantB), Name: "B1"})
	a2 := store.addTemplate(catalog.Template{Scope: catalog.Tenant(tenantA), Name: "A2"})
	// Invalid duplicate row: the same ID reported twice must be listed once.
	store.templates = append(store.templates, catalog.Template{ID: g1.ID, Scope: catalog.Global(), Name: "G1"})

	r := NewResolver(store, nil)
	device := Device{Serial: "Q2XX-0001", Model: "MR32"}

	ids := func(ts []catalog.Template) []int64 {
		out := make([]int64, 0, len(ts))
		for _, t := range ts {
			out = append(out, t.ID)
		}
		return out
	}

	got, err := r.FindAlternates(context.Background(), device, tenantA, nil)
	if err != nil {
		t.Fatalf("FindAlternates() error = %v", err)
	}
	if diff := cmp.Diff([]int64{g1.ID, a1.ID, a2.ID}, ids(got)); diff != "" {
		t.Errorf("FindAlternates() ids (-want +got):\n%s", diff)
	}

	exclude := a1.ID
	got, err = r.FindAlternates(context.Background(), device, tenantA, &exclude)
	if err != nil {
		t.Fatalf("FindAlternates() error = %v", err)
	}
	if diff := cmp.Diff([]int64{g1.ID, a2.ID}, ids(got)); diff != "" {
		t.Errorf("FindAlternates(exclude) ids (-want +got):\n%s", diff)
	}
}
