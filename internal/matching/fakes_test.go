package matching

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/devicelabel-core/internal/catalog"
)

// fakeStore is an in-memory Store that applies the same visibility rules as
// the SQLite repository and counts every query.
type fakeStore struct {
	mu        sync.Mutex
	templates []catalog.Template
	models    []catalog.ModelMapping
	types     []catalog.TypeMapping
	nextID    int64
	err       error

	calls atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1}
}

func (s *fakeStore) addTemplate(t catalog.Template) catalog.Template {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.nextID
	}
	if t.ID >= s.nextID {
		s.nextID = t.ID + 1
	}
	if t.WidthMM == 0 {
		t.WidthMM, t.HeightMM = 62, 29
	}
	t.CreatedAt = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	t.UpdatedAt = t.CreatedAt
	s.templates = append(s.templates, t)
	return t
}

func (s *fakeStore) addModel(m catalog.ModelMapping) catalog.ModelMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		m.ID = s.nextID
		s.nextID++
	}
	s.models = append(s.models, m)
	return m
}

func (s *fakeStore) addType(m catalog.TypeMapping) catalog.TypeMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == 0 {
		m.ID = s.nextID
		s.nextID++
	}
	s.types = append(s.types, m)
	return m
}

func (s *fakeStore) template(id int64) (catalog.Template, bool) {
	for _, t := range s.templates {
		if t.ID == id {
			return t, true
		}
	}
	return catalog.Template{}, false
}

func (s *fakeStore) queryCount() int64 {
	return s.calls.Load()
}

func (s *fakeStore) begin() error {
	s.calls.Add(1)
	return s.err
}

func (s *fakeStore) ModelMappings(_ context.Context, tenantID, model string) ([]catalog.ModelMapping, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []catalog.ModelMapping
	for _, m := range s.models {
		t, ok := s.template(m.TemplateID)
		if !ok || m.DeviceModel != model || !m.Scope.VisibleTo(tenantID) || !t.Scope.VisibleTo(tenantID) {
			continue
		}
		m.Template = t
		out = append(out, m)
	}
	// Deliberately unsorted: the resolver must not depend on store order.
	return out, nil
}

func (s *fakeStore) TypeMappings(_ context.Context, tenantID, category string) ([]catalog.TypeMapping, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []catalog.TypeMapping
	for _, m := range s.types {
		t, ok := s.template(m.TemplateID)
		if !ok || m.Category != category || !m.Scope.VisibleTo(tenantID) || !t.Scope.VisibleTo(tenantID) {
			continue
		}
		m.Template = t
		out = append(out, m)
	}
	return out, nil
}

func (s *fakeStore) ProductTypeTemplates(_ context.Context, scope catalog.Scope, productType string) ([]catalog.Template, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []catalog.Template
	for _, t := range s.templates {
		if t.Scope.Equal(scope) && t.ProductTypeFilter != "" && strings.EqualFold(t.ProductTypeFilter, productType) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) DefaultTemplates(_ context.Context, scope catalog.Scope) ([]catalog.Template, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []catalog.Template
	for _, t := range s.templates {
		if t.IsDefault && t.Scope.Equal(scope) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) VisibleTemplates(_ context.Context, tenantID string) ([]catalog.Template, error) {
	if err := s.begin(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []catalog.Template
	for _, t := range s.templates {
		if t.Scope.VisibleTo(tenantID) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingObserver keeps every observation.
type recordingObserver struct {
	mu   sync.Mutex
	seen []Observation
}

func (o *recordingObserver) ObserveMatch(_ context.Context, obs Observation) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, obs)
}

func (o *recordingObserver) observations() []Observation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Observation(nil), o.seen...)
}
