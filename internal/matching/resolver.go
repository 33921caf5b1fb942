package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nerrad567/devicelabel-core/internal/catalog"
)

// Store is the catalog query surface the resolver needs.
// catalog.SQLiteRepository satisfies it.
type Store interface {
	ModelMappings(ctx context.Context, tenantID, model string) ([]catalog.ModelMapping, error)
	TypeMappings(ctx context.Context, tenantID, category string) ([]catalog.TypeMapping, error)
	ProductTypeTemplates(ctx context.Context, scope catalog.Scope, productType string) ([]catalog.Template, error)
	DefaultTemplates(ctx context.Context, scope catalog.Scope) ([]catalog.Template, error)
	VisibleTemplates(ctx context.Context, tenantID string) ([]catalog.Template, error)
}

// Observer is notified after every Resolve call, hit or miss, success or error.
// Implementations must not block.
type Observer interface {
	ObserveMatch(ctx context.Context, obs Observation)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, obs Observation)

// ObserveMatch implements Observer.
func (f ObserverFunc) ObserveMatch(ctx context.Context, obs Observation) {
	f(ctx, obs)
}

// Resolver chooses a template for a device. It holds no locks of its own;
// concurrency safety comes from the Store and the Cache.
type Resolver struct {
	store    Store
	cache    Cache
	observer Observer
	logger   Logger
	now      func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithObserver registers an observer for resolution telemetry.
func WithObserver(o Observer) Option {
	return func(r *Resolver) {
		r.observer = o
	}
}

// NewResolver creates a resolver over store. A nil cache disables caching.
func NewResolver(store Store, cache Cache, opts ...Option) *Resolver {
	if cache == nil {
		cache = nopCache{}
	}
	r := &Resolver{
		store:  store,
		cache:  cache,
		logger: noopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetLogger sets the logger for the resolver.
func (r *Resolver) SetLogger(logger Logger) {
	if logger != nil {
		r.logger = logger
	}
}

// Cache returns the cache the resolver reads through.
func (r *Resolver) Cache() Cache {
	return r.cache
}

// Resolve returns the template for device on behalf of tenantID, consulting
// the cache first. Errors, including ErrNoTemplatesAvailable, are not cached.
func (r *Resolver) Resolve(ctx context.Context, device Device, tenantID string) (MatchResult, error) {
	start := r.now()

	if device.TenantID != "" && device.TenantID != tenantID {
		return MatchResult{}, fmt.Errorf("%w: device %s", ErrTenantMismatch, device.Serial)
	}

	result, hit, err := GetOrResolve(ctx, r.cache, KeyFor(tenantID, device), func(ctx context.Context) (MatchResult, error) {
		return r.ResolveUncached(ctx, device, tenantID)
	})

	if errors.Is(err, ErrNoTemplatesAvailable) {
		r.logger.Error("no label templates configured", "tenant_id", tenantID, "model", device.Model)
	}

	if r.observer != nil {
		r.observer.ObserveMatch(ctx, Observation{
			TenantID: tenantID,
			Device:   device,
			Result:   result,
			CacheHit: hit,
			Duration: r.now().Sub(start),
			Err:      err,
		})
	}

	return result, err
}

// ResolveUncached runs the cascade against the store, bypassing the cache.
// The first step that yields a template wins.
func (r *Resolver) ResolveUncached(ctx context.Context, device Device, tenantID string) (MatchResult, error) {
	steps := []func(context.Context, Device, string) (*MatchResult, error){
		r.matchModel,
		r.matchType,
		r.matchProductType,
		r.matchTenantDefault,
		r.matchSystemDefault,
		r.matchFallback,
	}

	for _, step := range steps {
		result, err := step(ctx, device, tenantID)
		if err != nil {
			return MatchResult{}, err
		}
		if result != nil {
			return *result, nil
		}
	}

	return MatchResult{}, ErrNoTemplatesAvailable
}

// matchModel: exact, case-sensitive model mapping.
func (r *Resolver) matchModel(ctx context.Context, device Device, tenantID string) (*MatchResult, error) {
	if device.Model == "" {
		return nil, nil
	}
	rows, err := r.store.ModelMappings(ctx, tenantID, device.Model)
	if err != nil {
		return nil, fmt.Errorf("model mapping lookup: %w", err)
	}

	var best *catalog.ModelMapping
	for i := range rows {
		m := &rows[i]
		if m.DeviceModel != device.Model || !m.Scope.VisibleTo(tenantID) || !m.Template.Scope.VisibleTo(tenantID) {
			continue
		}
		if best == nil || betterMapping(m.Priority, m.ID, best.Priority, best.ID) {
			best = m
		}
	}
	if best == nil {
		return nil, nil
	}
	return &MatchResult{
		Template:   best.Template,
		Reason:     ReasonModelMatch,
		Confidence: ConfidenceModel,
		MatchedBy:  device.Model,
	}, nil
}

// matchType: mapping for the classified category. CategoryUnknown is looked
// up like any other category.
func (r *Resolver) matchType(ctx context.Context, device Device, tenantID string) (*MatchResult, error) {
	category := string(Classify(device.Model))
	rows, err := r.store.TypeMappings(ctx, tenantID, category)
	if err != nil {
		return nil, fmt.Errorf("type mapping lookup: %w", err)
	}

	var best *catalog.TypeMapping
	for i := range rows {
		m := &rows[i]
		if m.Category != category || !m.Scope.VisibleTo(tenantID) || !m.Template.Scope.VisibleTo(tenantID) {
			continue
		}
		if best == nil || betterMapping(m.Priority, m.ID, best.Priority, best.ID) {
			best = m
		}
	}
	if best == nil {
		return nil, nil
	}
	return &MatchResult{
		Template:   best.Template,
		Reason:     ReasonTypeMatch,
		Confidence: ConfidenceType,
		MatchedBy:  category,
	}, nil
}

// matchProductType: tenant-owned template whose filter equals the product
// type ignoring case. The tenant default wins, then the lowest ID.
func (r *Resolver) matchProductType(ctx context.Context, device Device, tenantID string) (*MatchResult, error) {
	if device.ProductType == "" || tenantID == "" {
		return nil, nil
	}
	scope := catalog.Tenant(tenantID)
	templates, err := r.store.ProductTypeTemplates(ctx, scope, device.ProductType)
	if err != nil {
		return nil, fmt.Errorf("product type lookup: %w", err)
	}

	var best *catalog.Template
	for i := range templates {
		t := &templates[i]
		if !t.Scope.Equal(scope) || !strings.EqualFold(t.ProductTypeFilter, device.ProductType) {
			continue
		}
		if best == nil || (t.IsDefault && !best.IsDefault) || (t.IsDefault == best.IsDefault && t.ID < best.ID) {
			best = t
		}
	}
	if best == nil {
		return nil, nil
	}
	return &MatchResult{
		Template:   *best,
		Reason:     ReasonTypeMatch,
		Confidence: ConfidenceProductType,
		MatchedBy:  device.ProductType,
	}, nil
}

func (r *Resolver) matchTenantDefault(ctx context.Context, _ Device, tenantID string) (*MatchResult, error) {
	if tenantID == "" {
		return nil, nil
	}
	t, err := r.defaultTemplate(ctx, catalog.Tenant(tenantID))
	if err != nil || t == nil {
		return nil, err
	}
	return &MatchResult{Template: *t, Reason: ReasonUserDefault, Confidence: ConfidenceUserDefault}, nil
}

func (r *Resolver) matchSystemDefault(ctx context.Context, _ Device, _ string) (*MatchResult, error) {
	t, err := r.defaultTemplate(ctx, catalog.Global())
	if err != nil || t == nil {
		return nil, err
	}
	return &MatchResult{Template: *t, Reason: ReasonSystemDefault, Confidence: ConfidenceSystemDefault}, nil
}

// matchFallback: lowest-ID template visible to the tenant.
func (r *Resolver) matchFallback(ctx context.Context, _ Device, tenantID string) (*MatchResult, error) {
	templates, err := r.store.VisibleTemplates(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("fallback lookup: %w", err)
	}
	t := lowestID(templates, func(t *catalog.Template) bool { return t.Scope.VisibleTo(tenantID) })
	if t == nil {
		return nil, nil
	}
	return &MatchResult{Template: *t, Reason: ReasonFallback, Confidence: ConfidenceFallback}, nil
}

// defaultTemplate returns the default template of exactly scope. Several
// defaults break a catalog invariant; the lowest ID is used and a warning logged.
func (r *Resolver) defaultTemplate(ctx context.Context, scope catalog.Scope) (*catalog.Template, error) {
	templates, err := r.store.DefaultTemplates(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("default template lookup (%s): %w", scope, err)
	}
	t := lowestID(templates, func(t *catalog.Template) bool { return t.IsDefault && t.Scope.Equal(scope) })
	if t == nil {
		return nil, nil
	}
	if len(templates) > 1 {
		r.logger.Warn("multiple default templates in scope", "scope", scope.String(), "count", len(templates), "using_id", t.ID)
	}
	return t, nil
}

// FindAlternates lists every template visible to tenantID except excludeID,
// each once, ordered by ID. The list is unranked and unbounded: tenants keep
// few templates, so no paging is applied.
func (r *Resolver) FindAlternates(ctx context.Context, device Device, tenantID string, excludeID *int64) ([]catalog.Template, error) {
	if device.TenantID != "" && device.TenantID != tenantID {
		return nil, fmt.Errorf("%w: device %s", ErrTenantMismatch, device.Serial)
	}

	templates, err := r.store.VisibleTemplates(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("alternate template lookup: %w", err)
	}

	seen := make(map[int64]struct{}, len(templates))
	alternates := make([]catalog.Template, 0, len(templates))
	for _, t := range templates {
		if excludeID != nil && t.ID == *excludeID {
			continue
		}
		if !t.Scope.VisibleTo(tenantID) {
			continue
		}
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		alternates = append(alternates, t)
	}

	sort.Slice(alternates, func(i, j int) bool {
		return alternates[i].ID < alternates[j].ID
	})
	return alternates, nil
}

// betterMapping reports whether (priority, id) sorts before (bestPriority,
// bestID): lower priority first, then lower ID.
func betterMapping(priority int, id int64, bestPriority int, bestID int64) bool {
	if priority != bestPriority {
		return priority < bestPriority
	}
	return id < bestID
}

func lowestID(templates []catalog.Template, keep func(*catalog.Template) bool) *catalog.Template {
	var best *catalog.Template
	for i := range templates {
		t := &templates[i]
		if !keep(t) {
			continue
		}
		if best == nil || t.ID < best.ID {
			best = t
		}
	}
	return best
}
