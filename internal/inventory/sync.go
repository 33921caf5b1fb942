package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/devicelabel-core/internal/audit"
	"github.com/nerrad567/devicelabel-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/devicelabel-core/internal/meraki"
)

// DeviceSource lists an organization's devices. meraki.Client satisfies it.
type DeviceSource interface {
	ListOrganizationDevices(ctx context.Context, apiKey, organizationID string) ([]meraki.Device, error)
}

// Publisher sends bus messages. mqtt.Client satisfies it.
type Publisher interface {
	PublishJSON(topic string, v any, qos byte, retained bool) error
}

// Syncer refreshes connection inventories from the Dashboard API.
type Syncer struct {
	repo        Repository
	source      DeviceSource
	publisher   Publisher
	audit       audit.Repository
	auditSource string
	logger      Logger
	now         func() time.Time
}

// NewSyncer creates a syncer writing to repo from source.
func NewSyncer(repo Repository, source DeviceSource) *Syncer {
	return &Syncer{
		repo:        repo,
		source:      source,
		auditSource: audit.SourceAPI,
		logger:      noopLogger{},
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the syncer.
func (s *Syncer) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetPublisher enables inventory events on the bus. Publish failures are
// logged and never fail a sync.
func (s *Syncer) SetPublisher(p Publisher) {
	s.publisher = p
}

// SetAudit records every sync in repo, attributed to source.
func (s *Syncer) SetAudit(repo audit.Repository, source string) {
	s.audit = repo
	if source != "" {
		s.auditSource = source
	}
}

// Sync fetches one connection's devices and replaces its stored inventory.
func (s *Syncer) Sync(ctx context.Context, connectionID string) (SyncResult, error) {
	start := s.now()
	result := SyncResult{ConnectionID: connectionID}

	conn, err := s.repo.GetConnection(ctx, connectionID)
	if err != nil {
		return result, err
	}

	remote, err := s.source.ListOrganizationDevices(ctx, conn.APIKey, conn.OrganizationID)
	if err != nil {
		s.logger.Warn("inventory fetch failed", "connection_id", connectionID, "error", err)
		return result, fmt.Errorf("fetching devices for %s: %w", connectionID, err)
	}

	devices := make([]Device, 0, len(remote))
	for _, d := range remote {
		if d.Serial == "" {
			continue
		}
		devices = append(devices, Device{
			ConnectionID: connectionID,
			Serial:       d.Serial,
			Name:         d.Name,
			Model:        d.Model,
			ProductType:  d.ProductType,
			NetworkID:    d.NetworkID,
			MAC:          d.MAC,
			Firmware:     d.Firmware,
			LanIP:        d.LanIP,
		})
	}

	syncedAt := s.now()
	removed, err := s.repo.ReplaceDevices(ctx, connectionID, devices, syncedAt)
	if err != nil {
		return result, fmt.Errorf("storing devices for %s: %w", connectionID, err)
	}

	result.Devices = len(devices)
	result.Removed = removed
	result.SyncedAt = syncedAt
	result.Duration = s.now().Sub(start)

	s.logger.Info("inventory synced",
		"connection_id", connectionID,
		"devices", result.Devices,
		"removed", result.Removed,
		"duration_ms", result.Duration.Milliseconds(),
	)
	s.record(ctx, result)
	s.publish(result)

	return result, nil
}

// SyncAll syncs every connection, at most concurrency at a time. A failing
// connection does not stop the others; its error is reported in its result
// and joined into the returned error. Results follow connection ID order.
func (s *Syncer) SyncAll(ctx context.Context, concurrency int) ([]SyncResult, error) {
	conns, err := s.repo.ListConnections(ctx)
	if err != nil {
		return nil, err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]SyncResult, len(conns))
	errs := make([]error, len(conns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, c := range conns {
		g.Go(func() error {
			res, err := s.Sync(gctx, c.ID)
			res.ConnectionID = c.ID
			if err != nil {
				res.Error = err.Error()
				errs[i] = err
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors; failures are collected per connection

	return results, errors.Join(errs...)
}

func (s *Syncer) record(ctx context.Context, result SyncResult) {
	if s.audit == nil {
		return
	}
	err := s.audit.Create(ctx, &audit.AuditLog{
		TenantID:   result.ConnectionID,
		Action:     audit.ActionSync,
		EntityType: audit.EntityConnection,
		EntityID:   result.ConnectionID,
		Source:     s.auditSource,
		Details: map[string]any{
			"devices": result.Devices,
			"removed": result.Removed,
		},
	})
	if err != nil {
		s.logger.Warn("audit write failed", "connection_id", result.ConnectionID, "error", err)
	}
}

func (s *Syncer) publish(result SyncResult) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJSON(mqtt.Topics{}.InventorySynced(result.ConnectionID), result, 1, false); err != nil {
		s.logger.Warn("inventory event publish failed", "connection_id", result.ConnectionID, "error", err)
	}
}
