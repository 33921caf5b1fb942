package export

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/devicelabel-core/internal/inventory"
	"github.com/nerrad567/devicelabel-core/internal/matching"
)

// Resolver resolves one device. matching.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, device matching.Device, tenantID string) (matching.MatchResult, error)
}

// Assignment pairs a device with its resolved template.
type Assignment struct {
	Device inventory.Device     `json:"device"`
	Match  matching.MatchResult `json:"match"`
}

// BuildAssignments resolves every device for tenantID with at most
// concurrency resolutions in flight. The result has the same order as
// devices. The first error cancels the remaining work and is returned;
// matching.ErrNoTemplatesAvailable therefore aborts the whole export.
func BuildAssignments(ctx context.Context, r Resolver, tenantID string, devices []inventory.Device, concurrency int) ([]Assignment, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	out := make([]Assignment, len(devices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, d := range devices {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			match, err := r.Resolve(gctx, d.MatchDevice(), tenantID)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", d.Serial, err)
			}
			out[i] = Assignment{Device: d, Match: match}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
