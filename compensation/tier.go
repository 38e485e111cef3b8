package compensation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIER RESOLVER
// =============================================================================

// Resolver picks the productivity tier reached by a worker.
type Resolver struct {
	Data ReferenceData
}

// NewResolver creates a resolver over the given reference data.
func NewResolver(data ReferenceData) *Resolver {
	return &Resolver{Data: data}
}

// ResolveTier returns the highest tier whose minimum productivity is at most
// productivity. When no threshold is met the lowest tier is returned, so every
// productivity (zero included) resolves to some tier.
func (r *Resolver) ResolveTier(ctx context.Context, activityName string, productivity decimal.Decimal) (ActivityTier, error) {
	name := strings.TrimSpace(activityName)
	tiers, err := r.Data.TiersFor(ctx, name)
	if err != nil {
		return ActivityTier{}, fmt.Errorf("load tiers for %q: %w", name, err)
	}
	if len(tiers) == 0 {
		return ActivityTier{}, &ActivityNotFoundError{ActivityName: name}
	}
	return PickTier(tiers, productivity), nil
}

// PickTier applies the tier rule to an already loaded, non-empty tier list.
func PickTier(tiers []ActivityTier, productivity decimal.Decimal) ActivityTier {
	sorted := SortTiers(tiers)
	for _, t := range sorted {
		if t.MinimumProductivity.LessThanOrEqual(productivity) {
			return t
		}
	}
	return sorted[len(sorted)-1]
}

// SortTiers returns a copy ordered by MinimumProductivity descending.
func SortTiers(tiers []ActivityTier) []ActivityTier {
	sorted := make([]ActivityTier, len(tiers))
	copy(sorted, tiers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinimumProductivity.GreaterThan(sorted[j].MinimumProductivity)
	})
	return sorted
}
