package compensation

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/warp/incentive-engine/textfold"
)

// =============================================================================
// KPI ELIGIBILITY
// =============================================================================

// EligibleKPIs returns the active KPIs offered to a role on a shift: the role
// must match, and the shift must match or be AnyShift.
func EligibleKPIs(defs []KPIDefinition, role, shift string) []KPIDefinition {
	out := make([]KPIDefinition, 0, len(defs))
	for _, k := range defs {
		if !k.Active || !textfold.Equal(k.Role, role) {
			continue
		}
		if textfold.Equal(k.Shift, shift) || textfold.Equal(k.Shift, AnyShift) {
			out = append(out, k)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// =============================================================================
// STATIC REFERENCE DATA - In-memory tables (catalog files, tests)
// =============================================================================

// StaticData serves reference data held in memory.
type StaticData struct {
	tiers map[string][]ActivityTier
	kpis  []KPIDefinition
}

// NewStaticData indexes tiers by activity name.
func NewStaticData(tiers []ActivityTier, kpis []KPIDefinition) *StaticData {
	sd := &StaticData{tiers: make(map[string][]ActivityTier), kpis: append([]KPIDefinition(nil), kpis...)}
	for _, t := range tiers {
		key := textfold.Key(t.ActivityName)
		sd.tiers[key] = append(sd.tiers[key], t)
	}
	return sd
}

func (sd *StaticData) TiersFor(_ context.Context, activityName string) ([]ActivityTier, error) {
	return append([]ActivityTier(nil), sd.tiers[textfold.Key(activityName)]...), nil
}

func (sd *StaticData) KPIs(_ context.Context) ([]KPIDefinition, error) {
	return append([]KPIDefinition(nil), sd.kpis...), nil
}

// =============================================================================
// CACHED REFERENCE DATA
// =============================================================================

// CachedData memoizes a slower ReferenceData (the database). Concurrent misses
// for the same key share one load. Invalidate after the admin tables change.
//
// Every Invalidate starts a new generation. A load only stores its result if
// the generation it started in is still current, and flights are keyed by
// generation, so nothing read before an Invalidate is served after it.
type CachedData struct {
	Source ReferenceData

	mu    sync.RWMutex
	gen   uint64
	tiers map[string][]ActivityTier
	kpis  []KPIDefinition
	group singleflight.Group
}

// NewCachedData wraps source with a read-through cache.
func NewCachedData(source ReferenceData) *CachedData {
	return &CachedData{Source: source, tiers: make(map[string][]ActivityTier)}
}

func (c *CachedData) TiersFor(ctx context.Context, activityName string) ([]ActivityTier, error) {
	key := textfold.Key(activityName)

	c.mu.RLock()
	cached, ok := c.tiers[key]
	gen := c.gen
	c.mu.RUnlock()
	if ok {
		return append([]ActivityTier(nil), cached...), nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("tiers:%d:%s", gen, key), func() (any, error) {
		// A flight that just finished may have filled the entry after our check.
		c.mu.RLock()
		cached, ok := c.tiers[key]
		current := c.gen == gen
		c.mu.RUnlock()
		if ok && current {
			return cached, nil
		}
		tiers, err := c.Source.TiersFor(ctx, activityName)
		if err != nil {
			return nil, err
		}
		// Unknown activities are not cached so a newly added activity shows up.
		if len(tiers) > 0 {
			c.mu.Lock()
			if c.gen == gen {
				c.tiers[key] = tiers
			}
			c.mu.Unlock()
		}
		return tiers, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]ActivityTier(nil), v.([]ActivityTier)...), nil
}

func (c *CachedData) KPIs(ctx context.Context) ([]KPIDefinition, error) {
	c.mu.RLock()
	cached := c.kpis
	gen := c.gen
	c.mu.RUnlock()
	if cached != nil {
		return append([]KPIDefinition(nil), cached...), nil
	}

	v, err, _ := c.group.Do(fmt.Sprintf("kpis:%d", gen), func() (any, error) {
		kpis, err := c.Source.KPIs(ctx)
		if err != nil {
			return nil, err
		}
		if kpis == nil {
			kpis = []KPIDefinition{}
		}
		c.mu.Lock()
		if c.gen == gen {
			c.kpis = kpis
		}
		c.mu.Unlock()
		return kpis, nil
	})
	if err != nil {
		return nil, err
	}
	return append([]KPIDefinition(nil), v.([]KPIDefinition)...), nil
}

// Invalidate drops every cached entry and starts a new generation.
func (c *CachedData) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.tiers = make(map[string][]ActivityTier)
	c.kpis = nil
}
