/*
catalog.go - Effective catalog resolution

PURPOSE:
  Merges the system-default milestone list with an organisation's override
  rows. The merge is a pure function over two loaded lists so it unit-tests
  in isolation from storage: seed a key->entry map with defaults, substitute
  any same-key override, drop inactive entries, sort by day offset.
*/
package milestone

import (
	"context"
	"sort"
)

// EffectiveCatalog merges defaults and org overrides. Override rows replace
// the default with the same key (including deactivating it when the override
// is inactive). The result is sorted by DayOffset ascending, key as a
// deterministic tie-break.
func EffectiveCatalog(defaults, overrides []MilestoneConfig) []MilestoneConfig {
	merged := make(map[string]MilestoneConfig, len(defaults))
	for _, d := range defaults {
		merged[d.MilestoneKey] = d
	}
	for _, o := range overrides {
		merged[o.MilestoneKey] = o
	}

	out := make([]MilestoneConfig, 0, len(merged))
	for _, c := range merged {
		if c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOffset != out[j].DayOffset {
			return out[i].DayOffset < out[j].DayOffset
		}
		return out[i].MilestoneKey < out[j].MilestoneKey
	})
	return out
}

// CatalogService resolves effective catalogs from the store.
type CatalogService struct {
	Store Store
}

func NewCatalogService(store Store) *CatalogService {
	return &CatalogService{Store: store}
}

// Effective loads defaults and the organisation's overrides and merges them.
func (s *CatalogService) Effective(ctx context.Context, orgID string) ([]MilestoneConfig, error) {
	defaults, err := s.Store.ListDefaultMilestones(ctx)
	if err != nil {
		return nil, err
	}
	overrides, err := s.Store.ListOrgMilestones(ctx, orgID)
	if err != nil {
		return nil, err
	}
	return EffectiveCatalog(defaults, overrides), nil
}
