// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/djlyric/music-trend-panel/pkg/types"
)

// BoostPolicy adjusts a provider's base score using entry metadata.
// Policies are registered per provider so adding a provider never
// touches the aggregation formula.
type BoostPolicy func(base float64, e types.TrendEntry) float64

// Named policies. Config files refer to these by name.
const (
	PolicyNone       = "none"
	PolicyAuthority  = "authority"
	PolicyViews      = "views"
	PolicyPopularity = "popularity"
)

// authorityBonus is the fixed boost for authoritative chart providers.
const authorityBonus = 5

// viewsBoostCap limits the view-count boost to +25 (one point per
// million views).
const viewsBoostCap = 25

var policies = map[string]BoostPolicy{
	PolicyNone: func(base float64, _ types.TrendEntry) float64 {
		return base
	},
	PolicyAuthority: func(base float64, _ types.TrendEntry) float64 {
		return base + authorityBonus
	},
	PolicyViews: func(base float64, e types.TrendEntry) float64 {
		views := metaNumber(e.Metadata, "view_count")
		if views > 0 {
			base += math.Min(views/1_000_000, viewsBoostCap)
		}
		return base
	},
	PolicyPopularity: func(base float64, e types.TrendEntry) float64 {
		popularity := metaNumber(e.Metadata, "popularity")
		if popularity > 0 {
			return (base + popularity) / 2
		}
		return base
	},
}

// PolicyByName resolves a named boost policy. Unknown names are a
// configuration error.
func PolicyByName(name string) (BoostPolicy, error) {
	if name == "" {
		name = PolicyNone
	}
	p, ok := policies[name]
	if !ok {
		return nil, fmt.Errorf("unknown boost policy %q: known policies are %v", name, policyNames())
	}
	return p, nil
}

func policyNames() []string {
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// metaNumber reads a numeric metadata value, tolerating the integer and
// float forms produced by JSON and YAML decoding.
func metaNumber(meta map[string]any, key string) float64 {
	switch v := meta[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	default:
		return 0
	}
}
