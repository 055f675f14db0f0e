// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scoring combines per-provider trend signals into one
// comparable cross-provider score and ranks tracks by it.
package scoring

import (
	"errors"
	"fmt"
	"math"

	"github.com/djlyric/music-trend-panel/pkg/types"
)

// ErrUndefined signals that no weighted entries exist for the window,
// so the combined score is undefined rather than zero. Callers decide
// display policy.
var ErrUndefined = errors.New("combined score undefined: no weighted entries")

// providerWeight pairs a provider's aggregation weight with its boost
// policy.
type providerWeight struct {
	weight float64
	boost  BoostPolicy
}

// Engine aggregates trend entries into combined scores. Providers not
// registered carry weight 0 and are excluded from aggregation; their
// presence in the input is not an error. Engines are read-only after
// construction and safe for concurrent use.
type Engine struct {
	providers map[types.Provider]providerWeight
}

// NewEngine returns an empty engine; register providers before scoring.
func NewEngine() *Engine {
	return &Engine{providers: make(map[types.Provider]providerWeight)}
}

// Register sets a provider's weight and boost policy. A nil policy
// means no boost. Negative weights are clamped to 0 (excluded).
func (e *Engine) Register(p types.Provider, weight float64, boost BoostPolicy) {
	if weight < 0 {
		weight = 0
	}
	e.providers[p] = providerWeight{weight: weight, boost: boost}
}

// FromConfig builds an engine from a scoring configuration, resolving
// boost policies by name.
func FromConfig(cfg types.ScoringConfig) (*Engine, error) {
	e := NewEngine()
	for provider, ps := range cfg.Providers {
		boost, err := PolicyByName(ps.Boost)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", provider, err)
		}
		e.Register(provider, ps.Weight, boost)
	}
	return e, nil
}

// DefaultConfig returns the stock provider weights and boost policies.
func DefaultConfig() types.ScoringConfig {
	return types.ScoringConfig{
		Providers: map[types.Provider]types.ProviderScoring{
			types.ProviderAppleMusic: {Weight: 1.0, Boost: PolicyAuthority},
			types.ProviderSpotify:    {Weight: 0.85, Boost: PolicyPopularity},
			types.ProviderYouTube:    {Weight: 0.65, Boost: PolicyViews},
			types.ProviderLastFM:     {Weight: 0.40, Boost: PolicyNone},
		},
	}
}

// BaseScore derives a 0-100 base score from a chart rank: rank 1 maps
// to 99, rank 100 and beyond to 0. Rankless records score 50.
func BaseScore(rank int) float64 {
	if rank <= 0 {
		return 50
	}
	return math.Max(0, float64(100-rank))
}

// Combined computes the weighted cross-provider score for one track's
// entries within a window: Σ(boosted_p × weight_p) / Σ(weight_p) over
// the providers present. Absent providers contribute nothing to either
// sum, so coverage gaps do not penalize the score. The result is
// clamped to 100 and rounded to two decimals. ErrUndefined is returned
// when no entry carries a positive weight.
func (e *Engine) Combined(entries []types.TrendEntry) (float64, error) {
	var numerator, denominator float64
	for _, entry := range entries {
		pw, ok := e.providers[entry.Provider]
		if !ok || pw.weight == 0 {
			continue
		}
		boosted := entry.Score
		if pw.boost != nil {
			boosted = pw.boost(entry.Score, entry)
		}
		numerator += boosted * pw.weight
		denominator += pw.weight
	}
	if denominator == 0 {
		return 0, ErrUndefined
	}
	score := numerator / denominator
	if score > 100 {
		score = 100
	}
	return math.Round(score*100) / 100, nil
}
