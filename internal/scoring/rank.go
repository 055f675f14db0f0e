// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scoring

import (
	"math"
	"sort"

	"github.com/djlyric/music-trend-panel/pkg/types"
)

// RankedTrack is one track in the final ordering. Velocity is set only
// when movement over prior windows was requested.
type RankedTrack struct {
	Position int                  `json:"position" yaml:"position"`
	Score    float64              `json:"score" yaml:"score"`
	Velocity *float64             `json:"velocity,omitempty" yaml:"velocity,omitempty"`
	Track    types.CanonicalTrack `json:"track" yaml:"track"`
	Sources  []types.Provider     `json:"sources" yaml:"sources"`
	Entries  []types.TrendEntry   `json:"entries,omitempty" yaml:"entries,omitempty"`
}

// RankOutput holds the ordering plus how many tracks had no defined
// score for the window.
type RankOutput struct {
	Ranked   []RankedTrack
	Unscored int
}

// Rank scores every track and returns them ordered by combined score
// descending, ties broken by the best (lowest) provider rank, then by
// track id. The sort is stable. Tracks whose score is undefined for the
// window are counted, not ranked.
func (e *Engine) Rank(tracks []types.TrackEntries) RankOutput {
	var out RankOutput
	for _, te := range tracks {
		score, err := e.Combined(te.Entries)
		if err != nil {
			out.Unscored++
			continue
		}
		out.Ranked = append(out.Ranked, RankedTrack{
			Score:   score,
			Track:   te.Track,
			Sources: sourcesOf(te.Entries),
			Entries: te.Entries,
		})
	}

	sort.SliceStable(out.Ranked, func(i, j int) bool {
		a, b := out.Ranked[i], out.Ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ar, br := bestRank(a.Entries), bestRank(b.Entries)
		if ar != br {
			return ar < br
		}
		return a.Track.ID < b.Track.ID
	})

	for i := range out.Ranked {
		out.Ranked[i].Position = i + 1
	}
	return out
}

// bestRank returns the lowest positive provider rank among the entries,
// or MaxInt when no provider ranked the track.
func bestRank(entries []types.TrendEntry) int {
	best := math.MaxInt
	for _, e := range entries {
		if e.Rank > 0 && e.Rank < best {
			best = e.Rank
		}
	}
	return best
}

// sourcesOf lists the distinct providers present, sorted for stable
// output.
func sourcesOf(entries []types.TrendEntry) []types.Provider {
	seen := make(map[types.Provider]bool, len(entries))
	var sources []types.Provider
	for _, e := range entries {
		if !seen[e.Provider] {
			seen[e.Provider] = true
			sources = append(sources, e.Provider)
		}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
	return sources
}
