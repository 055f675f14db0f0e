// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scoring

import (
	"math"
	"sort"
	"time"

	"github.com/djlyric/music-trend-panel/pkg/types"
)

// velocityWindowDays is the trailing window velocity is measured over.
const velocityWindowDays = 7

// DatedScore is a track's combined score on one chart date.
type DatedScore struct {
	Date  string
	Score float64
}

// Velocity measures how fast a track's combined score is moving: the
// difference between the current score and the oldest score observed
// within the trailing window ending at asOf. Positive means rising,
// negative means falling. A track with fewer than two dated scores in
// the window has no measurable movement and reports 0.
func Velocity(current float64, history []DatedScore, asOf string) float64 {
	if len(history) < 2 {
		return 0
	}

	end, err := time.Parse(types.DateFmt, asOf)
	if err != nil {
		return 0
	}
	cutoff := end.AddDate(0, 0, -velocityWindowDays).Format(types.DateFmt)

	recent := make([]DatedScore, 0, len(history))
	for _, h := range history {
		if h.Date >= cutoff {
			recent = append(recent, h)
		}
	}
	if len(recent) < 2 {
		return 0
	}

	sort.Slice(recent, func(i, j int) bool { return recent[i].Date < recent[j].Date })
	return math.Round((current-recent[0].Score)*100) / 100
}
