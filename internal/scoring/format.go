// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scoring

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/djlyric/music-trend-panel/pkg/types"
)

// FormatTable writes the ranking as a human-readable table to w.
func FormatTable(out RankOutput, w io.Writer) {
	if len(out.Ranked) == 0 {
		fmt.Fprintln(w, "No trend data found.")
		return
	}

	withVelocity := out.Ranked[0].Velocity != nil

	if withVelocity {
		fmt.Fprintf(w, "%-4s  %-30s  %-35s  %-7s  %-7s  %s\n",
			"Rank", "Artist", "Title", "Score", "Change", "Sources")
		fmt.Fprintln(w, strings.Repeat("-", 104))
	} else {
		fmt.Fprintf(w, "%-4s  %-30s  %-35s  %-7s  %s\n",
			"Rank", "Artist", "Title", "Score", "Sources")
		fmt.Fprintln(w, strings.Repeat("-", 95))
	}

	for _, r := range out.Ranked {
		if withVelocity {
			fmt.Fprintf(w, "%-4d  %-30s  %-35s  %-7.2f  %-+7.2f  %s\n",
				r.Position,
				truncate(r.Track.Artist, 30),
				truncate(r.Track.Title, 35),
				r.Score,
				*r.Velocity,
				joinSources(r.Sources))
			continue
		}
		fmt.Fprintf(w, "%-4d  %-30s  %-35s  %-7.2f  %s\n",
			r.Position,
			truncate(r.Track.Artist, 30),
			truncate(r.Track.Title, 35),
			r.Score,
			joinSources(r.Sources))
	}

	fmt.Fprintf(w, "\n%d tracks", len(out.Ranked))
	if out.Unscored > 0 {
		fmt.Fprintf(w, " (%d without a defined score)", out.Unscored)
	}
	fmt.Fprintln(w)
}

// FormatJSON writes the ranking as indented JSON to w.
func FormatJSON(out RankOutput, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out.Ranked)
}

func joinSources(sources []types.Provider) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

// truncate shortens s to at most max runes. Cutting on runes keeps
// multi-byte titles intact at the boundary.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
