// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/djlyric/music-trend-panel/internal/scoring"
	"github.com/djlyric/music-trend-panel/internal/store"
	"github.com/djlyric/music-trend-panel/pkg/types"
)

var trendsCmd = &cobra.Command{
	Use:   "trends",
	Short: "Rank a chart window by the combined cross-provider score",
	Long: `Trends scores every track that charted in the window and prints the
ranking. Each track's score is the weighted mean of its boosted
per-provider scores; providers that did not chart the track are simply
absent from the mean.

Tracks whose providers all carry weight 0 have no defined score and are
reported separately rather than ranked at zero.`,
	RunE: runTrends,
}

func runTrends(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	window, err := windowFromFlags(cmd, cfg)
	if err != nil {
		return err
	}

	engine, err := scoring.FromConfig(cfg.Scoring)
	if err != nil {
		return err
	}

	s, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	tracks, err := s.EntriesForWindow(context.Background(), window)
	if err != nil {
		return err
	}

	out := engine.Rank(tracks)
	if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(out.Ranked) > limit {
		out.Ranked = out.Ranked[:limit]
	}

	if withVelocity, _ := cmd.Flags().GetBool("velocity"); withVelocity {
		if err := attachVelocities(context.Background(), s, engine, window, &out); err != nil {
			return err
		}
	}

	if savePath, _ := cmd.Flags().GetString("save"); savePath != "" {
		if err := scoring.SaveTrendsFile(savePath, window, out); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Saved %d results to %s\n", len(out.Ranked), savePath)
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		return scoring.FormatJSON(out, os.Stdout)
	}
	fmt.Fprintf(os.Stdout, "Trends for %s\n\n", window)
	scoring.FormatTable(out, os.Stdout)
	return nil
}

// attachVelocities computes each ranked track's score movement against
// the stored windows that precede the requested one in the same region
// and genre. The per-date history is each track's combined score for
// that date, recomputed with the same engine that produced the ranking.
func attachVelocities(ctx context.Context, s *store.SQLite, engine *scoring.Engine, window types.ChartWindow, out *scoring.RankOutput) error {
	windows, err := s.WindowList(ctx)
	if err != nil {
		return err
	}

	history := make(map[int64][]scoring.DatedScore)
	for _, w := range windows {
		if w.Region != window.Region || w.Genre != window.Genre || w.Date > window.Date {
			continue
		}
		tracks, err := s.EntriesForWindow(ctx, w)
		if err != nil {
			return err
		}
		for _, te := range tracks {
			score, err := engine.Combined(te.Entries)
			if err != nil {
				continue
			}
			history[te.Track.ID] = append(history[te.Track.ID], scoring.DatedScore{Date: w.Date, Score: score})
		}
	}

	for i, r := range out.Ranked {
		v := scoring.Velocity(r.Score, history[r.Track.ID], window.Date)
		out.Ranked[i].Velocity = &v
	}
	return nil
}

func init() {
	trendsCmd.Flags().String("date", "", "chart date YYYY-MM-DD (default: today)")
	trendsCmd.Flags().String("region", "", "ISO 3166-1 alpha-2 region code")
	trendsCmd.Flags().String("genre", "", "genre tag (default: all genres)")
	trendsCmd.Flags().Int("limit", 0, "show only the top N tracks (0 = all)")
	trendsCmd.Flags().Bool("json", false, "output results as JSON")
	trendsCmd.Flags().Bool("velocity", false, "include score movement over the trailing week")
	trendsCmd.Flags().String("save", "", "also write the ranking to a YAML file")

	rootCmd.AddCommand(trendsCmd)
}
