// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/djlyric/music-trend-panel/internal/enrich"
	"github.com/djlyric/music-trend-panel/internal/ingest"
	"github.com/djlyric/music-trend-panel/internal/match"
	"github.com/djlyric/music-trend-panel/internal/provider"
	"github.com/djlyric/music-trend-panel/internal/store"
	"github.com/djlyric/music-trend-panel/pkg/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Merge provider chart snapshots into the track catalog",
	Long: `Ingest reads chart snapshot files for one window, resolves every record
against the canonical track catalog, and stores one trend entry per
track and provider. Records for an unknown recording create a new track.

Without --providers, every provider with a snapshot file for the window
is ingested. A provider whose snapshot is missing or unreadable is
skipped with a warning; the rest of the batch continues.`,
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	window, err := windowFromFlags(cmd, cfg)
	if err != nil {
		return err
	}

	snapshotDir, _ := cmd.Flags().GetString("snapshot-dir")
	if snapshotDir == "" {
		snapshotDir = cfg.Ingest.SnapshotDir
	}
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Ingest.Workers = workers
	}
	if noEnrich, _ := cmd.Flags().GetBool("no-enrich"); noEnrich {
		cfg.Enrichment.Enabled = false
	}

	names, _ := cmd.Flags().GetStringSlice("providers")
	providers := make([]types.Provider, 0, len(names))
	for _, n := range names {
		providers = append(providers, types.Provider(n))
	}
	if len(providers) == 0 {
		providers, err = provider.Discover(snapshotDir, window)
		if err != nil {
			return err
		}
		if len(providers) == 0 {
			return fmt.Errorf("no snapshots for %s in %s", window, snapshotDir)
		}
	}

	s, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer s.Close()

	var enricher match.Enricher
	if client := enrich.NewClient(cfg.Enrichment); client != nil {
		enricher = client
	}
	coordinator := ingest.NewCoordinator(s, match.NewResolver(s, enricher))

	fmt.Fprintf(os.Stdout, "ingesting %s from %d provider(s)\n", window, len(providers))
	summary, err := ingest.Run(context.Background(), provider.Sources(snapshotDir, providers),
		coordinator, window, cfg.Ingest.Workers, os.Stdout)
	if err != nil {
		return err
	}
	if len(summary.Errors) > 0 {
		return fmt.Errorf("%d record(s) or provider(s) failed", len(summary.Errors))
	}
	return nil
}

func init() {
	ingestCmd.Flags().String("date", "", "chart date YYYY-MM-DD (default: today)")
	ingestCmd.Flags().String("region", "", "ISO 3166-1 alpha-2 region code")
	ingestCmd.Flags().String("genre", "", "genre tag (default: all genres)")
	ingestCmd.Flags().StringSlice("providers", nil, "providers to ingest (default: all with snapshots)")
	ingestCmd.Flags().String("snapshot-dir", "", "directory holding snapshot files")
	ingestCmd.Flags().Int("workers", 0, "concurrent record resolutions (0 = config default)")
	ingestCmd.Flags().Bool("no-enrich", false, "disable the MusicBrainz lookup stage")

	rootCmd.AddCommand(ingestCmd)
}
