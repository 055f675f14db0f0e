// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the trendpanel CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/djlyric/music-trend-panel/internal/scoring"
	"github.com/djlyric/music-trend-panel/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the trendpanel CLI.
var rootCmd = &cobra.Command{
	Use:   "trendpanel",
	Short: "Cross-provider music chart trend panel",
	Long: `trendpanel merges chart snapshots from multiple music providers into a
canonical track catalog and scores each track across providers.

Ingestion resolves every chart record against the catalog (exact match,
ISRC, fuzzy similarity, then a MusicBrainz lookup) so the same recording
never exists twice. The trends command ranks a chart window by the
weighted cross-provider score.`,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./trendpanel.yaml or ~/.config/trendpanel/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("trendpanel")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "trendpanel"))
		}
	}

	viper.SetEnvPrefix("TRENDPANEL")
	viper.AutomaticEnv()

	viper.SetDefault("store.path", filepath.Join("data", "trendpanel.db"))
	viper.SetDefault("ingest.snapshot_dir", filepath.Join("data", "snapshots"))
	viper.SetDefault("ingest.region", "de")
	viper.SetDefault("ingest.genre", "techhouse")
	viper.SetDefault("ingest.workers", 8)
	viper.SetDefault("enrichment.enabled", true)
	viper.SetDefault("enrichment.timeout", "10s")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig assembles the typed configuration from viper's merged
// file, environment, and default values.
func loadConfig() (types.Config, error) {
	cfg := types.Config{
		Store: types.StoreConfig{
			Path: viper.GetString("store.path"),
		},
		Ingest: types.IngestConfig{
			SnapshotDir: viper.GetString("ingest.snapshot_dir"),
			Region:      viper.GetString("ingest.region"),
			Genre:       viper.GetString("ingest.genre"),
			Workers:     viper.GetInt("ingest.workers"),
		},
		Enrichment: types.EnrichmentConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("enrichment.timeout"),
				UserAgent: viper.GetString("enrichment.user_agent"),
			},
			Enabled:    viper.GetBool("enrichment.enabled"),
			BaseURL:    viper.GetString("enrichment.base_url"),
			MaxRetries: viper.GetInt("enrichment.max_retries"),
		},
	}

	sc, err := scoringConfig()
	if err != nil {
		return cfg, err
	}
	cfg.Scoring = sc
	return cfg, nil
}

// scoringConfig reads provider weights and boost policies from the
// config file, falling back to the stock configuration when none are
// set.
func scoringConfig() (types.ScoringConfig, error) {
	raw := viper.GetStringMap("scoring.providers")
	if len(raw) == 0 {
		return scoring.DefaultConfig(), nil
	}

	cfg := types.ScoringConfig{Providers: make(map[types.Provider]types.ProviderScoring, len(raw))}
	for name := range raw {
		key := "scoring.providers." + name
		cfg.Providers[types.Provider(name)] = types.ProviderScoring{
			Weight: viper.GetFloat64(key + ".weight"),
			Boost:  viper.GetString(key + ".boost"),
		}
	}
	return cfg, nil
}

// windowFromFlags resolves the chart window from flags with config
// defaults. An empty date means today (UTC).
func windowFromFlags(cmd *cobra.Command, cfg types.Config) (types.ChartWindow, error) {
	region, _ := cmd.Flags().GetString("region")
	if region == "" {
		region = cfg.Ingest.Region
	}
	genre, _ := cmd.Flags().GetString("genre")
	if genre == "" {
		genre = cfg.Ingest.Genre
	}
	date, _ := cmd.Flags().GetString("date")
	if date == "" {
		date = time.Now().UTC().Format(types.DateFmt)
	} else if _, err := time.Parse(types.DateFmt, date); err != nil {
		return types.ChartWindow{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", date)
	}
	return types.ChartWindow{Region: region, Genre: genre, Date: date}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
