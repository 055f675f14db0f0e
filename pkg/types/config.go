// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by collaborators that make
// network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "trendpanel/0.1"). MusicBrainz requires a descriptive one.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// StoreConfig holds settings for the canonical track store.
type StoreConfig struct {
	// Path is the SQLite database file (default "data/trendpanel.db").
	Path string `json:"path" yaml:"path"`
}

// IngestConfig holds settings for an ingestion run.
type IngestConfig struct {
	// SnapshotDir is the directory holding provider chart snapshot files
	// (default "data/snapshots").
	SnapshotDir string `json:"snapshot_dir" yaml:"snapshot_dir"`

	// Region is the default ISO 3166-1 alpha-2 region code.
	Region string `json:"region" yaml:"region"`

	// Genre is the default genre tag. Empty means all genres.
	Genre string `json:"genre,omitempty" yaml:"genre,omitempty"`

	// Workers bounds how many records are resolved concurrently (default 8).
	Workers int `json:"workers" yaml:"workers"`
}

// EnrichmentConfig holds settings for the external recording lookup.
type EnrichmentConfig struct {
	HTTPConfig `yaml:",inline"`

	// Enabled controls whether the enrichment stage runs at all.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// BaseURL is the MusicBrainz web service root
	// (default "https://musicbrainz.org/ws/2").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// MaxRetries is the number of retry attempts on rate-limit responses.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// ProviderScoring configures one provider's contribution to the combined
// score: a non-negative weight and a named boost policy.
type ProviderScoring struct {
	// Weight scales the provider's boosted score in the weighted mean.
	Weight float64 `json:"weight" yaml:"weight"`

	// Boost names the registered boost policy: "none", "authority",
	// "views", or "popularity".
	Boost string `json:"boost" yaml:"boost"`
}

// ScoringConfig maps provider identifiers to their scoring behavior.
// Providers absent from the map carry weight 0 and are excluded from
// aggregation.
type ScoringConfig struct {
	Providers map[Provider]ProviderScoring `json:"providers" yaml:"providers"`
}

// Config groups all component configurations for the panel.
type Config struct {
	Store      StoreConfig      `json:"store" yaml:"store"`
	Ingest     IngestConfig     `json:"ingest" yaml:"ingest"`
	Enrichment EnrichmentConfig `json:"enrichment" yaml:"enrichment"`
	Scoring    ScoringConfig    `json:"scoring" yaml:"scoring"`
}
