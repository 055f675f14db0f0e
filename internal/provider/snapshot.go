// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider adapts chart snapshot files into ingestable record
// batches. A snapshot is one provider's chart for one window, exported
// to YAML by whatever fetch tooling talks to the provider APIs; this
// package never touches those APIs itself.
package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/djlyric/music-trend-panel/internal/ingest"
	"github.com/djlyric/music-trend-panel/internal/scoring"
	"github.com/djlyric/music-trend-panel/pkg/types"
)

// allGenres is the filename segment used when a snapshot covers every
// genre.
const allGenres = "all"

// SnapshotEntry is one chart position in a snapshot file.
type SnapshotEntry struct {
	Title      string         `yaml:"title"`
	Artist     string         `yaml:"artist"`
	ISRC       string         `yaml:"isrc,omitempty"`
	DurationMS int            `yaml:"duration_ms,omitempty"`
	Rank       int            `yaml:"rank,omitempty"`
	Score      float64        `yaml:"score,omitempty"`
	ArtworkURL string         `yaml:"artwork_url,omitempty"`
	Metadata   map[string]any `yaml:"metadata,omitempty"`
}

// SnapshotFile is the on-disk schema of one provider chart snapshot.
type SnapshotFile struct {
	Provider  types.Provider  `yaml:"provider"`
	Region    string          `yaml:"region"`
	Genre     string          `yaml:"genre,omitempty"`
	ChartDate string          `yaml:"chart_date"`
	Entries   []SnapshotEntry `yaml:"entries"`
}

// SnapshotSource serves one provider's records from snapshot files in
// a directory. It implements ingest.Source.
type SnapshotSource struct {
	name types.Provider
	dir  string
}

// NewSnapshotSource returns a source reading the named provider's
// snapshots from dir.
func NewSnapshotSource(dir string, name types.Provider) *SnapshotSource {
	return &SnapshotSource{name: name, dir: dir}
}

// Name returns the provider identifier.
func (s *SnapshotSource) Name() types.Provider { return s.name }

// SnapshotPath returns the snapshot filename for a provider and
// window: <provider>_<region>_<genre>_<date>.yaml, with "all" standing
// in for an empty genre.
func SnapshotPath(dir string, provider types.Provider, window types.ChartWindow) string {
	genre := window.Genre
	if genre == "" {
		genre = allGenres
	}
	name := fmt.Sprintf("%s_%s_%s_%s.yaml", provider, window.Region, genre, window.Date)
	return filepath.Join(dir, name)
}

// Fetch reads the provider's snapshot for the window and converts it
// to raw trend records. A missing or unreadable snapshot is a
// TransientError: the provider is skipped for this run and the batch
// continues.
func (s *SnapshotSource) Fetch(ctx context.Context, window types.ChartWindow) ([]types.RawTrendRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := SnapshotPath(s.dir, s.name, window)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ingest.TransientError{Provider: s.name, Err: err}
	}

	var snap SnapshotFile
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, &ingest.TransientError{Provider: s.name, Err: fmt.Errorf("parsing %s: %w", path, err)}
	}
	if snap.Provider != "" && snap.Provider != s.name {
		return nil, fmt.Errorf("snapshot %s declares provider %s, want %s", path, snap.Provider, s.name)
	}

	records := make([]types.RawTrendRecord, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		if e.Title == "" && e.Artist == "" && e.ISRC == "" {
			continue
		}
		score := e.Score
		if score == 0 {
			score = scoring.BaseScore(e.Rank)
		}
		records = append(records, types.RawTrendRecord{
			Provider:   s.name,
			Title:      e.Title,
			Artist:     e.Artist,
			ISRC:       e.ISRC,
			DurationMS: e.DurationMS,
			Rank:       e.Rank,
			Score:      score,
			Region:     window.Region,
			Genre:      window.Genre,
			ChartDate:  window.Date,
			ArtworkURL: e.ArtworkURL,
			Metadata:   e.Metadata,
		})
	}
	return records, nil
}

// Sources builds one snapshot source per provider, in the given order.
func Sources(dir string, providers []types.Provider) []ingest.Source {
	sources := make([]ingest.Source, 0, len(providers))
	for _, p := range providers {
		sources = append(sources, NewSnapshotSource(dir, p))
	}
	return sources
}

// Discover lists the providers that have a snapshot file for the
// window, in filename order.
func Discover(dir string, window types.ChartWindow) ([]types.Provider, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot directory %s: %w", dir, err)
	}

	genre := window.Genre
	if genre == "" {
		genre = allGenres
	}
	suffix := fmt.Sprintf("_%s_%s_%s.yaml", window.Region, genre, window.Date)

	var providers []types.Provider
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), suffix) {
			continue
		}
		providers = append(providers, types.Provider(strings.TrimSuffix(entry.Name(), suffix)))
	}
	return providers, nil
}
