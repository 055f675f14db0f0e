// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scoring

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/djlyric/music-trend-panel/pkg/types"
)

// TrendsFile is the on-disk representation of one scored window. A
// ranking can be saved to a file and reloaded later without re-scoring.
type TrendsFile struct {
	Window  types.ChartWindow `yaml:"window"`
	Results []RankedTrack     `yaml:"results"`
	Summary TrendsSummary     `yaml:"summary"`
}

// TrendsSummary stores result statistics and a timestamp.
type TrendsSummary struct {
	Total     int       `yaml:"total"`
	Unscored  int       `yaml:"unscored,omitempty"`
	Timestamp time.Time `yaml:"timestamp"`
}

// SaveTrendsFile writes the ranking for a window to path as YAML.
func SaveTrendsFile(path string, window types.ChartWindow, out RankOutput) error {
	tf := TrendsFile{
		Window:  window,
		Results: out.Ranked,
		Summary: TrendsSummary{
			Total:     len(out.Ranked),
			Unscored:  out.Unscored,
			Timestamp: time.Now().UTC(),
		},
	}
	data, err := yaml.Marshal(&tf)
	if err != nil {
		return fmt.Errorf("marshaling trends file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing trends file %s: %w", path, err)
	}
	return nil
}

// LoadTrendsFile reads a previously saved ranking.
func LoadTrendsFile(path string) (*TrendsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trends file %s: %w", path, err)
	}
	var tf TrendsFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing trends file %s: %w", path, err)
	}
	return &tf, nil
}
