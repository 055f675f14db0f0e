// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the trend panel pipeline.
package types

import "fmt"

// Provider identifies a chart data source.
type Provider string

const (
	ProviderAppleMusic Provider = "apple_music"
	ProviderYouTube    Provider = "youtube"
	ProviderSpotify    Provider = "spotify"
	ProviderLastFM     Provider = "lastfm"
)

// DateFmt is the canonical layout for chart dates. Dates travel as
// plain YYYY-MM-DD strings so they key SQL rows and snapshot filenames
// without timezone ambiguity.
const DateFmt = "2006-01-02"

// ChartWindow identifies one (region, genre, date) observation window.
// An empty Genre selects all genres.
type ChartWindow struct {
	Region string `json:"region" yaml:"region"`
	Genre  string `json:"genre,omitempty" yaml:"genre,omitempty"`
	Date   string `json:"date" yaml:"date"`
}

// String renders the window as region/genre/date for log lines.
func (w ChartWindow) String() string {
	genre := w.Genre
	if genre == "" {
		genre = "all"
	}
	return fmt.Sprintf("%s/%s/%s", w.Region, genre, w.Date)
}

// RawTrendRecord is one provider chart observation before identity
// resolution. Records live only for the duration of an ingestion batch;
// the matcher consumes them and they are never persisted as-is.
type RawTrendRecord struct {
	// Provider names the data source that produced this record.
	Provider Provider `json:"provider" yaml:"provider"`

	// Title and Artist are the raw free-text strings from the provider.
	Title  string `json:"title" yaml:"title"`
	Artist string `json:"artist" yaml:"artist"`

	// ISRC is the recording code when the provider supplies one.
	ISRC string `json:"isrc,omitempty" yaml:"isrc,omitempty"`

	// DurationMS is the track length in milliseconds, 0 when unknown.
	DurationMS int `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`

	// Rank is the 1-based chart position, 0 when the provider is rankless.
	Rank int `json:"rank,omitempty" yaml:"rank,omitempty"`

	// Score is the provider-native score on a 0-100 scale, usually
	// derived from Rank by the adapter.
	Score float64 `json:"score" yaml:"score"`

	// Region, Genre, and ChartDate (YYYY-MM-DD) locate the observation
	// window.
	Region    string `json:"region" yaml:"region"`
	Genre     string `json:"genre" yaml:"genre"`
	ChartDate string `json:"chart_date" yaml:"chart_date"`

	// ArtworkURL points at provider artwork, if any.
	ArtworkURL string `json:"artwork_url,omitempty" yaml:"artwork_url,omitempty"`

	// Metadata carries opaque provider extras (view_count, popularity,
	// preview_url) consumed by scoring boost policies.
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// CanonicalTrack is the single merged identity for a real-world recording.
// At most one exists per recording; creation is append-only and fields are
// enriched from empty but never overwritten once set.
type CanonicalTrack struct {
	ID int64 `json:"id" yaml:"id"`

	// Title and Artist keep the free-text form from the first record
	// that created the track.
	Title  string `json:"title" yaml:"title"`
	Artist string `json:"artist" yaml:"artist"`

	// NormalizedTitle and NormalizedArtist are the stored match keys
	// produced by the normalize package.
	NormalizedTitle  string `json:"normalized_title" yaml:"normalized_title"`
	NormalizedArtist string `json:"normalized_artist" yaml:"normalized_artist"`

	// ISRC is authoritative for identity when present.
	ISRC string `json:"isrc,omitempty" yaml:"isrc,omitempty"`

	// RecordingID is the external catalog (MusicBrainz) recording id.
	RecordingID string `json:"recording_id,omitempty" yaml:"recording_id,omitempty"`

	// DurationMS is the track length in milliseconds, 0 when unknown.
	DurationMS int `json:"duration_ms,omitempty" yaml:"duration_ms,omitempty"`

	// ArtworkURL is the best known artwork reference.
	ArtworkURL string `json:"artwork_url,omitempty" yaml:"artwork_url,omitempty"`
}

// TrendEntry associates one canonical track with one provider's
// observation for a (region, genre, date) window. Entries are unique per
// (track, provider, region, genre, date); re-ingesting the same window
// overwrites rank, score, and metadata.
type TrendEntry struct {
	TrackID   int64          `json:"track_id" yaml:"track_id"`
	Provider  Provider       `json:"provider" yaml:"provider"`
	Rank      int            `json:"rank,omitempty" yaml:"rank,omitempty"`
	Score     float64        `json:"score" yaml:"score"`
	Region    string         `json:"region" yaml:"region"`
	Genre     string         `json:"genre" yaml:"genre"`
	ChartDate string         `json:"chart_date" yaml:"chart_date"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// TrackEntries pairs a canonical track with its trend entries for one
// window, the unit the scoring engine consumes.
type TrackEntries struct {
	Track   CanonicalTrack `json:"track" yaml:"track"`
	Entries []TrendEntry   `json:"entries" yaml:"entries"`
}
