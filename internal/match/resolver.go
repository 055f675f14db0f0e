// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package match resolves raw provider records against known canonical
// tracks through a cascading matcher: exact normalized match, ISRC
// match, fuzzy similarity, then external enrichment. The first stage
// that produces a decision wins.
package match

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/djlyric/music-trend-panel/internal/normalize"
	"github.com/djlyric/music-trend-panel/pkg/types"
)

// Similarity thresholds for the fuzzy stage. These are contract values,
// not tunables: a title similarity of exactly 0.92 with an artist
// similarity of exactly 0.88 matches, anything below either does not.
const (
	TitleThreshold  = 0.92
	ArtistThreshold = 0.88
)

// defaultCandidateLimit bounds how many candidates the fuzzy stage
// examines per record.
const defaultCandidateLimit = 20

// Stage identifies which cascade stage produced a match.
type Stage string

const (
	StageExact    Stage = "exact"
	StageISRC     Stage = "isrc"
	StageFuzzy    Stage = "fuzzy"
	StageEnriched Stage = "enriched"
)

// Catalog is the read-only canonical track lookup surface the cascade
// consults. Lookups return nil without error when nothing matches.
type Catalog interface {
	FindByNormalized(ctx context.Context, artist, title string) (*types.CanonicalTrack, error)
	FindByISRC(ctx context.Context, isrc string) (*types.CanonicalTrack, error)
	CandidatesByArtist(ctx context.Context, normalizedArtist string, limit int) ([]types.CanonicalTrack, error)
}

// Enricher recovers missing recording identifiers from an external
// catalog. Best-effort: failures never block resolution.
type Enricher interface {
	Lookup(ctx context.Context, title, artist string) (isrc, recordingID string, err error)
}

// Resolution is the outcome of running the cascade for one record.
// When Matched is false the caller creates a new canonical track; the
// normalized fields and any enrichment identifiers carry over into it.
type Resolution struct {
	Matched bool
	TrackID int64
	Stage   Stage

	// Ambiguous reports that two or more fuzzy candidates tied on the
	// combined similarity; the lowest track id was chosen.
	Ambiguous bool

	NormalizedTitle  string
	NormalizedArtist string

	// ISRC and RecordingID hold identifiers recovered by enrichment,
	// used to fill the matched or newly created track.
	ISRC        string
	RecordingID string
}

// Resolver runs the matching cascade against a catalog.
type Resolver struct {
	Catalog  Catalog
	Enricher Enricher // nil disables the enrichment stage

	// EnrichTimeout bounds each enrichment lookup (default 10s).
	EnrichTimeout time.Duration

	// CandidateLimit bounds the fuzzy candidate set (default 20).
	CandidateLimit int

	// Similarity is the string similarity measure for the fuzzy stage.
	// Defaults to normalized Levenshtein: 1 - distance/max(len a, len b).
	// Any monotonic similarity on [0,1] may be substituted.
	Similarity func(a, b string) float64
}

// NewResolver returns a Resolver with the default similarity measure.
func NewResolver(catalog Catalog, enricher Enricher) *Resolver {
	return &Resolver{
		Catalog:        catalog,
		Enricher:       enricher,
		EnrichTimeout:  10 * time.Second,
		CandidateLimit: defaultCandidateLimit,
		Similarity:     LevenshteinSimilarity,
	}
}

// levMetric uses unit edit costs so the similarity is exactly
// 1 - distance/max(len(a), len(b)).
var levMetric = func() *metrics.Levenshtein {
	m := metrics.NewLevenshtein()
	m.CaseSensitive = true
	m.InsertCost = 1
	m.DeleteCost = 1
	m.ReplaceCost = 1
	return m
}()

// LevenshteinSimilarity is the default fuzzy measure:
// 1 - distance/max(len(a), len(b)).
func LevenshteinSimilarity(a, b string) float64 {
	return strutil.Similarity(a, b, levMetric)
}

// Resolve runs the cascade for one raw record. Warnings (enrichment
// failures, ambiguous ties) are reported on w; only catalog errors are
// returned. A Resolution with Matched false means "create new".
func (r *Resolver) Resolve(ctx context.Context, rec types.RawTrendRecord, w io.Writer) (Resolution, error) {
	res := Resolution{
		NormalizedTitle:  normalize.Normalize(rec.Title),
		NormalizedArtist: normalize.Normalize(rec.Artist),
	}
	textual := res.NormalizedTitle != "" && res.NormalizedArtist != ""

	// Stage 1: exact match on the stored normalized fields.
	var exact *types.CanonicalTrack
	if textual {
		var err error
		exact, err = r.Catalog.FindByNormalized(ctx, res.NormalizedArtist, res.NormalizedTitle)
		if err != nil {
			return res, fmt.Errorf("exact lookup: %w", err)
		}
		if exact != nil && isrcConflict(rec.ISRC, exact.ISRC) {
			// Same normalized text, different recording code: not the
			// same recording.
			exact = nil
		}
	}

	// Stage 2: ISRC is authoritative and wins over a contradicting
	// exact match.
	if rec.ISRC != "" {
		byCode, err := r.Catalog.FindByISRC(ctx, rec.ISRC)
		if err != nil {
			return res, fmt.Errorf("isrc lookup: %w", err)
		}
		if byCode != nil && (exact == nil || exact.ID != byCode.ID) {
			res.Matched, res.TrackID, res.Stage = true, byCode.ID, StageISRC
			return res, nil
		}
	}
	if exact != nil {
		res.Matched, res.TrackID, res.Stage = true, exact.ID, StageExact
		return res, nil
	}

	// Stage 3: fuzzy similarity over the normalized fields.
	if textual {
		best, ambiguous, err := r.fuzzyMatch(ctx, rec, res.NormalizedArtist, res.NormalizedTitle)
		if err != nil {
			return res, err
		}
		if best != nil {
			if ambiguous {
				fmt.Fprintf(w, "warning: ambiguous fuzzy match for %q / %q, kept track %d\n",
					rec.Artist, rec.Title, best.ID)
			}
			res.Matched, res.TrackID, res.Stage, res.Ambiguous = true, best.ID, StageFuzzy, ambiguous
			return res, nil
		}
	}

	// Stage 4: external enrichment, then one re-attempt of the ISRC
	// stage with the recovered code. Failure or timeout falls through
	// to create-new.
	if r.Enricher != nil {
		ectx := ctx
		if r.EnrichTimeout > 0 {
			var cancel context.CancelFunc
			ectx, cancel = context.WithTimeout(ctx, r.EnrichTimeout)
			defer cancel()
		}
		isrc, recordingID, err := r.Enricher.Lookup(ectx, rec.Title, rec.Artist)
		if err != nil {
			fmt.Fprintf(w, "warning: enrichment lookup failed for %q / %q: %v\n", rec.Artist, rec.Title, err)
		} else {
			res.ISRC, res.RecordingID = isrc, recordingID
			if isrc != "" && rec.ISRC == "" {
				byCode, cerr := r.Catalog.FindByISRC(ctx, isrc)
				if cerr != nil {
					return res, fmt.Errorf("enriched isrc lookup: %w", cerr)
				}
				if byCode != nil {
					res.Matched, res.TrackID, res.Stage = true, byCode.ID, StageEnriched
					return res, nil
				}
			}
		}
	}

	// Stage 5: no existing track qualifies.
	return res, nil
}

// fuzzyMatch scans candidates sharing the artist key and returns the one
// with the highest title×artist similarity above both thresholds. Ties
// on the combined similarity resolve to the lowest track id and are
// reported as ambiguous.
func (r *Resolver) fuzzyMatch(ctx context.Context, rec types.RawTrendRecord, normArtist, normTitle string) (*types.CanonicalTrack, bool, error) {
	limit := r.CandidateLimit
	if limit <= 0 {
		limit = defaultCandidateLimit
	}
	candidates, err := r.Catalog.CandidatesByArtist(ctx, normArtist, limit)
	if err != nil {
		return nil, false, fmt.Errorf("candidate lookup: %w", err)
	}

	sim := r.Similarity
	if sim == nil {
		sim = LevenshteinSimilarity
	}

	var best *types.CanonicalTrack
	var bestCombined float64
	ambiguous := false
	for i := range candidates {
		c := &candidates[i]
		if c.NormalizedTitle == "" || c.NormalizedArtist == "" {
			continue
		}
		if isrcConflict(rec.ISRC, c.ISRC) {
			continue
		}
		titleSim := sim(normTitle, c.NormalizedTitle)
		artistSim := sim(normArtist, c.NormalizedArtist)
		if titleSim < TitleThreshold || artistSim < ArtistThreshold {
			continue
		}
		combined := titleSim * artistSim
		switch {
		case best == nil || combined > bestCombined:
			best, bestCombined, ambiguous = c, combined, false
		case combined == bestCombined:
			ambiguous = true
			if c.ID < best.ID {
				best = c
			}
		}
	}
	return best, ambiguous, nil
}

// isrcConflict reports whether two recording codes are both known and
// disagree, which rules out a textual match.
func isrcConflict(a, b string) bool {
	return a != "" && b != "" && a != b
}
