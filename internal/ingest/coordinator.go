// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ingest turns provider chart batches into canonical tracks and
// trend entries. The coordinator owns the creation moment of canonical
// tracks: creation decisions for the same identity are serialized so at
// most one track exists per real-world recording.
package ingest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/djlyric/music-trend-panel/internal/match"
	"github.com/djlyric/music-trend-panel/internal/normalize"
	"github.com/djlyric/music-trend-panel/pkg/types"
)

// Store is the persistence surface the coordinator requires. The store
// owns durability; the coordinator owns the correctness of match and
// create decisions.
type Store interface {
	match.Catalog

	// InsertTrackWithEntry atomically creates the track unless its
	// identity already exists, and upserts the first entry for it. It
	// reports whether the track was created. A failed entry write must
	// roll back the track so no track exists without an entry.
	InsertTrackWithEntry(ctx context.Context, t types.CanonicalTrack, e types.TrendEntry) (id int64, created bool, err error)

	// EnrichTrack fills empty track fields from the patch. Fields
	// already set are never overwritten.
	EnrichTrack(ctx context.Context, id int64, patch types.CanonicalTrack) error

	// UpsertEntry inserts or overwrites the entry for its
	// (track, provider, region, genre, date) key.
	UpsertEntry(ctx context.Context, e types.TrendEntry) error
}

// Outcome reports what happened to one record.
type Outcome struct {
	TrackID   int64
	Created   bool
	Stage     match.Stage // empty when a new track was created
	Ambiguous bool
}

// Coordinator applies resolution decisions to the store, one identity
// at a time. Safe for concurrent use; records normalizing to the same
// identity key are serialized, everything else proceeds in parallel.
type Coordinator struct {
	Store    Store
	Resolver *match.Resolver

	locks keyedMutex
}

// NewCoordinator wires a coordinator for one ingestion run.
func NewCoordinator(store Store, resolver *match.Resolver) *Coordinator {
	return &Coordinator{Store: store, Resolver: resolver}
}

// Apply resolves one raw record and either attaches a trend entry to
// the matched track or creates track and entry together. Progress
// warnings go to w.
func (c *Coordinator) Apply(ctx context.Context, rec types.RawTrendRecord, w io.Writer) (Outcome, error) {
	normTitle := normalize.Normalize(rec.Title)
	normArtist := normalize.Normalize(rec.Artist)

	// Serialize on the identity key so concurrent records for the same
	// recording cannot both take the create path.
	if key := identityKey(normArtist, normTitle, rec.ISRC); key != "" {
		unlock := c.locks.acquire(key)
		defer unlock()
	}

	res, err := c.Resolver.Resolve(ctx, rec, w)
	if err != nil {
		return Outcome{}, err
	}

	if res.Matched {
		if err := c.attach(ctx, res.TrackID, rec, res); err != nil {
			return Outcome{}, err
		}
		return Outcome{TrackID: res.TrackID, Stage: res.Stage, Ambiguous: res.Ambiguous}, nil
	}

	track := types.CanonicalTrack{
		Title:            rec.Title,
		Artist:           rec.Artist,
		NormalizedTitle:  res.NormalizedTitle,
		NormalizedArtist: res.NormalizedArtist,
		ISRC:             firstNonEmpty(rec.ISRC, res.ISRC),
		RecordingID:      res.RecordingID,
		DurationMS:       rec.DurationMS,
		ArtworkURL:       rec.ArtworkURL,
	}
	id, created, err := c.Store.InsertTrackWithEntry(ctx, track, entryFor(0, rec))
	if err != nil {
		return Outcome{}, fmt.Errorf("creating track for %q / %q: %w", rec.Artist, rec.Title, err)
	}
	if !created {
		// The in-transaction identity check found a track the resolver
		// could not see. When both carry the same ISRC the other record
		// was inserted under a different text key, so the lock here
		// never covered it; treat it as an ISRC match and attach the
		// entry. Anything else means the identity lock was bypassed.
		if track.ISRC != "" {
			byCode, err := c.Store.FindByISRC(ctx, track.ISRC)
			if err != nil {
				return Outcome{}, fmt.Errorf("rechecking ISRC %s: %w", track.ISRC, err)
			}
			if byCode != nil && byCode.ID == id {
				if err := c.attach(ctx, id, rec, res); err != nil {
					return Outcome{}, err
				}
				return Outcome{TrackID: id, Stage: match.StageISRC}, nil
			}
		}
		return Outcome{}, &InvariantViolation{
			NormalizedArtist: res.NormalizedArtist,
			NormalizedTitle:  res.NormalizedTitle,
			ISRC:             track.ISRC,
		}
	}
	return Outcome{TrackID: id, Created: true}, nil
}

// attach records rec against an existing track: fill any empty track
// fields the record can supply, then upsert its trend entry.
func (c *Coordinator) attach(ctx context.Context, trackID int64, rec types.RawTrendRecord, res match.Resolution) error {
	patch := types.CanonicalTrack{
		ISRC:        firstNonEmpty(rec.ISRC, res.ISRC),
		RecordingID: res.RecordingID,
		DurationMS:  rec.DurationMS,
		ArtworkURL:  rec.ArtworkURL,
	}
	if err := c.Store.EnrichTrack(ctx, trackID, patch); err != nil {
		return fmt.Errorf("enriching track %d: %w", trackID, err)
	}
	if err := c.Store.UpsertEntry(ctx, entryFor(trackID, rec)); err != nil {
		return fmt.Errorf("upserting entry for track %d: %w", trackID, err)
	}
	return nil
}

// identityKey builds the serialization key for a record. Records with
// no usable identity (no normalized text, no ISRC) cannot collide and
// need no serialization.
func identityKey(normArtist, normTitle, isrc string) string {
	if normArtist != "" && normTitle != "" {
		return "t\x1f" + normArtist + "\x1f" + normTitle
	}
	if isrc != "" {
		return "c\x1f" + isrc
	}
	return ""
}

func entryFor(trackID int64, rec types.RawTrendRecord) types.TrendEntry {
	return types.TrendEntry{
		TrackID:   trackID,
		Provider:  rec.Provider,
		Rank:      rec.Rank,
		Score:     rec.Score,
		Region:    rec.Region,
		Genre:     rec.Genre,
		ChartDate: rec.ChartDate,
		Metadata:  rec.Metadata,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// keyedMutex hands out one mutex per identity key for the lifetime of a
// coordinator.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyedMutex) acquire(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
