// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/djlyric/music-trend-panel/internal/match"
	"github.com/djlyric/music-trend-panel/pkg/types"
)

// --- test helpers ---

// stubStore is an in-memory Store. Safe for concurrent use so the
// pipeline's worker pool can hammer it.
type stubStore struct {
	mu      sync.Mutex
	nextID  int64
	tracks  []types.CanonicalTrack
	entries map[string]types.TrendEntry

	// breakInsert makes InsertTrackWithEntry report created=false for
	// a fresh identity, simulating a bypassed serialization boundary.
	breakInsert bool
}

func newStubStore() *stubStore {
	return &stubStore{entries: make(map[string]types.TrendEntry)}
}

func entryKey(e types.TrendEntry) string {
	return fmt.Sprintf("%d|%s|%s|%s|%s", e.TrackID, e.Provider, e.Region, e.Genre, e.ChartDate)
}

func (s *stubStore) FindByNormalized(_ context.Context, artist, title string) (*types.CanonicalTrack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findNormalizedLocked(artist, title), nil
}

func (s *stubStore) findNormalizedLocked(artist, title string) *types.CanonicalTrack {
	for i := range s.tracks {
		if s.tracks[i].NormalizedArtist == artist && s.tracks[i].NormalizedTitle == title {
			t := s.tracks[i]
			return &t
		}
	}
	return nil
}

func (s *stubStore) FindByISRC(_ context.Context, isrc string) (*types.CanonicalTrack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findISRCLocked(isrc), nil
}

func (s *stubStore) findISRCLocked(isrc string) *types.CanonicalTrack {
	if isrc == "" {
		return nil
	}
	for i := range s.tracks {
		if s.tracks[i].ISRC == isrc {
			t := s.tracks[i]
			return &t
		}
	}
	return nil
}

func (s *stubStore) CandidatesByArtist(_ context.Context, normalizedArtist string, limit int) ([]types.CanonicalTrack, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.CanonicalTrack
	for _, t := range s.tracks {
		if strings.Contains(t.NormalizedArtist, normalizedArtist) ||
			strings.Contains(normalizedArtist, t.NormalizedArtist) {
			out = append(out, t)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *stubStore) InsertTrackWithEntry(_ context.Context, t types.CanonicalTrack, e types.TrendEntry) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.findISRCLocked(t.ISRC); existing != nil {
		return existing.ID, false, nil
	}
	if existing := s.findNormalizedLocked(t.NormalizedArtist, t.NormalizedTitle); existing != nil {
		return existing.ID, false, nil
	}
	if s.breakInsert {
		return 0, false, nil
	}
	s.nextID++
	t.ID = s.nextID
	s.tracks = append(s.tracks, t)
	e.TrackID = t.ID
	s.entries[entryKey(e)] = e
	return t.ID, true, nil
}

func (s *stubStore) EnrichTrack(_ context.Context, id int64, patch types.CanonicalTrack) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tracks {
		if s.tracks[i].ID != id {
			continue
		}
		if s.tracks[i].ISRC == "" {
			s.tracks[i].ISRC = patch.ISRC
		}
		if s.tracks[i].RecordingID == "" {
			s.tracks[i].RecordingID = patch.RecordingID
		}
		if s.tracks[i].ArtworkURL == "" {
			s.tracks[i].ArtworkURL = patch.ArtworkURL
		}
		if s.tracks[i].DurationMS == 0 {
			s.tracks[i].DurationMS = patch.DurationMS
		}
		return nil
	}
	return fmt.Errorf("track %d not found", id)
}

func (s *stubStore) UpsertEntry(_ context.Context, e types.TrendEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entryKey(e)] = e
	return nil
}

func (s *stubStore) trackCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracks)
}

func (s *stubStore) entryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func testCoordinator(store *stubStore) *Coordinator {
	return NewCoordinator(store, match.NewResolver(store, nil))
}

func sampleRecord(provider types.Provider, title, artist string) types.RawTrendRecord {
	return types.RawTrendRecord{
		Provider:  provider,
		Title:     title,
		Artist:    artist,
		Rank:      1,
		Score:     90,
		Region:    "us",
		Genre:     "pop",
		ChartDate: "2026-03-01",
	}
}

// stubSource serves a fixed record batch or a fixed error.
type stubSource struct {
	name    types.Provider
	records []types.RawTrendRecord
	err     error
}

func (s *stubSource) Name() types.Provider { return s.name }

func (s *stubSource) Fetch(context.Context, types.ChartWindow) ([]types.RawTrendRecord, error) {
	return s.records, s.err
}

// --- coordinator tests ---

func TestApplyCreatesTrackWithEntry(t *testing.T) {
	store := newStubStore()
	c := testCoordinator(store)

	rec := sampleRecord(types.ProviderSpotify, "Midnight Sun (Remastered)", "Aurora Fields")
	out, err := c.Apply(context.Background(), rec, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Created {
		t.Fatal("expected a new track")
	}
	if store.trackCount() != 1 || store.entryCount() != 1 {
		t.Fatalf("store has %d tracks, %d entries; want 1 and 1", store.trackCount(), store.entryCount())
	}
	if store.tracks[0].NormalizedTitle != "midnight sun" {
		t.Errorf("normalized title = %q", store.tracks[0].NormalizedTitle)
	}
	if store.tracks[0].Title != "Midnight Sun (Remastered)" {
		t.Errorf("display title not preserved: %q", store.tracks[0].Title)
	}
}

func TestApplyMatchesAndEnriches(t *testing.T) {
	store := newStubStore()
	c := testCoordinator(store)
	ctx := context.Background()

	first := sampleRecord(types.ProviderSpotify, "Midnight Sun", "Aurora Fields")
	if _, err := c.Apply(ctx, first, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}

	second := sampleRecord(types.ProviderAppleMusic, "Midnight Sun", "Aurora Fields")
	second.ISRC = "USRC12400001"
	second.DurationMS = 201000
	out, err := c.Apply(ctx, second, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Created {
		t.Fatal("second record created a duplicate track")
	}
	if out.Stage != match.StageExact {
		t.Errorf("stage = %s, want %s", out.Stage, match.StageExact)
	}
	if store.trackCount() != 1 {
		t.Fatalf("track count = %d", store.trackCount())
	}
	if store.entryCount() != 2 {
		t.Fatalf("entry count = %d, want one per provider", store.entryCount())
	}
	if store.tracks[0].ISRC != "USRC12400001" || store.tracks[0].DurationMS != 201000 {
		t.Errorf("matched record did not enrich the track: %+v", store.tracks[0])
	}
}

func TestApplyReingestIsIdempotent(t *testing.T) {
	store := newStubStore()
	c := testCoordinator(store)
	ctx := context.Background()

	rec := sampleRecord(types.ProviderSpotify, "Midnight Sun", "Aurora Fields")
	if _, err := c.Apply(ctx, rec, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}

	rec.Rank = 5
	rec.Score = 72
	out, err := c.Apply(ctx, rec, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Created {
		t.Fatal("re-ingest created a second track")
	}
	if store.trackCount() != 1 || store.entryCount() != 1 {
		t.Fatalf("store has %d tracks, %d entries after re-ingest", store.trackCount(), store.entryCount())
	}
	for _, e := range store.entries {
		if e.Rank != 5 || e.Score != 72 {
			t.Errorf("entry not refreshed: %+v", e)
		}
	}
}

func TestApplyConcurrentSameIdentity(t *testing.T) {
	store := newStubStore()
	c := testCoordinator(store)
	providers := []types.Provider{
		types.ProviderAppleMusic, types.ProviderSpotify,
		types.ProviderYouTube, types.ProviderLastFM,
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(providers))
	for _, p := range providers {
		wg.Add(1)
		go func(p types.Provider) {
			defer wg.Done()
			rec := sampleRecord(p, "Midnight Sun", "Aurora Fields")
			if _, err := c.Apply(context.Background(), rec, &bytes.Buffer{}); err != nil {
				errs <- err
			}
		}(p)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if store.trackCount() != 1 {
		t.Fatalf("concurrent ingestion created %d tracks, want 1", store.trackCount())
	}
	if store.entryCount() != len(providers) {
		t.Errorf("entry count = %d, want %d", store.entryCount(), len(providers))
	}
}

func TestApplyConcurrentSameISRCDifferentText(t *testing.T) {
	store := newStubStore()
	c := testCoordinator(store)

	// Same recording shipped under unrelated titles. The text keys do
	// not collide, so both records may race into the create path; the
	// loser must attach its entry to the winner's track rather than
	// abort.
	recs := []types.RawTrendRecord{
		sampleRecord(types.ProviderSpotify, "Midnight Sun", "Aurora Fields"),
		sampleRecord(types.ProviderAppleMusic, "Sol de Medianoche", "Campos de Aurora"),
	}
	for i := range recs {
		recs[i].ISRC = "USRC12400077"
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(recs))
	for _, rec := range recs {
		wg.Add(1)
		go func(rec types.RawTrendRecord) {
			defer wg.Done()
			if _, err := c.Apply(context.Background(), rec, &bytes.Buffer{}); err != nil {
				errs <- err
			}
		}(rec)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	if store.trackCount() != 1 {
		t.Fatalf("same-code ingestion created %d tracks, want 1", store.trackCount())
	}
	if store.entryCount() != len(recs) {
		t.Errorf("entry count = %d, want %d", store.entryCount(), len(recs))
	}
}

func TestApplySameISRCDifferentTextAttaches(t *testing.T) {
	store := newStubStore()
	c := testCoordinator(store)
	ctx := context.Background()

	first := sampleRecord(types.ProviderSpotify, "Midnight Sun", "Aurora Fields")
	first.ISRC = "USRC12400077"
	if _, err := c.Apply(ctx, first, &bytes.Buffer{}); err != nil {
		t.Fatal(err)
	}

	// Sequentially the resolver sees the ISRC itself; the outcome must
	// be the same track either way.
	second := sampleRecord(types.ProviderAppleMusic, "Sol de Medianoche", "Campos de Aurora")
	second.ISRC = "USRC12400077"
	out, err := c.Apply(ctx, second, &bytes.Buffer{})
	if err != nil {
		t.Fatal(err)
	}
	if out.Created {
		t.Fatal("same ISRC created a duplicate track")
	}
	if out.Stage != match.StageISRC {
		t.Errorf("stage = %s, want %s", out.Stage, match.StageISRC)
	}
	if store.trackCount() != 1 || store.entryCount() != 2 {
		t.Fatalf("store has %d tracks, %d entries; want 1 and 2", store.trackCount(), store.entryCount())
	}
}

func TestApplyInvariantViolation(t *testing.T) {
	store := newStubStore()
	store.breakInsert = true
	c := testCoordinator(store)

	rec := sampleRecord(types.ProviderSpotify, "Midnight Sun", "Aurora Fields")
	_, err := c.Apply(context.Background(), rec, &bytes.Buffer{})
	var iv *InvariantViolation
	if !errors.As(err, &iv) {
		t.Fatalf("err = %v, want InvariantViolation", err)
	}
	if iv.NormalizedTitle != "midnight sun" {
		t.Errorf("violation carries %q", iv.NormalizedTitle)
	}
}

// --- pipeline tests ---

func TestRunNoSources(t *testing.T) {
	store := newStubStore()
	_, err := Run(context.Background(), nil, testCoordinator(store),
		types.ChartWindow{Region: "us", Genre: "pop", Date: "2026-03-01"}, 2, &bytes.Buffer{})
	if err == nil {
		t.Fatal("expected an error with no providers configured")
	}
}

func TestRunCountsAndMerges(t *testing.T) {
	store := newStubStore()
	sources := []Source{
		&stubSource{name: types.ProviderSpotify, records: []types.RawTrendRecord{
			sampleRecord(types.ProviderSpotify, "Midnight Sun", "Aurora Fields"),
			sampleRecord(types.ProviderSpotify, "Glasshouse", "The Verandas"),
		}},
		&stubSource{name: types.ProviderAppleMusic, records: []types.RawTrendRecord{
			sampleRecord(types.ProviderAppleMusic, "Midnight Sun", "Aurora Fields"),
		}},
	}

	var buf bytes.Buffer
	summary, err := Run(context.Background(), sources, testCoordinator(store),
		types.ChartWindow{Region: "us", Genre: "pop", Date: "2026-03-01"}, 2, &buf)
	if err != nil {
		t.Fatal(err)
	}

	if summary.Records != 3 {
		t.Errorf("records = %d, want 3", summary.Records)
	}
	if summary.Total() != 3 {
		t.Errorf("total decisions = %d, want 3", summary.Total())
	}
	if summary.Created != 2 {
		t.Errorf("created = %d, want 2", summary.Created)
	}
	if store.trackCount() != 2 {
		t.Errorf("track count = %d, want 2", store.trackCount())
	}
	if store.entryCount() != 3 {
		t.Errorf("entry count = %d, want 3", store.entryCount())
	}
	if len(summary.Errors) != 0 {
		t.Errorf("unexpected errors: %v", summary.Errors)
	}
}

func TestRunIsolatesProviderFailure(t *testing.T) {
	store := newStubStore()
	sources := []Source{
		&stubSource{name: types.ProviderYouTube, err: &TransientError{
			Provider: types.ProviderYouTube, Err: fmt.Errorf("snapshot missing"),
		}},
		&stubSource{name: types.ProviderSpotify, records: []types.RawTrendRecord{
			sampleRecord(types.ProviderSpotify, "Midnight Sun", "Aurora Fields"),
		}},
	}

	var buf bytes.Buffer
	summary, err := Run(context.Background(), sources, testCoordinator(store),
		types.ChartWindow{Region: "us", Genre: "pop", Date: "2026-03-01"}, 2, &buf)
	if err != nil {
		t.Fatal(err)
	}

	if len(summary.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly the provider failure", summary.Errors)
	}
	if summary.Created != 1 {
		t.Errorf("created = %d, want the surviving provider's record", summary.Created)
	}
	if !strings.Contains(buf.String(), "warning:") {
		t.Errorf("provider failure not reported in output:\n%s", buf.String())
	}
}

func TestRunInvariantViolationIsFatal(t *testing.T) {
	store := newStubStore()
	store.breakInsert = true
	sources := []Source{
		&stubSource{name: types.ProviderSpotify, records: []types.RawTrendRecord{
			sampleRecord(types.ProviderSpotify, "Midnight Sun", "Aurora Fields"),
		}},
	}

	_, err := Run(context.Background(), sources, testCoordinator(store),
		types.ChartWindow{Region: "us", Genre: "pop", Date: "2026-03-01"}, 2, &bytes.Buffer{})
	var iv *InvariantViolation
	if !errors.As(err, &iv) {
		t.Fatalf("err = %v, want InvariantViolation", err)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	store := newStubStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sources := []Source{
		&stubSource{name: types.ProviderSpotify, records: []types.RawTrendRecord{
			sampleRecord(types.ProviderSpotify, "Midnight Sun", "Aurora Fields"),
		}},
	}
	_, err := Run(ctx, sources, testCoordinator(store),
		types.ChartWindow{Region: "us", Genre: "pop", Date: "2026-03-01"}, 2, &bytes.Buffer{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
