// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists canonical tracks and their trend entries in
// SQLite. The store guarantees that every track carries at least one
// trend entry: track creation and first-entry insertion share one
// transaction.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/djlyric/music-trend-panel/pkg/types"
)

// artistPrefixLen bounds the LIKE pattern used for fuzzy candidate
// retrieval so small spelling differences in the artist still hit.
const artistPrefixLen = 20

// SQLite persists tracks and trend entries in a single database file.
type SQLite struct {
	db *sql.DB
}

// Open opens or creates the trend database at path, creating parent
// directories and the schema as needed.
func Open(cfg types.StoreConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("store path is empty")
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tracks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			normalized_title TEXT NOT NULL,
			normalized_artist TEXT NOT NULL,
			isrc TEXT NOT NULL DEFAULT '',
			recording_id TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			artwork_url TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_normalized
			ON tracks(normalized_artist, normalized_title)`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_isrc ON tracks(isrc)`,
		`CREATE TABLE IF NOT EXISTS trend_entries (
			track_id INTEGER NOT NULL REFERENCES tracks(id),
			provider TEXT NOT NULL,
			chart_rank INTEGER NOT NULL DEFAULT 0,
			score REAL NOT NULL DEFAULT 0,
			region TEXT NOT NULL,
			genre TEXT NOT NULL,
			chart_date TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			PRIMARY KEY (track_id, provider, region, genre, chart_date)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_window
			ON trend_entries(region, genre, chart_date)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

const trackColumns = `id, title, artist, normalized_title, normalized_artist,
	isrc, recording_id, duration_ms, artwork_url`

func scanTrack(row interface{ Scan(...any) error }) (*types.CanonicalTrack, error) {
	var t types.CanonicalTrack
	err := row.Scan(&t.ID, &t.Title, &t.Artist, &t.NormalizedTitle, &t.NormalizedArtist,
		&t.ISRC, &t.RecordingID, &t.DurationMS, &t.ArtworkURL)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FindByNormalized returns the track stored under the normalized
// artist/title pair, or nil.
func (s *SQLite) FindByNormalized(ctx context.Context, artist, title string) (*types.CanonicalTrack, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+trackColumns+` FROM tracks
		 WHERE normalized_artist = ? AND normalized_title = ?
		 ORDER BY id LIMIT 1`, artist, title)
	t, err := scanTrack(row)
	if err != nil {
		return nil, fmt.Errorf("querying track by normalized fields: %w", err)
	}
	return t, nil
}

// FindByISRC returns the track carrying the recording code, or nil.
func (s *SQLite) FindByISRC(ctx context.Context, isrc string) (*types.CanonicalTrack, error) {
	if isrc == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+trackColumns+` FROM tracks WHERE isrc = ? ORDER BY id LIMIT 1`, isrc)
	t, err := scanTrack(row)
	if err != nil {
		return nil, fmt.Errorf("querying track by isrc: %w", err)
	}
	return t, nil
}

// CandidatesByArtist returns tracks whose normalized artist contains a
// prefix of the given artist, feeding the fuzzy matching stage.
func (s *SQLite) CandidatesByArtist(ctx context.Context, normalizedArtist string, limit int) ([]types.CanonicalTrack, error) {
	if normalizedArtist == "" {
		return nil, nil
	}
	prefix := normalizedArtist
	if len(prefix) > artistPrefixLen {
		prefix = prefix[:artistPrefixLen]
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+trackColumns+` FROM tracks
		 WHERE normalized_artist LIKE '%' || ? || '%'
		 ORDER BY id LIMIT ?`, prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("querying fuzzy candidates: %w", err)
	}
	defer rows.Close()

	var tracks []types.CanonicalTrack
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		tracks = append(tracks, *t)
	}
	return tracks, rows.Err()
}

// InsertTrackWithEntry creates the track and its first trend entry in
// one transaction, unless a track with the same identity already
// exists. The identity re-check runs inside the transaction so a
// concurrent creation surfaces as created=false rather than a
// duplicate row.
func (s *SQLite) InsertTrackWithEntry(ctx context.Context, t types.CanonicalTrack, e types.TrendEntry) (int64, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if existing, err := s.findIdentityTx(ctx, tx, t); err != nil {
		return 0, false, err
	} else if existing != 0 {
		return existing, false, nil
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO tracks (title, artist, normalized_title, normalized_artist,
			isrc, recording_id, duration_ms, artwork_url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Artist, t.NormalizedTitle, t.NormalizedArtist,
		t.ISRC, t.RecordingID, t.DurationMS, t.ArtworkURL,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, false, fmt.Errorf("inserting track: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("reading track id: %w", err)
	}

	e.TrackID = id
	if err := upsertEntryTx(ctx, tx, e); err != nil {
		return 0, false, fmt.Errorf("inserting first entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("committing track creation: %w", err)
	}
	return id, true, nil
}

// findIdentityTx re-runs the identity lookups inside the creation
// transaction. A textual hit with a contradicting recording code does
// not count as the same identity.
func (s *SQLite) findIdentityTx(ctx context.Context, tx *sql.Tx, t types.CanonicalTrack) (int64, error) {
	if t.ISRC != "" {
		var id int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM tracks WHERE isrc = ? ORDER BY id LIMIT 1`, t.ISRC).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, fmt.Errorf("identity check by isrc: %w", err)
		}
	}
	if t.NormalizedArtist != "" && t.NormalizedTitle != "" {
		var id int64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM tracks
			 WHERE normalized_artist = ? AND normalized_title = ?
			   AND (isrc = '' OR ? = '' OR isrc = ?)
			 ORDER BY id LIMIT 1`,
			t.NormalizedArtist, t.NormalizedTitle, t.ISRC, t.ISRC).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, fmt.Errorf("identity check by normalized fields: %w", err)
		}
	}
	return 0, nil
}

// EnrichTrack fills empty columns of a track from the patch. Columns
// already holding a value are left untouched.
func (s *SQLite) EnrichTrack(ctx context.Context, id int64, patch types.CanonicalTrack) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tracks SET
			isrc         = COALESCE(NULLIF(isrc, ''), ?),
			recording_id = COALESCE(NULLIF(recording_id, ''), ?),
			artwork_url  = COALESCE(NULLIF(artwork_url, ''), ?),
			duration_ms  = CASE WHEN duration_ms > 0 THEN duration_ms ELSE ? END
		 WHERE id = ?`,
		patch.ISRC, patch.RecordingID, patch.ArtworkURL, patch.DurationMS, id)
	if err != nil {
		return fmt.Errorf("enriching track %d: %w", id, err)
	}
	return nil
}

// UpsertEntry inserts or overwrites the trend entry for its
// (track, provider, window) key. Re-ingesting a snapshot refreshes
// rank and score instead of duplicating rows.
func (s *SQLite) UpsertEntry(ctx context.Context, e types.TrendEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()
	if err := upsertEntryTx(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

func upsertEntryTx(ctx context.Context, tx *sql.Tx, e types.TrendEntry) error {
	meta := "{}"
	if len(e.Metadata) > 0 {
		data, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling entry metadata: %w", err)
		}
		meta = string(data)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO trend_entries (track_id, provider, chart_rank, score, region, genre, chart_date, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(track_id, provider, region, genre, chart_date) DO UPDATE SET
			chart_rank=excluded.chart_rank, score=excluded.score, metadata=excluded.metadata`,
		e.TrackID, string(e.Provider), e.Rank, e.Score, e.Region, e.Genre, e.ChartDate, meta)
	if err != nil {
		return fmt.Errorf("upserting trend entry: %w", err)
	}
	return nil
}

// EntriesForWindow returns every track that has at least one trend
// entry in the window, each paired with all its entries for that
// window.
func (s *SQLite) EntriesForWindow(ctx context.Context, window types.ChartWindow) ([]types.TrackEntries, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.title, t.artist, t.normalized_title, t.normalized_artist,
			t.isrc, t.recording_id, t.duration_ms, t.artwork_url,
			e.provider, e.chart_rank, e.score, e.metadata
		 FROM tracks t
		 JOIN trend_entries e ON e.track_id = t.id
		 WHERE e.region = ? AND e.genre = ? AND e.chart_date = ?
		 ORDER BY t.id, e.provider`,
		window.Region, window.Genre, window.Date)
	if err != nil {
		return nil, fmt.Errorf("querying window entries: %w", err)
	}
	defer rows.Close()

	var result []types.TrackEntries
	for rows.Next() {
		var t types.CanonicalTrack
		var e types.TrendEntry
		var provider, meta string
		err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.NormalizedTitle, &t.NormalizedArtist,
			&t.ISRC, &t.RecordingID, &t.DurationMS, &t.ArtworkURL,
			&provider, &e.Rank, &e.Score, &meta)
		if err != nil {
			return nil, fmt.Errorf("scanning window entry: %w", err)
		}
		e.TrackID = t.ID
		e.Provider = types.Provider(provider)
		e.Region, e.Genre, e.ChartDate = window.Region, window.Genre, window.Date
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
				return nil, fmt.Errorf("parsing metadata for track %d: %w", t.ID, err)
			}
		}

		if n := len(result); n > 0 && result[n-1].Track.ID == t.ID {
			result[n-1].Entries = append(result[n-1].Entries, e)
		} else {
			result = append(result, types.TrackEntries{Track: t, Entries: []types.TrendEntry{e}})
		}
	}
	return result, rows.Err()
}

// Stats summarizes the database contents.
type Stats struct {
	Tracks  int
	Entries int
	Windows int
}

// CollectStats counts tracks, entries, and distinct chart windows.
func (s *SQLite) CollectStats(ctx context.Context) (Stats, error) {
	var st Stats
	queries := []struct {
		sql  string
		dest *int
	}{
		{`SELECT count(*) FROM tracks`, &st.Tracks},
		{`SELECT count(*) FROM trend_entries`, &st.Entries},
		{`SELECT count(DISTINCT region || '/' || genre || '/' || chart_date) FROM trend_entries`, &st.Windows},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return st, fmt.Errorf("collecting stats: %w", err)
		}
	}
	return st, nil
}

// WindowList returns the distinct chart windows present in the store,
// newest date first.
func (s *SQLite) WindowList(ctx context.Context) ([]types.ChartWindow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT region, genre, chart_date FROM trend_entries
		 ORDER BY chart_date DESC, region, genre`)
	if err != nil {
		return nil, fmt.Errorf("querying windows: %w", err)
	}
	defer rows.Close()

	var windows []types.ChartWindow
	for rows.Next() {
		var win types.ChartWindow
		if err := rows.Scan(&win.Region, &win.Genre, &win.Date); err != nil {
			return nil, fmt.Errorf("scanning window: %w", err)
		}
		windows = append(windows, win)
	}
	return windows, rows.Err()
}
