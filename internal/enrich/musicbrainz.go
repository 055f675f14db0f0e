// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich looks up recording identifiers in the MusicBrainz
// catalog. The matching cascade consults it as a last resort before
// creating a new canonical track; everything here is best-effort.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/djlyric/music-trend-panel/internal/httputil"
	"github.com/djlyric/music-trend-panel/pkg/types"
)

const defaultBaseURL = "https://musicbrainz.org/ws/2"

// minMatchScore is the lowest MusicBrainz search score accepted as the
// same recording. Results below it are noise.
const minMatchScore = 80

// searchLimit bounds how many recordings one lookup requests.
const searchLimit = 5

// Client queries the MusicBrainz recording search. Requests are rate
// limited to one per second per the MusicBrainz API guidelines.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	maxRetries int
	limiter    *rate.Limiter
}

// NewClient builds a MusicBrainz client from configuration. A nil
// return means enrichment is disabled.
func NewClient(cfg types.EnrichmentConfig) *Client {
	if !cfg.Enabled {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "trendpanel/0.1 (https://github.com/djlyric/music-trend-panel)"
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userAgent:  userAgent,
		maxRetries: cfg.MaxRetries,
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// recordingResponse is the subset of the MusicBrainz search response
// the lookup needs.
type recordingResponse struct {
	Recordings []struct {
		ID    string   `json:"id"`
		Score int      `json:"score"`
		ISRCs []string `json:"isrcs"`
	} `json:"recordings"`
}

// Lookup searches MusicBrainz for a recording by title and artist and
// returns its first ISRC and the MusicBrainz recording id. Both may be
// empty when no result scores high enough.
func (c *Client) Lookup(ctx context.Context, title, artist string) (string, string, error) {
	if title == "" || artist == "" {
		return "", "", nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return "", "", err
	}

	query := fmt.Sprintf(`artist:"%s" AND recording:"%s"`, luceneEscape(artist), luceneEscape(title))
	searchURL := fmt.Sprintf("%s/recording?query=%s&fmt=json&limit=%d",
		c.baseURL, url.QueryEscape(query), searchLimit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return "", "", fmt.Errorf("creating request: %w", err)
	}
	// MusicBrainz requires a descriptive User-Agent.
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return "", "", fmt.Errorf("musicbrainz request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("musicbrainz returned HTTP %d", resp.StatusCode)
	}

	var result recordingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", "", fmt.Errorf("parsing musicbrainz response: %w", err)
	}

	// Results arrive in score order; take the first acceptable one.
	for _, rec := range result.Recordings {
		if rec.Score < minMatchScore {
			continue
		}
		isrc := ""
		if len(rec.ISRCs) > 0 {
			isrc = rec.ISRCs[0]
		}
		return isrc, rec.ID, nil
	}
	return "", "", nil
}

// luceneEscape neutralizes quote characters inside a quoted Lucene
// phrase.
func luceneEscape(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
