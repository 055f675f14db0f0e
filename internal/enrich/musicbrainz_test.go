// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/djlyric/music-trend-panel/internal/httputil"
	"github.com/djlyric/music-trend-panel/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = 1 * time.Millisecond
}

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	c := NewClient(types.EnrichmentConfig{
		Enabled: true,
		BaseURL: ts.URL,
		HTTPConfig: types.HTTPConfig{
			Timeout:   5 * time.Second,
			UserAgent: "trendpanel-test/0.1",
		},
	})
	require.NotNil(t, c)
	// The public API rate limit does not apply to a local test server.
	c.limiter.SetLimit(1000)
	return c
}

const sampleResponse = `{
	"recordings": [
		{"id": "rec-low", "score": 60, "isrcs": ["USRC17600001"]},
		{"id": "rec-good", "score": 95, "isrcs": ["USRC12400042", "USRC12400043"]},
		{"id": "rec-other", "score": 90, "isrcs": []}
	]
}`

func TestLookupReturnsFirstAcceptableRecording(t *testing.T) {
	var gotQuery, gotAgent string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotAgent = r.Header.Get("User-Agent")
		assert.Equal(t, "/recording", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("fmt"))
		w.Write([]byte(sampleResponse))
	})

	isrc, recordingID, err := c.Lookup(context.Background(), "Midnight Sun", "Aurora Fields")
	require.NoError(t, err)

	// The sub-threshold first result is skipped.
	assert.Equal(t, "USRC12400042", isrc)
	assert.Equal(t, "rec-good", recordingID)
	assert.Equal(t, `artist:"Aurora Fields" AND recording:"Midnight Sun"`, gotQuery)
	assert.Equal(t, "trendpanel-test/0.1", gotAgent)
}

func TestLookupNoAcceptableScore(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"recordings": [{"id": "rec-1", "score": 40, "isrcs": ["USRC17600001"]}]}`))
	})

	isrc, recordingID, err := c.Lookup(context.Background(), "Obscure", "Nobody")
	require.NoError(t, err)
	assert.Empty(t, isrc)
	assert.Empty(t, recordingID)
}

func TestLookupRecordingWithoutISRC(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"recordings": [{"id": "rec-9", "score": 92, "isrcs": []}]}`))
	})

	isrc, recordingID, err := c.Lookup(context.Background(), "Horizon", "Delta Wing")
	require.NoError(t, err)
	assert.Empty(t, isrc)
	assert.Equal(t, "rec-9", recordingID)
}

func TestLookupRetriesOn503(t *testing.T) {
	var calls int32
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(sampleResponse))
	})

	isrc, _, err := c.Lookup(context.Background(), "Midnight Sun", "Aurora Fields")
	require.NoError(t, err)
	assert.Equal(t, "USRC12400042", isrc)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestLookupServerError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, _, err := c.Lookup(context.Background(), "Midnight Sun", "Aurora Fields")
	assert.ErrorContains(t, err, "HTTP 500")
}

func TestLookupEmptyInputsSkipNetwork(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("unexpected request for empty inputs")
	})

	isrc, recordingID, err := c.Lookup(context.Background(), "", "Aurora Fields")
	require.NoError(t, err)
	assert.Empty(t, isrc)
	assert.Empty(t, recordingID)
}

func TestNewClientDisabled(t *testing.T) {
	assert.Nil(t, NewClient(types.EnrichmentConfig{Enabled: false}))
}
