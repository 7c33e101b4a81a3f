// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-fetcher/internal/agent"
	"github.com/pdiddy/paper-fetcher/internal/download"
	"github.com/pdiddy/paper-fetcher/pkg/types"
)

// --- fake agent ---

type fakeAgent struct {
	server    *httptest.Server
	initiates atomic.Int32
	snapshots atomic.Int32
	pages     atomic.Int32
	initiate  int // HTTP status for initiation requests
}

const threePapers = `{
	"2301.00001": {"entry_id": "2301.00001", "title": "Low", "authors": ["A"], "abstract": "a", "publish_time": "20230101", "score": 0.2},
	"2301.00002": {"entry_id": "2301.00002", "title": "High", "authors": ["B"], "abstract": "b", "publish_time": "20230102", "score": 0.9},
	"2301.00003": {"entry_id": "2301.00003", "title": "Mid", "authors": ["C"], "abstract": "c", "publish_time": "20230103", "score": 0.5}
}`

func newFakeAgent(t *testing.T) *fakeAgent {
	t.Helper()
	fa := &fakeAgent{initiate: http.StatusOK}
	fa.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/paper-agent/api/v1/single_paper_agent":
			fa.initiates.Add(1)
			if fa.initiate != http.StatusOK {
				w.WriteHeader(fa.initiate)
				return
			}
			w.Write([]byte(`{"base_resp":{"status_code":0}}`))
		case "/paper-agent/api/v1/single_get_result":
			fa.snapshots.Add(1)
			encoded, _ := json.Marshal(threePapers)
			w.Write([]byte(`{"base_resp":{"status_code":0},"finish":true,"papers":` + string(encoded) + `}`))
		case "/abs/2301.00001", "/abs/2301.00002", "/abs/2301.00003":
			fa.pages.Add(1)
			w.Write([]byte(`<html><body><table><tr><td class="tablecell label">Comments:</td><td class="tablecell">enriched</td></tr></table></body></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(fa.server.Close)
	return fa
}

func testConfig(t *testing.T, baseURL string) types.Config {
	cfg := types.DefaultConfig()
	cfg.Agent.BaseURL = baseURL
	cfg.Agent.InitiateBackoff = time.Millisecond
	cfg.Poll.Interval = 0
	cfg.Enrich.Enabled = false
	cfg.Download.OutputDir = t.TempDir()
	return cfg
}

func newTestFetcher(t *testing.T, cfg types.Config) *Fetcher {
	t.Helper()
	f, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

// --- search ---

func TestSearch_EndToEnd(t *testing.T) {
	fa := newFakeAgent(t)
	f := newTestFetcher(t, testConfig(t, fa.server.URL))

	res, err := f.Search(context.Background(), "  transformers  ", Options{Policy: agent.PolicyStandard})
	require.NoError(t, err)

	assert.Equal(t, "transformers", res.Query)
	assert.Equal(t, "standard", res.Policy)
	assert.False(t, res.Cached)
	assert.NotEmpty(t, res.SessionID)
	assert.Contains(t, res.SessionURL, "session="+res.SessionID)
	require.Len(t, res.Papers, 3)
	assert.Equal(t, "2301.00001", res.Papers[0].ID, "server order is kept without sorting")
	assert.Equal(t, "https://arxiv.org/pdf/2301.00002.pdf", res.Papers[1].PDFURL)
	assert.Equal(t, int32(1), fa.initiates.Load())
	assert.Equal(t, int32(3), fa.snapshots.Load())
}

func TestSearch_SortsBeforeTruncating(t *testing.T) {
	fa := newFakeAgent(t)
	f := newTestFetcher(t, testConfig(t, fa.server.URL))

	res, err := f.Search(context.Background(), "q", Options{MaxResults: 2, SortByRelevance: true})
	require.NoError(t, err)
	require.Len(t, res.Papers, 2)
	assert.Equal(t, "2301.00002", res.Papers[0].ID)
	assert.Equal(t, "2301.00003", res.Papers[1].ID)

	res, err = f.Search(context.Background(), "q", Options{MaxResults: 2})
	require.NoError(t, err)
	require.Len(t, res.Papers, 2)
	assert.Equal(t, "2301.00001", res.Papers[0].ID)
}

func TestSearch_CacheShortCircuits(t *testing.T) {
	fa := newFakeAgent(t)
	f := newTestFetcher(t, testConfig(t, fa.server.URL))
	ctx := context.Background()

	first, err := f.Search(ctx, "q", Options{})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := f.Search(ctx, "q", Options{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Papers, second.Papers)
	assert.Equal(t, int32(1), fa.initiates.Load())

	// A different request shape is a different key.
	_, err = f.Search(ctx, "q", Options{MaxResults: 1})
	require.NoError(t, err)
	assert.Equal(t, int32(2), fa.initiates.Load())

	// NoCache neither reads nor writes.
	third, err := f.Search(ctx, "q", Options{NoCache: true})
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, int32(3), fa.initiates.Load())
}

func TestSearch_SkipEnrichIsADistinctCacheEntry(t *testing.T) {
	fa := newFakeAgent(t)
	cfg := testConfig(t, fa.server.URL)
	cfg.Enrich.Enabled = true
	cfg.Enrich.AbsBaseURL = fa.server.URL + "/abs/"
	f := newTestFetcher(t, cfg)
	ctx := context.Background()

	plain, err := f.Search(ctx, "q", Options{SkipEnrich: true})
	require.NoError(t, err)
	assert.False(t, plain.Cached)
	assert.Empty(t, plain.Papers[0].Comments)
	assert.Zero(t, fa.pages.Load())

	enriched, err := f.Search(ctx, "q", Options{})
	require.NoError(t, err)
	assert.False(t, enriched.Cached)
	assert.Equal(t, int32(2), fa.initiates.Load())
	assert.Equal(t, int32(3), fa.pages.Load())
	for _, p := range enriched.Papers {
		assert.Equal(t, "enriched", p.Comments)
	}

	// Each shape now hits its own entry.
	again, err := f.Search(ctx, "q", Options{SkipEnrich: true})
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Empty(t, again.Papers[0].Comments)
	assert.Equal(t, int32(2), fa.initiates.Load())
}

func TestSearch_CachedResultIsACopy(t *testing.T) {
	fa := newFakeAgent(t)
	f := newTestFetcher(t, testConfig(t, fa.server.URL))
	ctx := context.Background()

	first, err := f.Search(ctx, "q", Options{})
	require.NoError(t, err)
	first.Papers[0].Title = "mutated"

	second, err := f.Search(ctx, "q", Options{})
	require.NoError(t, err)
	assert.Equal(t, "Low", second.Papers[0].Title)
}

func TestSearch_CacheDisabled(t *testing.T) {
	fa := newFakeAgent(t)
	cfg := testConfig(t, fa.server.URL)
	cfg.Cache.Enabled = false
	f := newTestFetcher(t, cfg)

	for range 2 {
		res, err := f.Search(context.Background(), "q", Options{})
		require.NoError(t, err)
		assert.False(t, res.Cached)
	}
	assert.Equal(t, int32(2), fa.initiates.Load())
}

func TestSearch_EmptyQuery(t *testing.T) {
	fa := newFakeAgent(t)
	f := newTestFetcher(t, testConfig(t, fa.server.URL))

	_, err := f.Search(context.Background(), "   ", Options{})
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Zero(t, fa.initiates.Load())
}

func TestSearch_InitiationFailure(t *testing.T) {
	fa := newFakeAgent(t)
	fa.initiate = http.StatusBadGateway
	f := newTestFetcher(t, testConfig(t, fa.server.URL))

	res, err := f.Search(context.Background(), "q", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, agent.ErrInitiation)
	assert.NotEmpty(t, res.SessionID)
	assert.Zero(t, fa.snapshots.Load())
}

func TestNew_UnknownSessionFormat(t *testing.T) {
	cfg := types.DefaultConfig()
	cfg.Agent.SessionFormat = "sequential"
	_, err := New(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestNew_UnreachableRedisFallsBackToMemory(t *testing.T) {
	fa := newFakeAgent(t)
	cfg := testConfig(t, fa.server.URL)
	cfg.Cache.RedisAddr = "127.0.0.1:1"
	f := newTestFetcher(t, cfg)
	assert.Nil(t, f.shared)

	_, err := f.Search(context.Background(), "q", Options{})
	require.NoError(t, err)
	res, err := f.Search(context.Background(), "q", Options{})
	require.NoError(t, err)
	assert.True(t, res.Cached)
}

// --- download ---

func TestDownload_WritesToOutputDir(t *testing.T) {
	fa := newFakeAgent(t)
	cfg := testConfig(t, fa.server.URL)
	f := newTestFetcher(t, cfg)

	res, err := f.Search(context.Background(), "q", Options{MaxResults: 1})
	require.NoError(t, err)

	outcomes, err := f.Download(context.Background(), res.Papers, download.Options{MaxConcurrent: 2})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)

	meta := outcomes["2301.00001"].Artifacts[types.ArtifactMetadata]
	require.True(t, meta.OK(), meta.Error)
	assert.FileExists(t, meta.Location)
	data, err := os.ReadFile(meta.Location)
	require.NoError(t, err)
	assert.Contains(t, string(data), "title: Low")
}
