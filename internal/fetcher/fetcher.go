// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetcher wires the agent client, poller, parser, enricher, caches,
// and download coordinator into the search and download operations. A
// Fetcher owns every client it creates; Close releases them.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-fetcher/internal/agent"
	"github.com/pdiddy/paper-fetcher/internal/cache"
	"github.com/pdiddy/paper-fetcher/internal/download"
	"github.com/pdiddy/paper-fetcher/internal/enrich"
	"github.com/pdiddy/paper-fetcher/internal/session"
	"github.com/pdiddy/paper-fetcher/pkg/types"
)

// ErrEmptyQuery is returned for a blank search query.
var ErrEmptyQuery = errors.New("empty search query")

// Options shapes one search.
type Options struct {
	// MaxResults truncates the result list; zero keeps everything.
	MaxResults int

	Policy agent.Policy

	// SortByRelevance orders results by descending score before truncation.
	SortByRelevance bool

	// SkipEnrich returns records as parsed, without abstract-page lookups.
	SkipEnrich bool

	// NoCache bypasses both cache tiers for reading and writing.
	NoCache bool
}

// Result is the outcome of a search.
type Result struct {
	Query      string        `json:"query" yaml:"query"`
	SessionID  string        `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	SessionURL string        `json:"session_url,omitempty" yaml:"session_url,omitempty"`
	Policy     string        `json:"policy" yaml:"policy"`
	Papers     []types.Paper `json:"papers" yaml:"papers"`
	Skipped    int           `json:"skipped" yaml:"skipped"`
	Cached     bool          `json:"cached" yaml:"cached"`
}

// Searcher runs searches. The HTTP server depends on this rather than on
// *Fetcher.
type Searcher interface {
	Search(ctx context.Context, query string, opts Options) (Result, error)
}

// Fetcher runs searches and downloads against one configuration.
type Fetcher struct {
	cfg      types.Config
	log      zerolog.Logger
	sessions session.Generator
	client   *agent.Client
	poller   *agent.Poller
	enricher *enrich.Enricher
	memory   *cache.Cache[[]types.Paper]
	shared   *cache.RedisStore[[]types.Paper]

	sinkOnce sync.Once
	sink     download.Sink
	sinkErr  error
	closers  []func() error
}

// New builds a Fetcher from cfg. When a Redis address is configured but
// unreachable the shared tier is skipped with a warning.
func New(ctx context.Context, cfg types.Config, log zerolog.Logger) (*Fetcher, error) {
	sessions, err := session.New(cfg.Agent.SessionFormat)
	if err != nil {
		return nil, err
	}

	client := agent.NewClient(nil, cfg.Agent, log)
	f := &Fetcher{
		cfg:      cfg,
		log:      log.With().Str("component", "fetcher").Logger(),
		sessions: sessions,
		client:   client,
		poller:   agent.NewPoller(client, cfg.Poll, log),
		memory:   cache.New[[]types.Paper](cfg.Cache.TTL, cfg.Cache.Enabled),
	}
	if cfg.Enrich.Enabled {
		f.enricher = enrich.New(nil, cfg.Enrich, log)
	}

	if cfg.Cache.Enabled && cfg.Cache.RedisAddr != "" {
		rc, err := cache.Dial(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			f.log.Warn().Err(err).Msg("shared cache unavailable, using memory only")
		} else {
			f.shared = cache.NewRedisStore[[]types.Paper](rc, "paper-fetcher:", cfg.Cache.TTL)
			f.closers = append(f.closers, f.shared.Close)
		}
	}
	return f, nil
}

// Close releases the shared cache and storage clients.
func (f *Fetcher) Close() error {
	var errs []error
	for _, c := range f.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	f.closers = nil
	return errors.Join(errs...)
}

// Search runs a query through the agent and returns parsed, optionally
// sorted, truncated, and enriched papers. A cached result for the same
// request shape short-circuits the whole pipeline.
func (f *Fetcher) Search(ctx context.Context, query string, opts Options) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, ErrEmptyQuery
	}

	res := Result{Query: query, Policy: opts.Policy.String()}
	enriched := f.enricher != nil && !opts.SkipEnrich
	key := cache.Key{
		Query:      query,
		MaxResults: opts.MaxResults,
		Policy:     opts.Policy.String(),
		Sorted:     opts.SortByRelevance,
		Enriched:   enriched,
	}.String()

	if !opts.NoCache {
		if papers, ok := f.lookup(ctx, key); ok {
			f.log.Info().Str("query", query).Int("papers", len(papers)).Msg("returning cached results")
			res.Papers = clonePapers(papers)
			res.Cached = true
			return res, nil
		}
	}

	sess := agent.Session{ID: f.sessions.Next(), Query: query}
	res.SessionID = sess.ID
	res.SessionURL = f.client.SessionURL(sess.Query, sess.ID)
	log := f.log.With().Str("session", sess.ID).Logger()
	log.Info().Str("query", query).Str("policy", res.Policy).Msg("starting search")

	if err := f.client.Initiate(ctx, sess.Query, sess.ID); err != nil {
		return res, err
	}

	raw, err := f.poller.Poll(ctx, sess.ID, opts.Policy)
	if err != nil {
		return res, fmt.Errorf("polling session %s: %w", sess.ID, err)
	}

	papers, skipped := agent.Parse(raw, query, log)
	res.Skipped = skipped

	if opts.SortByRelevance {
		sort.SliceStable(papers, func(i, j int) bool { return papers[i].Score > papers[j].Score })
	}
	if opts.MaxResults > 0 && len(papers) > opts.MaxResults {
		papers = papers[:opts.MaxResults]
	}

	if enriched && len(papers) > 0 {
		papers = f.enricher.EnrichAll(ctx, papers)
	}
	res.Papers = papers

	if !opts.NoCache && len(papers) > 0 {
		f.store(ctx, key, papers)
	}

	log.Info().Int("papers", len(papers)).Int("skipped", skipped).Msg("search complete")
	return res, nil
}

// Enrich fills in abstract-page metadata for papers named directly by id.
// It returns papers unchanged when enrichment is disabled.
func (f *Fetcher) Enrich(ctx context.Context, papers []types.Paper) []types.Paper {
	if f.enricher == nil || len(papers) == 0 {
		return papers
	}
	return f.enricher.EnrichAll(ctx, papers)
}

// Download stores the selected artifacts for papers in the configured sink:
// a GCS bucket when one is set, otherwise the output directory.
func (f *Fetcher) Download(ctx context.Context, papers []types.Paper, opts download.Options) (map[string]types.DownloadOutcome, error) {
	sink, err := f.downloadSink(ctx)
	if err != nil {
		return nil, err
	}
	c := download.New(nil, sink, f.cfg.Download, f.log)
	return c.DownloadAll(ctx, papers, opts)
}

func (f *Fetcher) downloadSink(ctx context.Context) (download.Sink, error) {
	f.sinkOnce.Do(func() {
		if f.cfg.Download.GCSBucket == "" {
			f.sink = download.NewFileSink(f.cfg.Download.OutputDir)
			return
		}
		gcs, err := download.NewGCSSink(ctx, f.cfg.Download.GCSBucket, f.cfg.Download.OutputDir)
		if err != nil {
			f.sinkErr = err
			return
		}
		f.sink = gcs
		f.closers = append(f.closers, gcs.Close)
	})
	return f.sink, f.sinkErr
}

func (f *Fetcher) lookup(ctx context.Context, key string) ([]types.Paper, bool) {
	if papers, ok := f.memory.Get(key); ok {
		return papers, true
	}
	if f.shared == nil {
		return nil, false
	}

	entry, err := f.shared.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			f.log.Warn().Err(err).Msg("shared cache read failed")
		}
		return nil, false
	}
	f.memory.SetUntil(key, entry.Value, entry.ExpiresAt)
	return entry.Value, true
}

func (f *Fetcher) store(ctx context.Context, key string, papers []types.Paper) {
	f.memory.Set(key, clonePapers(papers))
	if f.shared == nil {
		return
	}
	if err := f.shared.Set(ctx, key, papers); err != nil {
		f.log.Warn().Err(err).Msg("shared cache write failed")
	}
}

func clonePapers(in []types.Paper) []types.Paper {
	out := make([]types.Paper, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}
