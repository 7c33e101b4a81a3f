// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download fetches paper artifacts concurrently. Every artifact
// fetch passes an admission gate of N slots and a throttle of N request
// starts per second; a paper's failures are recorded in its outcome and
// never affect other papers.
package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/pdiddy/paper-fetcher/pkg/types"
)

const defaultMaxConcurrent = 5

var (
	artifactsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paper_fetcher_artifacts_total",
		Help: "Artifacts processed by kind and result (ok, failed, skipped)",
	}, []string{"kind", "result"})

	fetchesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paper_fetcher_artifact_fetches_in_flight",
		Help: "Artifact fetches currently holding an admission slot",
	})
)

// ErrNoSink is returned when a coordinator has nowhere to store artifacts.
var ErrNoSink = errors.New("download: no sink configured")

// Options selects what to fetch for each paper.
type Options struct {
	PDF    bool
	Source bool

	// MaxConcurrent bounds in-flight fetches and request starts per
	// second. Zero means 5.
	MaxConcurrent int

	// ValidatePDF counts pages before storing a PDF; a document pdfcpu
	// cannot read is reported as a failed artifact.
	ValidatePDF bool
}

// OptionsFromConfig maps the download config section onto Options.
func OptionsFromConfig(cfg types.DownloadConfig) Options {
	return Options{
		PDF:           cfg.PDF,
		Source:        cfg.Source,
		MaxConcurrent: cfg.MaxConcurrent,
		ValidatePDF:   cfg.ValidatePDF,
	}
}

// Coordinator downloads artifacts into a Sink.
type Coordinator struct {
	Client    *http.Client
	Sink      Sink
	UserAgent string
	log       zerolog.Logger
}

// New returns a coordinator. A nil client gets one with cfg.Timeout and
// the default redirect policy.
func New(client *http.Client, sink Sink, cfg types.DownloadConfig, log zerolog.Logger) *Coordinator {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = types.DefaultUserAgent
	}
	return &Coordinator{
		Client:    client,
		Sink:      sink,
		UserAgent: ua,
		log:       log.With().Str("component", "download").Logger(),
	}
}

// limits is the shared admission gate and throttle for one DownloadAll.
type limits struct {
	gate    *semaphore.Weighted
	limiter *rate.Limiter
}

// DownloadAll fetches the selected artifacts for every paper and returns
// one outcome per distinct paper id. It returns an error only when the
// call itself cannot run: no sink, a negative concurrency, a paper without
// an id, or a context already cancelled.
func (c *Coordinator) DownloadAll(ctx context.Context, papers []types.Paper, opts Options) (map[string]types.DownloadOutcome, error) {
	if c.Sink == nil {
		return nil, ErrNoSink
	}
	if opts.MaxConcurrent < 0 {
		return nil, fmt.Errorf("download: max concurrent must not be negative, got %d", opts.MaxConcurrent)
	}
	n := opts.MaxConcurrent
	if n == 0 {
		n = defaultMaxConcurrent
	}

	var unique []types.Paper
	seen := make(map[string]bool, len(papers))
	for i, p := range papers {
		if p.ID == "" {
			return nil, fmt.Errorf("download: paper %d has no id", i)
		}
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		unique = append(unique, p)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lim := limits{
		gate:    semaphore.NewWeighted(int64(n)),
		limiter: rate.NewLimiter(rate.Limit(n), 1),
	}

	results := make([]types.DownloadOutcome, len(unique))
	var g errgroup.Group
	for i, p := range unique {
		g.Go(func() error {
			results[i] = c.downloadPaper(ctx, p, opts, lim)
			return nil
		})
	}
	g.Wait()

	outcomes := make(map[string]types.DownloadOutcome, len(results))
	failed := 0
	for _, o := range results {
		outcomes[o.PaperID] = o
		if o.Failed() {
			failed++
		}
	}
	c.log.Info().Int("papers", len(outcomes)).Int("failed", failed).Msg("downloads finished")
	return outcomes, nil
}

func (c *Coordinator) downloadPaper(ctx context.Context, p types.Paper, opts Options, lim limits) types.DownloadOutcome {
	out := types.DownloadOutcome{PaperID: p.ID, Artifacts: make(map[types.ArtifactKind]types.ArtifactResult)}
	slug := Slug(p.ID)

	if err := c.Sink.Prepare(ctx, p.ID); err != nil {
		msg := err.Error()
		if opts.PDF {
			out.Artifacts[types.ArtifactPDF] = types.ArtifactResult{Error: msg}
		}
		if opts.Source {
			out.Artifacts[types.ArtifactSource] = types.ArtifactResult{Error: msg}
		}
		out.Artifacts[types.ArtifactMetadata] = types.ArtifactResult{Error: msg}
		c.log.Warn().Err(err).Str("paper", p.ID).Msg("preparing paper location failed")
		return out
	}

	if opts.PDF {
		out.Artifacts[types.ArtifactPDF] = c.fetch(ctx, p.ID, types.ArtifactPDF, p.PDFURL, slug+".pdf", "application/pdf", opts.ValidatePDF, lim)
	}

	if opts.Source {
		if p.SourceAvailable != nil && !*p.SourceAvailable {
			artifactsTotal.WithLabelValues(string(types.ArtifactSource), "skipped").Inc()
			c.log.Debug().Str("paper", p.ID).Msg("no source archive listed, skipping")
		} else {
			out.Artifacts[types.ArtifactSource] = c.fetch(ctx, p.ID, types.ArtifactSource, p.SourceURL, slug+".tar.gz", "*/*", false, lim)
		}
	}

	out.Artifacts[types.ArtifactMetadata] = c.writeMetadata(ctx, p, slug+"_metadata.yaml")
	return out
}

// fetch downloads one artifact through the gate and throttle and stores it.
func (c *Coordinator) fetch(ctx context.Context, paperID string, kind types.ArtifactKind, url, name, accept string, validate bool, lim limits) types.ArtifactResult {
	res, err := c.fetchOnce(ctx, paperID, url, name, accept, validate, lim)
	if err != nil {
		artifactsTotal.WithLabelValues(string(kind), "failed").Inc()
		c.log.Warn().Err(err).Str("paper", paperID).Str("kind", string(kind)).Msg("artifact failed")
		return types.ArtifactResult{Error: err.Error()}
	}
	artifactsTotal.WithLabelValues(string(kind), "ok").Inc()
	c.log.Debug().Str("paper", paperID).Str("kind", string(kind)).Str("location", res.Location).Msg("artifact stored")
	return res
}

func (c *Coordinator) fetchOnce(ctx context.Context, paperID, url, name, accept string, validate bool, lim limits) (types.ArtifactResult, error) {
	if url == "" {
		return types.ArtifactResult{}, fmt.Errorf("no URL")
	}

	if err := lim.gate.Acquire(ctx, 1); err != nil {
		return types.ArtifactResult{}, fmt.Errorf("waiting for download slot: %w", err)
	}
	defer lim.gate.Release(1)
	fetchesInFlight.Inc()
	defer fetchesInFlight.Dec()

	if err := lim.limiter.Wait(ctx); err != nil {
		return types.ArtifactResult{}, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.ArtifactResult{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.Client.Do(req)
	if err != nil {
		return types.ArtifactResult{}, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.ArtifactResult{}, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	if !validate {
		loc, err := c.Sink.Write(ctx, paperID, name, resp.Body)
		if err != nil {
			return types.ArtifactResult{}, err
		}
		return types.ArtifactResult{Location: loc}, nil
	}

	spool, pages, err := spoolAndCount(resp.Body)
	if spool != nil {
		defer func() {
			spool.Close()
			os.Remove(spool.Name())
		}()
	}
	if err != nil {
		return types.ArtifactResult{}, err
	}
	loc, err := c.Sink.Write(ctx, paperID, name, spool)
	if err != nil {
		return types.ArtifactResult{}, err
	}
	return types.ArtifactResult{Location: loc, Pages: pages}, nil
}

// spoolAndCount copies r to a temp file and counts its PDF pages. The
// returned file is rewound; the caller closes and removes it.
func spoolAndCount(r io.Reader) (*os.File, int, error) {
	f, err := os.CreateTemp("", "paper-fetcher-*.pdf")
	if err != nil {
		return nil, 0, fmt.Errorf("creating spool file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		return f, 0, fmt.Errorf("writing spool file: %w", err)
	}
	if err := f.Sync(); err != nil {
		return f, 0, fmt.Errorf("syncing spool file: %w", err)
	}

	pages, err := api.PageCountFile(f.Name())
	if err != nil {
		return f, 0, fmt.Errorf("invalid PDF: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return f, 0, fmt.Errorf("rewinding spool file: %w", err)
	}
	return f, pages, nil
}

// writeMetadata stores the paper record as YAML. It runs for every paper,
// whatever happened to the other artifacts.
func (c *Coordinator) writeMetadata(ctx context.Context, p types.Paper, name string) types.ArtifactResult {
	data, err := yaml.Marshal(p)
	if err != nil {
		artifactsTotal.WithLabelValues(string(types.ArtifactMetadata), "failed").Inc()
		return types.ArtifactResult{Error: fmt.Sprintf("marshaling metadata: %v", err)}
	}
	loc, err := c.Sink.Write(ctx, p.ID, name, bytes.NewReader(data))
	if err != nil {
		artifactsTotal.WithLabelValues(string(types.ArtifactMetadata), "failed").Inc()
		c.log.Warn().Err(err).Str("paper", p.ID).Msg("writing metadata failed")
		return types.ArtifactResult{Error: err.Error()}
	}
	artifactsTotal.WithLabelValues(string(types.ArtifactMetadata), "ok").Inc()
	return types.ArtifactResult{Location: loc}
}
