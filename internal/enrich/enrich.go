// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich adds abstract-page metadata to parsed papers. Enrichment
// is best effort: a paper whose page cannot be fetched or read is returned
// exactly as it came in.
package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paper-fetcher/internal/httputil"
	"github.com/pdiddy/paper-fetcher/pkg/types"
)

const maxPageBytes = 8 << 20

var enrichTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "paper_fetcher_enrich_total",
	Help: "Enrichment attempts by result (ok, failed)",
}, []string{"result"})

// Enricher fetches abstract pages and merges their details into papers.
type Enricher struct {
	Client    *http.Client
	Extractor Extractor
	cfg       types.EnrichConfig
	log       zerolog.Logger
}

// New returns an Enricher using the HTML extractor. A nil client gets one
// with cfg.Timeout.
func New(client *http.Client, cfg types.EnrichConfig, log zerolog.Logger) *Enricher {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = types.DefaultUserAgent
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.AbsBaseURL == "" {
		cfg.AbsBaseURL = types.DefaultAbsBaseURL
	}
	return &Enricher{
		Client:    client,
		Extractor: HTMLExtractor{},
		cfg:       cfg,
		log:       log.With().Str("component", "enrich").Logger(),
	}
}

// Enrich returns a copy of p with the abstract page's details merged in.
// On any failure it logs a warning and returns p unchanged.
func (e *Enricher) Enrich(ctx context.Context, p types.Paper) types.Paper {
	d, err := e.fetch(ctx, p.ID)
	if err != nil {
		enrichTotal.WithLabelValues("failed").Inc()
		e.log.Warn().Err(err).Str("paper", p.ID).Msg("enrichment failed, keeping record as parsed")
		return p
	}
	enrichTotal.WithLabelValues("ok").Inc()
	return Merge(p, d)
}

// EnrichAll enriches papers with bounded concurrency, keeping input order.
func (e *Enricher) EnrichAll(ctx context.Context, papers []types.Paper) []types.Paper {
	out := make([]types.Paper, len(papers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, p := range papers {
		g.Go(func() error {
			out[i] = e.Enrich(gctx, p)
			return nil
		})
	}
	g.Wait()
	return out
}

func (e *Enricher) fetch(ctx context.Context, id string) (Details, error) {
	if strings.TrimSpace(id) == "" {
		return Details{}, fmt.Errorf("paper has no id")
	}

	url := e.cfg.AbsBaseURL + id
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Details{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", e.cfg.UserAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := httputil.DoWithRetry(ctx, e.Client, req, 0)
	if err != nil {
		return Details{}, fmt.Errorf("fetching abstract page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Details{}, &httputil.StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	return e.Extractor.Extract(io.LimitReader(resp.Body, maxPageBytes))
}

// Merge returns a copy of p with the fields present in d filled in.
// Abstract-page metadata (categories, DOI, journal ref, comments, updated
// date, source availability) overrides; title, abstract, and publication
// date are only filled when the record lacks them. Affiliations attach to
// authors with matching names.
func Merge(p types.Paper, d Details) types.Paper {
	out := p.Clone()

	if len(d.Categories) > 0 {
		out.Categories = append([]string(nil), d.Categories...)
	}
	if d.PrimaryCategory != "" {
		out.PrimaryCategory = d.PrimaryCategory
	}
	if d.DOI != "" {
		out.DOI = d.DOI
	}
	if d.JournalRef != "" {
		out.JournalRef = d.JournalRef
	}
	if d.Comments != "" {
		out.Comments = d.Comments
	}
	if d.Updated != nil {
		t := *d.Updated
		out.UpdatedDate = &t
	}
	if d.SourceAvailable != nil {
		v := *d.SourceAvailable
		out.SourceAvailable = &v
	}

	if out.Title == "" {
		out.Title = d.Title
	}
	if out.Abstract == "" {
		out.Abstract = d.Abstract
	}
	if out.PublishedDate == nil && d.Published != nil {
		t := *d.Published
		out.PublishedDate = &t
	}

	if len(out.Authors) == 0 {
		out.Authors = append([]types.Author(nil), d.Authors...)
	} else {
		affiliations := make(map[string]string, len(d.Authors))
		for _, a := range d.Authors {
			if a.Affiliation != "" {
				affiliations[strings.ToLower(a.Name)] = a.Affiliation
			}
		}
		for i, a := range out.Authors {
			if a.Affiliation == "" {
				out.Authors[i].Affiliation = affiliations[strings.ToLower(a.Name)]
			}
		}
	}
	return out
}
