// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-fetcher pipeline:
// paper records produced by the agent search, download outcomes, and the
// per-stage configuration.
package types

import "time"

// Author is a paper author in source order.
type Author struct {
	Name string `json:"name" yaml:"name"`

	// Affiliation is filled in by enrichment when the abstract page lists one.
	Affiliation string `json:"affiliation,omitempty" yaml:"affiliation,omitempty"`
}

// Paper holds the metadata and artifact URLs for one paper returned by the
// agent. It is built once by the record parser and only ever gains fields
// through enrichment.
type Paper struct {
	// ID is the external arXiv identifier (e.g. "2301.07041"). It is stable
	// across polls for the same underlying paper.
	ID string `json:"id" yaml:"id"`

	Title string `json:"title" yaml:"title"`

	// Authors lists the paper authors in source order.
	Authors []Author `json:"authors" yaml:"authors"`

	Abstract string `json:"abstract" yaml:"abstract"`

	// PublishedDate is nil when the agent sent no date or an unparseable one.
	PublishedDate *time.Time `json:"published_date,omitempty" yaml:"published_date,omitempty"`

	// UpdatedDate is the last-revised date from the abstract page.
	UpdatedDate *time.Time `json:"updated_date,omitempty" yaml:"updated_date,omitempty"`

	// Score is the agent's relevance score.
	Score float64 `json:"score" yaml:"score"`

	Categories      []string `json:"categories,omitempty" yaml:"categories,omitempty"`
	PrimaryCategory string   `json:"primary_category,omitempty" yaml:"primary_category,omitempty"`
	DOI             string   `json:"doi,omitempty" yaml:"doi,omitempty"`
	JournalRef      string   `json:"journal_ref,omitempty" yaml:"journal_ref,omitempty"`
	Comments        string   `json:"comments,omitempty" yaml:"comments,omitempty"`

	// SourceAvailable reports whether the abstract page links a source
	// archive. Nil means enrichment did not run or could not tell.
	SourceAvailable *bool `json:"source_available,omitempty" yaml:"source_available,omitempty"`

	PDFURL      string `json:"pdf_url" yaml:"pdf_url"`
	AbstractURL string `json:"abstract_url" yaml:"abstract_url"`
	SourceURL   string `json:"source_url" yaml:"source_url"`

	// Extra carries auxiliary agent fields (source, select_reason,
	// user_query, bib_result, json_result).
	Extra map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`

	// FetchedAt is when the record was parsed from the agent response.
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// AuthorNames returns the author names in source order.
func (p Paper) AuthorNames() []string {
	names := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		names = append(names, a.Name)
	}
	return names
}

// Clone returns a deep copy of p so enrichment can add fields without
// touching the caller's record.
func (p Paper) Clone() Paper {
	c := p
	if p.Authors != nil {
		c.Authors = append([]Author(nil), p.Authors...)
	}
	if p.Categories != nil {
		c.Categories = append([]string(nil), p.Categories...)
	}
	if p.PublishedDate != nil {
		d := *p.PublishedDate
		c.PublishedDate = &d
	}
	if p.UpdatedDate != nil {
		d := *p.UpdatedDate
		c.UpdatedDate = &d
	}
	if p.SourceAvailable != nil {
		v := *p.SourceAvailable
		c.SourceAvailable = &v
	}
	if p.Extra != nil {
		c.Extra = make(map[string]string, len(p.Extra))
		for k, v := range p.Extra {
			c.Extra[k] = v
		}
	}
	return c
}
