// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "sort"

// ArtifactKind names a downloadable file associated with a paper.
type ArtifactKind string

const (
	ArtifactPDF      ArtifactKind = "pdf"
	ArtifactSource   ArtifactKind = "source"
	ArtifactMetadata ArtifactKind = "metadata"
)

// ArtifactResult is the outcome of storing one artifact: either a location
// or an error description, never both.
type ArtifactResult struct {
	// Location is the stored path or object URL.
	Location string `json:"location,omitempty" yaml:"location,omitempty"`

	// Pages is the PDF page count when validation ran.
	Pages int `json:"pages,omitempty" yaml:"pages,omitempty"`

	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// OK reports whether the artifact was stored.
func (r ArtifactResult) OK() bool {
	return r.Error == "" && r.Location != ""
}

// DownloadOutcome holds the per-artifact results for one paper. Exactly one
// outcome exists per requested paper.
type DownloadOutcome struct {
	PaperID   string                          `json:"paper_id" yaml:"paper_id"`
	Artifacts map[ArtifactKind]ArtifactResult `json:"artifacts" yaml:"artifacts"`
}

// Failed reports whether any artifact of the paper failed.
func (o DownloadOutcome) Failed() bool {
	for _, r := range o.Artifacts {
		if r.Error != "" {
			return true
		}
	}
	return false
}

// Errors returns "kind: message" strings for the failed artifacts, sorted
// by kind.
func (o DownloadOutcome) Errors() []string {
	var errs []string
	for kind, r := range o.Artifacts {
		if r.Error != "" {
			errs = append(errs, string(kind)+": "+r.Error)
		}
	}
	sort.Strings(errs)
	return errs
}
