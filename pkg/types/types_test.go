// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPaper_CloneIsDeep(t *testing.T) {
	d := time.Date(2023, 3, 25, 0, 0, 0, 0, time.UTC)
	avail := true
	orig := Paper{
		ID:              "2303.14001",
		Authors:         []Author{{Name: "Ada"}},
		Categories:      []string{"cs.LG"},
		PublishedDate:   &d,
		SourceAvailable: &avail,
		Extra:           map[string]string{"source": "agent"},
	}

	c := orig.Clone()
	c.Authors[0].Affiliation = "MIT"
	c.Categories[0] = "cs.AI"
	*c.PublishedDate = d.AddDate(1, 0, 0)
	*c.SourceAvailable = false
	c.Extra["source"] = "changed"

	assert.Empty(t, orig.Authors[0].Affiliation)
	assert.Equal(t, "cs.LG", orig.Categories[0])
	assert.Equal(t, d, *orig.PublishedDate)
	assert.True(t, *orig.SourceAvailable)
	assert.Equal(t, "agent", orig.Extra["source"])
}

func TestPaper_CloneKeepsNils(t *testing.T) {
	c := Paper{ID: "x"}.Clone()
	assert.Nil(t, c.Authors)
	assert.Nil(t, c.PublishedDate)
	assert.Nil(t, c.Extra)
}

func TestPaper_AuthorNames(t *testing.T) {
	p := Paper{Authors: []Author{{Name: "Ada"}, {Name: "Grace", Affiliation: "Navy"}}}
	assert.Equal(t, []string{"Ada", "Grace"}, p.AuthorNames())
	assert.Empty(t, Paper{}.AuthorNames())
}

func TestDownloadOutcome(t *testing.T) {
	ok := DownloadOutcome{PaperID: "a", Artifacts: map[ArtifactKind]ArtifactResult{
		ArtifactPDF:      {Location: "/tmp/a.pdf"},
		ArtifactMetadata: {Location: "/tmp/a.yaml"},
	}}
	assert.False(t, ok.Failed())
	assert.Empty(t, ok.Errors())
	assert.True(t, ok.Artifacts[ArtifactPDF].OK())

	bad := DownloadOutcome{PaperID: "b", Artifacts: map[ArtifactKind]ArtifactResult{
		ArtifactSource:   {Error: "HTTP 404"},
		ArtifactPDF:      {Error: "invalid PDF"},
		ArtifactMetadata: {Location: "/tmp/b.yaml"},
	}}
	assert.True(t, bad.Failed())
	assert.Equal(t, []string{"pdf: invalid PDF", "source: HTTP 404"}, bad.Errors())
	assert.False(t, bad.Artifacts[ArtifactPDF].OK())
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 2*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 50, cfg.Poll.MaxPolls)
	assert.Equal(t, 120, cfg.Poll.ThoroughMaxPolls)
	assert.Equal(t, 10, cfg.Poll.ThoroughMinPolls)
	assert.Equal(t, 5, cfg.Download.MaxConcurrent)
	assert.True(t, cfg.Download.PDF)
	assert.False(t, cfg.Download.Source)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
}
