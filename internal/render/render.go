// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package render formats search results, download outcomes, and history
// for the terminal or for machine consumption.
package render

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-fetcher/internal/index"
	"github.com/pdiddy/paper-fetcher/pkg/types"
)

// Format names an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name; empty means table.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatTable, nil
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown format %q (want table, json, or yaml)", s)
	}
}

const (
	maxTitleWidth   = 60
	maxAuthorsWidth = 30
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// Table writes papers as a bordered table: rank, id, score, date, title,
// and authors.
func Table(w io.Writer, papers []types.Paper) error {
	t := newTable("#", "ID", "SCORE", "PUBLISHED", "TITLE", "AUTHORS")
	for i, p := range papers {
		t.Row(
			strconv.Itoa(i+1),
			p.ID,
			strconv.FormatFloat(p.Score, 'f', 3, 64),
			formatDate(p.PublishedDate),
			truncate(p.Title, maxTitleWidth),
			truncate(strings.Join(p.AuthorNames(), ", "), maxAuthorsWidth),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// OutcomesTable writes one row per paper with the status of each artifact
// kind, sorted by paper id.
func OutcomesTable(w io.Writer, outcomes map[string]types.DownloadOutcome) error {
	ids := make([]string, 0, len(outcomes))
	for id := range outcomes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	t := newTable("ID", "PDF", "SOURCE", "METADATA")
	for _, id := range ids {
		o := outcomes[id]
		t.Row(id,
			artifactCell(o, types.ArtifactPDF),
			artifactCell(o, types.ArtifactSource),
			artifactCell(o, types.ArtifactMetadata),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// HistoryTable writes recorded searches, newest first as given.
func HistoryTable(w io.Writer, searches []index.SearchRecord) error {
	t := newTable("ID", "WHEN", "POLICY", "RESULTS", "SKIPPED", "QUERY")
	for _, s := range searches {
		t.Row(
			strconv.FormatInt(s.ID, 10),
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
			s.Policy,
			strconv.Itoa(s.Results),
			strconv.Itoa(s.Skipped),
			truncate(s.Query, maxTitleWidth),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// JSON writes v as indented JSON.
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// YAML writes v as a YAML document.
func YAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func artifactCell(o types.DownloadOutcome, kind types.ArtifactKind) string {
	r, ok := o.Artifacts[kind]
	switch {
	case !ok:
		return "-"
	case r.Error != "":
		return "failed: " + truncate(r.Error, 40)
	case r.Pages > 0:
		return fmt.Sprintf("ok (%d pages)", r.Pages)
	default:
		return "ok"
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
