// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-fetcher/pkg/types"
)

// Artifact URL templates. Declared as vars so tests can redirect artifact
// fetches to an httptest server.
var (
	PDFURLTemplate      = "https://arxiv.org/pdf/%s.pdf"
	AbstractURLTemplate = "https://arxiv.org/abs/%s"
	SourceURLTemplate   = "https://arxiv.org/e-print/%s"
)

var errMissingEntryID = errors.New("missing entry_id")

// rawPaper is the agent's per-record shape. Score and publish_time arrive
// as numbers or strings depending on the agent build.
type rawPaper struct {
	EntryID      string          `json:"entry_id"`
	Title        string          `json:"title"`
	Authors      []string        `json:"authors"`
	Abstract     string          `json:"abstract"`
	PublishTime  looseString     `json:"publish_time"`
	Score        json.Number     `json:"score"`
	Source       string          `json:"source"`
	SelectReason string          `json:"select_reason"`
	BibResult    string          `json:"bib_result"`
	JSONResult   json.RawMessage `json:"json_result"`
}

// looseString accepts a JSON string, number, or null.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("want string or number, got %s", data)
		}
		*s = looseString(n.String())
	}
	return nil
}

// Parse converts raw records into papers, preserving input order. Entries
// that fail to decode or lack an id are logged and skipped; the second
// return value is how many were skipped.
func Parse(raw RawRecords, query string, log zerolog.Logger) ([]types.Paper, int) {
	fetchedAt := time.Now().UTC()
	papers := make([]types.Paper, 0, len(raw))
	skipped := 0

	for _, entry := range raw {
		p, err := parseEntry(entry.Payload, query, fetchedAt)
		if err != nil {
			skipped++
			recordsSkippedTotal.Inc()
			log.Warn().Err(err).Str("key", entry.Key).Msg("skipping malformed record")
			continue
		}
		papers = append(papers, p)
	}

	if skipped > 0 {
		log.Info().Int("parsed", len(papers)).Int("skipped", skipped).Msg("parsed records")
	}
	return papers, skipped
}

// PaperForID returns a record holding only id and the artifact URLs derived
// from it.
func PaperForID(id string) types.Paper {
	return types.Paper{
		ID:          id,
		PDFURL:      fmt.Sprintf(PDFURLTemplate, id),
		AbstractURL: fmt.Sprintf(AbstractURLTemplate, id),
		SourceURL:   fmt.Sprintf(SourceURLTemplate, id),
	}
}

func parseEntry(payload json.RawMessage, query string, fetchedAt time.Time) (types.Paper, error) {
	var rp rawPaper
	if err := json.Unmarshal(payload, &rp); err != nil {
		return types.Paper{}, fmt.Errorf("decoding record: %w", err)
	}

	id := strings.TrimSpace(rp.EntryID)
	if id == "" {
		return types.Paper{}, errMissingEntryID
	}

	p := PaperForID(id)
	p.Title = strings.TrimSpace(rp.Title)
	p.Abstract = strings.TrimSpace(rp.Abstract)
	p.PublishedDate = ParseDate(string(rp.PublishTime))
	p.FetchedAt = fetchedAt

	for _, name := range rp.Authors {
		if name = strings.TrimSpace(name); name != "" {
			p.Authors = append(p.Authors, types.Author{Name: name})
		}
	}

	if rp.Score != "" {
		score, err := rp.Score.Float64()
		if err != nil {
			return types.Paper{}, fmt.Errorf("score %q: %w", rp.Score, err)
		}
		p.Score = score
	}

	extra := map[string]string{
		"source":        rp.Source,
		"select_reason": rp.SelectReason,
		"user_query":    query,
		"bib_result":    rp.BibResult,
		"json_result":   rawText(rp.JSONResult),
	}
	for k, v := range extra {
		if v == "" {
			continue
		}
		if p.Extra == nil {
			p.Extra = make(map[string]string)
		}
		p.Extra[k] = v
	}
	return p, nil
}

// rawText returns a JSON string's contents, or the raw JSON text of any
// other value. Null yields "".
func rawText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return string(raw)
}

// ParseDate parses an 8-digit YYYYMMDD date. Anything else, including
// impossible calendar dates, returns nil.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if len(s) != 8 {
		return nil
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil
		}
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return nil
	}
	return &t
}
