// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/pdiddy/paper-fetcher/pkg/types"
)

// Details holds what an abstract page offers. Zero values mean the page
// did not carry the field.
type Details struct {
	Title           string
	Authors         []types.Author
	Abstract        string
	Published       *time.Time
	Updated         *time.Time
	PrimaryCategory string
	Categories      []string
	DOI             string
	JournalRef      string
	Comments        string
	SourceAvailable *bool
}

// Extractor pulls Details out of an abstract page.
type Extractor interface {
	Extract(r io.Reader) (Details, error)
}

// HTMLExtractor reads arXiv abstract pages. Missing sections yield empty
// fields; only an unreadable document is an error.
type HTMLExtractor struct{}

var (
	submittedRe   = regexp.MustCompile(`Submitted on (\d{1,2} \w+ \d{4})`)
	revisedRe     = regexp.MustCompile(`last revised (\d{1,2} \w+ \d{4})`)
	affiliationRe = regexp.MustCompile(`^\s*\(([^)]*)\)`)
)

// Extract parses the page.
func (HTMLExtractor) Extract(r io.Reader) (Details, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return Details{}, fmt.Errorf("parsing abstract page: %w", err)
	}

	var d Details

	if n := findFirst(doc, func(n *html.Node) bool { return isElement(n, "h1") && hasClass(n, "title") }); n != nil {
		d.Title = stripLabel(textOf(n), "Title:")
	}
	if n := findFirst(doc, func(n *html.Node) bool { return isElement(n, "div") && hasClass(n, "authors") }); n != nil {
		d.Authors = extractAuthors(n)
	}
	if n := findFirst(doc, func(n *html.Node) bool { return isElement(n, "blockquote") && hasClass(n, "abstract") }); n != nil {
		d.Abstract = stripLabel(textOf(n), "Abstract:")
	}
	if n := findFirst(doc, func(n *html.Node) bool { return isElement(n, "div") && hasClass(n, "dateline") }); n != nil {
		line := textOf(n)
		d.Published = matchDate(submittedRe, line)
		d.Updated = matchDate(revisedRe, line)
	}

	d.PrimaryCategory, d.Categories = extractSubjects(doc)

	if n := findFirst(doc, func(n *html.Node) bool {
		return isElement(n, "a") && strings.Contains(attr(n, "href"), "doi.org/")
	}); n != nil {
		href := attr(n, "href")
		d.DOI = strings.TrimSpace(href[strings.LastIndex(href, "doi.org/")+len("doi.org/"):])
	}

	d.JournalRef = labelledCell(doc, "Journal ref:")
	d.Comments = labelledCell(doc, "Comments:")

	hasSource := findFirst(doc, func(n *html.Node) bool {
		if !isElement(n, "a") {
			return false
		}
		href := attr(n, "href")
		return strings.Contains(href, "/e-print/") || strings.Contains(href, "/src/")
	}) != nil
	d.SourceAvailable = &hasSource

	return d, nil
}

// extractAuthors reads each author link and an optional parenthesized
// affiliation in the text right after it.
func extractAuthors(n *html.Node) []types.Author {
	var authors []types.Author
	for _, a := range findAll(n, func(n *html.Node) bool { return isElement(n, "a") }) {
		name := collapse(textOf(a))
		if name == "" {
			continue
		}
		author := types.Author{Name: name}
		if next := a.NextSibling; next != nil && next.Type == html.TextNode {
			if m := affiliationRe.FindStringSubmatch(next.Data); m != nil {
				author.Affiliation = strings.TrimSpace(m[1])
			}
		}
		authors = append(authors, author)
	}
	return authors
}

// extractSubjects returns the primary subject and every listed subject,
// first occurrence order.
func extractSubjects(doc *html.Node) (string, []string) {
	var primary string
	var cats []string
	seen := make(map[string]bool)
	add := func(s string) {
		s = collapse(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		cats = append(cats, s)
	}

	if n := findFirst(doc, func(n *html.Node) bool { return hasClass(n, "primary-subject") }); n != nil {
		primary = collapse(textOf(n))
		add(primary)
	}
	if cell := findFirst(doc, func(n *html.Node) bool { return isElement(n, "td") && hasClass(n, "subjects") }); cell != nil {
		for _, s := range strings.Split(textOf(cell), ";") {
			add(s)
		}
	}
	for _, a := range findAll(doc, func(n *html.Node) bool { return isElement(n, "a") && hasClass(n, "taxon") }) {
		add(textOf(a))
	}
	return primary, cats
}

// labelledCell finds the td.tablecell whose text is label and returns the
// text of the next element sibling.
func labelledCell(doc *html.Node, label string) string {
	cell := findFirst(doc, func(n *html.Node) bool {
		return isElement(n, "td") && hasClass(n, "tablecell") && collapse(textOf(n)) == label
	})
	if cell == nil {
		return ""
	}
	for s := cell.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return collapse(textOf(s))
		}
	}
	return ""
}

func matchDate(re *regexp.Regexp, s string) *time.Time {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	t, err := time.Parse("2 Jan 2006", m[1])
	if err != nil {
		return nil
	}
	return &t
}

func stripLabel(s, label string) string {
	s = collapse(s)
	return strings.TrimSpace(strings.TrimPrefix(s, label))
}

// --- DOM helpers ---

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if match(n) {
			out = append(out, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
