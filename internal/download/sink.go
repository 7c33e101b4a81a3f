// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Sink stores the artifacts of one paper in a location no other paper
// shares.
type Sink interface {
	// Prepare readies the paper's location. It is called once per paper
	// before any Write.
	Prepare(ctx context.Context, paperID string) error

	// Write stores r under name and returns where it went.
	Write(ctx context.Context, paperID, name string, r io.Reader) (string, error)
}

// slugReplacer maps each path-hostile character to its own replacement.
// arXiv ids never contain "_", "+" or "=", so distinct ids keep distinct
// slugs.
var slugReplacer = strings.NewReplacer("/", "_", ":", "+", "\\", "=")

// Slug turns a paper id into a path segment. Old-style arXiv ids carry a
// slash ("hep-th/9901001" becomes "hep-th_9901001").
func Slug(paperID string) string {
	s := slugReplacer.Replace(strings.TrimSpace(paperID))
	if s == "" || s == "." || s == ".." {
		return "unknown"
	}
	return s
}

// FileSink writes artifacts under Dir/<slug>/.
type FileSink struct {
	Dir string
}

// NewFileSink returns a sink rooted at dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{Dir: dir}
}

// Prepare creates the paper's directory.
func (s *FileSink) Prepare(_ context.Context, paperID string) error {
	dir := filepath.Join(s.Dir, Slug(paperID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

// Write copies r to a temp file beside the destination and renames it into
// place, so a failed transfer never leaves a partial artifact.
func (s *FileSink) Write(_ context.Context, paperID, name string, r io.Reader) (string, error) {
	destPath := filepath.Join(s.Dir, Slug(paperID), name)

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, r)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("renaming temp file: %w", err)
	}
	return destPath, nil
}
