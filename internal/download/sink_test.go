// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2301.07041", "2301.07041"},
		{"hep-th/9901001", "hep-th_9901001"},
		{"hep-th-9901001", "hep-th-9901001"},
		{"10.1000:x", "10.1000+x"},
		{`a\b`, "a=b"},
		{"  ", "unknown"},
		{"..", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.in))
		})
	}
}

func TestFileSink_PrepareAndWrite(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink(dir)

	require.NoError(t, s.Prepare(context.Background(), "hep-th/9901001"))
	loc, err := s.Write(context.Background(), "hep-th/9901001", "a.txt", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "hep-th_9901001", "a.txt"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestFileSink_FailedCopyLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink(dir)
	require.NoError(t, s.Prepare(context.Background(), "p"))

	_, err := s.Write(context.Background(), "p", "a.pdf", failingReader{})
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(dir, "p"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "runs/7/2301.1/2301.1.pdf", objectName("runs/7", "2301.1", "2301.1.pdf"))
	assert.Equal(t, "a_b/x.yaml", objectName("", "a/b", "x.yaml"))
}

func TestFileSink_OldAndNewStyleIDsStaySeparate(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink(dir)
	ctx := context.Background()

	ids := []string{"hep-th/9901001", "hep-th-9901001", "hep-th:9901001"}
	locs := map[string]bool{}
	for _, id := range ids {
		require.NoError(t, s.Prepare(ctx, id))
		loc, err := s.Write(ctx, id, "meta.yaml", strings.NewReader(id))
		require.NoError(t, err)
		locs[filepath.Dir(loc)] = true
	}
	assert.Len(t, locs, len(ids))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(ids))
}
