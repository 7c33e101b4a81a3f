// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package session

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampGenerator_FrozenClockStillIncreases(t *testing.T) {
	frozen := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	g := &TimestampGenerator{now: func() time.Time { return frozen }}

	first, err := strconv.ParseInt(g.Next(), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, frozen.UnixMicro(), first)

	second, err := strconv.ParseInt(g.Next(), 10, 64)
	require.NoError(t, err)
	assert.Equal(t, first+1, second)
}

func TestTimestampGenerator_ConcurrentUnique(t *testing.T) {
	g := NewTimestampGenerator()

	const workers, perWorker = 8, 200
	ids := make(chan string, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				ids <- g.Next()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestUUIDGenerator(t *testing.T) {
	g := NewUUIDGenerator()
	a, b := g.Next(), g.Next()

	parsed, err := uuid.Parse(a)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())
	assert.NotEqual(t, a, b)
}

func TestNew(t *testing.T) {
	g, err := New("")
	require.NoError(t, err)
	assert.IsType(t, &TimestampGenerator{}, g)

	g, err = New("uuid")
	require.NoError(t, err)
	assert.IsType(t, &UUIDGenerator{}, g)

	_, err = New("sequential")
	assert.Error(t, err)
}
