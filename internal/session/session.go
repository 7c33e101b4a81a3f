// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session generates correlation tokens that scope one search's
// poll sequence against the agent.
package session

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Generator produces session identifiers. Implementations are safe for
// concurrent use and never return the same identifier twice in a process.
type Generator interface {
	Next() string
}

// TimestampGenerator issues microsecond Unix timestamps, the format the
// agent's web client uses. Identifiers are strictly increasing: when two
// calls land in the same microsecond the later one is bumped forward.
type TimestampGenerator struct {
	last atomic.Int64
	now  func() time.Time
}

// NewTimestampGenerator returns a generator backed by the wall clock.
func NewTimestampGenerator() *TimestampGenerator {
	return &TimestampGenerator{now: time.Now}
}

// Next returns the next identifier.
func (g *TimestampGenerator) Next() string {
	for {
		candidate := g.now().UnixMicro()
		prev := g.last.Load()
		if candidate <= prev {
			candidate = prev + 1
		}
		if g.last.CompareAndSwap(prev, candidate) {
			return strconv.FormatInt(candidate, 10)
		}
	}
}

// UUIDGenerator issues time-ordered UUIDv7 identifiers.
type UUIDGenerator struct{}

// NewUUIDGenerator returns a UUIDv7 generator.
func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

// Next returns the next identifier. It falls back to a random UUIDv4 if the
// v7 clock source fails.
func (UUIDGenerator) Next() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// New returns the generator for a configured format name.
func New(format string) (Generator, error) {
	switch format {
	case "", "timestamp":
		return NewTimestampGenerator(), nil
	case "uuid":
		return NewUUIDGenerator(), nil
	default:
		return nil, fmt.Errorf("unknown session format %q (want timestamp or uuid)", format)
	}
}
