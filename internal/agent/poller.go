// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/paper-fetcher/pkg/types"
)

// Policy selects the poller's termination rule.
type Policy int

const (
	// PolicyStandard trusts the agent's finish flag once the count holds,
	// and also stops when the count holds long enough without it.
	PolicyStandard Policy = iota

	// PolicyThorough ignores the finish flag and requires a minimum number
	// of polls before a stable, non-empty count ends the loop.
	PolicyThorough
)

func (p Policy) String() string {
	switch p {
	case PolicyStandard:
		return "standard"
	case PolicyThorough:
		return "thorough"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps a mode name to a Policy. The empty string is standard.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard":
		return PolicyStandard, nil
	case "thorough":
		return PolicyThorough, nil
	default:
		return 0, fmt.Errorf("unknown poll mode %q (want standard or thorough)", s)
	}
}

// Snapshotter returns the current state of a search session.
type Snapshotter interface {
	Snapshot(ctx context.Context, sessionID string) (Snapshot, error)
}

// Poller repeatedly snapshots a session until its policy is satisfied.
// Requests are strictly sequential.
type Poller struct {
	source Snapshotter
	cfg    types.PollConfig
	log    zerolog.Logger

	// wait sleeps between polls; tests replace it.
	wait func(ctx context.Context, d time.Duration) error
}

// NewPoller returns a poller over source. Non-positive budgets and
// thresholds fall back to the defaults; a zero interval polls back to back.
func NewPoller(source Snapshotter, cfg types.PollConfig, log zerolog.Logger) *Poller {
	d := types.DefaultConfig().Poll
	if cfg.Interval < 0 {
		cfg.Interval = 0
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = d.MaxPolls
	}
	if cfg.ThoroughMaxPolls <= 0 {
		cfg.ThoroughMaxPolls = d.ThoroughMaxPolls
	}
	if cfg.ThoroughMinPolls <= 0 {
		cfg.ThoroughMinPolls = d.ThoroughMinPolls
	}
	if cfg.StablePolls <= 0 {
		cfg.StablePolls = d.StablePolls
	}
	if cfg.ImplicitStablePolls <= 0 {
		cfg.ImplicitStablePolls = d.ImplicitStablePolls
	}
	return &Poller{
		source: source,
		cfg:    cfg,
		log:    log.With().Str("component", "poller").Logger(),
		wait:   sleep,
	}
}

// Poll drives the session to completion under policy and returns the
// records of the terminating snapshot.
func (p *Poller) Poll(ctx context.Context, sessionID string, policy Policy) (RawRecords, error) {
	log := p.log.With().Str("session", sessionID).Str("policy", policy.String()).Logger()

	var (
		records RawRecords
		outcome string
		err     error
	)
	switch policy {
	case PolicyThorough:
		records, outcome, err = p.pollThorough(ctx, sessionID, log)
	default:
		records, outcome, err = p.pollStandard(ctx, sessionID, log)
	}
	if err != nil {
		pollSessionsTotal.WithLabelValues(policy.String(), "error").Inc()
		return nil, err
	}
	pollSessionsTotal.WithLabelValues(policy.String(), outcome).Inc()
	log.Info().Int("records", len(records)).Str("outcome", outcome).Msg("polling finished")
	return records, nil
}

func (p *Poller) pollStandard(ctx context.Context, sessionID string, log zerolog.Logger) (RawRecords, string, error) {
	var (
		st       stability
		lastSeen RawRecords
		lastErr  error
	)

	for attempt := 1; attempt <= p.cfg.MaxPolls; attempt++ {
		if attempt > 1 {
			if err := p.wait(ctx, p.cfg.Interval); err != nil {
				return nil, "", err
			}
		}

		snap, err := p.snapshot(ctx, sessionID, PolicyStandard, attempt, log)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			lastErr = err
			continue
		}

		count := snap.Count()
		run := st.observe(count)
		if count > 0 {
			lastSeen = snap.Records
		}
		log.Debug().Int("attempt", attempt).Int("count", count).Int("stable", run).Bool("finish", snap.Finished).Msg("poll")

		switch {
		case count == 0 && snap.Finished:
			return RawRecords{}, "finished_empty", nil
		case count > 0 && snap.Finished && run >= p.cfg.StablePolls:
			return snap.Records, "finished", nil
		case count > 0 && run >= p.cfg.ImplicitStablePolls:
			return snap.Records, "stable", nil
		}
	}

	if len(lastSeen) > 0 {
		log.Warn().Int("polls", p.cfg.MaxPolls).Int("records", len(lastSeen)).Msg("poll budget exhausted, returning partial results")
		return lastSeen, "budget_partial", nil
	}
	if lastErr != nil {
		return nil, "", fmt.Errorf("%w after %d polls: %w", ErrPollTimeout, p.cfg.MaxPolls, lastErr)
	}
	return nil, "", fmt.Errorf("%w after %d polls", ErrPollTimeout, p.cfg.MaxPolls)
}

func (p *Poller) pollThorough(ctx context.Context, sessionID string, log zerolog.Logger) (RawRecords, string, error) {
	var (
		st       stability
		lastSeen RawRecords
	)

	for attempt := 1; attempt <= p.cfg.ThoroughMaxPolls; attempt++ {
		if attempt > 1 {
			if err := p.wait(ctx, p.cfg.Interval); err != nil {
				return nil, "", err
			}
		}

		snap, err := p.snapshot(ctx, sessionID, PolicyThorough, attempt, log)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			continue
		}

		count := snap.Count()
		run := st.observe(count)
		lastSeen = snap.Records
		log.Debug().Int("attempt", attempt).Int("count", count).Int("stable", run).Msg("poll")

		if attempt >= p.cfg.ThoroughMinPolls && count > 0 && run >= p.cfg.StablePolls {
			return snap.Records, "stable", nil
		}
	}

	log.Warn().Int("polls", p.cfg.ThoroughMaxPolls).Msg("poll budget exhausted, making final request")
	if err := p.wait(ctx, p.cfg.Interval); err != nil {
		return nil, "", err
	}
	snap, err := p.snapshot(ctx, sessionID, PolicyThorough, p.cfg.ThoroughMaxPolls+1, log)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nonNil(lastSeen), "budget_last_seen", nil
	}
	return nonNil(snap.Records), "budget_final", nil
}

func (p *Poller) snapshot(ctx context.Context, sessionID string, policy Policy, attempt int, log zerolog.Logger) (Snapshot, error) {
	snap, err := p.source.Snapshot(ctx, sessionID)
	if err != nil {
		pollsTotal.WithLabelValues(policy.String(), "error").Inc()
		if ctx.Err() == nil {
			log.Warn().Err(err).Int("attempt", attempt).Msg("poll failed")
		}
		return Snapshot{}, err
	}
	pollsTotal.WithLabelValues(policy.String(), "ok").Inc()
	return snap, nil
}

// stability tracks how many consecutive successful polls returned the same
// non-zero count. The poll that starts a run counts as one.
type stability struct {
	last int
	run  int
}

func (s *stability) observe(count int) int {
	switch {
	case count == 0:
		s.last, s.run = 0, 0
	case count == s.last:
		s.run++
	default:
		s.last, s.run = count, 1
	}
	return s.run
}

func nonNil(r RawRecords) RawRecords {
	if r == nil {
		return RawRecords{}
	}
	return r
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
