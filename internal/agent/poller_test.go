// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/paper-fetcher/pkg/types"
)

// --- scripted snapshotter ---

type step struct {
	count  int
	finish bool
	err    error
}

type scriptedSource struct {
	steps []step
	calls int
}

// Snapshot replays the script; past its end the last step repeats.
func (s *scriptedSource) Snapshot(ctx context.Context, _ string) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	st := s.steps[i]
	if st.err != nil {
		return Snapshot{}, st.err
	}
	return Snapshot{Records: makeRecords(st.count), Finished: st.finish}, nil
}

func makeRecords(n int) RawRecords {
	recs := make(RawRecords, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("2401.%05d", i)
		recs = append(recs, RawEntry{Key: id, Payload: json.RawMessage(fmt.Sprintf(`{"entry_id":%q}`, id))})
	}
	return recs
}

func testPollConfig() types.PollConfig {
	cfg := types.DefaultConfig().Poll
	cfg.Interval = 0
	return cfg
}

func newTestPoller(src Snapshotter, cfg types.PollConfig) *Poller {
	p := NewPoller(src, cfg, zerolog.Nop())
	p.wait = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return p
}

// --- standard policy ---

func TestPollStandard_StableAfterFinish(t *testing.T) {
	src := &scriptedSource{steps: []step{{0, false, nil}, {1, false, nil}, {1, false, nil}, {1, true, nil}}}

	recs, err := newTestPoller(src, testPollConfig()).Poll(context.Background(), "s1", PolicyStandard)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, 4, src.calls)
}

func TestPollStandard_FinishBeforeStableKeepsPolling(t *testing.T) {
	src := &scriptedSource{steps: []step{{2, true, nil}, {2, true, nil}, {2, true, nil}}}

	recs, err := newTestPoller(src, testPollConfig()).Poll(context.Background(), "s1", PolicyStandard)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, 3, src.calls)
}

func TestPollStandard_FinishedEmpty(t *testing.T) {
	src := &scriptedSource{steps: []step{{0, false, nil}, {0, true, nil}}}

	recs, err := newTestPoller(src, testPollConfig()).Poll(context.Background(), "s1", PolicyStandard)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
	assert.Equal(t, 2, src.calls)
}

func TestPollStandard_ImplicitStability(t *testing.T) {
	src := &scriptedSource{steps: []step{{3, false, nil}}}

	recs, err := newTestPoller(src, testPollConfig()).Poll(context.Background(), "s1", PolicyStandard)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Equal(t, 5, src.calls)
}

func TestPollStandard_CountChangeRestartsRun(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{1, false, nil}, {1, false, nil}, {2, true, nil}, {2, true, nil}, {2, true, nil},
	}}

	recs, err := newTestPoller(src, testPollConfig()).Poll(context.Background(), "s1", PolicyStandard)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, 5, src.calls)
}

func TestPollStandard_FailedPollDoesNotResetStability(t *testing.T) {
	boom := errors.New("connection reset")
	src := &scriptedSource{steps: []step{
		{1, false, nil}, {1, false, nil}, {0, false, boom}, {1, true, nil},
	}}

	recs, err := newTestPoller(src, testPollConfig()).Poll(context.Background(), "s1", PolicyStandard)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Equal(t, 4, src.calls)
}

func TestPollStandard_TimeoutWithoutResults(t *testing.T) {
	cfg := testPollConfig()
	cfg.MaxPolls = 6
	src := &scriptedSource{steps: []step{{0, false, nil}}}

	_, err := newTestPoller(src, cfg).Poll(context.Background(), "s1", PolicyStandard)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.Equal(t, 6, src.calls)
}

func TestPollStandard_BudgetReturnsPartial(t *testing.T) {
	cfg := testPollConfig()
	cfg.MaxPolls = 4
	// Count keeps changing so no rule fires.
	src := &scriptedSource{steps: []step{{1, false, nil}, {2, false, nil}, {3, false, nil}, {4, false, nil}}}

	recs, err := newTestPoller(src, cfg).Poll(context.Background(), "s1", PolicyStandard)
	require.NoError(t, err)
	assert.Len(t, recs, 4)
}

func TestPollStandard_AllFailuresTimeout(t *testing.T) {
	cfg := testPollConfig()
	cfg.MaxPolls = 3
	boom := errors.New("HTTP 503")
	src := &scriptedSource{steps: []step{{0, false, boom}}}

	_, err := newTestPoller(src, cfg).Poll(context.Background(), "s1", PolicyStandard)
	assert.ErrorIs(t, err, ErrPollTimeout)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, src.calls)
}

func TestPollStandard_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := &scriptedSource{steps: []step{{1, false, nil}}}

	_, err := newTestPoller(src, testPollConfig()).Poll(ctx, "s1", PolicyStandard)
	assert.ErrorIs(t, err, context.Canceled)
}

// --- thorough policy ---

func TestPollThorough_NeverBeforeMinimum(t *testing.T) {
	src := &scriptedSource{steps: []step{{0, false, nil}, {2, true, nil}}}

	recs, err := newTestPoller(src, testPollConfig()).Poll(context.Background(), "s1", PolicyThorough)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, 10, src.calls)
}

func TestPollThorough_StabilityNeededAfterMinimum(t *testing.T) {
	steps := make([]step, 0, 12)
	for i := 1; i <= 9; i++ {
		steps = append(steps, step{count: i})
	}
	// Count reaches 9 at poll 9; the run hits 3 at poll 11.
	steps = append(steps, step{count: 9}, step{count: 9})
	src := &scriptedSource{steps: steps}

	recs, err := newTestPoller(src, testPollConfig()).Poll(context.Background(), "s1", PolicyThorough)
	require.NoError(t, err)
	assert.Len(t, recs, 9)
	assert.Equal(t, 11, src.calls)
}

func TestPollThorough_BudgetMakesFinalRequest(t *testing.T) {
	cfg := testPollConfig()
	cfg.ThoroughMaxPolls = 12
	src := &scriptedSource{steps: []step{{0, true, nil}}}

	recs, err := newTestPoller(src, cfg).Poll(context.Background(), "s1", PolicyThorough)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
	assert.Equal(t, 13, src.calls)
}

func TestPollThorough_FinalRequestFailureReturnsLastSeen(t *testing.T) {
	cfg := testPollConfig()
	cfg.ThoroughMaxPolls = 3
	boom := errors.New("HTTP 502")
	src := &scriptedSource{steps: []step{{1, false, nil}, {2, false, nil}, {3, false, nil}, {0, false, boom}}}

	recs, err := newTestPoller(src, cfg).Poll(context.Background(), "s1", PolicyThorough)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Equal(t, 4, src.calls)
}

// --- helpers ---

func TestStability(t *testing.T) {
	var s stability
	got := []int{}
	for _, c := range []int{0, 1, 1, 2, 2, 2, 0, 2} {
		got = append(got, s.observe(c))
	}
	assert.Equal(t, []int{0, 1, 2, 1, 2, 3, 0, 1}, got)
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyStandard, false},
		{"standard", PolicyStandard, false},
		{"Thorough", PolicyThorough, false},
		{"deep", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "thorough", PolicyThorough.String())
}

func TestSleep_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleep(ctx, time.Hour), context.Canceled)
	assert.NoError(t, sleep(context.Background(), 0))
}
