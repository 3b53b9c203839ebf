package completion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/sedaprotocol/seda-push-solver/internal/sedatypes"
	"github.com/sedaprotocol/seda-push-solver/internal/stats"
	"github.com/sedaprotocol/seda-push-solver/internal/task"
)

type fakeFanout struct {
	mu       sync.Mutex
	dispatch []sedatypes.DataResult
}

func (f *fakeFanout) Dispatch(ctx context.Context, result sedatypes.DataResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dispatch = append(f.dispatch, result)
}

func (f *fakeFanout) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.dispatch)
}

func TestHandlerDispatchesOnConsensusSuccess(t *testing.T) {
	st := stats.New()
	fo := &fakeFanout{}
	h := New(log.NewNopLogger(), st, fo)

	outcomeC := make(chan task.Outcome, 1)
	outcomeC <- task.Outcome{
		TaskID:  "t1",
		Success: true,
		DrID:    "dr1",
		Result:  &sedatypes.DataResult{DrID: [32]byte{1}, Consensus: true, ExitCode: 0},
	}
	close(outcomeC)

	h.Run(context.Background(), outcomeC)

	require.Equal(t, 1, fo.count())
	snap := st.Snapshot()
	require.Equal(t, uint64(1), snap.TotalOracleCompleted)
}

func TestHandlerSkipsFanoutOnNonZeroExitCode(t *testing.T) {
	st := stats.New()
	fo := &fakeFanout{}
	h := New(log.NewNopLogger(), st, fo)

	outcomeC := make(chan task.Outcome, 1)
	outcomeC <- task.Outcome{
		TaskID:  "t1",
		Success: true,
		DrID:    "dr1",
		Result:  &sedatypes.DataResult{Consensus: true, ExitCode: 1},
	}
	close(outcomeC)

	h.Run(context.Background(), outcomeC)

	require.Equal(t, 0, fo.count())
	require.Equal(t, uint64(1), st.Snapshot().TotalOracleCompleted)
}

func TestHandlerSkipsFanoutWithoutConsensus(t *testing.T) {
	st := stats.New()
	fo := &fakeFanout{}
	h := New(log.NewNopLogger(), st, fo)

	outcomeC := make(chan task.Outcome, 1)
	outcomeC <- task.Outcome{
		TaskID:  "t1",
		Success: true,
		DrID:    "dr1",
		Result:  &sedatypes.DataResult{Consensus: false, ExitCode: 0},
	}
	close(outcomeC)

	h.Run(context.Background(), outcomeC)

	require.Equal(t, 0, fo.count())
}

func TestHandlerFailureUpdatesStatsWithoutFanout(t *testing.T) {
	st := stats.New()
	fo := &fakeFanout{}
	h := New(log.NewNopLogger(), st, fo)

	outcomeC := make(chan task.Outcome, 1)
	outcomeC <- task.Outcome{
		TaskID:  "t1",
		Success: false,
		Err:     errors.New("boom"),
	}
	close(outcomeC)

	h.Run(context.Background(), outcomeC)

	require.Equal(t, 0, fo.count())
	require.Equal(t, uint64(1), st.Snapshot().TotalOracleFailed)
}

func TestHandlerStopsOnContextCancel(t *testing.T) {
	st := stats.New()
	fo := &fakeFanout{}
	h := New(log.NewNopLogger(), st, fo)

	ctx, cancel := context.WithCancel(context.Background())
	outcomeC := make(chan task.Outcome)

	done := make(chan struct{})
	go func() {
		h.Run(ctx, outcomeC)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
