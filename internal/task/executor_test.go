package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/sedaprotocol/seda-push-solver/internal/cosmoscoord"
	"github.com/sedaprotocol/seda-push-solver/internal/sedatypes"
)

type fakeSequencer struct {
	fn func(ctx context.Context, p cosmoscoord.Posting) cosmoscoord.PostResult
}

func (f fakeSequencer) Execute(ctx context.Context, p cosmoscoord.Posting) cosmoscoord.PostResult {
	return f.fn(ctx, p)
}

// passthroughSequencer runs the posting closure directly with a fixed seq,
// the way the real coordinator would after assigning one.
func passthroughSequencer(seq uint64) fakeSequencer {
	return fakeSequencer{fn: func(ctx context.Context, p cosmoscoord.Posting) cosmoscoord.PostResult {
		v, err := p.Post(ctx, seq)
		if err != nil {
			return cosmoscoord.PostResult{Success: false, Seq: seq, Err: err}
		}
		return cosmoscoord.PostResult{Success: true, Seq: seq, Value: v}
	}}
}

type fakeSeda struct {
	submitErr   error
	txHash      string
	drID        string
	blockHeight uint64

	results map[string]*sedatypes.DataResult
}

func (f *fakeSeda) SubmitTx(ctx context.Context, dr sedatypes.DataRequest, memo []byte, seq uint64) (string, string, uint64, error) {
	if f.submitErr != nil {
		return "", "", 0, f.submitErr
	}
	return f.txHash, f.drID, f.blockHeight, nil
}

func (f *fakeSeda) GetDataResult(ctx context.Context, drID string, postHeight uint64) (*sedatypes.DataResult, error) {
	if f.results == nil {
		return nil, nil
	}
	return f.results[drID], nil
}

type fakeStats struct {
	posted atomic.Int64
}

func (f *fakeStats) IncPosted() { f.posted.Add(1) }

func testConfig() Config {
	return Config{
		PostingTimeout:        time.Second,
		OracleTimeout:         200 * time.Millisecond,
		OraclePollingInterval: 10 * time.Millisecond,
		SubmitRetries:         2,
		SubmitRetryDelay:      5 * time.Millisecond,
	}
}

func TestExecutorHappyPath(t *testing.T) {
	reg := NewRegistry()
	reg.Register("t1")

	seda := &fakeSeda{
		txHash: "0xabc", drID: "dr1", blockHeight: 100,
		results: map[string]*sedatypes.DataResult{
			"dr1": {DrID: [32]byte{1}, Consensus: true, ExitCode: 0},
		},
	}
	outcomeC := make(chan Outcome, 1)
	st := &fakeStats{}
	ex := New(log.NewNopLogger(), reg, passthroughSequencer(7), seda, st, testConfig(), outcomeC)

	ex.Run(context.Background(), "t1", sedatypes.DataRequest{Memo: []byte("m")})

	outcome := <-outcomeC
	require.True(t, outcome.Success)
	require.Equal(t, "dr1", outcome.DrID)

	got, _ := reg.Get("t1")
	require.Equal(t, StateCompleted, got.State)
	require.Equal(t, uint64(7), *got.SequenceNumber)
	require.Equal(t, int64(1), st.posted.Load())
}

func TestExecutorOracleTimeout(t *testing.T) {
	reg := NewRegistry()
	reg.Register("t1")

	seda := &fakeSeda{txHash: "0xabc", drID: "dr1", blockHeight: 100}
	outcomeC := make(chan Outcome, 1)
	st := &fakeStats{}
	ex := New(log.NewNopLogger(), reg, passthroughSequencer(1), seda, st, testConfig(), outcomeC)

	ex.Run(context.Background(), "t1", sedatypes.DataRequest{Memo: []byte("m")})

	outcome := <-outcomeC
	require.False(t, outcome.Success)
	require.ErrorContains(t, outcome.Err, "oracle")

	got, _ := reg.Get("t1")
	require.Equal(t, StateFailed, got.State)

	// The Cosmos submission genuinely landed before the oracle phase timed
	// out, so it must still count as posted even though the task fails.
	require.Equal(t, int64(1), st.posted.Load())
}

func TestExecutorSubmitFailure(t *testing.T) {
	reg := NewRegistry()
	reg.Register("t1")

	seda := &fakeSeda{submitErr: errors.New("connection refused")}
	outcomeC := make(chan Outcome, 1)
	st := &fakeStats{}
	ex := New(log.NewNopLogger(), reg, passthroughSequencer(1), seda, st, testConfig(), outcomeC)

	ex.Run(context.Background(), "t1", sedatypes.DataRequest{Memo: []byte("m")})

	outcome := <-outcomeC
	require.False(t, outcome.Success)

	got, _ := reg.Get("t1")
	require.Equal(t, StateFailed, got.State)

	// The submission itself failed, so nothing ever landed on-chain.
	require.Equal(t, int64(0), st.posted.Load())
}

func TestExecutorDuplicateStillAwaitsResult(t *testing.T) {
	reg := NewRegistry()
	reg.Register("t1")

	seda := &fakeSeda{
		results: map[string]*sedatypes.DataResult{
			"unknown-but-posted": {Consensus: true},
		},
	}
	seq := passthroughSequencer(9)
	seq.fn = func(ctx context.Context, p cosmoscoord.Posting) cosmoscoord.PostResult {
		return cosmoscoord.PostResult{Success: true, Seq: 9, Duplicate: true}
	}
	outcomeC := make(chan Outcome, 1)
	ex := New(log.NewNopLogger(), reg, seq, seda, &fakeStats{}, testConfig(), outcomeC)

	ex.Run(context.Background(), "t1", sedatypes.DataRequest{Memo: []byte("m")})

	outcome := <-outcomeC
	require.True(t, outcome.Success)
	require.Equal(t, "unknown-but-posted", outcome.DrID)
}
