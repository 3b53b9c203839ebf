package batchposter

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"cosmossdk.io/log"
	"github.com/stretchr/testify/require"

	"github.com/sedaprotocol/seda-push-solver/internal/evmnonce"
	"github.com/sedaprotocol/seda-push-solver/internal/sedatypes"
)

type fakeBatchSource struct {
	byHeight map[uint64]*sedatypes.Batch
}

func (f *fakeBatchSource) GetSignedBatch(ctx context.Context, height uint64) (*sedatypes.Batch, error) {
	return f.byHeight[height], nil
}

func noopReserve(ctx context.Context) (*evmnonce.Reservation, error) {
	return nil, nil
}

func TestPostSkipsWhenPaused(t *testing.T) {
	p := New(log.NewNopLogger(), &fakeBatchSource{}, DefaultConfig())
	p.paused["base"] = true

	state, err := p.Post(context.Background(), QueueEntry{Network: "base", TargetHeight: 10}, nil, noopReserve, 5)
	require.NoError(t, err)
	require.Equal(t, StateQueued, state)
}

func TestPostDropsInvalidBatch(t *testing.T) {
	src := &fakeBatchSource{byHeight: map[uint64]*sedatypes.Batch{
		10: {BatchNumber: 0},
		5:  {BatchNumber: 5},
	}}
	p := New(log.NewNopLogger(), src, DefaultConfig())

	state, err := p.Post(context.Background(), QueueEntry{Network: "base", TargetHeight: 10}, nil, noopReserve, 5)
	require.NoError(t, err)
	require.Equal(t, StateDropped, state)
}

// TestPostDropsWhenNoRecoveryHeightExists covers the case where the target
// height is already adjacent to the contract's known height: there is no
// intermediate recovery height to try, so recovery gives up immediately.
func TestPostDropsWhenNoRecoveryHeightExists(t *testing.T) {
	_, addr1 := mustKey(t)
	src := &fakeBatchSource{byHeight: map[uint64]*sedatypes.Batch{
		10: {BatchNumber: 10, Secp256k1Signatures: []sedatypes.Secp256k1Signature{
			{ValidatorAddress: []byte("unmatched"), PublicKey: []byte("pub"), Signature: []byte("sig")},
		}},
		9: {BatchNumber: 9, Secp256k1Signatures: []sedatypes.Secp256k1Signature{
			{ValidatorAddress: []byte("v1"), EthAddress: addr1, VotingPowerPercentage: 100_000_000},
		}},
	}}
	p := New(log.NewNopLogger(), src, DefaultConfig())

	state, err := p.Post(context.Background(), QueueEntry{Network: "base", TargetHeight: 10}, nil, noopReserve, 9)
	require.Error(t, err)
	require.Equal(t, StateDropped, state)
}

// TestPostExhaustsRetriesWhenRecoveryNeverConverges covers a target batch
// that never reaches consensus against any recovery height the binary
// search tries, so RetryCount climbs to MaxTransactionRetries and the batch
// is finally dropped.
func TestPostExhaustsRetriesWhenRecoveryNeverConverges(t *testing.T) {
	unmatched := sedatypes.Secp256k1Signature{ValidatorAddress: []byte("unmatched"), PublicKey: []byte("pub")}
	_, addr1 := mustKey(t)
	known := sedatypes.Secp256k1Signature{ValidatorAddress: []byte("v1"), EthAddress: addr1, VotingPowerPercentage: 100_000_000}

	src := &fakeBatchSource{byHeight: map[uint64]*sedatypes.Batch{
		5:  {BatchNumber: 5, Secp256k1Signatures: []sedatypes.Secp256k1Signature{known}},
		6:  {BatchNumber: 6, Secp256k1Signatures: []sedatypes.Secp256k1Signature{unmatched}},
		7:  {BatchNumber: 7, Secp256k1Signatures: []sedatypes.Secp256k1Signature{unmatched}},
		10: {BatchNumber: 10, Secp256k1Signatures: []sedatypes.Secp256k1Signature{unmatched}},
	}}
	cfg := DefaultConfig()
	cfg.MaxTransactionRetries = 3
	p := New(log.NewNopLogger(), src, cfg)

	entry := QueueEntry{Network: "base", TargetHeight: 10}
	state, err := p.Post(context.Background(), entry, nil, noopReserve, 5)
	require.Error(t, err)
	require.Equal(t, StateDropped, state)
}

func TestClassifyEnforcedPausePausesNetwork(t *testing.T) {
	p := New(log.NewNopLogger(), &fakeBatchSource{}, DefaultConfig())
	state := p.classify("base", errString("EnforcedPause: contract is paused"))
	require.Equal(t, StateQueued, state)
	require.True(t, p.IsPaused("base"))
}

func TestClassifyBatchAlreadyExistsIsSuccessEquivalent(t *testing.T) {
	p := New(log.NewNopLogger(), &fakeBatchSource{}, DefaultConfig())
	state := p.classify("base", errString("execution reverted: BatchAlreadyExists"))
	require.Equal(t, StatePosted, state)
}

func TestClassifyConsensusNotReachedRequestsRecovery(t *testing.T) {
	p := New(log.NewNopLogger(), &fakeBatchSource{}, DefaultConfig())
	state := p.classify("base", errString("ConsensusNotReached"))
	require.Equal(t, StateRecoveryNeeded, state)
}

func TestUnpauseClearsFlag(t *testing.T) {
	p := New(log.NewNopLogger(), &fakeBatchSource{}, DefaultConfig())
	p.paused["base"] = true
	p.Unpause("base")
	require.False(t, p.IsPaused("base"))
}

func TestPauseCheckLoopUnpausesWhenContractReportsUnpaused(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PauseCheckInterval = 5 * time.Millisecond
	p := New(log.NewNopLogger(), &fakeBatchSource{}, cfg)
	p.paused["base"] = true

	checkers := map[string]PausedFunc{
		"base": func(ctx context.Context) (bool, error) { return false, nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.StartPauseCheckLoop(ctx, checkers)
	defer p.Stop()

	require.Eventually(t, func() bool { return !p.IsPaused("base") }, time.Second, time.Millisecond)
}

func TestPauseCheckLoopLeavesStillPausedNetworkAlone(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PauseCheckInterval = 5 * time.Millisecond
	p := New(log.NewNopLogger(), &fakeBatchSource{}, cfg)
	p.paused["base"] = true

	var calls atomic.Int64
	checkers := map[string]PausedFunc{
		"base": func(ctx context.Context) (bool, error) {
			calls.Add(1)
			return true, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.StartPauseCheckLoop(ctx, checkers)

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, time.Millisecond)
	require.True(t, p.IsPaused("base"))

	cancel()
	p.Stop()
}

type stringErr string

func (e stringErr) Error() string { return string(e) }

func errString(s string) error { return stringErr(s) }
