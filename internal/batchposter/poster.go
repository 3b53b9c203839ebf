package batchposter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cosmossdk.io/log"

	"github.com/sedaprotocol/seda-push-solver/internal/abi"
	"github.com/sedaprotocol/seda-push-solver/internal/evmclient"
	"github.com/sedaprotocol/seda-push-solver/internal/evmnonce"
	"github.com/sedaprotocol/seda-push-solver/internal/sedatypes"
)

// State is a queued batch's position in the posting state machine (spec §4.9).
type State int

const (
	StateQueued State = iota
	StatePosting
	StatePosted
	StateRecoveryNeeded
	StateDropped
)

// BatchSource fetches a signed batch by height from SEDA (C16).
type BatchSource interface {
	GetSignedBatch(ctx context.Context, height uint64) (*sedatypes.Batch, error)
}

// Config bounds retry behavior, per spec §4.9.
type Config struct {
	MaxTransactionRetries int
	PauseCheckInterval    time.Duration
}

// DefaultConfig returns spec §4.9's default of 3 retries and a 30s
// pause-check cadence.
func DefaultConfig() Config {
	return Config{MaxTransactionRetries: 3, PauseCheckInterval: 30 * time.Second}
}

// QueueEntry is one batch waiting to be posted to a destination chain.
type QueueEntry struct {
	Network      string
	TargetHeight uint64
	RetryCount   int
	State        State
}

// Poster drives batches through QUEUED -> POSTING -> {POSTED, RECOVERY_NEEDED, DROPPED}.
type Poster struct {
	logger log.Logger
	seda   BatchSource
	cfg    Config

	mu     sync.Mutex
	paused map[string]bool
	stopC  chan struct{}
	doneC  chan struct{}
}

// New constructs a Poster.
func New(logger log.Logger, seda BatchSource, cfg Config) *Poster {
	return &Poster{logger: logger, seda: seda, cfg: cfg, paused: make(map[string]bool)}
}

// IsPaused reports whether network is paused (from an EnforcedPause error).
func (p *Poster) IsPaused(network string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused[network]
}

// Unpause clears a network's paused flag once the contract confirms it's
// no longer paused (spec §4.9).
func (p *Poster) Unpause(network string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.paused, network)
}

// Post drives a single queue entry to completion against the destination
// chain's Secp256k1ProverV1 contract. When the target height fails
// consensus, it binary-searches for a reachable recovery height via
// RecoveryHeight, posts that batch to advance the contract's known height,
// then retries the originally-targeted height — repeating until it lands or
// entry.RetryCount reaches cfg.MaxTransactionRetries (spec §4.9).
func (p *Poster) Post(ctx context.Context, entry QueueEntry, prover *evmclient.Contract, reserve func(ctx context.Context) (*evmnonce.Reservation, error), contractHeight uint64) (State, error) {
	if p.IsPaused(entry.Network) {
		return StateQueued, nil
	}

	state, err := p.postAt(ctx, entry.Network, entry.TargetHeight, prover, reserve, contractHeight)
	if state != StateRecoveryNeeded {
		return state, err
	}

	knownHeight := contractHeight
	failedHeight := entry.TargetHeight

	for entry.RetryCount < p.cfg.MaxTransactionRetries {
		entry.RetryCount++

		recoveryHeight := RecoveryHeight(knownHeight, failedHeight)
		if recoveryHeight == knownHeight {
			break
		}

		p.logger.Info("batchposter attempting recovery batch",
			"network", entry.Network, "recovery_height", recoveryHeight, "attempt", entry.RetryCount)

		state, err = p.postAt(ctx, entry.Network, recoveryHeight, prover, reserve, knownHeight)
		switch state {
		case StatePosted:
			knownHeight = recoveryHeight
			state, err = p.postAt(ctx, entry.Network, entry.TargetHeight, prover, reserve, knownHeight)
			if state != StateRecoveryNeeded {
				return state, err
			}
			failedHeight = entry.TargetHeight
		case StateRecoveryNeeded:
			failedHeight = recoveryHeight
		default:
			return state, err
		}
	}

	p.logger.Error("batchposter recovery exhausted retries",
		"network", entry.Network, "target_height", entry.TargetHeight, "retry_count", entry.RetryCount)
	return StateDropped, err
}

// postAt drives one height against the prover contract: fetch the target
// and known batches, validate the target, select a consensus-valid
// signature set against the known batch, and submit.
func (p *Poster) postAt(ctx context.Context, network string, targetHeight uint64, prover *evmclient.Contract, reserve func(ctx context.Context) (*evmnonce.Reservation, error), knownHeight uint64) (State, error) {
	newBatch, err := p.seda.GetSignedBatch(ctx, targetHeight)
	if err != nil {
		return StateQueued, err
	}
	knownBatch, err := p.seda.GetSignedBatch(ctx, knownHeight)
	if err != nil {
		return StateQueued, err
	}
	if newBatch == nil || knownBatch == nil {
		return StateQueued, fmt.Errorf("batchposter: signed batch not found for network %s", network)
	}

	if newBatch.BatchNumber == 0 || len(newBatch.Secp256k1Signatures) == 0 {
		p.logger.Error("batchposter rejecting invalid batch", "network", network, "height", targetHeight)
		return StateDropped, nil
	}

	selected, err := SelectSignatures(*newBatch, *knownBatch)
	if err != nil {
		p.logger.Warn("batchposter consensus not reached, scheduling recovery",
			"network", network, "target_height", targetHeight, "known_height", knownHeight)
		return StateRecoveryNeeded, err
	}

	res, err := reserve(ctx)
	if err != nil {
		return StateQueued, err
	}

	batch := abi.EvmBatch{
		BatchHeight:     newBatch.BatchNumber,
		BlockHeight:     newBatch.BlockHeight,
		ValidatorsRoot:  newBatch.ValidatorRoot,
		ResultsRoot:     newBatch.DataResultRoot,
		ProvingMetadata: [32]byte{},
	}
	signatures := make([][]byte, len(selected))
	proofs := make([][]byte, len(selected))
	for i, sig := range selected {
		signatures[i] = sig.Signature
		proofs[i] = flattenProof(sig.MerkleProof)
	}

	_, err = prover.Send(ctx, res, "postBatch", batch, signatures, proofs)
	if err != nil {
		res.Release()
		return p.classify(network, err), err
	}

	return StatePosted, nil
}

// classify maps ABI-item substrings in a submission error to the next
// queue state, per spec §4.9.
func (p *Poster) classify(network string, err error) State {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "ConsensusNotReached"):
		return StateRecoveryNeeded
	case strings.Contains(msg, "BatchAlreadyExists"):
		return StatePosted
	case strings.Contains(msg, "EnforcedPause"):
		p.mu.Lock()
		p.paused[network] = true
		p.mu.Unlock()
		return StateQueued
	default:
		return StateQueued
	}
}

// PausedFunc reports whether network's prover contract is currently paused,
// via its paused() view function.
type PausedFunc func(ctx context.Context) (bool, error)

// StartPauseCheckLoop launches a background ticker that polls each paused
// network's contract and clears its paused flag once it reports unpaused
// (spec §4.9, §5's per-collaborator polling loops), mirroring
// evmnonce.Coordinator's syncLoop.
func (p *Poster) StartPauseCheckLoop(ctx context.Context, checkers map[string]PausedFunc) {
	p.mu.Lock()
	if p.stopC != nil {
		p.mu.Unlock()
		return
	}
	p.stopC = make(chan struct{})
	p.doneC = make(chan struct{})
	p.mu.Unlock()

	go p.pauseCheckLoop(ctx, checkers)
}

// Stop halts the pause-check loop started by StartPauseCheckLoop.
func (p *Poster) Stop() {
	p.mu.Lock()
	stopC := p.stopC
	doneC := p.doneC
	p.stopC = nil
	p.mu.Unlock()

	if stopC == nil {
		return
	}
	close(stopC)
	<-doneC
}

func (p *Poster) pauseCheckLoop(ctx context.Context, checkers map[string]PausedFunc) {
	defer close(p.doneC)

	ticker := time.NewTicker(p.cfg.PauseCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopC:
			return
		case <-ticker.C:
			p.checkPauses(ctx, checkers)
		}
	}
}

func (p *Poster) checkPauses(ctx context.Context, checkers map[string]PausedFunc) {
	for network, isPaused := range checkers {
		if !p.IsPaused(network) {
			continue
		}
		paused, err := isPaused(ctx)
		if err != nil {
			p.logger.Warn("batchposter pause-check failed", "network", network, "error", err.Error())
			continue
		}
		if !paused {
			p.Unpause(network)
			p.logger.Info("batchposter network unpaused", "network", network)
		}
	}
}

func flattenProof(proof [][]byte) []byte {
	out := make([]byte, 0)
	for _, p := range proof {
		out = append(out, p...)
	}
	return out
}
