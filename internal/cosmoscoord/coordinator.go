// Package cosmoscoord implements the Cosmos Sequence Coordinator (spec §4.3):
// a strictly serialized gate around the Cosmos signer that assigns monotonic
// account sequence numbers and reconciles duplicate-submission races without
// burning sequence numbers on transient failure.
//
// Re-architecture note (spec §9): the teacher reaches a dynamic signer
// capability out of a builder via an `(as any)` cast. Here that capability is
// an explicit interface, SequenceQuerier, passed in at Initialize and never
// obtained through a dynamic lookup.
package cosmoscoord

import (
	"context"
	"sync"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"

	"github.com/sedaprotocol/seda-push-solver/internal/errs"
)

// SequenceQuerier is the minimal capability the coordinator needs from the
// SEDA client adapter (C16) to seed next_seq on startup.
type SequenceQuerier interface {
	GetAccountSequence(ctx context.Context) (uint64, error)
}

// PostFunc is the per-attempt closure a caller supplies to Execute. It
// receives the sequence number the coordinator has assigned for this
// attempt and returns the posting outcome.
type PostFunc func(ctx context.Context, seq uint64) (any, error)

// Posting is one request to post through the coordinator's FIFO gate.
type Posting struct {
	TaskID  string
	Timeout time.Duration
	Post    PostFunc
}

// PostResult is what Execute resolves with. It never returns a bare error;
// Success reflects the outcome per spec §4.3's failure semantics.
type PostResult struct {
	Success  bool
	Value    any
	Seq      uint64
	Err      error
	Duplicate bool
}

type job struct {
	posting Posting
	resultC chan PostResult
}

// Stats mirrors spec §4.3's stats() contract.
type Stats struct {
	QueueSize  int
	Processing bool
	NextSeq    uint64
}

// Coordinator is the serialized gate described in spec §4.3.
type Coordinator struct {
	logger log.Logger

	mu          sync.Mutex
	nextSeq     uint64
	initialized bool
	processing  bool

	queue       chan job
	maxQueue    int
	defaultTimeout time.Duration

	closeOnce sync.Once
	stopC     chan struct{}
	doneC     chan struct{}
}

// New constructs a Coordinator. Call Initialize before Execute; call Start
// to launch the processing loop.
func New(logger log.Logger, maxQueueSize int, defaultTimeout time.Duration) *Coordinator {
	return &Coordinator{
		logger:         logger,
		queue:          make(chan job, maxQueueSize),
		maxQueue:       maxQueueSize,
		defaultTimeout: defaultTimeout,
		stopC:          make(chan struct{}),
		doneC:          make(chan struct{}),
	}
}

// Initialize queries the chain for the current account sequence once and
// seeds next_seq. A query failure is non-fatal: next_seq falls back to 0
// with a warning log, covering fresh accounts (spec §4.3).
func (c *Coordinator) Initialize(ctx context.Context, q SequenceQuerier) {
	seq, err := q.GetAccountSequence(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Warn("failed to query account sequence, falling back to 0", "error", err.Error())
		c.nextSeq = 0
	} else {
		c.nextSeq = seq
	}
	c.initialized = true
}

// Start launches the single long-lived processing loop. It returns
// immediately; call Stop (or cancel ctx) to halt it.
func (c *Coordinator) Start(ctx context.Context) {
	go c.run(ctx)
}

// Stop halts the processing loop and drains any still-queued postings with
// a cancellation error. next_seq is left untouched (spec §4.3 clear()).
func (c *Coordinator) Stop() {
	c.closeOnce.Do(func() {
		close(c.stopC)
	})
	<-c.doneC
}

// Clear drains waiters with a cancellation error without resetting next_seq.
// Exposed separately from Stop so a caller can clear backlog mid-run.
func (c *Coordinator) Clear() {
	for {
		select {
		case j := <-c.queue:
			j.resultC <- PostResult{Success: false, Err: errorsmod.Wrap(errs.ErrCancelled, "queue cleared")}
		default:
			return
		}
	}
}

// Execute enqueues a posting and blocks until the gate has processed it.
func (c *Coordinator) Execute(ctx context.Context, p Posting) PostResult {
	j := job{posting: p, resultC: make(chan PostResult, 1)}

	select {
	case c.queue <- j:
	default:
		return PostResult{Success: false, Err: errorsmod.Wrap(errs.ErrQueueFull, "cosmos sequence coordinator queue full")}
	}

	select {
	case res := <-j.resultC:
		return res
	case <-ctx.Done():
		return PostResult{Success: false, Err: errorsmod.Wrap(errs.ErrCancelled, ctx.Err().Error())}
	}
}

// Stats returns the coordinator's current queue size, processing flag, and
// next_seq (spec §4.3 stats()).
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		QueueSize:  len(c.queue),
		Processing: c.processing,
		NextSeq:    c.nextSeq,
	}
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.doneC)

	for {
		select {
		case <-c.stopC:
			c.Clear()
			return
		case <-ctx.Done():
			c.Clear()
			return
		case j := <-c.queue:
			c.process(ctx, j)
			// Sleep 100ms between items to avoid hammering the mempool
			// (spec §4.3), still honoring cancellation.
			select {
			case <-time.After(100 * time.Millisecond):
			case <-c.stopC:
			case <-ctx.Done():
			}
		}
	}
}

func (c *Coordinator) process(ctx context.Context, j job) {
	c.mu.Lock()
	c.processing = true
	seq := c.nextSeq
	c.mu.Unlock()

	timeout := j.posting.Timeout
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	postCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	value, err := j.posting.Post(postCtx, seq)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.processing = false

	classified := errs.ClassifyCosmosSubmit(err)

	switch {
	case err == nil:
		c.nextSeq++
		c.logger.Debug("cosmos submission succeeded", "task_id", j.posting.TaskID, "seq", seq)
		j.resultC <- PostResult{Success: true, Value: value, Seq: seq}

	case errorsmod.IsOf(classified, errs.ErrDataRequestAlreadyExists):
		c.nextSeq++
		c.logger.Info("duplicate data request, tx landed, advancing sequence", "task_id", j.posting.TaskID, "seq", seq)
		j.resultC <- PostResult{Success: true, Seq: seq, Duplicate: true}

	case errorsmod.IsOf(classified, errs.ErrSequenceMismatch):
		c.logger.Warn("sequence mismatch, not advancing next_seq", "task_id", j.posting.TaskID, "seq", seq, "error", err.Error())
		j.resultC <- PostResult{Success: false, Seq: seq, Err: classified}

	default:
		c.logger.Error("cosmos submission failed", "task_id", j.posting.TaskID, "seq", seq, "error", err.Error())
		j.resultC <- PostResult{Success: false, Seq: seq, Err: classified}
	}
}
