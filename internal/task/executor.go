package task

import (
	"context"
	"time"

	errorsmod "cosmossdk.io/errors"
	"cosmossdk.io/log"

	"github.com/sedaprotocol/seda-push-solver/internal/cosmoscoord"
	"github.com/sedaprotocol/seda-push-solver/internal/errs"
	"github.com/sedaprotocol/seda-push-solver/internal/memo"
	"github.com/sedaprotocol/seda-push-solver/internal/retry"
	"github.com/sedaprotocol/seda-push-solver/internal/sedatypes"
)

// SedaSubmitter is the out-of-scope SEDA RPC/signing collaborator's
// submission and result-polling surface (spec §1), narrowed to what the
// executor needs.
type SedaSubmitter interface {
	SubmitTx(ctx context.Context, dr sedatypes.DataRequest, memo []byte, seq uint64) (txHash, drID string, blockHeight uint64, err error)
	GetDataResult(ctx context.Context, drID string, postHeight uint64) (*sedatypes.DataResult, error)
}

// SequenceExecutor is the subset of cosmoscoord.Coordinator the executor
// depends on (the Cosmos Sequence Coordinator, C3).
type SequenceExecutor interface {
	Execute(ctx context.Context, p cosmoscoord.Posting) cosmoscoord.PostResult
}

// PostStats is the narrow statistics surface the executor updates directly:
// a task is "posted" the moment its Cosmos submission lands, independent of
// whether the oracle phase that follows ever completes (spec §4.12).
type PostStats interface {
	IncPosted()
}

// Config holds the executor's timeouts, per spec §4.5 and §5.
type Config struct {
	PostingTimeout          time.Duration
	OracleTimeout           time.Duration
	OraclePollingInterval   time.Duration
	SubmitRetries           int
	SubmitRetryDelay        time.Duration
}

type submitResult struct {
	DrID        string
	TxHash      string
	BlockHeight uint64
}

// Executor drives one task through its post / await-result / fan-out-trigger
// phases (spec §4.5). It never blocks the scheduler: Run is meant to be
// invoked from its own goroutine per task.
type Executor struct {
	logger    log.Logger
	registry  *Registry
	sequencer SequenceExecutor
	seda      SedaSubmitter
	stats     PostStats
	cfg       Config
	outcomeC  chan<- Outcome
}

// New constructs an Executor. outcomeC is the channel Outcomes are
// published to; typically consumed by the completion handler (C13).
func New(logger log.Logger, registry *Registry, sequencer SequenceExecutor, seda SedaSubmitter, stats PostStats, cfg Config, outcomeC chan<- Outcome) *Executor {
	return &Executor{
		logger:    logger,
		registry:  registry,
		sequencer: sequencer,
		seda:      seda,
		stats:     stats,
		cfg:       cfg,
		outcomeC:  outcomeC,
	}
}

// Run drives taskID (already Registered as POSTING) through all phases and
// publishes its terminal Outcome. Intended to run in its own goroutine.
func (e *Executor) Run(ctx context.Context, taskID string, dr sedatypes.DataRequest) {
	durations := make(map[string]time.Duration)

	postStart := time.Now()
	sub, seq, err := e.post(ctx, taskID, dr)
	durations["post"] = time.Since(postStart)

	if err != nil {
		e.fail(taskID, err, seq, durations)
		return
	}
	e.registry.MarkPosted(taskID, sub.DrID, sub.BlockHeight, sub.TxHash, seq)
	e.stats.IncPosted()

	awaitStart := time.Now()
	result, err := e.awaitResult(ctx, sub.DrID, sub.BlockHeight)
	durations["await_result"] = time.Since(awaitStart)

	if err != nil {
		e.fail(taskID, err, seq, durations)
		return
	}

	e.registry.MarkCompleted(taskID)
	e.outcomeC <- Outcome{
		TaskID:         taskID,
		Success:        true,
		DrID:           sub.DrID,
		Result:         result,
		PhaseDurations: durations,
	}
}

// post runs Phase 1 (spec §4.5): build a sequenced posting whose closure
// stamps a unique memo and submits through the Cosmos sequence coordinator.
func (e *Executor) post(ctx context.Context, taskID string, dr sedatypes.DataRequest) (submitResult, uint64, error) {
	res := e.sequencer.Execute(ctx, cosmoscoord.Posting{
		TaskID:  taskID,
		Timeout: e.cfg.PostingTimeout,
		Post: func(postCtx context.Context, seq uint64) (any, error) {
			m := memo.Generate(dr.Memo, seq)
			retryResult := retry.Run(postCtx, func(rctx context.Context, attempt int) (submitResult, error) {
				txHash, drID, blockHeight, err := e.seda.SubmitTx(rctx, dr, m, seq)
				if err != nil {
					return submitResult{}, err
				}
				return submitResult{DrID: drID, TxHash: txHash, BlockHeight: blockHeight}, nil
			}, retry.Options{MaxRetries: e.cfg.SubmitRetries, Delay: e.cfg.SubmitRetryDelay})

			if !retryResult.Ok {
				return nil, retryResult.LastError
			}
			return retryResult.Value, nil
		},
	})

	if !res.Success {
		return submitResult{}, res.Seq, res.Err
	}
	if res.Duplicate {
		// Synthetic posted-result per spec §4.3: dr_id is unknown but the
		// tx did land, so downstream phases must still proceed.
		return submitResult{DrID: "unknown-but-posted"}, res.Seq, nil
	}
	return res.Value.(submitResult), res.Seq, nil
}

// awaitResult runs Phase 2 (spec §4.5): poll get_data_result until a result
// arrives or the oracle timeout elapses.
func (e *Executor) awaitResult(ctx context.Context, drID string, postHeight uint64) (*sedatypes.DataResult, error) {
	deadline := time.Now().Add(e.cfg.OracleTimeout)
	ticker := time.NewTicker(e.cfg.OraclePollingInterval)
	defer ticker.Stop()

	for {
		result, err := e.seda.GetDataResult(ctx, drID, postHeight)
		if err == nil && result != nil {
			return result, nil
		}
		if time.Now().After(deadline) {
			return nil, errorsmod.Wrap(errs.ErrOracleTimeout, "oracle result not observed before timeout")
		}

		select {
		case <-ctx.Done():
			return nil, errorsmod.Wrap(errs.ErrCancelled, ctx.Err().Error())
		case <-ticker.C:
		}
	}
}

func (e *Executor) fail(taskID string, err error, seq uint64, durations map[string]time.Duration) {
	var seqPtr *uint64
	if seq != 0 {
		seqPtr = &seq
	}
	e.registry.MarkFailed(taskID, err.Error(), seqPtr)
	e.logger.Error("task failed", "task_id", taskID, "error", err.Error())
	e.outcomeC <- Outcome{
		TaskID:         taskID,
		Success:        false,
		Err:            err,
		PhaseDurations: durations,
	}
}
