// Package completion implements the Completion Handler (spec §4.13): it
// subscribes to task.Outcome messages, updates statistics, and triggers
// EVM fan-out when policy allows.
package completion

import (
	"context"

	"cosmossdk.io/log"

	"github.com/sedaprotocol/seda-push-solver/internal/sedatypes"
	"github.com/sedaprotocol/seda-push-solver/internal/stats"
	"github.com/sedaprotocol/seda-push-solver/internal/task"
)

// FanoutTrigger is the subset of the EVM Fan-out Coordinator (C11) the
// completion handler depends on.
type FanoutTrigger interface {
	Dispatch(ctx context.Context, result sedatypes.DataResult)
}

// ShouldFanOut is the policy spec §4.11 assigns to the completion handler:
// only consensus=true, exit_code=0 results fan out to destination chains.
func ShouldFanOut(result sedatypes.DataResult) bool {
	return result.Consensus && result.ExitCode == 0
}

// Handler consumes Outcomes published by task.Executor instances. Posting
// counts are updated by the executor itself the moment a submission lands
// (spec §4.12); this handler only tracks the oracle-completion outcome and
// triggers fan-out.
type Handler struct {
	logger log.Logger
	stats  *stats.Stats
	fanout FanoutTrigger
}

// New constructs a Handler.
func New(logger log.Logger, st *stats.Stats, fanout FanoutTrigger) *Handler {
	return &Handler{logger: logger, stats: st, fanout: fanout}
}

// Run consumes outcomeC until it is closed or ctx is done.
func (h *Handler) Run(ctx context.Context, outcomeC <-chan task.Outcome) {
	for {
		select {
		case <-ctx.Done():
			return
		case outcome, ok := <-outcomeC:
			if !ok {
				return
			}
			h.handle(ctx, outcome)
		}
	}
}

func (h *Handler) handle(ctx context.Context, outcome task.Outcome) {
	if !outcome.Success {
		h.stats.IncOracleFailed()
		h.logger.Error("task completion failure",
			"task_id", outcome.TaskID,
			"error", errString(outcome.Err),
			"phase_durations", outcome.PhaseDurations,
		)
		return
	}

	h.stats.IncOracleCompleted()
	for phase, d := range outcome.PhaseDurations {
		h.stats.RecordPhaseDuration(phase, d)
	}

	h.logger.Info("task completed",
		"task_id", outcome.TaskID,
		"dr_id", outcome.DrID,
		"phase_durations", outcome.PhaseDurations,
	)

	if outcome.Result == nil {
		return
	}
	if !ShouldFanOut(*outcome.Result) {
		h.logger.Debug("skipping fan-out, policy declined",
			"task_id", outcome.TaskID, "dr_id", outcome.DrID,
			"consensus", outcome.Result.Consensus, "exit_code", outcome.Result.ExitCode,
		)
		return
	}

	h.fanout.Dispatch(ctx, *outcome.Result)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
