package task

import (
	"time"

	"github.com/sedaprotocol/seda-push-solver/internal/sedatypes"
)

// Outcome is what the executor publishes once a task reaches a terminal
// state for this phase of its life (spec §9's callback-to-message-passing
// re-architecture: the executor never calls a completion callback directly,
// it emits an Outcome that subscribers such as the completion handler and
// statistics consume independently).
type Outcome struct {
	TaskID         string
	Success        bool
	DrID           string
	Result         *sedatypes.DataResult
	Err            error
	PhaseDurations map[string]time.Duration
}
