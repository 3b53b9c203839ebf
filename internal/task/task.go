// Package task implements the scheduler's tracking unit (spec §3 Task) and
// its in-memory registry (C4).
package task

import "time"

// State is one of the Task lifecycle states (spec §3).
type State string

const (
	StatePosting   State = "POSTING"
	StatePosted    State = "POSTED"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// Task is the scheduler's tracking unit, one per DataRequest in flight.
type Task struct {
	TaskID          string
	State           State
	SequenceNumber  *uint64
	DrID            string
	PostBlockHeight uint64
	TxHash          string
	CreatedAt       time.Time
	PostedAt        *time.Time
	CompletedAt     *time.Time
	FailedAt        *time.Time
	Error           string
}

// IsTerminal reports whether the task has reached an absorbing state
// (spec §3 invariant (c)).
func (t *Task) IsTerminal() bool {
	return t.State == StateCompleted || t.State == StateFailed
}

// IsActive reports whether the task is still POSTING or POSTED.
func (t *Task) IsActive() bool {
	return t.State == StatePosting || t.State == StatePosted
}

// clone returns a value copy safe to hand to callers outside the registry's
// lock.
func (t *Task) clone() *Task {
	cp := *t
	if t.SequenceNumber != nil {
		seq := *t.SequenceNumber
		cp.SequenceNumber = &seq
	}
	if t.PostedAt != nil {
		ts := *t.PostedAt
		cp.PostedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		cp.CompletedAt = &ts
	}
	if t.FailedAt != nil {
		ts := *t.FailedAt
		cp.FailedAt = &ts
	}
	return &cp
}
