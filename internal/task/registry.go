package task

import (
	"sync"
	"time"
)

// Registry is the single in-memory map task_id -> *Task (spec §4.4). In the
// single-executor design ownership is effectively exclusive, but the mutex
// is kept so a future multi-executor deployment stays safe without a
// redesign, matching the teacher's habit of guarding any map touched from
// more than one goroutine.
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*Task)}
}

// Register adds a new task in the POSTING state.
func (r *Registry) Register(taskID string) *Task {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := &Task{
		TaskID:    taskID,
		State:     StatePosting,
		CreatedAt: time.Now(),
	}
	r.tasks[taskID] = t
	return t.clone()
}

// MarkPosted transitions a task to POSTED once the Cosmos submission lands.
func (r *Registry) MarkPosted(taskID, drID string, blockHeight uint64, txHash string, seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok || t.IsTerminal() {
		return false
	}
	now := time.Now()
	t.State = StatePosted
	t.DrID = drID
	t.PostBlockHeight = blockHeight
	t.TxHash = txHash
	t.SequenceNumber = &seq
	t.PostedAt = &now
	return true
}

// MarkCompleted transitions a task to the terminal COMPLETED state.
func (r *Registry) MarkCompleted(taskID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok || t.IsTerminal() {
		return false
	}
	now := time.Now()
	t.State = StateCompleted
	t.CompletedAt = &now
	return true
}

// MarkFailed transitions a task to the terminal FAILED state, optionally
// recording the sequence number it had been issued.
func (r *Registry) MarkFailed(taskID, cause string, seq *uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tasks[taskID]
	if !ok || t.IsTerminal() {
		return false
	}
	now := time.Now()
	t.State = StateFailed
	t.Error = cause
	t.FailedAt = &now
	if seq != nil && t.SequenceNumber == nil {
		s := *seq
		t.SequenceNumber = &s
	}
	return true
}

// Get returns a copy of the task, if present.
func (r *Registry) Get(taskID string) (*Task, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tasks[taskID]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

// All returns a copy of every task in the registry.
func (r *Registry) All() []*Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Task, 0, len(r.tasks))
	for _, t := range r.tasks {
		out = append(out, t.clone())
	}
	return out
}

// Active returns every task in POSTING or POSTED state.
func (r *Registry) Active() []*Task {
	return r.ByState(StatePosting, StatePosted)
}

// ByState returns every task whose state matches one of the given states.
func (r *Registry) ByState(states ...State) []*Task {
	want := make(map[State]bool, len(states))
	for _, s := range states {
		want[s] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Task
	for _, t := range r.tasks {
		if want[t.State] {
			out = append(out, t.clone())
		}
	}
	return out
}

// CleanupOlderThan removes every terminal task whose terminal transition is
// older than age. Returns the number of tasks removed.
func (r *Registry) CleanupOlderThan(age time.Duration) int {
	cutoff := time.Now().Add(-age)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, t := range r.tasks {
		if !t.IsTerminal() {
			continue
		}
		terminalAt := t.CompletedAt
		if terminalAt == nil {
			terminalAt = t.FailedAt
		}
		if terminalAt != nil && terminalAt.Before(cutoff) {
			delete(r.tasks, id)
			removed++
		}
	}
	return removed
}
