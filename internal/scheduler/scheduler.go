// Package scheduler implements the Interval Scheduler (spec §4.6): fires a
// new task every interval and never blocks on task execution. queue_task
// must return in O(1) time regardless of RPC latency — that guarantee is
// the scheduler's entire contract, and the reason posting is coordinated
// behind the separate Cosmos sequence coordinator rather than inline here.
package scheduler

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"cosmossdk.io/log"
)

// State is the scheduler's run state (spec §4.6 state machine).
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

// TaskFunc is invoked once per tick; it must return immediately (spec's
// O(1) queue_task guarantee) — typically by launching the real work in its
// own goroutine and returning.
type TaskFunc func(taskID string)

// Config configures the scheduler (spec §6 SCHEDULER_* env vars).
type Config struct {
	Interval   time.Duration
	Continuous bool
}

// Stats is the scheduler's own lightweight counters, independent of the
// solver-wide stats.Stats (C12), which tracks task outcomes rather than
// ticks.
type Stats struct {
	TicksFired uint64
}

// Scheduler fires a tick on a timer and calls TaskFunc without blocking.
type Scheduler struct {
	logger log.Logger
	cfg    Config
	onTick TaskFunc

	mu          sync.Mutex
	state       State
	ticksFired  atomic.Uint64
	nextTaskNum atomic.Uint64

	stopC chan struct{}
	doneC chan struct{}
}

// New constructs a Scheduler. onTick is called synchronously from the
// ticker goroutine, so it must not block.
func New(logger log.Logger, cfg Config, onTick TaskFunc) *Scheduler {
	return &Scheduler{
		logger: logger,
		cfg:    cfg,
		onTick: onTick,
		state:  StateIdle,
	}
}

// State returns the scheduler's current run state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start transitions IDLE -> RUNNING: resets statistics, immediately enqueues
// the first task, then starts the interval ticker (and, if Continuous, a
// 1-second countdown ticker for visibility logs). Start is a no-op if
// already running.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.state == StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateRunning
	s.ticksFired.Store(0)
	s.stopC = make(chan struct{})
	s.doneC = make(chan struct{})
	s.mu.Unlock()

	s.queueTask()

	go s.run()
}

// Stop transitions RUNNING -> STOPPED: stops the tickers, logs the number
// of ticks fired, and returns once the ticker goroutine has exited. It does
// not track or log the tasks still in flight; those keep running in the
// background.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return
	}
	s.state = StateStopped
	stopC := s.stopC
	doneC := s.doneC
	s.mu.Unlock()

	close(stopC)
	<-doneC

	s.logger.Info("scheduler stopped", "ticks_fired", s.ticksFired.Load())
}

// Stats returns the scheduler's current counters.
func (s *Scheduler) Stats() Stats {
	return Stats{TicksFired: s.ticksFired.Load()}
}

// Ready reports whether the scheduler has completed its first tick, for
// the health server's /readyz probe.
func (s *Scheduler) Ready() bool {
	return s.ticksFired.Load() > 0
}

func (s *Scheduler) run() {
	defer close(s.doneC)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	var countdown *time.Ticker
	var countdownC <-chan time.Time
	if s.cfg.Continuous {
		countdown = time.NewTicker(time.Second)
		defer countdown.Stop()
		countdownC = countdown.C
	}

	remaining := s.cfg.Interval
	for {
		select {
		case <-s.stopC:
			return
		case <-ticker.C:
			s.queueTask()
			remaining = s.cfg.Interval
		case <-countdownC:
			remaining -= time.Second
			if remaining < 0 {
				remaining = 0
			}
			s.logger.Debug("next task in", "remaining", remaining)
		}
	}
}

// queueTask enqueues exactly one new task. This is the O(1) operation spec
// §4.6 guarantees: it never performs network I/O, it only invokes onTick,
// which itself must return immediately.
func (s *Scheduler) queueTask() {
	n := s.nextTaskNum.Add(1)
	s.ticksFired.Add(1)
	taskID := taskIDFor(n)
	s.onTick(taskID)
}

func taskIDFor(n uint64) string {
	return "task-" + strconv.FormatUint(n, 10)
}
