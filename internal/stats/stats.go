// Package stats implements the solver's counters and per-phase timings
// (spec §4.12). Any field not updated by a given code path stays zero,
// per spec §9's resolution of the statistics-field-union open question.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot is a clonable point-in-time read of the Stats counters.
type Snapshot struct {
	TotalPosted          uint64
	TotalOracleCompleted uint64
	TotalOracleFailed    uint64
	TotalFanoutSuccess   uint64
	TotalFanoutFailed    uint64
	StartTime            time.Time
	PhaseDurations       map[string]time.Duration
}

// SuccessRate returns TotalOracleCompleted / (TotalOracleCompleted + TotalOracleFailed),
// or 0 if nothing has completed yet.
func (s Snapshot) SuccessRate() float64 {
	total := s.TotalOracleCompleted + s.TotalOracleFailed
	if total == 0 {
		return 0
	}
	return float64(s.TotalOracleCompleted) / float64(total)
}

// Stats holds the process's running counters. Safe for concurrent use.
type Stats struct {
	totalPosted          atomic.Uint64
	totalOracleCompleted atomic.Uint64
	totalOracleFailed    atomic.Uint64
	totalFanoutSuccess   atomic.Uint64
	totalFanoutFailed    atomic.Uint64
	startTime            time.Time

	mu             sync.Mutex
	phaseDurations map[string]time.Duration
}

// New constructs a Stats with StartTime set to now.
func New() *Stats {
	return &Stats{
		startTime:      time.Now(),
		phaseDurations: make(map[string]time.Duration),
	}
}

func (s *Stats) IncPosted()          { s.totalPosted.Add(1) }
func (s *Stats) IncOracleCompleted() { s.totalOracleCompleted.Add(1) }
func (s *Stats) IncOracleFailed()    { s.totalOracleFailed.Add(1) }
func (s *Stats) IncFanoutSuccess()   { s.totalFanoutSuccess.Add(1) }
func (s *Stats) IncFanoutFailed()    { s.totalFanoutFailed.Add(1) }

// RecordPhaseDuration stores d as the named phase's last-observed duration,
// replacing any earlier value; durations are neither summed nor bucketed.
func (s *Stats) RecordPhaseDuration(phase string, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phaseDurations[phase] = d
}

// Runtime returns how long the process has been running.
func (s *Stats) Runtime() time.Duration {
	return time.Since(s.startTime)
}

// Snapshot returns a clonable copy of the current counters.
func (s *Stats) Snapshot() Snapshot {
	s.mu.Lock()
	phases := make(map[string]time.Duration, len(s.phaseDurations))
	for k, v := range s.phaseDurations {
		phases[k] = v
	}
	s.mu.Unlock()

	return Snapshot{
		TotalPosted:          s.totalPosted.Load(),
		TotalOracleCompleted: s.totalOracleCompleted.Load(),
		TotalOracleFailed:    s.totalOracleFailed.Load(),
		TotalFanoutSuccess:   s.totalFanoutSuccess.Load(),
		TotalFanoutFailed:    s.totalFanoutFailed.Load(),
		StartTime:            s.startTime,
		PhaseDurations:       phases,
	}
}
