package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCountersAndSnapshot(t *testing.T) {
	s := New()
	s.IncPosted()
	s.IncPosted()
	s.IncOracleCompleted()
	s.IncOracleFailed()
	s.IncFanoutSuccess()

	snap := s.Snapshot()
	require.Equal(t, uint64(2), snap.TotalPosted)
	require.Equal(t, uint64(1), snap.TotalOracleCompleted)
	require.Equal(t, uint64(1), snap.TotalOracleFailed)
	require.Equal(t, uint64(1), snap.TotalFanoutSuccess)
	require.Equal(t, uint64(0), snap.TotalFanoutFailed)
}

func TestSuccessRate(t *testing.T) {
	require.Equal(t, float64(0), Snapshot{}.SuccessRate())

	snap := Snapshot{TotalOracleCompleted: 3, TotalOracleFailed: 1}
	require.InDelta(t, 0.75, snap.SuccessRate(), 0.0001)
}

func TestRuntimeAdvances(t *testing.T) {
	s := New()
	time.Sleep(5 * time.Millisecond)
	require.Greater(t, s.Runtime(), time.Duration(0))
}

func TestRecordPhaseDuration(t *testing.T) {
	s := New()
	s.RecordPhaseDuration("post", 10*time.Millisecond)
	snap := s.Snapshot()
	require.Equal(t, 10*time.Millisecond, snap.PhaseDurations["post"])
}
