package sched

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutorStats_ReserveActiveRespectsLimit(t *testing.T) {
	s := NewExecutorStats(time.Second)
	s.SetActiveLimit(2)

	require.True(t, s.ReserveActive())
	require.True(t, s.ReserveActive())
	assert.False(t, s.ReserveActive())

	num, limit := s.ActiveNumLimit()
	assert.EqualValues(t, 2, num)
	assert.EqualValues(t, 2, limit)

	s.UnreserveActive()
	num, _ = s.ActiveNumLimit()
	assert.EqualValues(t, 1, num)
	assert.True(t, s.ReserveActive())
}

func TestExecutorStats_FinishedDeltaDecrementsActive(t *testing.T) {
	s := NewExecutorStats(time.Second)
	s.SetActiveLimit(5)
	require.True(t, s.ReserveActive())
	require.True(t, s.ReserveActive())

	s.FinishedDelta(1)

	num, _ := s.ActiveNumLimit()
	assert.EqualValues(t, 1, num)
	assert.EqualValues(t, 1, s.FinishedNum())
}

func TestExecutorStats_UpdateEMA_ConvergesTowardSteadyInput(t *testing.T) {
	s := NewExecutorStats(50 * time.Millisecond)

	begin := Snapshot{At: time.Unix(0, 0), UTime: 0, Nivcsw: 0}
	end := Snapshot{At: time.Unix(0, 0).Add(50 * time.Millisecond), UTime: 50 * time.Millisecond, Nivcsw: 10}

	last := s.EMAUsageProportion()
	for i := 0; i < 200; i++ {
		s.UpdateEMA(begin, end)
		cur := s.EMAUsageProportion()
		assert.GreaterOrEqual(t, cur, last-1e-9)
		last = cur
		begin, end = end, Snapshot{
			At:     end.At.Add(50 * time.Millisecond),
			UTime:  end.UTime + 50*time.Millisecond,
			Nivcsw: end.Nivcsw + 10,
		}
	}

	assert.InDelta(t, 1.0, s.EMAUsageProportion(), 0.05)
	assert.InDelta(t, 10.0, s.EMANivcsw(), 1.0)
}

func TestExecutorStats_UpdateEMA_IgnoresNonPositiveInterval(t *testing.T) {
	s := NewExecutorStats(time.Second)
	now := time.Now()
	s.UpdateEMA(Snapshot{At: now}, Snapshot{At: now})
	assert.Zero(t, s.EMAUsageProportion())
}
