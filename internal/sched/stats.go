package sched

import (
	"math"
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time read of a worker's clock position and
// resource usage, taken once when a task starts running and once when it
// finishes. The delta between two snapshots feeds UpdateEMA. It stands in
// for the original's separate (struct timeval, struct rusage) pair.
type Snapshot struct {
	At     time.Time
	UTime  time.Duration // cumulative per-thread user CPU time
	Nivcsw int64         // cumulative per-thread involuntary context switches
}

func packActive(num, limit uint32) uint64 { return uint64(num)<<32 | uint64(limit) }

func unpackActive(line uint64) (num, limit uint32) { return uint32(line >> 32), uint32(line) }

// ExecutorStats holds one executor's admission accounting and its three
// EWMAs. The (num, limit) pair is packed into a single atomic word per
// spec.md §9: "do not split into two independent atomics, since admission
// requires observing both consistently."
type ExecutorStats struct {
	active atomic.Uint64

	waitingNum   atomic.Int32
	runningNum   atomic.Int32
	throttledNum atomic.Int32
	finishedNum  atomic.Int32

	emaUsageProportion atomic.Uint64 // float64 bits
	emaNivcsw          atomic.Uint64 // float64 bits
	emaRuntimeSec      atomic.Uint64 // float64 bits

	tau time.Duration
}

// NewExecutorStats returns zeroed stats with EMA time constant tau (e.g.
// one second).
func NewExecutorStats(tau time.Duration) *ExecutorStats {
	if tau <= 0 {
		tau = time.Second
	}
	return &ExecutorStats{tau: tau}
}

// ReserveActive speculatively increments the active count, failing (and
// leaving the word unchanged) if that would exceed the active limit. Its
// successful CAS is the linearization point for admission.
func (s *ExecutorStats) ReserveActive() bool {
	for {
		old := s.active.Load()
		num, limit := unpackActive(old)
		if num+1 > limit {
			return false
		}
		if s.active.CompareAndSwap(old, packActive(num+1, limit)) {
			return true
		}
	}
}

// UnreserveActive reverses a reservation that found no task to pop.
func (s *ExecutorStats) UnreserveActive() {
	for {
		old := s.active.Load()
		num, limit := unpackActive(old)
		if !s.active.CompareAndSwap(old, packActive(num-1, limit)) {
			continue
		}
		return
	}
}

// SetActiveLimit installs a new active limit. Executions already over the
// old limit continue; new reservations fail until the count drains back
// under the new limit.
func (s *ExecutorStats) SetActiveLimit(limit uint32) {
	for {
		old := s.active.Load()
		num, _ := unpackActive(old)
		if s.active.CompareAndSwap(old, packActive(num, limit)) {
			return
		}
	}
}

// ActiveNumLimit returns the current (num, limit) pair read from one
// atomic load.
func (s *ExecutorStats) ActiveNumLimit() (num, limit uint32) {
	return unpackActive(s.active.Load())
}

func (s *ExecutorStats) WaitingDelta(v int32)   { s.waitingNum.Add(v) }
func (s *ExecutorStats) RunningDelta(v int32)   { s.runningNum.Add(v) }
func (s *ExecutorStats) ThrottledDelta(v int32) { s.throttledNum.Add(v) }

// FinishedDelta increments finished_num by n and decrements active.num by
// n. The order is fixed — finished first, then active — matching
// ExecutorStats::finished_delta in the original.
func (s *ExecutorStats) FinishedDelta(n int32) {
	s.finishedNum.Add(n)
	for {
		old := s.active.Load()
		num, limit := unpackActive(old)
		if s.active.CompareAndSwap(old, packActive(num-uint32(n), limit)) {
			return
		}
	}
}

func (s *ExecutorStats) WaitingNum() int32   { return s.waitingNum.Load() }
func (s *ExecutorStats) RunningNum() int32   { return s.runningNum.Load() }
func (s *ExecutorStats) ThrottledNum() int32 { return s.throttledNum.Load() }
func (s *ExecutorStats) FinishedNum() int32  { return s.finishedNum.Load() }

func (s *ExecutorStats) EMAUsageProportion() float64 {
	return math.Float64frombits(s.emaUsageProportion.Load())
}
func (s *ExecutorStats) EMANivcsw() float64 {
	return math.Float64frombits(s.emaNivcsw.Load())
}
func (s *ExecutorStats) EMARuntimeSec() float64 {
	return math.Float64frombits(s.emaRuntimeSec.Load())
}

func casFloat(a *atomic.Uint64, f func(old float64) float64) {
	for {
		oldBits := a.Load()
		old := math.Float64frombits(oldBits)
		newBits := math.Float64bits(f(old))
		if a.CompareAndSwap(oldBits, newBits) {
			return
		}
	}
}

// UpdateEMA folds one completed task's timing into the three EWMAs.
// alpha = 1 - exp(-dt/tau), where dt is the sample's own duration, so a
// long-running task's sample moves the average further than a short one's.
func (s *ExecutorStats) UpdateEMA(begin, end Snapshot) {
	dt := end.At.Sub(begin.At).Seconds()
	if dt <= 0 {
		return
	}
	alpha := 1 - math.Exp(-dt/s.tau.Seconds())

	usage := (end.UTime - begin.UTime).Seconds() / dt
	casFloat(&s.emaUsageProportion, func(old float64) float64 {
		return old + alpha*(usage-old)
	})

	nivcswDelta := float64(end.Nivcsw - begin.Nivcsw)
	casFloat(&s.emaNivcsw, func(old float64) float64 {
		return old + alpha*(nivcswDelta-old)
	})

	casFloat(&s.emaRuntimeSec, func(old float64) float64 {
		return old + alpha*(dt-old)
	})
}
