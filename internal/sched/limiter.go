package sched

import "math"

// LimitController recomputes an executor's two adaptive caps from its
// live EWMAs. It owns no state of its own — it's a pure function of
// ExecutorStats plus a handful of static Opts — so it never needs a
// mutex; any goroutine may call RefreshActiveLimit concurrently with any other.
//
// Grounded on ExecutorImpl::refresh_limits in the original executor.cc.
type LimitController struct {
	// ThreadWeight floors running_limit: an executor always gets to run
	// at least this many tasks regardless of how much nivcsw pressure its
	// tasks are generating.
	ThreadWeight uint32
	// WorkerLimit caps active_limit: the hard ceiling on how many tasks
	// this executor may have admitted (queued+running) at once.
	WorkerLimit uint32
	// H is the headroom target for active_limit: active_limit tracks
	// ceil(H / ema_usage_proportion), so a bigger H means more
	// concurrently-admitted work per unit of observed CPU usage.
	H float64
}

// RefreshActiveLimit recomputes and installs a new active_limit from the
// current ema_usage_proportion. spec.md §9's resolved guard: a
// zero-or-negative proportion (no samples yet, or a degenerate EMA)
// clamps to the single-task floor rather than blowing up to infinity.
func (c *LimitController) RefreshActiveLimit(stats *ExecutorStats) {
	p := stats.EMAUsageProportion()
	var limit uint32
	if p <= 0 {
		limit = 1
	} else {
		limit = uint32(math.Ceil(c.H / p))
	}
	if limit < 1 {
		limit = 1
	}
	if c.WorkerLimit > 0 && limit > c.WorkerLimit {
		limit = c.WorkerLimit
	}
	stats.SetActiveLimit(limit)
}

// RunningLimit returns the number of tasks this executor should allow
// to run concurrently (as opposed to sitting throttled), floored at
// ThreadWeight. ema_runtime_sec > 0 is the resolved (non-inverted) guard
// from spec.md §9 — until at least one full sample has landed, nivcsw
// pressure has no denominator and the limit stays at the floor.
func (c *LimitController) RunningLimit(stats *ExecutorStats) uint32 {
	runtimeSec := stats.EMARuntimeSec()
	if runtimeSec <= 0 {
		return c.ThreadWeight
	}
	ratio := stats.EMANivcsw() / runtimeSec
	limit := uint32(math.Ceil(ratio))
	if limit < c.ThreadWeight {
		limit = c.ThreadWeight
	}
	return limit
}

// BandFor decides which priority band a task should (re)occupy given
// the executor's current running_limit and running_num, matching
// spec.md §4.6's dispatch rule: low-latency tasks are always
// prioritized; everything else starts normal and is demoted to
// throttled once running_num has caught up to running_limit.
func (c *LimitController) BandFor(stats *ExecutorStats, requireLowLatency bool) Priority {
	if requireLowLatency {
		return PriorityPrioritized
	}
	if stats.RunningNum() >= int32(c.RunningLimit(stats)) {
		return PriorityThrottled
	}
	return PriorityNormal
}
