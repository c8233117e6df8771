package sched

import (
	"runtime"
	"sync/atomic"
	"time"
)

// ExecutorOpts configures one Executor. The fluent-setter convention
// matches the teacher's own QueueOpts and the original's
// Executor::Opts/ScalingThreadpool::ConfigureOpts.
type ExecutorOpts struct {
	threadWeight      uint32
	workerLimit       uint32
	requireLowLatency bool
	headroom          float64
	ringSize          int
	tau               time.Duration
}

// DefaultExecutorOpts returns the baseline every Executor starts from:
// one thread of weight, no hard worker cap, not low-latency, headroom
// equal to the host's hardware concurrency H (so active_limit tracks
// ceil(H/p) and a fully CPU-bound executor can still admit up to one
// task per core, per spec.md §4.6 and the original's
// ExecutorImpl::refresh_limits), a 512-slot submission ring, and a
// one-second EMA time constant.
func DefaultExecutorOpts() ExecutorOpts {
	return ExecutorOpts{
		threadWeight: 1,
		headroom:     float64(runtime.NumCPU()),
		ringSize:     512,
		tau:          time.Second,
	}
}

func (o ExecutorOpts) WithThreadWeight(v uint32) ExecutorOpts { o.threadWeight = v; return o }
func (o ExecutorOpts) WithWorkerLimit(v uint32) ExecutorOpts  { o.workerLimit = v; return o }
func (o ExecutorOpts) WithRequireLowLatency(v bool) ExecutorOpts {
	o.requireLowLatency = v
	return o
}
func (o ExecutorOpts) WithHeadroom(v float64) ExecutorOpts  { o.headroom = v; return o }
func (o ExecutorOpts) WithRingSize(v int) ExecutorOpts       { o.ringSize = v; return o }
func (o ExecutorOpts) WithTau(v time.Duration) ExecutorOpts  { o.tau = v; return o }

func (o ExecutorOpts) ThreadWeight() uint32    { return o.threadWeight }
func (o ExecutorOpts) WorkerLimit() uint32     { return o.workerLimit }
func (o ExecutorOpts) RequireLowLatency() bool { return o.requireLowLatency }

// Executor is one submission point into a ThreadPool: a bounded
// submission ring, its own admission statistics, and an adaptive limit
// controller. Many Executors can share the same ThreadPool's worker
// population and priority queues.
//
// Grounded on ExecutorImpl::refill_queues/refresh_limits in
// original_source/executor.cc.
type Executor struct {
	opts    ExecutorOpts
	stats   *ExecutorStats
	limiter *LimitController
	ring    *BoundedRing[Task]
	pool    *ThreadPool

	shuttingDown atomic.Bool
}

func newExecutor(pool *ThreadPool, opts ExecutorOpts) *Executor {
	e := &Executor{
		opts:  opts,
		stats: NewExecutorStats(opts.tau),
		limiter: &LimitController{
			ThreadWeight: opts.threadWeight,
			WorkerLimit:  opts.workerLimit,
			H:            opts.headroom,
		},
		ring: NewBoundedRing[Task](opts.ringSize),
		pool: pool,
	}
	// Install an initial active limit so the first Submit can take the
	// immediate-dispatch path.
	e.limiter.RefreshActiveLimit(e.stats)
	return e
}

// Stats exposes the executor's live admission/EMA counters, e.g. for a
// debug endpoint.
func (e *Executor) Stats() *ExecutorStats { return e.stats }

// Submit creates a Task from fn and admits it. If the pool currently has
// headroom and nothing else is already waiting in this executor's
// submission ring, the task is admitted and dispatched directly onto a
// priority queue without occupying the ring at all (the "take first"
// fast path in ScalingThreadpool::maybe_run_immediately). Otherwise it
// falls back to the bounded submission ring, returning ErrRingFull if
// that ring is full and ErrShutdown if the executor is shutting down.
func (e *Executor) Submit(fn Func) (*Task, error) {
	if e.shuttingDown.Load() {
		return nil, ErrShutdown
	}

	t := newTask(fn, e)

	if e.maybeRunImmediately(t) {
		return t, nil
	}

	if !e.ring.Push(t) {
		return nil, ErrRingFull
	}
	if err := t.SetState(QueuedExecutor); err != nil {
		return nil, err
	}
	e.refill()
	return t, nil
}

// maybeRunImmediately admits t straight onto a priority queue, skipping
// the submission ring entirely, provided the ring is currently empty (so
// FIFO order among waiting submissions is preserved) and an active slot
// is available. It returns false without side effects if either
// condition fails, leaving t untouched for the caller to push onto the
// ring instead.
func (e *Executor) maybeRunImmediately(t *Task) bool {
	if e.ring.Size() > 0 {
		return false
	}
	if !e.stats.ReserveActive() {
		return false
	}
	band := e.limiter.BandFor(e.stats, e.opts.requireLowLatency)
	if err := e.assignBand(t, band); err != nil {
		e.stats.UnreserveActive()
		return false
	}
	return true
}

// assignBand moves a Created task directly onto a priority queue band,
// used by both maybeRunImmediately (from Created) and refill (from
// QueuedExecutor) — both are legal per the transition table in task.go.
func (e *Executor) assignBand(t *Task, band Priority) error {
	return e.pool.queues.Push(band, t)
}

// refill drains the submission ring into the shared priority queues as
// long as active slots remain, recomputing the active limit first.
// Called after every Submit that lands in the ring and after every task
// finishes (mirroring
// Worker::run_loop's executor->refill_queues() call in the original).
func (e *Executor) refill() {
	e.limiter.RefreshActiveLimit(e.stats)

	for e.stats.ReserveActive() {
		t := e.ring.Pop()
		if t == nil {
			e.stats.UnreserveActive()
			return
		}
		band := e.limiter.BandFor(e.stats, e.opts.requireLowLatency)
		if err := e.assignBand(t, band); err != nil {
			e.stats.UnreserveActive()
			return
		}
	}
}

// shutdown marks the executor as no longer accepting submissions and
// drains its ring, discarding anything still waiting — a drained
// submission never ran and never incremented any running/finished
// counter, matching the original's shutdown-time drop semantics.
func (e *Executor) shutdown() {
	e.shuttingDown.Store(true)
	e.ring.Drain()
}
