package sched

import (
	"context"
	"runtime"
	"sync"

	"github.com/LoganEvans/ScalingThreadPool/internal/obslog"
)

// Worker pulls tasks from a ThreadPool's shared priority queues and runs
// them one at a time on a single, pinned OS thread. Pinning (via
// runtime.LockOSThread) is what makes the per-thread OS priority and
// rusage facilities below meaningful under Go's M:N goroutine scheduler
// — the original runs one-to-one on real pthreads and gets this for
// free.
//
// Grounded on Worker::run_loop in original_source/worker.cc.
type Worker struct {
	id   int
	pool *ThreadPool

	priorityMu      sync.Mutex
	currentPriority Priority
	primed          bool
}

func newWorker(id int, pool *ThreadPool) *Worker {
	return &Worker{id: id, pool: pool}
}

// Run pins the calling goroutine to its OS thread and loops popping and
// running tasks until ctx is done or the pool's queues report shutdown.
func (w *Worker) Run(ctx context.Context) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		t := w.pool.queues.PopAny(ctx)
		if t == nil {
			return
		}
		w.runTask(ctx, t)
	}
}

func (w *Worker) runTask(ctx context.Context, t *Task) {
	w.applyNicePriority(t.NicePriority())

	begin := snapshotNow()
	if err := t.Run(ctx, w); err != nil {
		obslog.Log().WithError(err).WithField("task", t.ID.String()).Warn("task payload returned an error")
	}
	end := snapshotNow()

	if err := t.Finish(); err != nil {
		obslog.Log().WithError(err).WithField("task", t.ID.String()).Warn("failed to finish task")
	}

	executor := t.executor
	executor.stats.UpdateEMA(begin, end)
	executor.refill()
}

// applyNicePriority nudges this worker's OS-level scheduling priority to
// match p, skipping the syscall entirely when it would be a no-op — the
// same dedup original_source/worker.cc's set_nice_priority does by
// comparing against the currently-applied value before touching
// pthread_setschedparam.
func (w *Worker) applyNicePriority(p Priority) {
	w.priorityMu.Lock()
	defer w.priorityMu.Unlock()

	if w.primed && w.currentPriority == p {
		return
	}
	w.currentPriority = p
	w.primed = true
	setThreadPriority(p)
}
