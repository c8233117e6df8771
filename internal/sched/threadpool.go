package sched

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/LoganEvans/ScalingThreadPool/internal/obslog"
)

// ConfigureOpts governs a ThreadPool's worker population and its
// background throttle scan. Fluent setters match the original's
// ScalingThreadpool::ConfigureOpts.
type ConfigureOpts struct {
	niceCores       uint32
	threadLimit     uint32
	throttleInterval time.Duration
}

// DefaultConfigureOpts returns one worker per available CPU, no cores
// reserved exclusively for throttled work, and a one-second throttle
// scan interval.
func DefaultConfigureOpts() ConfigureOpts {
	return ConfigureOpts{threadLimit: uint32(runtime.NumCPU()), throttleInterval: time.Second}
}

func (o ConfigureOpts) WithNiceCores(v uint32) ConfigureOpts   { o.niceCores = v; return o }
func (o ConfigureOpts) WithThreadLimit(v uint32) ConfigureOpts { o.threadLimit = v; return o }
func (o ConfigureOpts) WithThrottleInterval(v time.Duration) ConfigureOpts {
	o.throttleInterval = v
	return o
}

func (o ConfigureOpts) NiceCores() uint32            { return o.niceCores }
func (o ConfigureOpts) ThreadLimit() uint32          { return o.threadLimit }
func (o ConfigureOpts) ThrottleInterval() time.Duration { return o.throttleInterval }

// ThreadPool is the process-wide scaling pool: a fixed population of
// Workers draining a single set of priority queues shared by every
// Executor the pool creates. It is the Go counterpart of the original's
// process-global ScalingThreadpool singleton, minus the singleton —
// callers construct and own one explicitly.
//
// Grounded on original_source/threadpool.h.
type ThreadPool struct {
	opts   ConfigureOpts
	queues *PriorityQueues

	mu        sync.RWMutex
	workers   []*Worker
	executors []*Executor

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewThreadPool starts opts.ThreadLimit() workers (at least 1) draining
// a fresh set of priority queues, and starts the background throttle
// scan at opts.ThrottleInterval(). The returned pool must eventually be
// given to Shutdown.
func NewThreadPool(opts ConfigureOpts) *ThreadPool {
	limit := opts.threadLimit
	if limit == 0 {
		limit = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	tp := &ThreadPool{
		opts:   opts,
		queues: NewPriorityQueues(),
		cancel: cancel,
	}

	for i := 0; i < int(limit); i++ {
		w := newWorker(i, tp)
		tp.workers = append(tp.workers, w)
		tp.wg.Add(1)
		go func(w *Worker) {
			defer tp.wg.Done()
			w.Run(ctx)
		}(w)
	}

	if opts.throttleInterval > 0 {
		tp.wg.Add(1)
		go func() {
			defer tp.wg.Done()
			tp.throttleLoop(ctx)
		}()
	}

	return tp
}

// CreateExecutor registers and returns a new Executor sharing this
// pool's workers and priority queues.
func (tp *ThreadPool) CreateExecutor(opts ExecutorOpts) *Executor {
	e := newExecutor(tp, opts)
	tp.mu.Lock()
	tp.executors = append(tp.executors, e)
	tp.mu.Unlock()
	return e
}

// throttleLoop periodically recomputes every live executor's active
// limit and refills its priority queues from its submission ring, even in
// the absence of new submissions or completions. It does not move tasks
// that are already queued or running from one band to another; the band
// a task gets is fixed when it leaves the submission ring.
func (tp *ThreadPool) throttleLoop(ctx context.Context) {
	ticker := time.NewTicker(tp.opts.throttleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tp.mu.RLock()
			executors := append([]*Executor(nil), tp.executors...)
			tp.mu.RUnlock()

			for _, e := range executors {
				e.limiter.RefreshActiveLimit(e.stats)
				e.refill()
			}
		}
	}
}

// Shutdown stops accepting new work on every registered executor,
// drains their submission rings, wakes every worker blocked in
// PopAny, and waits for all worker and background goroutines to exit or
// for ctx to expire, whichever comes first.
func (tp *ThreadPool) Shutdown(ctx context.Context) error {
	tp.mu.RLock()
	executors := append([]*Executor(nil), tp.executors...)
	numWorkers := len(tp.workers)
	tp.mu.RUnlock()

	for _, e := range executors {
		e.shutdown()
	}

	tp.cancel()
	tp.queues.Shutdown(numWorkers)

	done := make(chan struct{})
	go func() {
		tp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		obslog.Log().Warn("thread pool shutdown timed out waiting for workers to exit")
		return ctx.Err()
	}
}
