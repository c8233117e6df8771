package sched

import (
	"context"
	"runtime"
	"sync/atomic"
)

// FIFOExecutor is the degenerate case of Executor: no priority bands, no
// adaptive limiting, no worker pool to share — one dedicated worker
// goroutine draining one submission ring in strict FIFO order. It
// exists for callers that want "run my tasks in the order I submitted
// them" without paying for any of the scaling machinery.
//
// Grounded verbatim on original_source/fifo_executor.cc's
// FIFOExecutorImpl, whose pop() is a one-line `return queue_.pop()`.
type FIFOExecutor struct {
	ring *BoundedRing[Task]
	wake chan struct{}
	book *Executor // stats bookkeeping only; its pool/ring/limiter are never touched

	shuttingDown atomic.Bool
	cancel       context.CancelFunc
	done         chan struct{}
}

// NewFIFOExecutor starts its worker goroutine and returns immediately.
func NewFIFOExecutor(ringSize int) *FIFOExecutor {
	ctx, cancel := context.WithCancel(context.Background())
	e := &FIFOExecutor{
		ring:   NewBoundedRing[Task](ringSize),
		wake:   make(chan struct{}, 1),
		book:   newExecutor(nil, DefaultExecutorOpts().WithRingSize(1)),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go e.runLoop(ctx)
	return e
}

// Post submits fn for eventual, strictly-ordered execution. It returns
// ErrRingFull if the submission ring has no room and ErrShutdown once
// Close has been called.
func (e *FIFOExecutor) Post(fn Func) (*Task, error) {
	if e.shuttingDown.Load() {
		return nil, ErrShutdown
	}
	t := newTask(fn, e.book)
	if !e.ring.Push(t) {
		return nil, ErrRingFull
	}
	if err := t.SetState(QueuedExecutor); err != nil {
		return nil, err
	}
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return t, nil
}

func (e *FIFOExecutor) runLoop(ctx context.Context) {
	defer close(e.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		t := e.pop()
		if t != nil {
			_ = t.SetState(QueuedNormal)
			_ = t.SetState(RunningNormal)
			_ = t.fn(ctx)
			_ = t.SetState(Finished)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		}
	}
}

// pop is an unmediated ring pop — no bands, no admission accounting —
// matching FIFOExecutorImpl::pop's single-line delegation to its queue.
func (e *FIFOExecutor) pop() *Task {
	return e.ring.Pop()
}

// Close stops accepting submissions, drains whatever is left in the
// ring unrun, and waits for the worker goroutine to exit.
func (e *FIFOExecutor) Close() {
	if !e.shuttingDown.CompareAndSwap(false, true) {
		return
	}
	e.ring.Drain()
	e.cancel()
	<-e.done
}
