package sched

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// semaphoreCapacity bounds the counting semaphore backing each
// PriorityQueue. PriorityQueue itself never rejects a push — admission is
// bounded upstream by ExecutorStats.active_limit — so this only needs to
// be large enough to never be the limiting factor.
const semaphoreCapacity = 1 << 30

// PriorityQueue is one band's run queue: a mutex-guarded deque paired
// with a counting semaphore. Push releases one permit per task; pop
// acquires one. Finished tasks are tombstoned in place rather than
// removed from the middle of the deque (spec.md §4.2 / §9) and reaped
// from the front the next time anyone pops.
type PriorityQueue struct {
	mu    sync.Mutex
	deque []*Task
	sem   *semaphore.Weighted

	shuttingDown atomic.Bool
}

// newCountingSemaphore returns a semaphore.Weighted with every permit
// already held, so it starts at a count of zero: Release(n) makes n
// permits available and Acquire/TryAcquire take one back. (Weighted
// counts permits in use, and releasing more than are held panics.)
func newCountingSemaphore() *semaphore.Weighted {
	s := semaphore.NewWeighted(semaphoreCapacity)
	s.TryAcquire(semaphoreCapacity)
	return s
}

func newPriorityQueue() *PriorityQueue {
	return &PriorityQueue{sem: newCountingSemaphore()}
}

// Push appends t to the back of the queue and wakes one blocked consumer.
func (q *PriorityQueue) Push(t *Task) {
	q.mu.Lock()
	q.deque = append(q.deque, t)
	q.mu.Unlock()
	q.sem.Release(1)
}

// TryPop performs a non-blocking pop: if no permit is immediately
// available, it returns nil without waiting.
func (q *PriorityQueue) TryPop() *Task {
	if !q.sem.TryAcquire(1) {
		return nil
	}
	return q.popAfterAcquire()
}

// BlockingPop blocks until a permit is available or ctx is done. It
// returns nil only once the queue has been shut down (or ctx expires).
func (q *PriorityQueue) BlockingPop(ctx context.Context) *Task {
	if err := q.sem.Acquire(ctx, 1); err != nil {
		return nil
	}
	return q.popAfterAcquire()
}

func (q *PriorityQueue) popAfterAcquire() *Task {
	if q.shuttingDown.Load() {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reapFinishedLocked()
	if len(q.deque) == 0 {
		return nil
	}
	t := q.deque[0]
	q.deque = q.deque[1:]
	return t
}

// ReapFinished idempotently drops Finished tombstones from the front of
// the queue without consuming a semaphore permit. Nothing in this package
// calls it; it is not required for correctness since every pop path
// reaps on its own.
func (q *PriorityQueue) ReapFinished() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reapFinishedLocked()
}

func (q *PriorityQueue) reapFinishedLocked() {
	for len(q.deque) > 0 && q.deque[0].State() == Finished {
		q.deque = q.deque[1:]
	}
}

// Shutdown marks the queue as shutting down and releases enough permits
// that every worker currently blocked in BlockingPop wakes and observes
// nil.
func (q *PriorityQueue) Shutdown(blockedWorkers int) {
	if q.shuttingDown.CompareAndSwap(false, true) {
		if blockedWorkers > 0 {
			q.sem.Release(int64(blockedWorkers))
		}
	}
}

// PriorityQueues owns the three priority bands shared by every Executor
// in a pool. wake is a doorbell: every Push releases one permit, and
// PopAny's cross-band wait acquires one permit per wakeup. Unlike a
// capacity-1 channel, a semaphore never coalesces concurrent Pushes into
// a single wakeup, so a burst of K pushes against N idle workers wakes
// up to min(K, N) of them instead of serializing the drain through
// whichever single worker happened to win the channel send.
type PriorityQueues struct {
	Throttled   *PriorityQueue
	Normal      *PriorityQueue
	Prioritized *PriorityQueue

	wake *semaphore.Weighted
}

// NewPriorityQueues allocates the three bands.
func NewPriorityQueues() *PriorityQueues {
	return &PriorityQueues{
		Throttled:   newPriorityQueue(),
		Normal:      newPriorityQueue(),
		Prioritized: newPriorityQueue(),
		wake:        newCountingSemaphore(),
	}
}

func (q *PriorityQueues) queueFor(p Priority) *PriorityQueue {
	switch p {
	case PriorityThrottled:
		return q.Throttled
	case PriorityPrioritized:
		return q.Prioritized
	default:
		return q.Normal
	}
}

// Push transitions t into the Queued<band> state and appends it to that
// band's queue, matching TaskQueues::push in the original (the state
// transition and the queue placement happen together, under no queue
// lock wider than PriorityQueue.Push's own).
func (q *PriorityQueues) Push(p Priority, t *Task) error {
	t.SetNicePriority(p)
	if err := t.SetState(queuedStateFor(p)); err != nil {
		return err
	}
	q.queueFor(p).Push(t)
	q.notify()
	return nil
}

// queuedStateFor maps a priority band to the Queued<Band> state a task
// moves into when pushed onto that band's queue.
func queuedStateFor(p Priority) State {
	switch p {
	case PriorityThrottled:
		return QueuedThrottled
	case PriorityPrioritized:
		return QueuedPrioritized
	default:
		return QueuedNormal
	}
}

func (q *PriorityQueues) notify() {
	q.wake.Release(1)
}

// PopAny blocks until a task is available in any band, preferring
// Prioritized, then Normal, then Throttled — the same high-to-low polling
// order the teacher's sched.Pool.Start uses across its three channels,
// generalized here from Go channels to the spec's semaphore-backed
// queues. It returns nil once ctx is done.
func (q *PriorityQueues) PopAny(ctx context.Context) *Task {
	for {
		if t := q.Prioritized.TryPop(); t != nil {
			return t
		}
		if t := q.Normal.TryPop(); t != nil {
			return t
		}
		if t := q.Throttled.TryPop(); t != nil {
			return t
		}
		if err := q.wake.Acquire(ctx, 1); err != nil {
			return nil
		}
		// Something changed; loop back and re-check high to low.
	}
}

// Shutdown shuts down all three bands and releases one wake permit per
// blockedWorkers so every worker currently parked in PopAny's
// q.wake.Acquire wakes, re-checks all three bands (now shutting down),
// and returns nil.
func (q *PriorityQueues) Shutdown(blockedWorkers int) {
	q.Throttled.Shutdown(0)
	q.Normal.Shutdown(0)
	q.Prioritized.Shutdown(0)
	if blockedWorkers > 0 {
		q.wake.Release(int64(blockedWorkers))
	}
}
