package sched

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// State is a Task's position in its lifecycle. See the transition table in
// validTransitions for every legal move and its side-effects.
type State int

const (
	Created State = iota
	QueuedExecutor
	QueuedThrottled
	QueuedNormal
	QueuedPrioritized
	RunningThrottled
	RunningNormal
	RunningPrioritized
	Finished
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case QueuedExecutor:
		return "QueuedExecutor"
	case QueuedThrottled:
		return "QueuedThrottled"
	case QueuedNormal:
		return "QueuedNormal"
	case QueuedPrioritized:
		return "QueuedPrioritized"
	case RunningThrottled:
		return "RunningThrottled"
	case RunningNormal:
		return "RunningNormal"
	case RunningPrioritized:
		return "RunningPrioritized"
	case Finished:
		return "Finished"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Priority is both a run-queue band and the OS nice-equivalent class a
// worker applies while running a task in that band.
type Priority int

const (
	PriorityThrottled Priority = iota
	PriorityNormal
	PriorityPrioritized
)

func (p Priority) String() string {
	switch p {
	case PriorityThrottled:
		return "throttled"
	case PriorityNormal:
		return "normal"
	case PriorityPrioritized:
		return "prioritized"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

type transition struct {
	from, to State
}

// statDelta is applied to the owning Executor's ExecutorStats when a Task
// makes the (from, to) transition it's keyed by. Exactly one function
// (Task.SetState) ever applies these, so ExecutorStats counters can never
// drift out of sync with the aggregate task state they mirror (spec §9,
// "centralize updates inside the transition function").
type statDelta struct {
	wait, run, thr, fin int32
}

var validTransitions = map[transition]statDelta{
	{Created, QueuedExecutor}:             {wait: 1},
	{Created, QueuedPrioritized}:           {run: 1},
	{Created, QueuedThrottled}:             {thr: 1},
	{Created, QueuedNormal}:                {run: 1},
	{QueuedExecutor, QueuedPrioritized}:    {run: 1},
	{QueuedExecutor, QueuedThrottled}:      {thr: 1},
	{QueuedExecutor, QueuedNormal}:         {run: 1},
	{QueuedPrioritized, RunningPrioritized}: {},
	{QueuedPrioritized, QueuedThrottled}:   {run: -1, thr: 1},
	{QueuedThrottled, QueuedPrioritized}:   {thr: -1, run: 1},
	{QueuedThrottled, QueuedNormal}:        {thr: -1, run: 1},
	{QueuedThrottled, RunningThrottled}:    {},
	{QueuedNormal, QueuedThrottled}:        {run: -1, thr: 1},
	{QueuedNormal, RunningNormal}:          {},
	{RunningPrioritized, RunningThrottled}: {run: -1, thr: 1},
	{RunningThrottled, RunningPrioritized}: {},
	{RunningThrottled, RunningNormal}:      {},
	{RunningNormal, RunningThrottled}:      {run: -1, thr: 1},
	{RunningPrioritized, Finished}:         {run: -1, fin: 1},
	{RunningThrottled, Finished}:           {thr: -1, fin: 1},
	{RunningNormal, Finished}:              {run: -1, fin: 1},
}

// Func is the payload a Task carries. Unlike the opaque callable in the
// original C++ (where an unhandled exception simply propagates out of the
// worker thread), Go payloads return an error so job-tracking and logging
// layers above the core have something to report — the core only logs a
// non-nil return (see worker.go) and otherwise bookkeeps the task as a
// normal completion.
type Func func(ctx context.Context) error

// Task is one unit of work plus its position in the lifecycle. While
// queued it is owned by exactly one container (the submission ring or one
// priority queue); while running it is owned by the worker's stack frame.
type Task struct {
	ID       uuid.UUID
	fn       Func
	executor *Executor // non-owning; the executor outlives all its tasks

	mu           sync.Mutex
	state        State
	nicePriority Priority
	worker       *Worker
}

func newTask(fn Func, executor *Executor) *Task {
	return &Task{
		ID:       uuid.New(),
		fn:       fn,
		executor: executor,
		state:    Created,
	}
}

// State returns the task's current lifecycle state.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState performs the (current, to) transition, applying its side
// effects to the owning executor's stats exactly once. An unlisted
// transition is a programming error: it panics in debug builds (see
// errors.go's invalidTransition) and otherwise logs and leaves the state
// unchanged.
func (t *Task) SetState(to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setStateLocked(to)
}

func (t *Task) setStateLocked(to State) error {
	from := t.state
	delta, ok := validTransitions[transition{from, to}]
	if !ok {
		return invalidTransition(t.ID, from, to)
	}

	stats := t.executor.stats
	if delta.wait != 0 {
		stats.WaitingDelta(delta.wait)
	}
	if delta.run != 0 {
		stats.RunningDelta(delta.run)
	}
	if delta.thr != 0 {
		stats.ThrottledDelta(delta.thr)
	}
	if delta.fin != 0 {
		stats.FinishedDelta(delta.fin)
	}

	t.state = to
	return nil
}

// NicePriority returns the task's desired OS-level priority band.
func (t *Task) NicePriority() Priority {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nicePriority
}

// SetNicePriority updates the task's desired band. If the task already has
// a worker (it is running), the worker's OS-level priority is nudged to
// match — priority changes never preempt or requeue a running task, they
// only affect the nice value applied to it and, for queued tasks, which
// band future dispatches will observe.
func (t *Task) SetNicePriority(p Priority) {
	t.mu.Lock()
	w := t.worker
	t.nicePriority = p
	t.mu.Unlock()

	if w != nil {
		w.applyNicePriority(p)
	}
}

// Run transitions the task from whichever Queued<Band> state it occupies
// into the matching Running<Band> state, records the worker executing it,
// and invokes the payload. The worker, not Run, performs the terminal
// Running->Finished transition once the payload returns (see worker.go) —
// that keeps the "run" and "finish" bookkeeping steps independently
// visible to callers that want to time just the payload. A panic in the
// payload is recovered and returned as an error, so that bookkeeping
// still runs.
func (t *Task) Run(ctx context.Context, w *Worker) (err error) {
	t.mu.Lock()
	var running State
	switch t.state {
	case QueuedThrottled:
		running = RunningThrottled
	case QueuedNormal:
		running = RunningNormal
	case QueuedPrioritized:
		running = RunningPrioritized
	default:
		err := invalidTransition(t.ID, t.state, RunningNormal)
		t.mu.Unlock()
		return err
	}
	if err := t.setStateLocked(running); err != nil {
		t.mu.Unlock()
		return err
	}
	t.worker = w
	t.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sched: task payload panicked: %v", r)
		}
	}()
	return t.fn(ctx)
}

// Finish transitions the task from its current Running<Band> state to
// Finished, releasing its admission slot.
func (t *Task) Finish() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.setStateLocked(Finished)
}
