package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LoganEvans/ScalingThreadPool/internal/resp"
	"github.com/LoganEvans/ScalingThreadPool/internal/sched"
)

var errNotReady = errors.New("job not finished yet")

type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

type Job struct {
	ID         string            `json:"id"`
	Task       string            `json:"task"`
	Params     map[string]string `json:"params,omitempty"`
	Status     Status            `json:"status"`
	EnqueuedAt time.Time         `json:"enqueued_at"`
	StartedAt  *time.Time        `json:"started_at,omitempty"`
	EndedAt    *time.Time        `json:"ended_at,omitempty"`
	Result     *resp.Result      `json:"result,omitempty"`

	cancel context.CancelFunc
}

// Handler computes a job's result given its request params. It's the
// same shape handlers in this repo already expose (resp.Result-returning
// functions over a param map); jobs.Manager just wraps one in a
// sched.Func so it can ride an executor's priority bands.
type Handler func(params map[string]string) resp.Result

type registryEntry struct {
	executor *sched.Executor
	handler  Handler
}

// Manager keeps an in-memory ledger of jobs and runs each one on the
// sched.Executor registered for its task name. Adapted from the
// teacher's jobs.Manager, retargeted from sched.Pool/SubmitAndWait onto
// sched.Executor/Submit plus a local result channel, since Executor has
// no built-in synchronous wait.
type Manager struct {
	mu       sync.RWMutex
	registry map[string]registryEntry
	jobs     map[string]*Job

	ttl   time.Duration
	stopC chan struct{}
}

// NewManager creates a Job Manager with a TTL for finished-job cleanup.
func NewManager(ttl time.Duration) *Manager {
	m := &Manager{
		registry: make(map[string]registryEntry),
		jobs:     make(map[string]*Job),
		ttl:      ttl,
		stopC:    make(chan struct{}),
	}
	go m.gcLoop()
	return m
}

// Register binds a task name to the executor it should run on and the
// handler that computes its result.
func (m *Manager) Register(task string, executor *sched.Executor, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registry[task] = registryEntry{executor: executor, handler: handler}
}

// Close stops the GC goroutine.
func (m *Manager) Close() { close(m.stopC) }

func (m *Manager) gcLoop() {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.cleanup()
		case <-m.stopC:
			return
		}
	}
}

func (m *Manager) cleanup() {
	cut := time.Now().Add(-m.ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, j := range m.jobs {
		if (j.Status == StatusDone || j.Status == StatusFailed || j.Status == StatusTimeout || j.Status == StatusCancelled) &&
			j.EndedAt != nil && j.EndedAt.Before(cut) {
			delete(m.jobs, id)
		}
	}
}

// Submit creates a job and runs it in the background. Returns the job
// ID, or "" if task isn't registered.
func (m *Manager) Submit(task string, params map[string]string, execTimeout time.Duration) string {
	m.mu.RLock()
	reg, ok := m.registry[task]
	m.mu.RUnlock()
	if !ok {
		return ""
	}

	id := uuid.New().String()
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	job := &Job{
		ID:         id,
		Task:       task,
		Params:     params,
		Status:     StatusQueued,
		EnqueuedAt: now,
		cancel:     cancel,
	}
	m.mu.Lock()
	m.jobs[id] = job
	m.mu.Unlock()

	resultCh := make(chan resp.Result, 1)
	_, err := reg.executor.Submit(func(taskCtx context.Context) error {
		start := time.Now()
		m.mu.Lock()
		job.StartedAt = &start
		if job.Status == StatusQueued {
			job.Status = StatusRunning
		}
		m.mu.Unlock()

		resultCh <- reg.handler(params)
		return nil
	})
	if err != nil {
		end := time.Now()
		m.mu.Lock()
		job.EndedAt = &end
		job.Status = StatusFailed
		job.Result = &resp.Result{Status: 503, JSON: true, Err: &resp.ErrObj{Code: "backpressure", Detail: err.Error()}}
		m.mu.Unlock()
		return id
	}

	go func() {
		defer cancel()
		select {
		case res := <-resultCh:
			end := time.Now()
			m.mu.Lock()
			job.EndedAt = &end
			job.Result = &res
			if res.Status >= 200 && res.Status < 300 {
				job.Status = StatusDone
			} else {
				job.Status = StatusFailed
			}
			m.mu.Unlock()
		case <-ctx.Done():
			end := time.Now()
			m.mu.Lock()
			defer m.mu.Unlock()
			if job.Status == StatusCancelled {
				job.EndedAt = &end
				return
			}
			job.EndedAt = &end
			job.Status = StatusTimeout
		case <-time.After(execTimeout):
			end := time.Now()
			m.mu.Lock()
			job.EndedAt = &end
			job.Status = StatusTimeout
			m.mu.Unlock()
		}
	}()

	return id
}

// Cancel marks a queued or running job as cancelled. The underlying
// task, once admitted onto an executor, still runs to completion —
// sched.Task has no preemption — but the job ledger stops waiting on
// it and reports StatusCancelled immediately.
func (m *Manager) Cancel(id string) (Status, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return "", false
	}
	if j.Status == StatusDone || j.Status == StatusFailed || j.Status == StatusTimeout || j.Status == StatusCancelled {
		return j.Status, true
	}
	j.Status = StatusCancelled
	if j.cancel != nil {
		j.cancel()
	}
	return j.Status, true
}

// SnapshotJSON returns a JSON blob with job metadata without mutating
// the original.
func (m *Manager) SnapshotJSON(id string) (string, bool) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	b, _ := json.Marshal(snapshotOf(j))
	return string(b), true
}

// ResultJSON returns the job's result JSON once it has finished. ok is
// false if the job doesn't exist; err is non-nil if the job exists but
// hasn't finished yet.
func (m *Manager) ResultJSON(id string) (string, bool, error) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if j.Result == nil {
		return "", true, errNotReady
	}
	b, _ := json.Marshal(j.Result)
	return string(b), true, nil
}

// ListJSON lists current jobs (active and not-yet-expired finished ones).
func (m *Manager) ListJSON() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	type lite struct {
		ID     string `json:"id"`
		Task   string `json:"task"`
		Status Status `json:"status"`
	}
	out := make([]lite, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, lite{ID: j.ID, Task: j.Task, Status: j.Status})
	}
	b, _ := json.Marshal(out)
	return string(b)
}

func snapshotOf(j *Job) *Job {
	return &Job{
		ID:         j.ID,
		Task:       j.Task,
		Params:     j.Params,
		Status:     j.Status,
		EnqueuedAt: j.EnqueuedAt,
		StartedAt:  j.StartedAt,
		EndedAt:    j.EndedAt,
		Result:     j.Result,
	}
}
