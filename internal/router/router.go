package router

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/LoganEvans/ScalingThreadPool/internal/handlers"
	"github.com/LoganEvans/ScalingThreadPool/internal/http10"
	"github.com/LoganEvans/ScalingThreadPool/internal/jobs"
	"github.com/LoganEvans/ScalingThreadPool/internal/resp"
	"github.com/LoganEvans/ScalingThreadPool/internal/sched"
)

// -----------------------------------------------------------------------------
// Per-kind timeouts from environment:
//   TIMEOUT_CPU: e.g. "60s" (default 60s)
//   TIMEOUT_IO : e.g. "120s" (default 120s)
// -----------------------------------------------------------------------------
var (
	cpuTimeout = getDurEnv("TIMEOUT_CPU", 60*time.Second)
	ioTimeout  = getDurEnv("TIMEOUT_IO", 120*time.Second)
)

func getDurEnv(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return def
}

var (
	pool     *sched.ThreadPool
	cpuburnE *sched.Executor
	iowaitE  *sched.Executor
	jobman   = jobs.NewManager(10 * time.Minute)
)

// Init starts the adaptive thread pool and its two demo executors
// (cpuburn, iowait), and wires handlers.Submit + jobman's registry to
// them. cfg mirrors the knobs in sched.ConfigureOpts/ExecutorOpts.
func Init(cfg map[string]int) {
	pool = sched.NewThreadPool(sched.DefaultConfigureOpts().
		WithThreadLimit(uint32(orDefault(cfg["thread_limit"], 8))).
		WithThrottleInterval(time.Duration(orDefault(cfg["throttle_interval_ms"], 1000)) * time.Millisecond))

	cpuburnE = pool.CreateExecutor(sched.DefaultExecutorOpts().
		WithThreadWeight(uint32(orDefault(cfg["cpuburn.thread_weight"], 1))).
		WithWorkerLimit(uint32(orDefault(cfg["cpuburn.worker_limit"], 8))).
		WithRingSize(orDefault(cfg["cpuburn.ring_size"], 256)))

	iowaitE = pool.CreateExecutor(sched.DefaultExecutorOpts().
		WithThreadWeight(uint32(orDefault(cfg["iowait.thread_weight"], 1))).
		WithWorkerLimit(uint32(orDefault(cfg["iowait.worker_limit"], 64))).
		WithRingSize(orDefault(cfg["iowait.ring_size"], 256)))

	jobman.Register("cpuburn", cpuburnE, handlers.CPUBurn)
	jobman.Register("iowait", iowaitE, handlers.IOWait)

	handlers.Submit = func(task string, params map[string]string, timeout time.Duration) (resp.Result, bool) {
		return submitSync(task, params, timeout)
	}
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// Dispatch resolves routes over HTTP/1.0 (GET).
func Dispatch(method, target string) resp.Result {
	if method != "GET" {
		return resp.BadReq("method", "only GET")
	}

	path, q := http10.SplitTarget(target)
	args := http10.ParseQuery(q)

	switch path {
	// Basic
	case "/":
		return resp.PlainOK("hola mundo\n")
	case "/help":
		return handlers.Help()
	case "/timestamp":
		return handlers.Timestamp(nil)
	case "/reverse":
		return handlers.Reverse(args)
	case "/toupper":
		return handlers.ToUpper(args)
	case "/hash":
		return handlers.Hash(args)
	case "/random":
		return handlers.Random(args)
	case "/fibonacci":
		return handlers.Fibonacci(args)

	// Demo loads for the adaptive executor
	case "/cpuburn":
		r, _ := submitSync("cpuburn", args, cpuTimeout)
		return r
	case "/iowait":
		r, _ := submitSync("iowait", args, ioTimeout)
		return r
	case "/simulate":
		return handlers.Simulate(args)
	case "/loadtest":
		return handlers.LoadTest(args)

	// Metrics
	case "/metrics":
		return resp.JSONOK(metricsJSON())

	// Jobs
	case "/jobs/submit":
		task := args["task"]
		if task == "" {
			return resp.BadReq("task", "task=<cpuburn|iowait> required")
		}
		params := make(map[string]string, len(args))
		for k, v := range args {
			if k == "task" {
				continue
			}
			params[k] = v
		}
		id := jobman.Submit(task, params, execTimeoutFor(task))
		if id == "" {
			return resp.NotFound("no_task", "task not registered")
		}
		out := map[string]any{"job_id": id, "status": "queued"}
		b, _ := json.Marshal(out)
		return resp.JSONOK(string(b))

	case "/jobs/status":
		id := args["id"]
		if id == "" {
			return resp.BadReq("id", "id required")
		}
		if js, ok := jobman.SnapshotJSON(id); ok {
			return resp.JSONOK(js)
		}
		return resp.NotFound("not_found", "job not found")

	case "/jobs/result":
		id := args["id"]
		if id == "" {
			return resp.BadReq("id", "id required")
		}
		body, ok, err := jobman.ResultJSON(id)
		if !ok {
			return resp.NotFound("not_found", "job not found")
		}
		if err != nil {
			return resp.BadReq("not_ready", "job not finished yet")
		}
		return resp.JSONOK(body)

	case "/jobs/cancel":
		id := args["id"]
		if id == "" {
			return resp.BadReq("id", "id required")
		}
		st, ok := jobman.Cancel(id)
		if !ok {
			return resp.NotFound("not_found", "job not found")
		}
		out := map[string]any{"status": st}
		b, _ := json.Marshal(out)
		return resp.JSONOK(string(b))

	case "/jobs/list":
		return resp.JSONOK(jobman.ListJSON())
	}

	return resp.NotFound("not_found", "route")
}

// submitSync submits onto the named executor and blocks for its result
// or timeout. ok is false only when the executor rejects the submission
// (ErrRingFull or ErrShutdown).
func submitSync(name string, args map[string]string, timeout time.Duration) (resp.Result, bool) {
	e := executorFor(name)
	if e == nil {
		return resp.IntErr("no_task", "task not registered"), true
	}
	var h func(map[string]string) resp.Result
	switch name {
	case "cpuburn":
		h = handlers.CPUBurn
	case "iowait":
		h = handlers.IOWait
	default:
		return resp.IntErr("no_task", "task not registered"), true
	}

	resultCh := make(chan resp.Result, 1)
	_, err := e.Submit(func(ctx context.Context) error {
		resultCh <- h(args)
		return nil
	})
	if err != nil {
		return resp.Unavail("backpressure", err.Error()), false
	}

	select {
	case res := <-resultCh:
		return res, true
	case <-time.After(timeout):
		return resp.Unavail("timeout", "execution timed out"), true
	}
}

// execTimeoutFor picks the per-kind timeout for a registered task name,
// falling back to cpuTimeout for anything unrecognized (submitSync/
// jobman.Submit will themselves report "task not registered").
func execTimeoutFor(name string) time.Duration {
	if name == "iowait" {
		return ioTimeout
	}
	return cpuTimeout
}

func executorFor(name string) *sched.Executor {
	switch name {
	case "cpuburn":
		return cpuburnE
	case "iowait":
		return iowaitE
	default:
		return nil
	}
}

// Close shuts down the thread pool and the Job Manager.
func Close() {
	if pool != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Shutdown(ctx)
	}
	if jobman != nil {
		jobman.Close()
	}
}

// PoolsSummary returns a per-executor summary for /status.
func PoolsSummary() map[string]any {
	var raw map[string]any
	_ = json.Unmarshal([]byte(metricsJSON()), &raw)
	return raw
}

func metricsJSON() string {
	out := map[string]any{}
	for name, e := range map[string]*sched.Executor{"cpuburn": cpuburnE, "iowait": iowaitE} {
		if e == nil {
			continue
		}
		s := e.Stats()
		num, limit := s.ActiveNumLimit()
		out[name] = map[string]any{
			"active":        num,
			"active_limit":  limit,
			"running":       s.RunningNum(),
			"throttled":     s.ThrottledNum(),
			"finished":      s.FinishedNum(),
			"usage_prop":    s.EMAUsageProportion(),
			"nivcsw_ema":    s.EMANivcsw(),
			"runtime_ema_s": s.EMARuntimeSec(),
		}
	}
	b, _ := json.Marshal(out)
	return string(b)
}

// InitPools is kept for callers still using the old per-pool config map
// shape; it simply forwards to Init.
func InitPools(cfg map[string]int) { Init(cfg) }
