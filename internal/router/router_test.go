package router

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

var initOnce sync.Once

func ensureInit(t *testing.T) {
	t.Helper()
	initOnce.Do(func() {
		Init(map[string]int{
			"thread_limit":         2,
			"cpuburn.worker_limit": 4,
			"iowait.worker_limit":  4,
		})
	})
}

func TestGetDurEnv_DefaultAndValidInvalid(t *testing.T) {
	t.Setenv("ROUTER_TEST_TIMEOUT", "")
	if got := getDurEnv("ROUTER_TEST_TIMEOUT", 42*time.Second); got != 42*time.Second {
		t.Fatalf("default mismatch: %v", got)
	}
	t.Setenv("ROUTER_TEST_TIMEOUT", "150ms")
	if got := getDurEnv("ROUTER_TEST_TIMEOUT", 42*time.Second); got != 150*time.Millisecond {
		t.Fatalf("valid env mismatch: %v", got)
	}
	t.Setenv("ROUTER_TEST_TIMEOUT", "abc")
	if got := getDurEnv("ROUTER_TEST_TIMEOUT", 42*time.Second); got != 42*time.Second {
		t.Fatalf("invalid env should fallback: %v", got)
	}
}

func TestDispatch_BasicRoutes(t *testing.T) {
	cases := []struct {
		target string
		json   bool
	}{
		{"/", false}, {"/help", false}, {"/timestamp", true},
		{"/reverse?text=ab", false}, {"/toupper?text=ab", false},
		{"/hash?text=x", true}, {"/random?count=2&min=5&max=5", true},
		{"/fibonacci?num=7", false},
	}
	for _, tc := range cases {
		r := Dispatch("GET", tc.target)
		if r.Status != 200 || r.JSON != tc.json {
			t.Fatalf("%s -> %+v", tc.target, r)
		}
	}
	if r := Dispatch("GET", "/nope"); r.Status != 404 || r.Err == nil {
		t.Fatalf("404: %+v", r)
	}
	if r := Dispatch("POST", "/help"); r.Status != 400 {
		t.Fatalf("non-GET should 400: %+v", r)
	}
}

func TestDispatch_CPUBurnAndIOWait(t *testing.T) {
	ensureInit(t)

	r := Dispatch("GET", "/cpuburn?ms=1")
	if r.Status != 200 {
		t.Fatalf("cpuburn: %+v", r)
	}
	r = Dispatch("GET", "/iowait?ms=1")
	if r.Status != 200 {
		t.Fatalf("iowait: %+v", r)
	}
}

func TestDispatch_JobsLifecycle(t *testing.T) {
	ensureInit(t)

	r := Dispatch("GET", "/jobs/submit?task=iowait&ms=1")
	if r.Status != 200 {
		t.Fatalf("submit: %+v", r)
	}
	var out struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal([]byte(r.Body), &out); err != nil || out.JobID == "" {
		t.Fatalf("submit body: %v %q", err, r.Body)
	}

	if r := Dispatch("GET", "/jobs/status?id="+out.JobID); r.Status != 200 {
		t.Fatalf("status: %+v", r)
	}

	deadline := time.Now().Add(2 * time.Second)
	var resultBody string
	for time.Now().Before(deadline) {
		r = Dispatch("GET", "/jobs/result?id="+out.JobID)
		if r.Status == 200 {
			resultBody = r.Body
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if resultBody == "" {
		t.Fatalf("job never produced a result")
	}
	if !strings.Contains(resultBody, "waited") {
		t.Fatalf("result body missing iowait payload: %q", resultBody)
	}

	if r := Dispatch("GET", "/jobs/list"); r.Status != 200 {
		t.Fatalf("list: %+v", r)
	}
}

func TestDispatch_JobsSubmitUnknownTask(t *testing.T) {
	ensureInit(t)
	if r := Dispatch("GET", "/jobs/submit?task=nope"); r.Status != 404 {
		t.Fatalf("unknown task submit: %+v", r)
	}
}

func TestDispatch_JobsCancelAndResultNotFound(t *testing.T) {
	ensureInit(t)
	if r := Dispatch("GET", "/jobs/cancel?id=__no_such_id__"); r.Status != 404 {
		t.Fatalf("cancel unknown: %+v", r)
	}
	if r := Dispatch("GET", "/jobs/result?id=__no_such_id__"); r.Status != 404 {
		t.Fatalf("result unknown: %+v", r)
	}
}

func TestDispatch_Metrics(t *testing.T) {
	ensureInit(t)
	r := Dispatch("GET", "/metrics")
	if r.Status != 200 || !r.JSON {
		t.Fatalf("metrics: %+v", r)
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(r.Body), &out); err != nil {
		t.Fatalf("metrics json: %v", err)
	}
	if _, ok := out["cpuburn"]; !ok {
		t.Fatalf("metrics missing cpuburn entry: %v", out)
	}
}
