package handlers

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/LoganEvans/ScalingThreadPool/internal/resp"
)

// CPUBurn busy-loops for ms milliseconds, pinning a core the whole
// time. Grounded on the teacher's heavy.go:SpinTask; sized in
// milliseconds instead of seconds so a demo caller can push
// ema_usage_proportion toward 1.0 without tying up a thread for long.
func CPUBurn(params map[string]string) resp.Result {
	ms, err := strconv.Atoi(params["ms"])
	if err != nil || ms < 0 {
		return resp.BadReq("ms", "ms is required (integer >= 0)")
	}

	end := time.Now().Add(time.Duration(ms) * time.Millisecond)
	x := 0.0
	for time.Now().Before(end) {
		x += math.Sqrt(99991.0)
		if x > 1e9 {
			x = 0
		}
	}
	return resp.PlainOK(fmt.Sprintf("burned %d ms\n", ms))
}
