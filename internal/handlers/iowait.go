package handlers

import (
	"fmt"
	"strconv"
	"time"

	"github.com/LoganEvans/ScalingThreadPool/internal/resp"
)

// IOWait blocks for ms milliseconds without touching the CPU, the
// inverse demo load to CPUBurn. Grounded on the teacher's
// heavy.go:SleepTask; it drives ema_usage_proportion toward 0 and
// exercises the active_limit = H/p blow-up guard once enough of
// these pile up on one executor.
func IOWait(params map[string]string) resp.Result {
	ms, err := strconv.Atoi(params["ms"])
	if err != nil || ms < 0 {
		return resp.BadReq("ms", "ms is required (integer >= 0)")
	}
	time.Sleep(time.Duration(ms) * time.Millisecond)
	return resp.PlainOK(fmt.Sprintf("waited %d ms\n", ms))
}
