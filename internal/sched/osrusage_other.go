//go:build !linux

package sched

import (
	"sync"
	"time"

	"github.com/LoganEvans/ScalingThreadPool/internal/obslog"
)

var warnRusageOnce sync.Once

// readThreadUserTime and readThreadNivcsw degrade to no-ops on
// platforms without RUSAGE_THREAD (everything but Linux). The limit
// controller still runs — ema_usage_proportion and ema_nivcsw simply
// stay at zero, which RefreshActiveLimit and RunningLimit both already
// treat as "no samples yet, use the floor."
func readThreadUserTime() time.Duration {
	warnRusageOnce.Do(func() {
		obslog.Log().Warn("per-thread rusage is unavailable on this platform; adaptive limits will stay at their floor")
	})
	return 0
}

func readThreadNivcsw() int64 {
	return 0
}
