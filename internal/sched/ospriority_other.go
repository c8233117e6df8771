//go:build !linux

package sched

import (
	"sync"

	"github.com/LoganEvans/ScalingThreadPool/internal/obslog"
)

var warnPriorityOnce sync.Once

// setThreadPriority is a no-op on platforms without a per-thread nice
// equivalent wired up here. Workers still run and the band still
// governs dispatch order; only the OS-level scheduling nudge is absent.
func setThreadPriority(p Priority) {
	warnPriorityOnce.Do(func() {
		obslog.Log().Warn("per-thread OS priority is unavailable on this platform; running bands are not nudged at the OS scheduler")
	})
}
