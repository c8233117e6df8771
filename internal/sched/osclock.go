package sched

import "time"

// snapshotNow captures the calling goroutine's current Snapshot. A
// worker calls this immediately before and after running a task's
// payload so the delta can feed ExecutorStats.UpdateEMA; it is only
// meaningful when the calling goroutine has called runtime.LockOSThread,
// since readRUsage below reads per-*thread*, not per-process, usage.
func snapshotNow() Snapshot {
	return Snapshot{
		At:     time.Now(),
		UTime:  readThreadUserTime(),
		Nivcsw: readThreadNivcsw(),
	}
}
