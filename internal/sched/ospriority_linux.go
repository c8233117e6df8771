//go:build linux

package sched

import (
	"golang.org/x/sys/unix"

	"github.com/LoganEvans/ScalingThreadPool/internal/obslog"
)

// niceValue maps a priority band to the Linux nice value applied to the
// calling thread. Grounded on Worker::set_nice_priority in
// original_source/worker.cc, which maps the same three bands onto
// pthread scheduling priorities; nice(2) is this pack's portable
// analogue of that OS facility.
func niceValue(p Priority) int {
	switch p {
	case PriorityPrioritized:
		return -5
	case PriorityThrottled:
		return 10
	default:
		return 0
	}
}

// setThreadPriority applies p's nice value to the calling OS thread.
// Callers must have pinned the goroutine with runtime.LockOSThread.
func setThreadPriority(p Priority) {
	tid := unix.Gettid()
	if err := unix.Setpriority(unix.PRIO_PROCESS, tid, niceValue(p)); err != nil {
		obslog.Log().WithError(err).WithField("priority", p.String()).Warn("setpriority failed")
	}
}
