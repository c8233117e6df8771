//go:build linux

package sched

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/LoganEvans/ScalingThreadPool/internal/obslog"
)

// readThreadUserTime and readThreadNivcsw use RUSAGE_THREAD so the
// figures reflect only the calling OS thread — meaningful once the
// calling goroutine has pinned itself with runtime.LockOSThread.
// Grounded on ExecutorImpl's getrusage(RUSAGE_THREAD, ...) calls in
// original_source/executor.cc, translated via golang.org/x/sys/unix the
// way ja7ad/consumption's proc collectors isolate their Linux-only
// syscalls behind a build tag.

func readThreadUserTime() time.Duration {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_THREAD, &ru); err != nil {
		obslog.Log().WithError(err).Warn("getrusage(RUSAGE_THREAD) failed")
		return 0
	}
	return time.Duration(ru.Utime.Sec)*time.Second + time.Duration(ru.Utime.Usec)*time.Microsecond
}

func readThreadNivcsw() int64 {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_THREAD, &ru); err != nil {
		obslog.Log().WithError(err).Warn("getrusage(RUSAGE_THREAD) failed")
		return 0
	}
	return int64(ru.Nivcsw)
}
