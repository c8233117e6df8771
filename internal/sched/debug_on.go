//go:build debug

package sched

func init() { debugBuild = true }
