package sched

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/LoganEvans/ScalingThreadPool/internal/obslog"
)

// Error kinds from spec.md §7.
var (
	// ErrRingFull is returned by Submit when the executor's submission
	// ring has no room left.
	ErrRingFull = errors.New("sched: submission ring is full")
	// ErrShutdown is returned by Submit once the owning executor (or its
	// pool) has begun shutting down.
	ErrShutdown = errors.New("sched: executor is shutting down")
)

// debugBuild is flipped by the "debug" build tag (see debug_on.go; the
// default build, with no "debug" tag, leaves it false). In a debug
// build, an unlisted state transition is a fatal programming error; in a
// release build it's a logged warning and the state machine refuses the
// move but keeps running.
var debugBuild = false

// invalidTransition reports a Task transition that validTransitions does
// not list. spec.md §4.3: "Any transition not listed is a programming
// error and must fail fatally in debug builds."
func invalidTransition(id uuid.UUID, from, to State) error {
	err := fmt.Errorf("sched: invalid task transition %s -> %s (task %s)", from, to, id)
	if debugBuild {
		panic(err)
	}
	obslog.Log().WithFields(map[string]any{
		"task": id.String(),
		"from": from.String(),
		"to":   to.String(),
	}).Warn("invalid task state transition")
	return err
}
