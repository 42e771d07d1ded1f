package scheduler

import (
	"errors"
	"fmt"
)

// ErrQueueFull is returned by Submit when the admission queue is at
// capacity. No scratch directory is created in this case.
var ErrQueueFull = errors.New("scheduler: service busy: queue is full")

// ErrDegraded is returned for every job once the engine has entered the
// sticky degraded state. Only a process restart clears it.
var ErrDegraded = errors.New("scheduler: service degraded: engine unrecoverable, restart required")

// ErrStopped is returned by Submit after Stop has been initiated.
var ErrStopped = errors.New("scheduler: service is shutting down")

// SwapAbortedError reports that releasing the outgoing backend failed
// during a model swap. The old backend is retained as-is; the job fails
// but subsequent jobs proceed on the old model.
type SwapAbortedError struct {
	// UID identifies the job that triggered the swap.
	UID string

	// OldAlias is the alias of the model that is still loaded.
	OldAlias string

	// Err is the release failure.
	Err error
}

func (e *SwapAbortedError) Error() string {
	return fmt.Sprintf("scheduler: model swap aborted: failed to release %q (%v); the current model is still loaded and usable", e.OldAlias, e.Err)
}

func (e *SwapAbortedError) Unwrap() error { return e.Err }

// UnrecoverableError reports that a swap's load failed and the attempt to
// restore the previous backend also failed. The service enters the sticky
// degraded state.
type UnrecoverableError struct {
	// NewAlias and OldAlias name the incoming and outgoing models.
	NewAlias string
	OldAlias string

	// LoadErr is the failure loading the new model; RestoreErr is the
	// failure re-loading the old one.
	LoadErr    error
	RestoreErr error
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("scheduler: engine unrecoverable: swap to %q failed (%v), restore of %q also failed (%v); service must be restarted",
		e.NewAlias, e.LoadErr, e.OldAlias, e.RestoreErr)
}

func (e *UnrecoverableError) Unwrap() error { return e.LoadErr }
