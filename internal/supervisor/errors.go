package supervisor

import (
	"errors"
	"fmt"
)

var (
	// ErrSpawnFailed reports that the OS rejected a process creation request.
	ErrSpawnFailed = errors.New("spawn failed")
	// ErrKillDispatchFailed reports that a termination request could not be
	// dispatched. It is recorded but never returned to callers.
	ErrKillDispatchFailed = errors.New("kill dispatch failed")
	// ErrWindowHandleMissing reports that the main window could not be
	// located, so the shutdown hook cannot be attached.
	ErrWindowHandleMissing = errors.New("main window not found")
	// ErrUnknownProcess reports a name that was never declared.
	ErrUnknownProcess = errors.New("unknown process")
	// ErrHookBound reports a second Bind on the same hook.
	ErrHookBound = errors.New("lifecycle hook already bound")
)

// LaunchError describes a failed launch. It matches ErrSpawnFailed and the
// underlying OS error with errors.Is.
type LaunchError struct {
	Name  string
	Image string
	Err   error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Image, e.Err)
}

func (e *LaunchError) Unwrap() []error {
	return []error{ErrSpawnFailed, e.Err}
}
