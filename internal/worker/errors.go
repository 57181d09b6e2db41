package worker

import "errors"

// Sentinel errors returned by Registry and Resolver, checkable with
// errors.Is by callers in the policy engine and mailbox router that need to
// distinguish "not found" from other failures.
var (
	// ErrNotFound is returned when a worker id has no entry in the registry.
	ErrNotFound = errors.New("worker not found")

	// ErrAlreadyRegistered is returned by Register when the id is in use.
	ErrAlreadyRegistered = errors.New("worker already registered")

	// ErrPaneDead is returned by Resolver when a worker's recorded pane no
	// longer responds to a liveness probe.
	ErrPaneDead = errors.New("worker pane is no longer alive")

	// ErrNoMatch is returned by Resolver when target matches no pane,
	// window, worker or session known to the system.
	ErrNoMatch = errors.New("no session, worker or pane matches target")
)
