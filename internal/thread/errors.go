package thread

import "errors"

var (
	// ErrThreadCollision is returned when creating a thread directory
	// keeps colliding with an existing slug past the retry bound.
	ErrThreadCollision = errors.New("thread: could not allocate a unique thread id")

	// ErrSequenceCollision is returned by AddMessage after exhausting its
	// retry bound on exclusive-create collisions.
	ErrSequenceCollision = errors.New("thread: could not allocate a unique message sequence number")

	// ErrThreadNotFound is returned when a thread id does not resolve to
	// a directory under the branch root.
	ErrThreadNotFound = errors.New("thread: not found")
)
