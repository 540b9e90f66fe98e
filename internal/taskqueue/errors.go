package taskqueue

import "errors"

var (
	// ErrUnknownTask is returned when no handler is registered for a task name.
	ErrUnknownTask = errors.New("taskqueue: unknown task")

	// ErrBrokerClosed is returned when enqueueing on a broker that has shut down.
	ErrBrokerClosed = errors.New("taskqueue: broker closed")

	// ErrInvalidTask is returned for tasks that cannot be encoded or decoded.
	ErrInvalidTask = errors.New("taskqueue: invalid task")
)
