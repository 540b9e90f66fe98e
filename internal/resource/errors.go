package resource

import "errors"

var (
	// ErrUnsupportedResource is returned when a resource type outside the
	// watched set reaches code that has to branch on it. It indicates a
	// caller defect and is never retried.
	ErrUnsupportedResource = errors.New("resource: unsupported resource type")

	// ErrEntityMismatch is returned when an entity does not belong to the
	// resource type it was passed with.
	ErrEntityMismatch = errors.New("resource: entity does not match resource type")
)
