package subscription

import "errors"

var (
	// ErrSubscriptionNotFound is returned when a subscription ID does not exist.
	ErrSubscriptionNotFound = errors.New("subscription: not found")

	// ErrInvalidSubscription is returned when subscription validation fails.
	ErrInvalidSubscription = errors.New("subscription: invalid")
)
