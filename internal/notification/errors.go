package notification

import "errors"

var (
	// ErrTransmitFailed is returned for a delivery attempt that did not get
	// a 2xx response. The retry policy decides whether it is tried again.
	ErrTransmitFailed = errors.New("notification: transmit failed")

	// ErrInvalidTransmission is returned for transmission arguments that
	// cannot be delivered at all, such as an empty URI.
	ErrInvalidTransmission = errors.New("notification: invalid transmission")
)
