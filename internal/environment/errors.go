package environment

import "errors"

var (
	// ErrMissingHandle is returned when the host has not registered a handle
	// for an environment yet. It is recoverable: the next apply retries.
	ErrMissingHandle = errors.New("environment handle not registered")

	// ErrInvalidTarget is returned when a TargetState names the wrong members.
	ErrInvalidTarget = errors.New("invalid target state")

	// ErrGroupBlocked is returned when a member that should switch off stays
	// on, so the wanted member is not switched on alongside it.
	ErrGroupBlocked = errors.New("environment group blocked by active member")
)
