package escalation

import "errors"

// Domain-level error values returned by the callback queue.
var (
	ErrUnknownCallback      = errors.New("unknown callback")
	ErrStatusConflict       = errors.New("callback status conflict")
	ErrResolutionRequired   = errors.New("resolution outcome required")
	ErrInvalidCallbackID    = errors.New("invalid callback id")
	ErrInvalidPriority      = errors.New("invalid callback priority")
	ErrInvalidStatus        = errors.New("invalid callback status")
	ErrInvalidOutcome       = errors.New("invalid resolution outcome")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)
