package health

import "errors"

var (
	// ErrInvalidConfig indicates the monitor configuration failed validation.
	ErrInvalidConfig = errors.New("invalid health monitor configuration")
)
