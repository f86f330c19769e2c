package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates input rejected before any write.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition indicates a state change not allowed by the lifecycle.
	ErrInvalidTransition = errors.New("invalid state transition")
)
