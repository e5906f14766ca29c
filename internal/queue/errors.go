package queue

import "errors"

// Validation errors are surfaced to callers and never retried; anything
// else coming out of a store is treated as transient infrastructure failure.
var (
	ErrInvalidModelHash  = errors.New("model hash must be a 64-character lowercase hex sha-256")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrJobNotFound       = errors.New("job not found")
	ErrInvalidTransition = errors.New("invalid job state transition")
)
