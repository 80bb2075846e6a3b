package services

import "errors"

var (
	// ErrValidation marks a reference to an unknown user, reward, achievement or action kind.
	ErrValidation = errors.New("validation error")
	// ErrNotOwned is returned when equipping a reward the user does not own.
	ErrNotOwned = errors.New("reward not owned")
	// ErrUnknownCriteria is a startup configuration error: an achievement names
	// a criteria kind with no registered predicate.
	ErrUnknownCriteria = errors.New("unknown achievement criteria")

	// errNotGranted rolls back an award transaction that must leave no trace.
	errNotGranted = errors.New("essence not granted")
)
