package session

import "errors"

// Session lifecycle errors.
var (
	// ErrInvalidTransition is returned when a status change is not
	// permitted by the lifecycle table.
	ErrInvalidTransition = errors.New("invalid session status transition")

	// ErrAlreadyRunning is returned when an execution is requested for a
	// session that already has one. At most one execution per session ID.
	ErrAlreadyRunning = errors.New("session already has an active execution")

	// ErrNotResumable is returned when resume is requested for a session
	// that is not interrupted.
	ErrNotResumable = errors.New("session is not resumable")

	// ErrNotFound is returned when a session ID is unknown or expired.
	ErrNotFound = errors.New("session not found")
)
