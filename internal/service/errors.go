package service

import "errors"

// Engine error taxonomy. Controllers map these to HTTP statuses; everything
// else is treated as an internal persistence failure and never reported as
// success.
var (
	// ErrTestNotFound: the referenced test does not exist.
	ErrTestNotFound = errors.New("test not found")

	// ErrTestNotActive: a join or submission arrived outside the live
	// window. Recoverable by re-polling the classification.
	ErrTestNotActive = errors.New("test is not active")

	// ErrWindowClosed: a submission arrived past the post-deadline grace
	// window.
	ErrWindowClosed = errors.New("test window is closed for submission")

	// ErrAlreadyFinished: a result already exists for this participant.
	// Not an error to the end user; the stored result is returned
	// unchanged.
	ErrAlreadyFinished = errors.New("test already finished for this participant")

	// ErrTestImmutable: the test has results and can no longer be
	// modified or deleted.
	ErrTestImmutable = errors.New("test has recorded results and is immutable")

	// ErrInvalidWindow: authoring with start_at >= end_at.
	ErrInvalidWindow = errors.New("test start time must be before end time")

	// ErrForbidden: the capability check rejected the caller.
	ErrForbidden = errors.New("operation not permitted for this user")
)
