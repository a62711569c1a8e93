package services

import "errors"

var (
	// ErrNoTableAvailable is a normal outcome, not a failure: the caller
	// routes the request to the waitlist.
	ErrNoTableAvailable = errors.New("no table available for the requested slot")

	// ErrInvalidTransition is returned when a status change is not permitted
	// from the reservation's current state.
	ErrInvalidTransition = errors.New("invalid reservation status transition")

	// ErrConcurrencyConflict means the allocation transaction lost a race for
	// a table. Create retries the allocation once before falling back to the
	// waitlist.
	ErrConcurrencyConflict = errors.New("table allocation lost a concurrent race")

	// ErrStorageUnavailable wraps unexpected store errors. No partial writes
	// survive: the enclosing transaction has been rolled back.
	ErrStorageUnavailable = errors.New("storage unavailable")
)
