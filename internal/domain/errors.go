package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so callers can map outcomes without leaking
// infrastructure details.
var (
	// ErrNotFound means the requested row does not exist. A missing open
	// session is NOT an error at the service level; it is the "Out" state.
	ErrNotFound = errors.New("not found")

	// ErrStorage wraps any failure to read or write the session table:
	// connectivity, timeouts, throttling. Callers surface it as a failed
	// command; the overtime scan logs it and moves on.
	ErrStorage = errors.New("storage failure")

	// ErrInvariant marks data that contradicts the session state machine:
	// more than one open session for a user, or a close targeting an already
	// closed row. It is treated as corruption, never retried or guessed at.
	ErrInvariant = errors.New("invariant violation")

	// ErrSessionClosed is returned when an overtime flag-set loses the race
	// with a concurrent clock-out. Benign: the session no longer needs the
	// alert.
	ErrSessionClosed = errors.New("session already closed")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrBadRequest   = errors.New("bad request")
)
