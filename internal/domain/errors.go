package domain

import "errors"

// Sentinel errors shared across stores, cache, and services.
var (
	// ErrNotFound indicates the requested record does not exist in the
	// authoritative store. It is a definitive answer, not a transient failure.
	ErrNotFound = errors.New("record not found")

	// ErrOriginUnavailable indicates the backing store could not be reached
	// and no servable stale copy exists.
	ErrOriginUnavailable = errors.New("origin unavailable")

	// ErrUnauthenticated covers every token verification failure. Callers
	// never learn whether the token was malformed, expired, or revoked.
	ErrUnauthenticated = errors.New("unauthenticated")
)
