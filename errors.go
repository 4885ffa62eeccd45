package sessionkit

import "errors"

var (
	// ErrNotAuthenticated is returned by operations that require a live
	// session when none is held or the held credential is expired.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrTokenMalformed is returned when the backend hands back a credential
	// that does not decode.
	ErrTokenMalformed = errors.New("malformed credential")
	// ErrTokenExpired is returned when the backend hands back a credential
	// that is already past its expiry.
	ErrTokenExpired = errors.New("credential already expired")
	// ErrRefreshCooldown is returned when a non-forced refresh is requested
	// inside the cooldown window for its trigger.
	ErrRefreshCooldown = errors.New("refresh cooldown active")
	// ErrRefreshSuppressed is the circuit-breaker trip: too many consecutive
	// refresh attempts without a success. The counter is reset as part of
	// returning it, so the next attempt starts from a clean slate.
	ErrRefreshSuppressed = errors.New("too many refresh attempts")
	// ErrBuilderReused is returned by Build on a builder that already built.
	ErrBuilderReused = errors.New("builder already used")
	// ErrConfigInvalid is wrapped around configuration validation failures.
	ErrConfigInvalid = errors.New("invalid configuration")
)
