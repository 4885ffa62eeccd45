package store

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable is returned when the persistence backend cannot be reached.
var ErrUnavailable = errors.New("session store unavailable")

// GuardState bounds automatic refresh attempts. LastRefreshAt is the instant
// of the last successful refresh round-trip; ConsecutiveRefreshes counts
// attempts since that success.
type GuardState struct {
	LastRefreshAt        time.Time
	ConsecutiveRefreshes int
}

// GuardUpdate is a partial write of [GuardState]. Nil fields are left
// untouched by [Store.UpdateGuard].
type GuardUpdate struct {
	LastRefreshAt        *time.Time
	ConsecutiveRefreshes *int
}

// State is the persisted view returned by [Store.Load]. Credential is empty
// when nothing valid was persisted; Role may still carry the last cached role.
type State struct {
	Credential string
	Role       string
	Guard      GuardState
}

// Store persists the credential, role cache, and guard counters. All
// implementations must be safe for concurrent use.
type Store interface {
	// Load reads the persisted state, discarding a credential that no
	// longer decodes or is expired. The role cache survives a discard.
	Load(ctx context.Context) (State, error)

	// Save atomically replaces the persisted credential and role cache.
	Save(ctx context.Context, credential, role string) error

	// Clear removes the credential and role cache and resets the guard
	// counters.
	Clear(ctx context.Context) error

	// GuardState reads the current guard counters.
	GuardState(ctx context.Context) (GuardState, error)

	// UpdateGuard writes only the fields set in update.
	UpdateGuard(ctx context.Context, update GuardUpdate) error
}

// GuardTimestamp returns a [GuardUpdate] field pointer for t.
func GuardTimestamp(t time.Time) *time.Time { return &t }

// GuardCount returns a [GuardUpdate] field pointer for n.
func GuardCount(n int) *int { return &n }
