package sessionkit

import (
	"time"

	"github.com/mindwell-app/sessionkit/token"
)

// SessionState is the coordinator's position in the authentication state
// machine.
type SessionState uint8

const (
	// StateAnonymous means no session is held.
	StateAnonymous SessionState = iota
	// StateAuthenticating means a login or registration is in flight.
	StateAuthenticating
	// StateAuthenticated means a live session is held.
	StateAuthenticated
	// StateRefreshing means a refresh round-trip is in flight; the previous
	// session stays live until the outcome is known.
	StateRefreshing
)

func (s SessionState) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "anonymous"
	}
}

// Identity is the subject/role/email triple decoded from a credential.
type Identity = token.Identity

// Session is the in-memory authentication state. It is rebuilt from the
// persisted credential on load and destroyed on logout, expiry detection, or
// decode failure. Only the Coordinator mutates it; callers receive copies.
type Session struct {
	Credential string
	Identity   Identity
	Role       string
	DerivedAt  time.Time
}

// RefreshTrigger identifies which call site asked for a refresh. Each trigger
// has its own cooldown policy; manual triggers bypass cooldowns entirely.
type RefreshTrigger uint8

const (
	// TriggerManual is an explicit user action. Forced: no cooldown.
	TriggerManual RefreshTrigger = iota
	// TriggerAuthError is the transport's on-401/403 path.
	TriggerAuthError
	// TriggerBackground is the periodic notifier.
	TriggerBackground
)

func (t RefreshTrigger) String() string {
	switch t {
	case TriggerAuthError:
		return "auth_error"
	case TriggerBackground:
		return "background"
	default:
		return "manual"
	}
}

// RefreshOutcome is the result of one [Coordinator.Refresh] call. Background
// callers inspect Err instead of receiving a propagated failure, so a broken
// backend can never surface as an unhandled error from a timer tick.
type RefreshOutcome struct {
	RoleChanged bool
	OldRole     string
	NewRole     string
	// Skipped is set when the call returned without contacting the backend
	// (dead session, cooldown window, or circuit breaker).
	Skipped bool
	Err     error
}

// LoginRequest carries the credentials for [Coordinator.Login].
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest carries the fields for [Coordinator.Register].
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}
