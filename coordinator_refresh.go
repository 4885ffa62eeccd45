package sessionkit

import (
	"context"
	"errors"
	"net/http"

	"github.com/mindwell-app/sessionkit/store"
	"github.com/mindwell-app/sessionkit/token"
	"github.com/mindwell-app/sessionkit/transport"
)

// refreshGate is the snapshot taken while the guard admits an attempt.
type refreshGate struct {
	credential string
	prevRole   string
}

// Refresh performs one guarded role-refresh round-trip. The outcome carries
// any failure instead of propagating it, so all three call sites — explicit
// user action, the background notifier, and error recovery — share one
// contract that can never surface an unhandled error.
//
// The algorithm: a dead session returns immediately; a non-forced call inside
// its trigger's cooldown window is a no-op; the consecutive-attempt ceiling
// trips the circuit breaker and self-heals by resetting the counter; an
// admitted attempt asks GET /users/me for fresh identity, falling back to the
// token-refresh endpoint when the backend is unreachable; a successful
// round-trip resets the counter and stamps the cooldown clock whether or not
// the role moved.
func (c *Coordinator) Refresh(ctx context.Context, trigger RefreshTrigger) RefreshOutcome {
	gate, err := c.openRefreshGate(ctx, trigger)
	if err != nil {
		switch {
		case errors.Is(err, ErrRefreshCooldown):
			return RefreshOutcome{Skipped: true}
		case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrRefreshSuppressed):
			return RefreshOutcome{Skipped: true, Err: err}
		default:
			return RefreshOutcome{Err: err}
		}
	}

	credential, role, err := c.fetchFreshIdentity(ctx, gate)
	if err != nil {
		c.setState(StateAuthenticated)
		c.metricInc(MetricRefreshFailure)
		c.emit(ctx, Event{EventType: EventRefresh, Trigger: trigger.String(), Error: err.Error()})
		return RefreshOutcome{Err: err}
	}

	if settleErr := c.settleRefreshSuccess(ctx, credential, role); settleErr != nil {
		c.metricInc(MetricRefreshFailure)
		return RefreshOutcome{Err: settleErr}
	}

	c.metricInc(MetricRefreshSuccess)
	if role == gate.prevRole {
		c.emit(ctx, Event{EventType: EventRefresh, Trigger: trigger.String(), Role: role, Success: true})
		return RefreshOutcome{}
	}

	c.metricInc(MetricRoleChanged)
	c.emit(ctx, Event{
		EventType: EventRoleChange,
		Trigger:   trigger.String(),
		OldRole:   gate.prevRole,
		NewRole:   role,
		Success:   true,
	})
	c.log.WithField("old_role", gate.prevRole).WithField("new_role", role).
		Info("server-side role change detected")

	return RefreshOutcome{RoleChanged: true, OldRole: gate.prevRole, NewRole: role}
}

// RefreshCredential mints a new credential from the existing one, the
// primitive behind the transport's on-401 retry. It implements
// [transport.Refresher]; its own request runs with NoRetry so the refresh
// path can never re-enter the retry logic. The same persisted guard gates it.
func (c *Coordinator) RefreshCredential(ctx context.Context) (string, error) {
	gate, err := c.openRefreshGate(ctx, TriggerAuthError)
	if err != nil {
		return "", err
	}

	credential, claims, err := c.mintCredential(ctx)
	if err != nil {
		c.setState(StateAuthenticated)
		c.metricInc(MetricCredentialRefreshFailure)
		return "", err
	}

	role := claims.Identity(c.config.Identity.DefaultRole).Role
	if settleErr := c.settleRefreshSuccess(ctx, credential, role); settleErr != nil {
		c.metricInc(MetricCredentialRefreshFailure)
		return "", settleErr
	}

	c.metricInc(MetricCredentialRefreshSuccess)
	if role != gate.prevRole {
		c.metricInc(MetricRoleChanged)
		c.emit(ctx, Event{
			EventType: EventRoleChange,
			Trigger:   TriggerAuthError.String(),
			OldRole:   gate.prevRole,
			NewRole:   role,
			Success:   true,
		})
	}

	return credential, nil
}

// openRefreshGate runs the synchronous guard section: dead-session check,
// cooldown, ceiling, and the attempt increment, all under the coordinator
// mutex and against the persisted guard state. No network happens while the
// lock is held. The store is the single source of truth for the counters;
// there is deliberately no local copy to drift from it.
func (c *Coordinator) openRefreshGate(ctx context.Context, trigger RefreshTrigger) (refreshGate, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || c.session.Credential == "" {
		return refreshGate{}, ErrNotAuthenticated
	}
	if token.IsExpired(c.session.Credential, c.now()) {
		// Expiry detection destroys the session; refreshing a dead session
		// is pointless because the backend will not honor the credential.
		c.session = nil
		c.state = StateAnonymous
		return refreshGate{}, ErrNotAuthenticated
	}

	gate := refreshGate{
		credential: c.session.Credential,
		prevRole:   c.session.Role,
	}

	guard, err := c.store.GuardState(ctx)
	if err != nil {
		return refreshGate{}, err
	}

	if trigger != TriggerManual {
		if elapsed := c.now().Sub(guard.LastRefreshAt); elapsed < c.config.cooldownFor(trigger) {
			c.metricInc(MetricRefreshSkippedCooldown)
			return refreshGate{}, ErrRefreshCooldown
		}
	}

	if guard.ConsecutiveRefreshes > c.config.Refresh.MaxConsecutive {
		// Self-healing: the trip resets the counter so the next attempt gets
		// a clean slate instead of being permanently wedged.
		if resetErr := c.store.UpdateGuard(ctx, store.GuardUpdate{
			ConsecutiveRefreshes: store.GuardCount(0),
		}); resetErr != nil {
			return refreshGate{}, resetErr
		}
		c.metricInc(MetricRefreshSuppressed)
		c.emit(ctx, Event{
			EventType: EventRefreshSuppressed,
			Trigger:   trigger.String(),
			Error:     ErrRefreshSuppressed.Error(),
		})
		c.log.WithField("trigger", trigger.String()).Warn("refresh circuit breaker tripped")
		return refreshGate{}, ErrRefreshSuppressed
	}

	if err := c.store.UpdateGuard(ctx, store.GuardUpdate{
		ConsecutiveRefreshes: store.GuardCount(guard.ConsecutiveRefreshes + 1),
	}); err != nil {
		return refreshGate{}, err
	}

	c.state = StateRefreshing
	return gate, nil
}

// fetchFreshIdentity is the network half of a refresh: GET /users/me under a
// bounded timeout, falling back to minting a new credential when the backend
// is unreachable. It returns the credential and role the session should carry.
func (c *Coordinator) fetchFreshIdentity(ctx context.Context, gate refreshGate) (string, string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.Refresh.RequestTimeout)
	defer cancel()

	var me struct {
		Role string `json:"role"`
	}
	err := c.client.Do(reqCtx, transport.Request{
		Method:  http.MethodGet,
		Path:    "/users/me",
		Out:     &me,
		NoRetry: true,
	})
	if err == nil {
		role := me.Role
		if role == "" {
			role = c.config.Identity.DefaultRole
		}
		return gate.credential, role, nil
	}

	if !errors.Is(err, transport.ErrUnreachable) {
		return "", "", err
	}

	// Identity lookup timed out or never connected; a token refresh both
	// proves the session is still honored and carries the current role.
	c.metricInc(MetricRefreshFallback)
	c.log.WithError(err).Debug("identity lookup unreachable, falling back to token refresh")

	credential, claims, fallbackErr := c.mintCredential(ctx)
	if fallbackErr != nil {
		return "", "", err
	}
	return credential, claims.Identity(c.config.Identity.DefaultRole).Role, nil
}

// mintCredential calls the token-refresh endpoint and validates what it
// returns, fail-closed.
func (c *Coordinator) mintCredential(ctx context.Context) (string, *token.Claims, error) {
	reqCtx, cancel := context.WithTimeout(ctx, c.config.Refresh.RequestTimeout)
	defer cancel()

	var resp tokenResponse
	err := c.client.Do(reqCtx, transport.Request{
		Method:  http.MethodPost,
		Path:    "/auth/refresh",
		Out:     &resp,
		NoRetry: true,
	})
	if err != nil {
		return "", nil, err
	}

	claims, err := token.Decode(resp.AccessToken)
	if err != nil {
		return "", nil, ErrTokenMalformed
	}
	if token.IsExpired(resp.AccessToken, c.now()) {
		return "", nil, ErrTokenExpired
	}

	return resp.AccessToken, claims, nil
}

// settleRefreshSuccess records a successful round-trip: counter reset,
// cooldown clock stamped, session and persisted state updated. A round-trip
// with an unchanged role still resets the counter; it is evidence the loop is
// not runaway.
func (c *Coordinator) settleRefreshSuccess(ctx context.Context, credential, role string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.UpdateGuard(ctx, store.GuardUpdate{
		LastRefreshAt:        store.GuardTimestamp(c.now()),
		ConsecutiveRefreshes: store.GuardCount(0),
	}); err != nil {
		c.state = StateAuthenticated
		return err
	}
	if err := c.store.Save(ctx, credential, role); err != nil {
		c.state = StateAuthenticated
		return err
	}

	if c.session != nil {
		c.session.Credential = credential
		c.session.Role = role
		c.session.Identity.Role = role
		c.session.DerivedAt = c.now()
	}
	c.state = StateAuthenticated
	return nil
}
