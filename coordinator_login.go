package sessionkit

import (
	"context"
	"net/http"

	"github.com/mindwell-app/sessionkit/store"
	"github.com/mindwell-app/sessionkit/token"
	"github.com/mindwell-app/sessionkit/transport"
)

// tokenResponse is the body of every credential-minting endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Login authenticates against the backend and installs the returned
// credential. On failure the coordinator returns to its prior state and the
// error propagates to the caller for display.
func (c *Coordinator) Login(ctx context.Context, username, password string) (*Session, error) {
	c.setState(StateAuthenticating)

	var resp tokenResponse
	err := c.client.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		Path:    "/auth/login",
		Body:    LoginRequest{Username: username, Password: password},
		Out:     &resp,
		NoRetry: true,
	})
	if err != nil {
		c.abandonAuthenticating()
		c.metricInc(MetricLoginFailure)
		c.emit(ctx, Event{EventType: EventLogin, Subject: username, Error: err.Error()})
		return nil, err
	}

	session, err := c.installCredential(ctx, resp.AccessToken)
	if err != nil {
		c.abandonAuthenticating()
		c.metricInc(MetricLoginFailure)
		c.emit(ctx, Event{EventType: EventLogin, Subject: username, Error: err.Error()})
		return nil, err
	}

	c.metricInc(MetricLoginSuccess)
	c.emit(ctx, Event{
		EventType: EventLogin,
		Subject:   session.Identity.Subject,
		Role:      session.Role,
		Success:   true,
	})
	c.log.WithField("subject", session.Identity.Subject).WithField("role", session.Role).
		Debug("session established")

	copied := *session
	return &copied, nil
}

// Register creates an account and installs the credential the backend mints
// for it, symmetrical to [Coordinator.Login].
func (c *Coordinator) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	c.setState(StateAuthenticating)

	var resp tokenResponse
	err := c.client.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		Path:    "/auth/register",
		Body:    req,
		Out:     &resp,
		NoRetry: true,
	})
	if err != nil {
		c.abandonAuthenticating()
		c.metricInc(MetricRegisterFailure)
		c.emit(ctx, Event{EventType: EventRegister, Subject: req.Username, Error: err.Error()})
		return nil, err
	}

	session, err := c.installCredential(ctx, resp.AccessToken)
	if err != nil {
		c.abandonAuthenticating()
		c.metricInc(MetricRegisterFailure)
		c.emit(ctx, Event{EventType: EventRegister, Subject: req.Username, Error: err.Error()})
		return nil, err
	}

	c.metricInc(MetricRegisterSuccess)
	c.emit(ctx, Event{
		EventType: EventRegister,
		Subject:   session.Identity.Subject,
		Role:      session.Role,
		Success:   true,
	})

	copied := *session
	return &copied, nil
}

// installCredential validates a freshly minted credential, persists it, resets
// the refresh guard, and installs the session. The credential is rejected
// fail-closed when it does not decode or is already expired.
func (c *Coordinator) installCredential(ctx context.Context, credential string) (*Session, error) {
	claims, err := token.Decode(credential)
	if err != nil {
		return nil, ErrTokenMalformed
	}
	if token.IsExpired(credential, c.now()) {
		return nil, ErrTokenExpired
	}

	session := c.adoptSession(credential, claims)

	if err := c.store.Save(ctx, credential, session.Role); err != nil {
		return nil, err
	}
	// A fresh credential starts the circuit breaker from a clean slate.
	if err := c.store.UpdateGuard(ctx, store.GuardUpdate{ConsecutiveRefreshes: store.GuardCount(0)}); err != nil {
		return nil, err
	}

	return session, nil
}

func (c *Coordinator) setState(state SessionState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// abandonAuthenticating rolls the state machine back after a failed login or
// registration: anonymous unless a previous session is still live.
func (c *Coordinator) abandonAuthenticating() {
	c.mu.Lock()
	if c.session != nil {
		c.state = StateAuthenticated
	} else {
		c.state = StateAnonymous
	}
	c.mu.Unlock()
}
