package sessionkit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	internalevents "github.com/mindwell-app/sessionkit/internal/events"
	"github.com/mindwell-app/sessionkit/notifier"
	"github.com/mindwell-app/sessionkit/store"
	"github.com/mindwell-app/sessionkit/token"
	"github.com/mindwell-app/sessionkit/transport"
)

// Coordinator is the authentication state machine exposed to the rest of the
// application. Construct it through [Builder.Build].
//
// Coordinator instances are intended to be configured during initialization and
// then treated as immutable unless documented otherwise; only the session and
// guard state they manage changes over their lifetime.
type Coordinator struct {
	config   Config
	store    store.Store
	client   *transport.Client
	events   *internalevents.Dispatcher
	metrics  *Metrics
	log      logrus.FieldLogger
	notifier *notifier.Notifier

	// mu guards session/state and, critically, the guard-state
	// read-modify-write that precedes every refresh round-trip. The check
	// and the increment happen under one critical section so concurrent
	// triggers can never both slip past the cooldown or the ceiling check
	// with stale counters.
	mu      sync.Mutex
	state   SessionState
	session *Session

	now func() time.Time
}

// State reports the coordinator's current position in the state machine.
func (c *Coordinator) State() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a copy of the live session, or nil when anonymous.
func (c *Coordinator) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	copied := *c.session
	return &copied
}

// Client exposes the authenticated transport for application requests beyond
// the session endpoints (dashboards, tasks, bookings).
func (c *Coordinator) Client() *transport.Client {
	return c.client
}

// Start begins the background role-change notifier when one is configured.
// Logout stops the notifier; calling Start after the next login resumes it.
func (c *Coordinator) Start() {
	if c.notifier != nil {
		c.notifier.Start()
	}
}

// Close stops the background notifier and drains the event dispatcher.
func (c *Coordinator) Close() {
	if c == nil {
		return
	}
	if c.notifier != nil {
		c.notifier.Stop()
	}
	if c.events != nil {
		c.events.Close()
	}
}

// Restore rebuilds the session from the persisted credential, the initial
// load path. It returns (nil, nil) and leaves the coordinator anonymous when
// nothing valid is persisted; the store has already discarded an expired or
// undecodable credential by the time Load returns.
func (c *Coordinator) Restore(ctx context.Context) (*Session, error) {
	state, err := c.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if state.Credential == "" {
		c.metricInc(MetricRestoreDiscarded)
		return nil, nil
	}

	claims, err := token.Decode(state.Credential)
	if err != nil {
		// Load validated the credential; a decode failure here means the
		// store raced with an external writer. Fail closed.
		c.metricInc(MetricRestoreDiscarded)
		return nil, nil
	}

	if claims.Role == "" && state.Role != "" {
		// The cached role outlives a credential that carries no role claim.
		claims.Role = state.Role
	}

	session := c.adoptSession(state.Credential, claims)
	c.metricInc(MetricRestoreSuccess)
	c.emit(ctx, Event{
		EventType: EventRestore,
		Subject:   session.Identity.Subject,
		Role:      session.Role,
		Success:   true,
	})

	copied := *session
	return &copied, nil
}

// Logout destroys the session: persisted state cleared, guard counters reset,
// background notifier stopped.
func (c *Coordinator) Logout(ctx context.Context) error {
	if c.notifier != nil {
		c.notifier.Stop()
	}

	c.mu.Lock()
	var subject string
	if c.session != nil {
		subject = c.session.Identity.Subject
	}
	c.session = nil
	c.state = StateAnonymous
	c.mu.Unlock()

	if err := c.store.Clear(ctx); err != nil {
		return err
	}

	c.metricInc(MetricLogout)
	c.emit(ctx, Event{
		EventType: EventLogout,
		Subject:   subject,
		Success:   true,
	})
	c.log.WithField("subject", subject).Debug("session destroyed")
	return nil
}

// MetricsSnapshot returns a point-in-time copy of all counters.
func (c *Coordinator) MetricsSnapshot() MetricsSnapshot {
	if c == nil || c.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return c.metrics.Snapshot()
}

// EventsDropped reports lifecycle events discarded under backpressure.
func (c *Coordinator) EventsDropped() uint64 {
	if c == nil || c.events == nil {
		return 0
	}
	return c.events.Dropped()
}

// adoptSession installs a session built from a decoded credential.
func (c *Coordinator) adoptSession(credential string, claims *token.Claims) *Session {
	identity := claims.Identity(c.config.Identity.DefaultRole)
	session := &Session{
		Credential: credential,
		Identity:   identity,
		Role:       identity.Role,
		DerivedAt:  c.now(),
	}

	c.mu.Lock()
	c.session = session
	c.state = StateAuthenticated
	c.mu.Unlock()

	return session
}

func (c *Coordinator) metricInc(id MetricID) {
	if c == nil || c.metrics == nil {
		return
	}
	c.metrics.Inc(id)
}

func (c *Coordinator) emit(ctx context.Context, event Event) {
	if c.events == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = c.now()
	}
	c.events.Emit(ctx, event)
}
