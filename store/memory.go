package store

import (
	"context"
	"sync"
	"time"

	"github.com/mindwell-app/sessionkit/token"
)

// Memory is an in-process [Store]. It is the default for single-process
// deployments and the test double for everything else.
type Memory struct {
	mu         sync.Mutex
	credential string
	role       string
	guard      GuardState
	now        func() time.Time
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// Load implements [Store]. A credential that fails to decode or is expired is
// dropped from the store; the role cache is kept.
func (m *Memory) Load(_ context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.credential != "" && token.IsExpired(m.credential, m.now()) {
		m.credential = ""
	}

	return State{
		Credential: m.credential,
		Role:       m.role,
		Guard:      m.guard,
	}, nil
}

// Save implements [Store].
func (m *Memory) Save(_ context.Context, credential, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.credential = credential
	m.role = role
	return nil
}

// Clear implements [Store].
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.credential = ""
	m.role = ""
	m.guard = GuardState{}
	return nil
}

// GuardState implements [Store].
func (m *Memory) GuardState(_ context.Context) (GuardState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.guard, nil
}

// UpdateGuard implements [Store].
func (m *Memory) UpdateGuard(_ context.Context, update GuardUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if update.LastRefreshAt != nil {
		m.guard.LastRefreshAt = *update.LastRefreshAt
	}
	if update.ConsecutiveRefreshes != nil {
		m.guard.ConsecutiveRefreshes = *update.ConsecutiveRefreshes
	}
	return nil
}
