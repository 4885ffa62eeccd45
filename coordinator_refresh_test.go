package sessionkit

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/mindwell-app/sessionkit/transport"
)

func mustLogin(t *testing.T, coordinator *Coordinator) *Session {
	t.Helper()
	session, err := coordinator.Login(context.Background(), "alice", "pw")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return session
}

func guardCount(t *testing.T, coordinator *Coordinator) int {
	t.Helper()
	guard, err := coordinator.store.GuardState(context.Background())
	if err != nil {
		t.Fatalf("guard state failed: %v", err)
	}
	return guard.ConsecutiveRefreshes
}

func TestRefreshDetectsRoleChange(t *testing.T) {
	backend := newStubBackend(t)
	coordinator, _ := newTestCoordinator(t, backend)
	mustLogin(t, coordinator)

	backend.setRole("supervisor")
	outcome := coordinator.Refresh(context.Background(), TriggerManual)

	if outcome.Err != nil {
		t.Fatalf("refresh failed: %v", outcome.Err)
	}
	if !outcome.RoleChanged || outcome.OldRole != "employee" || outcome.NewRole != "supervisor" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if got := coordinator.Session().Role; got != "supervisor" {
		t.Fatalf("session role = %q", got)
	}

	persisted, err := coordinator.store.Load(context.Background())
	if err != nil {
		t.Fatalf("store load failed: %v", err)
	}
	if persisted.Role != "supervisor" {
		t.Fatalf("persisted role = %q", persisted.Role)
	}
}

func TestRefreshUnchangedRoleStillSettlesGuard(t *testing.T) {
	backend := newStubBackend(t)
	coordinator, clock := newTestCoordinator(t, backend)
	mustLogin(t, coordinator)

	outcome := coordinator.Refresh(context.Background(), TriggerManual)
	if outcome.Err != nil || outcome.RoleChanged || outcome.Skipped {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if got := guardCount(t, coordinator); got != 0 {
		t.Fatalf("guard count = %d, want 0 after success", got)
	}

	guard, err := coordinator.store.GuardState(context.Background())
	if err != nil {
		t.Fatalf("guard state failed: %v", err)
	}
	if !guard.LastRefreshAt.Equal(clock.Now()) {
		t.Fatalf("LastRefreshAt = %v, want %v", guard.LastRefreshAt, clock.Now())
	}
}

func TestBackgroundRefreshHonorsCooldown(t *testing.T) {
	backend := newStubBackend(t)
	coordinator, clock := newTestCoordinator(t, backend)
	mustLogin(t, coordinator)

	first := coordinator.Refresh(context.Background(), TriggerBackground)
	if first.Err != nil || first.Skipped {
		t.Fatalf("first refresh: %+v", first)
	}

	clock.Advance(5 * time.Second)
	second := coordinator.Refresh(context.Background(), TriggerBackground)
	if !second.Skipped || second.Err != nil {
		t.Fatalf("second refresh inside cooldown: %+v", second)
	}

	if _, me, _, _ := backend.counts(); me != 1 {
		t.Fatalf("identity lookups = %d, cooldown must prevent the second", me)
	}

	clock.Advance(30 * time.Second)
	third := coordinator.Refresh(context.Background(), TriggerBackground)
	if third.Skipped || third.Err != nil {
		t.Fatalf("refresh after cooldown elapsed: %+v", third)
	}
}

func TestManualRefreshBypassesCooldown(t *testing.T) {
	backend := newStubBackend(t)
	coordinator, _ := newTestCoordinator(t, backend)
	mustLogin(t, coordinator)

	for i := 0; i < 3; i++ {
		if outcome := coordinator.Refresh(context.Background(), TriggerManual); outcome.Skipped || outcome.Err != nil {
			t.Fatalf("manual refresh %d: %+v", i, outcome)
		}
	}
	if _, me, _, _ := backend.counts(); me != 3 {
		t.Fatalf("identity lookups = %d, want 3", me)
	}
}

func TestRefreshCircuitBreaker(t *testing.T) {
	backend := newStubBackend(t)
	backend.meStatus = http.StatusInternalServerError
	coordinator, _ := newTestCoordinator(t, backend)
	mustLogin(t, coordinator)

	// Six consecutive failures leave the counter at the ceiling plus one.
	for i := 1; i <= 6; i++ {
		outcome := coordinator.Refresh(context.Background(), TriggerManual)
		if outcome.Err == nil || outcome.Skipped {
			t.Fatalf("attempt %d should fail through to the backend: %+v", i, outcome)
		}
		if got := guardCount(t, coordinator); got != i {
			t.Fatalf("guard count after attempt %d = %d, want %d", i, got, i)
		}
	}

	// The seventh trips without touching the network and self-heals.
	_, meBefore, _, _ := backend.counts()
	tripped := coordinator.Refresh(context.Background(), TriggerManual)
	if !tripped.Skipped || !errors.Is(tripped.Err, ErrRefreshSuppressed) {
		t.Fatalf("seventh attempt: %+v", tripped)
	}
	if _, me, _, _ := backend.counts(); me != meBefore {
		t.Fatal("tripped attempt must not reach the backend")
	}
	if got := guardCount(t, coordinator); got != 0 {
		t.Fatalf("guard count after trip = %d, want 0", got)
	}

	// After the reset the backend recovers and the next attempt succeeds.
	backend.mu.Lock()
	backend.meStatus = 0
	backend.mu.Unlock()
	if outcome := coordinator.Refresh(context.Background(), TriggerManual); outcome.Err != nil {
		t.Fatalf("post-reset refresh: %+v", outcome)
	}

	snapshot := coordinator.MetricsSnapshot()
	if got := snapshot.Counters[MetricRefreshSuppressed]; got != 1 {
		t.Fatalf("suppressed metric = %d, want 1", got)
	}
}

func TestRefreshFallsBackWhenIdentityUnreachable(t *testing.T) {
	backend := newStubBackend(t)
	backend.hijackMe = true
	coordinator, _ := newTestCoordinator(t, backend)
	mustLogin(t, coordinator)

	backend.setRole("supervisor")
	outcome := coordinator.Refresh(context.Background(), TriggerManual)
	if outcome.Err != nil {
		t.Fatalf("refresh failed: %v", outcome.Err)
	}
	if !outcome.RoleChanged || outcome.NewRole != "supervisor" {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	_, me, refresh, _ := backend.counts()
	if me != 1 || refresh != 1 {
		t.Fatalf("me=%d refresh=%d, want one attempt on each", me, refresh)
	}
	if got := coordinator.MetricsSnapshot().Counters[MetricRefreshFallback]; got != 1 {
		t.Fatalf("fallback metric = %d, want 1", got)
	}
}

func TestRefreshWithoutSessionIsNoop(t *testing.T) {
	backend := newStubBackend(t)
	coordinator, _ := newTestCoordinator(t, backend)

	outcome := coordinator.Refresh(context.Background(), TriggerBackground)
	if !outcome.Skipped || !errors.Is(outcome.Err, ErrNotAuthenticated) {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if _, me, refresh, _ := backend.counts(); me != 0 || refresh != 0 {
		t.Fatal("refresh without a session must stay off the network")
	}
}

func TestRefreshDestroysExpiredSession(t *testing.T) {
	backend := newStubBackend(t)
	coordinator, _ := newTestCoordinator(t, backend)

	expired := mintCredential(t, "alice", "employee", time.Now().Add(-time.Minute))
	coordinator.mu.Lock()
	coordinator.session = &Session{Credential: expired, Role: "employee"}
	coordinator.state = StateAuthenticated
	coordinator.mu.Unlock()

	outcome := coordinator.Refresh(context.Background(), TriggerBackground)
	if !outcome.Skipped || !errors.Is(outcome.Err, ErrNotAuthenticated) {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if got := coordinator.State(); got != StateAnonymous {
		t.Fatalf("state = %v, want anonymous", got)
	}
	if coordinator.Session() != nil {
		t.Fatal("expired session must be destroyed")
	}
}

func TestRefreshCredentialMintsAndPersists(t *testing.T) {
	backend := newStubBackend(t)
	coordinator, clock := newTestCoordinator(t, backend)
	session := mustLogin(t, coordinator)

	fresh, err := coordinator.RefreshCredential(context.Background())
	if err != nil {
		t.Fatalf("credential refresh failed: %v", err)
	}
	if fresh == session.Credential {
		t.Fatal("expected a newly minted credential")
	}

	persisted, err := coordinator.store.Load(context.Background())
	if err != nil {
		t.Fatalf("store load failed: %v", err)
	}
	if persisted.Credential != fresh {
		t.Fatal("fresh credential must be persisted")
	}
	if got := guardCount(t, coordinator); got != 0 {
		t.Fatalf("guard count = %d, want 0", got)
	}

	// The same persisted guard covers credential refreshes; an immediate
	// second mint sits inside the auth-error cooldown.
	if _, err := coordinator.RefreshCredential(context.Background()); !errors.Is(err, ErrRefreshCooldown) {
		t.Fatalf("expected cooldown error, got %v", err)
	}

	clock.Advance(11 * time.Second)
	if _, err := coordinator.RefreshCredential(context.Background()); err != nil {
		t.Fatalf("refresh after cooldown: %v", err)
	}
}

func TestTransportRetryRidesOnCoordinatorRefresh(t *testing.T) {
	backend := newStubBackend(t)
	coordinator, _ := newTestCoordinator(t, backend)
	mustLogin(t, coordinator)

	backend.invalidateIssued()

	var out struct {
		Tasks []string `json:"tasks"`
	}
	err := coordinator.Client().Do(context.Background(), transport.Request{
		Method: http.MethodGet,
		Path:   "/tasks",
		Out:    &out,
	})
	if err != nil {
		t.Fatalf("request should succeed after one refresh-and-retry: %v", err)
	}

	_, _, refresh, tasks := backend.counts()
	if tasks != 2 {
		t.Fatalf("tasks calls = %d, want exactly 2", tasks)
	}
	if refresh != 1 {
		t.Fatalf("refresh calls = %d, want exactly 1", refresh)
	}
}

func TestConcurrentBackgroundRefreshes(t *testing.T) {
	backend := newStubBackend(t)
	coordinator, _ := newTestCoordinator(t, backend)
	mustLogin(t, coordinator)

	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			coordinator.Refresh(context.Background(), TriggerBackground)
		}()
	}
	wg.Wait()

	if got := coordinator.State(); got != StateAuthenticated {
		t.Fatalf("state = %v", got)
	}
	if got := guardCount(t, coordinator); got != 0 {
		t.Fatalf("guard count = %d, want 0 after successful settles", got)
	}
	if _, me, _, _ := backend.counts(); me < 1 || me > workers {
		t.Fatalf("identity lookups = %d, want between 1 and %d", me, workers)
	}
}
