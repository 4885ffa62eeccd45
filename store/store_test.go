package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) *Redis {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedis(client, "sessiontest")
}

func mintCredential(t *testing.T, exp time.Time) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256"}`))
	body, err := json.Marshal(map[string]any{
		"sub":  "alice",
		"role": "employee",
		"exp":  exp.Unix(),
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return header + "." + base64.RawURLEncoding.EncodeToString(body) + ".sig"
}

func eachStore(t *testing.T, run func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { run(t, NewMemory()) })
	t.Run("redis", func(t *testing.T) { run(t, newRedisStore(t)) })
}

func TestSaveThenLoad(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		cred := mintCredential(t, time.Now().Add(time.Hour))

		if err := s.Save(ctx, cred, "employee"); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		state, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if state.Credential != cred {
			t.Fatalf("credential = %q, want stored one", state.Credential)
		}
		if state.Role != "employee" {
			t.Fatalf("role = %q", state.Role)
		}
	})
}

func TestLoadDiscardsExpiredCredential(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		cred := mintCredential(t, time.Now().Add(-time.Hour))

		if err := s.Save(ctx, cred, "employee"); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		state, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if state.Credential != "" {
			t.Fatal("expired credential must be discarded")
		}
		if state.Role != "employee" {
			t.Fatal("role cache must survive a discard")
		}

		// The discard is durable, not per-read.
		state, err = s.Load(ctx)
		if err != nil {
			t.Fatalf("second load failed: %v", err)
		}
		if state.Credential != "" {
			t.Fatal("discard must persist")
		}
	})
}

func TestLoadDiscardsMalformedCredential(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		if err := s.Save(ctx, "not-a-credential", "employee"); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		state, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if state.Credential != "" {
			t.Fatal("malformed credential must be discarded")
		}
	})
}

func TestClearResetsEverything(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		if err := s.Save(ctx, mintCredential(t, time.Now().Add(time.Hour)), "employee"); err != nil {
			t.Fatalf("save failed: %v", err)
		}
		if err := s.UpdateGuard(ctx, GuardUpdate{
			LastRefreshAt:        GuardTimestamp(time.Now()),
			ConsecutiveRefreshes: GuardCount(3),
		}); err != nil {
			t.Fatalf("guard update failed: %v", err)
		}

		if err := s.Clear(ctx); err != nil {
			t.Fatalf("clear failed: %v", err)
		}

		state, err := s.Load(ctx)
		if err != nil {
			t.Fatalf("load failed: %v", err)
		}
		if state.Credential != "" || state.Role != "" {
			t.Fatalf("state not cleared: %+v", state)
		}
		if state.Guard.ConsecutiveRefreshes != 0 || !state.Guard.LastRefreshAt.IsZero() {
			t.Fatalf("guard not reset: %+v", state.Guard)
		}
	})
}

func TestPartialGuardUpdateDoesNotClobber(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		stamp := time.Now().Truncate(time.Millisecond)

		if err := s.UpdateGuard(ctx, GuardUpdate{LastRefreshAt: GuardTimestamp(stamp)}); err != nil {
			t.Fatalf("guard update failed: %v", err)
		}
		if err := s.UpdateGuard(ctx, GuardUpdate{ConsecutiveRefreshes: GuardCount(4)}); err != nil {
			t.Fatalf("guard update failed: %v", err)
		}

		guard, err := s.GuardState(ctx)
		if err != nil {
			t.Fatalf("guard state failed: %v", err)
		}
		if guard.ConsecutiveRefreshes != 4 {
			t.Fatalf("count = %d, want 4", guard.ConsecutiveRefreshes)
		}
		if !guard.LastRefreshAt.Equal(stamp) {
			t.Fatalf("timestamp clobbered: %v != %v", guard.LastRefreshAt, stamp)
		}
	})
}

func TestGuardSurvivesSave(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		if err := s.UpdateGuard(ctx, GuardUpdate{ConsecutiveRefreshes: GuardCount(2)}); err != nil {
			t.Fatalf("guard update failed: %v", err)
		}
		if err := s.Save(ctx, mintCredential(t, time.Now().Add(time.Hour)), "supervisor"); err != nil {
			t.Fatalf("save failed: %v", err)
		}

		guard, err := s.GuardState(ctx)
		if err != nil {
			t.Fatalf("guard state failed: %v", err)
		}
		if guard.ConsecutiveRefreshes != 2 {
			t.Fatalf("count = %d, want 2", guard.ConsecutiveRefreshes)
		}
	})
}
