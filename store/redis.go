package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mindwell-app/sessionkit/token"
)

const defaultRedisPrefix = "mwsess"

// Redis is a [Store] backed by a Redis instance. State survives process
// restarts, which is what keeps the refresh circuit breaker coherent across
// reloads.
type Redis struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedis creates a Redis-backed store. prefix namespaces the keys; the
// default is used when empty.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{
		client: client,
		prefix: prefix,
		now:    time.Now,
	}
}

func (r *Redis) credentialKey() string { return r.prefix + ":credential" }
func (r *Redis) roleKey() string       { return r.prefix + ":role" }
func (r *Redis) guardTimeKey() string  { return r.prefix + ":guard:last" }
func (r *Redis) guardCountKey() string { return r.prefix + ":guard:count" }

// Load implements [Store]. An expired or undecodable credential is deleted
// from Redis before the state is returned; the role cache is kept.
func (r *Redis) Load(ctx context.Context) (State, error) {
	values, err := r.client.MGet(ctx,
		r.credentialKey(), r.roleKey(), r.guardTimeKey(), r.guardCountKey(),
	).Result()
	if err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	state := State{
		Credential: stringAt(values, 0),
		Role:       stringAt(values, 1),
	}
	if ts := stringAt(values, 2); ts != "" {
		if nanos, err := strconv.ParseInt(ts, 10, 64); err == nil {
			state.Guard.LastRefreshAt = time.Unix(0, nanos)
		}
	}
	if n := stringAt(values, 3); n != "" {
		if count, err := strconv.Atoi(n); err == nil {
			state.Guard.ConsecutiveRefreshes = count
		}
	}

	if state.Credential != "" && token.IsExpired(state.Credential, r.now()) {
		if err := r.client.Del(ctx, r.credentialKey()).Err(); err != nil {
			return State{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		state.Credential = ""
	}

	return state, nil
}

// Save implements [Store]. Credential and role are replaced in one MSET so a
// reader never observes a new credential with a stale role cache.
func (r *Redis) Save(ctx context.Context, credential, role string) error {
	err := r.client.MSet(ctx,
		r.credentialKey(), credential,
		r.roleKey(), role,
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Clear implements [Store].
func (r *Redis) Clear(ctx context.Context) error {
	err := r.client.Del(ctx,
		r.credentialKey(), r.roleKey(), r.guardTimeKey(), r.guardCountKey(),
	).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// GuardState implements [Store].
func (r *Redis) GuardState(ctx context.Context) (GuardState, error) {
	values, err := r.client.MGet(ctx, r.guardTimeKey(), r.guardCountKey()).Result()
	if err != nil {
		return GuardState{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	guard := GuardState{}
	if ts := stringAt(values, 0); ts != "" {
		if nanos, err := strconv.ParseInt(ts, 10, 64); err == nil {
			guard.LastRefreshAt = time.Unix(0, nanos)
		}
	}
	if n := stringAt(values, 1); n != "" {
		if count, err := strconv.Atoi(n); err == nil {
			guard.ConsecutiveRefreshes = count
		}
	}

	return guard, nil
}

// UpdateGuard implements [Store]. Only the keys for fields present in update
// are written, so interleaved partial updates never clobber each other.
func (r *Redis) UpdateGuard(ctx context.Context, update GuardUpdate) error {
	pairs := make([]any, 0, 4)
	if update.LastRefreshAt != nil {
		pairs = append(pairs, r.guardTimeKey(), strconv.FormatInt(update.LastRefreshAt.UnixNano(), 10))
	}
	if update.ConsecutiveRefreshes != nil {
		pairs = append(pairs, r.guardCountKey(), strconv.Itoa(*update.ConsecutiveRefreshes))
	}
	if len(pairs) == 0 {
		return nil
	}

	if err := r.client.MSet(ctx, pairs...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func stringAt(values []any, i int) string {
	if i >= len(values) || values[i] == nil {
		return ""
	}
	s, _ := values[i].(string)
	return s
}
