// Package store implements durable per-profile persistence for the session
// credential, the cached role, and the refresh-guard counters.
//
// # State layout
//
// Three logical records under well-known keys: the credential string, the role
// cache (a fallback that survives a later decode failure), and the guard state
// (last-refresh instant plus consecutive-refresh counter). The credential is
// replaced wholesale on save and never mutated in place.
//
// # Load semantics
//
// Load discards a persisted credential that no longer decodes or is expired,
// fail-closed: callers only ever observe a credential that was valid at load
// time. The role cache is kept through a discard so the UI can fall back to
// the last known role.
//
// # Guard updates
//
// UpdateGuard writes only the fields present in the update. Two call sites
// updating different fields in close succession never clobber each other's
// writes. The store is the single source of truth for the counters; callers
// must not keep local copies.
//
// # Implementations
//
// [Memory] is the mutex-guarded single-process default and test double.
// [Redis] persists to a Redis hash-per-key layout via go-redis and backs
// deployments where session state must survive the process.
package store
