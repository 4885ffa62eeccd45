// Package transport implements the authenticated HTTP client used for every
// backend call.
//
// # Retry containment
//
// A request that fails with 401 or 403 triggers at most one credential refresh
// through the injected [Refresher], followed by at most one re-issue of the
// original request. The retry flag is an explicit parameter threaded through
// that one call, so the bound is structural: there is no code path that can
// retry twice or recurse. The refresh primitive itself issues its request with
// NoRetry set and can never re-enter this logic. When the retried request also
// fails, the caller receives the original auth failure, not whatever the retry
// died of, so error handling always branches on the failure that started the
// exchange.
//
// # Architecture boundaries
//
// This package owns request construction, bearer attachment, error decoding,
// and the retry bound. Refresh policy (cooldowns, the circuit breaker) belongs
// to the coordinator behind the [Refresher] interface; credential persistence
// belongs to the store.
//
// # What this package must NOT do
//
//   - Decide whether a refresh is allowed; it only asks the Refresher once.
//   - Cache the credential; it is read from the store on every attempt.
//   - Retry non-auth failures.
package transport
