// Package sessionkit provides the client-side session and role-refresh
// coordinator for the Mindwell employee-wellness platform: credential custody,
// bearer-authenticated requests with a bounded refresh-and-retry, server-side
// role-change detection, and storm-proof background refresh.
//
// The package is designed for concurrent application workloads: Coordinator
// methods are safe to call from multiple goroutines after initialization
// through [Builder.Build].
//
// # Architecture boundaries
//
// sessionkit is the public surface. It exposes [Coordinator], [Builder],
// [Config], and value types (Session, RefreshOutcome, Event, MetricsSnapshot).
// Leaf concerns live in focused subpackages: token decoding in token, state
// persistence in store, the HTTP client in transport, the periodic refresh in
// notifier. Event dispatch lives under internal/ and is never exported
// directly.
//
// # Refresh containment
//
// Three independent call sites trigger refreshes: explicit user action, the
// background notifier, and the transport's on-401 retry. All three route
// through one persisted guard combining a per-trigger cooldown with a
// consecutive-attempt circuit breaker, so bursts can never compound into a
// refresh storm. The transport retries a failed request at most once, with the
// retry flag threaded structurally through a single call.
//
// # What this package must NOT do
//
//   - Verify credential signatures; that is the backend's job, and a
//     credential that fails to decode is simply not an authentication.
//   - Render anything; role changes surface as events and callbacks only.
//   - Let a background failure escape as a panic or an unhandled error.
package sessionkit
