// Package notifier runs the periodic background role refresh.
//
// A single cron entry fires at the configured interval and invokes the
// coordinator's background refresh. Ticks that arrive while a previous
// invocation is still settling are dropped, not queued: an in-flight flag is
// checked-and-set atomically at the top of every run, so at most one refresh
// is ever in flight regardless of how slow the backend is.
//
// # Architecture boundaries
//
// This package owns scheduling and overlap suppression. Cooldowns, the
// circuit breaker, and role comparison all live behind the injected refresh
// function; the notifier only reports the outcome to its role-change handler.
//
// # What this package must NOT do
//
//   - Queue or buffer missed ticks.
//   - Interpret refresh errors beyond logging them; background failures are
//     never propagated upward.
package notifier
