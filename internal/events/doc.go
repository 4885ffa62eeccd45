// Package events implements the session lifecycle event model and its
// asynchronous dispatcher.
//
// Events describe observable session transitions (login, logout, restore,
// refresh outcomes, role changes, guard trips). A single dispatcher goroutine
// drains a bounded buffer into the configured sink so emitting from the
// coordinator never blocks on a slow consumer; with DropIfFull set, overflow
// is counted and discarded instead of applying backpressure.
//
// This package is internal. The root package re-exports the event and sink
// types that integrators need.
package events
