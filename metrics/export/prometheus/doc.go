// Package prometheus exports sessionkit's in-process counters as a
// prometheus/client_golang collector.
//
// The collector reads a [sessionkit.MetricsSnapshot] on every scrape; it holds
// no state of its own and is safe to register once per coordinator. The
// dropped-event counter from the lifecycle dispatcher is exposed alongside
// the session counters.
package prometheus
