// Package otel provides OpenTelemetry metric bindings for sessionkit
// counters.
//
// [NewExporter] registers an Int64ObservableCounter per sessionkit metric
// plus one for dropped lifecycle events. A single callback reads the
// coordinator's snapshot on each collection cycle, so exporting adds no
// cost to the hot path.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate coordinator state.
package otel
