// Package otel provides OpenTelemetry metric exporter bindings for hooks counters and
// histograms.
//
// [NewOTelExporter] registers Int64ObservableCounter instruments for each hooks metric
// and Int64ObservableGauge per histogram bucket. A single callback reads
// [hooks.Runtime.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider — callers supply the Meter.
//   - Mutate runtime state.
package otel
