// Package prometheus provides Prometheus collectors for hooks metrics.
//
// [NewPrometheusExporter] accepts a [hooks.Runtime] and exposes an [http.Handler]
// that renders all hooks counters and histograms in Prometheus text exposition format.
// Counter names are prefixed hooks_*_total; the single histogram is
// hooks_handler_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry — callers mount the Handler.
//   - Mutate runtime state.
package prometheus
