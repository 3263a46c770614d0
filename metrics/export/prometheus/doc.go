// Package prometheus exposes authflow client metrics as a Prometheus collector.
//
// [PrometheusExporter] implements [prometheus.Collector] and registers itself in a
// private registry served by [PrometheusExporter.Handler]. Counter names are prefixed
// authflow_*_total; the single histogram is authflow_operation_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers mount the Handler or
//     register the exporter themselves.
//   - Mutate client state.
package prometheus
