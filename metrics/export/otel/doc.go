// Package otel provides OpenTelemetry metric exporter bindings for authflow counters
// and histograms.
//
// [NewOTelExporter] registers an Int64ObservableCounter for each client counter. A
// histogram becomes a "<name>_bucket" gauge observed once per bound under the
// [BucketAttribute] attribute, and a "<name>_count" counter. A single callback reads
// [authflow.Client.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate client state.
package otel
