// Package otel binds staffsync engine and hub metrics to OpenTelemetry
// observable instruments.
//
// [NewExporter] registers one Int64ObservableCounter per engine counter, one
// Int64ObservableGauge per latency bucket and, with [WithHub], the hub series.
// A single callback reads the snapshot on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine or hub state.
package otel
