// Package prometheus exposes staffsync engine and hub metrics through
// client_golang.
//
// [Collector] reads the engine snapshot and, when configured, the hub stats on
// every scrape. Counter names are staffsync_*_total; the validate latency
// histogram is staffsync_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. [NewRegistry] builds a
//     private one for the caller to mount.
//   - Mutate engine or hub state.
package prometheus
