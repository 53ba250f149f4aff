// Package prometheus publishes pinauth engine metrics for Prometheus.
//
// [Exporter.Collector] returns a client_golang Collector that reads the
// engine snapshot on every scrape. [Exporter.Handler] serves it through
// promhttp from a private registry; callers that already run a registry
// register the collector there.
//
// Counter names are prefixed pinauth_*_total; the single histogram is
// pinauth_verify_latency_seconds.
//
// # What this package must NOT do
//
//   - Register into the global Prometheus registry.
//   - Mutate engine state.
package prometheus
