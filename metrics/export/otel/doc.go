// Package otel mirrors pinauth engine metrics into OpenTelemetry instruments.
//
// [NewExporter] creates one Int64ObservableCounter per engine counter and one
// Int64ObservableGauge per cumulative bucket of the verify latency histogram.
// A single callback reads [pinauth.Engine.MetricsSnapshot] per collection.
//
// The caller owns the MeterProvider. The exporter never writes engine state.
package otel
