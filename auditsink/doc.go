// Package auditsink provides [pinauth.AuditSink] implementations that ship audit
// events out of process.
//
// [KafkaSink] publishes one JSON message per event, keyed by principal so a
// principal's events stay ordered within a partition. [ZapSink] writes events as
// structured log lines.
//
// Sinks run on the engine's audit dispatcher goroutine, never on a request path.
package auditsink
