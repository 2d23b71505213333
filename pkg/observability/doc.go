// Package observability provides structured logging, Prometheus metrics,
// health probes, and optional OpenTelemetry tracing for the TaskHive server.
package observability
