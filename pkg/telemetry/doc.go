// Package telemetry groups the rules engine's observability packages.
//
//   - logging: slog loggers with context fields and redaction
//   - metrics: Prometheus collector for the engine, store, audit and syncs
//   - tracing: OpenTelemetry tracer provider and W3C propagation
//   - health: liveness and readiness probes
//
// internal/bootstrap wires all four from config.TelemetryConfig.
package telemetry
