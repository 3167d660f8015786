// Package tracing sets up OpenTelemetry tracing for the rules engine.
//
// New builds a tracer provider exporting to an OTLP gRPC collector, or a
// no-op tracer when tracing is disabled. The engine takes the result of
// Tracer() and opens a span per evaluation; rule syncs open one per sync.
//
//	telemetry:
//	  tracing:
//	    enabled: true
//	    endpoint: otel-collector:4317
//	    sampler: ratio
//	    sample_ratio: 0.1
//
// Samplers are parent-based. W3C trace context is extracted from incoming
// requests on the ops server by HTTPMiddleware.
package tracing
