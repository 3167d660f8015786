package logging

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

type contextKey string

const (
	requestIDKey    contextKey = "request_id"
	evaluationIDKey contextKey = "evaluation_id"
	tenantIDKey     contextKey = "tenant_id"
	actorKey        contextKey = "actor"
)

// WithRequestID adds an HTTP request id to ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// WithEvaluationID adds an evaluation id to ctx.
func WithEvaluationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, evaluationIDKey, id)
}

// WithTenantID adds a tenant id to ctx.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// WithActor adds the acting user or process to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// RequestID returns the request id in ctx, or "".
func RequestID(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

// EvaluationID returns the evaluation id in ctx, or "".
func EvaluationID(ctx context.Context) string { return stringValue(ctx, evaluationIDKey) }

// TenantID returns the tenant id in ctx, or "".
func TenantID(ctx context.Context) string { return stringValue(ctx, tenantIDKey) }

// Actor returns the actor in ctx, or "".
func Actor(ctx context.Context) string { return stringValue(ctx, actorKey) }

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

// contextAttrs returns the log fields carried by ctx, including the trace
// and span ids of a recording span.
func contextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}

	var attrs []slog.Attr
	for _, key := range []contextKey{requestIDKey, evaluationIDKey, tenantIDKey, actorKey} {
		if v := stringValue(ctx, key); v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		attrs = append(attrs,
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return attrs
}
