// Package logging builds the rules engine's structured loggers.
//
// New returns a standard *slog.Logger whose handler adds context fields
// and masks sensitive values:
//
//	logger, err := logging.New(logging.FromConfig(&cfg.Telemetry.Logging, os.Stderr))
//
//	ctx = logging.WithTenantID(ctx, "acme")
//	ctx = logging.WithEvaluationID(ctx, evalID)
//	logger.InfoContext(ctx, "evaluation complete", "matched", 3)
//
// Context fields are request_id, evaluation_id, tenant_id and actor, plus
// trace_id and span_id when ctx carries a valid span.
//
// # Redaction
//
// With RedactPII enabled, attributes whose key names a secret (token,
// password, api_key, ...) are masked whole, and string values are scanned
// for bearer tokens, API keys, emails and card numbers. Custom patterns
// from the configuration run after the built-in ones.
package logging
