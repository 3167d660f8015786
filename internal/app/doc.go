// Package app assembles a running rules engine from configuration: the rule
// repository, audit trail, store, engine, telemetry, rule sources and the
// operations server. The rulesengine command builds one App per invocation.
package app
