// Package server implements the rules engine's operations HTTP server.
//
// The server is a chi router exposing liveness and readiness probes, build
// information and the Prometheus scrape endpoint:
//
//	GET /healthz   liveness, always 200
//	GET /readyz    readiness, 503 until every check passes
//	GET /version   build information
//	GET /metrics   Prometheus exposition
//
// Probe paths come from config.ServerConfig. Rule evaluation is a library
// and CLI concern and has no HTTP route.
package server
