// Package health implements liveness and readiness probes.
//
// Readiness runs named checks concurrently, each bounded by a timeout. The
// rules engine registers a ping of the rule repository, a ping of the audit
// storage and a SyncTracker that fails while the configured rules source has
// not synced:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("repository", health.PingCheck(repo))
//	checker.RegisterCheck("rules_sync", tracker.Check)
//	router.Get("/healthz", checker.LivenessHandler())
//	router.Get("/readyz", checker.ReadinessHandler())
package health
