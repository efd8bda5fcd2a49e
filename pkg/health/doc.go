// Package health provides HTTP handlers for liveness and readiness checks.
//
// [LivenessHandler] always answers OK while the process runs.
// [ReadinessHandler] runs a fixed set of [Checks] in parallel;
// [DynamicReadinessHandler] asks a [Source] for the checks on every request,
// which suits a container whose servlets change state at runtime.
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.DynamicReadinessHandler(app.HealthChecks,
//	    health.WithTimeout(3*time.Second),
//	    health.WithLogger(log),
//	))
//
// Handlers answer plain text ("OK" / "Service Unavailable") unless the client
// asks for JSON with Accept: application/json or ?format=json:
//
//	{
//	  "status": "unhealthy",
//	  "checks": {
//	    "catalog": {"status": "healthy"},
//	    "reports": {"status": "unhealthy", "state": "failed_init", "error": "health: check failed: reports is failed_init: ..."}
//	  }
//	}
//
// Failed checks are reported wrapped with [ErrCheckFailed]; checks that do not
// finish in time are reported as [ErrCheckTimeout]. A check that returns a
// [StateError] names the lifecycle state of its component, which is copied
// into the response and listed in the plain-text body.
package health
