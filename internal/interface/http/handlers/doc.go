// Package handlers holds reusable pieces of the REST surface: health checks
// and middleware.
//
// Health checks are registered by name and run in parallel:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddDetailedCheck("postgres", conn.Health)
//	checker.AddCheck("redis", handlers.NewPingCheck(cache))
//
// Middleware composes with Chain:
//
//	h := handlers.ChainHandler(mux,
//	    handlers.SecurityHeadersMiddleware,
//	    handlers.RequestSizeLimitMiddleware(1<<20),
//	    handlers.NewAPIKeyAuth("X-API-Key", keys).Middleware,
//	)
package handlers
