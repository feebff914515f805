// Package httpserver runs the notifier's HTTP listener with graceful
// shutdown and exposes liveness and readiness handlers.
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	r.Get("/livez", httpserver.HealthHandler(log, time.Second))
//	r.Get("/readyz", httpserver.HealthHandler(log, time.Second,
//		httpserver.Check{Name: "postgres", Fn: pg.Healthcheck(pool)},
//	))
//	err := srv.Run(ctx, r)
//
// Run returns when ctx is cancelled. Request contexts are cancelled at the
// start of shutdown so open event streams end instead of holding the
// listener until the shutdown timeout.
package httpserver
