// Package httpserver runs the HTTP API with a context-bound lifetime and
// exposes liveness and readiness handlers.
//
// Run blocks until the context is canceled and then shuts the server down
// within the configured timeout, so it fits directly into an errgroup:
//
//	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
//	g.Go(func() error { return srv.Run(ctx, router) })
//
// ReadinessHandler reports each named check and answers 503 if any fail:
//
//	r.Get("/health/ready", httpserver.ReadinessHandler(log, 2*time.Second,
//		httpserver.Check{Name: "mongo", Probe: mongo.Healthcheck(client)},
//	))
//
// Listen failures are wrapped with ErrStart and shutdown failures with
// ErrShutdown.
package httpserver
