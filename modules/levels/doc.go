// Package levels is the HTTP surface of the publishing workflow: draft
// editing, immediate and scheduled publishing, the re-edit guard, and the
// internal endpoints an external scheduler calls to drive the queue.
//
// All JSON errors have the body {"error": "<message>"}. Account-tier
// failures map to 401, unknown or foreign levels to 404, request and
// workflow errors to 400 and everything else to 500.
//
// Mount it on a router together with the health endpoints:
//
//	mod := levels.New(publisher, scheduler, dispatcher, accounts, cfg, levels.WithLogger(log))
//	r.Mount("/", mod.Handle())
package levels
