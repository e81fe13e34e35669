// Package requestid assigns every API request an id, echoes it in the
// X-Request-ID response header and exposes it to the logger so dispatch
// cycles triggered over HTTP can be traced through the logs.
//
//	r.Use(requestid.Middleware)
//	log := logger.New(logger.WithContextExtractors(requestid.LoggerExtractor()))
package requestid
