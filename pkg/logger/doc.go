// Package logger builds the process-wide *slog.Logger and provides attribute
// helpers that keep key names consistent across the queue, the dispatcher and
// the HTTP layer.
//
// New returns a logger configured by Option functions: output format, level,
// static attributes and ContextExtractor callbacks that copy request-scoped
// values (such as the request id) from the context into every record.
//
//	log := logger.New(logger.FromConfig(cfg)...)
//	logger.SetAsDefault(log)
//
//	log.InfoContext(ctx, "message completed",
//		logger.MessageID(msg.ID),
//		logger.MessageType(msg.Type),
//		logger.Duration(time.Since(start)),
//	)
//
// Error and Errors return an empty attribute for nil errors, so they can be
// passed unconditionally.
package logger
