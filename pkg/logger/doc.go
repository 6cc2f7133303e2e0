// Package logger builds configured log/slog loggers.
//
// It provides a small factory over slog handlers so that libraries in this
// module share one way of constructing structured loggers: JSON for
// production aggregation, text for local development.
//
//	log := logger.New(
//		logger.WithFormat(logger.FormatJSON),
//		logger.WithLevel(slog.LevelInfo),
//		logger.WithAttr(slog.String("service", "authz")),
//	)
package logger
