// Package log provides Frontier's structured logging facade.
//
// The package exposes a small Logger interface with leveled, Field-based
// methods. Internally it is backed by the standard library slog via a bridge
// handler that routes records through the package's formatter/output
// pipeline, so output stays consistent whether code logs through this facade
// or through the stdlib log package after RedirectStdLog.
//
// Quick start:
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	)
//	l = l.With(log.Component("server"))
//	l.Info("listening", log.Str("addr", ":8080"))
package log
