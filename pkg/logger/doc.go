// Package logger builds the structured loggers used by the container and
// exposes the best-effort log sink that servlets write to.
//
// # Construction
//
//	log := logger.New(requestIDExtractor)                  // JSON on stdout
//	log := logger.NewWithSentry(cfg, requestIDExtractor)   // stdout + Sentry
//	log := logger.NewNope()                                // discard
//
// Context extractors run on every record, so request-scoped values such as
// the request id follow the record without being threaded through call sites.
// Attributes attached with [WithAttrs] travel the same way; the container
// uses them for the context path and the servlet being serviced:
//
//	ctx = logger.WithAttrs(ctx, slog.String("servlet", "catalog"))
//	log.ErrorContext(ctx, "service failed") // carries servlet=catalog
//
// # Sentry
//
// NewWithSentry writes stdout at [Config].Level and fans records out to
// Sentry when a DSN is set. Errors become Sentry issues, records at or above
// SentryLevel are kept as Sentry logs, and SentryTags are set on every event.
// A Sentry failure never keeps a record from stdout. When the SDK fails to
// initialize, the logger falls back to stdout only.
//
// # Sink
//
// [Sink] is the narrow boundary a servlet sees: Log(msg) and LogError(msg, cause).
// It never returns an error and swallows handler panics, so a broken log
// destination cannot fail a request.
//
//	sink := logger.NewSink(log)
//	sink.LogError(ctx, "template missing", err)
package logger
