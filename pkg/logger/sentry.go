package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/getsentry/sentry-go"
	sentryslog "github.com/getsentry/sentry-go/slog"
)

// Config configures the host process logger. Fields carry env tags so the
// struct can be embedded in a caarlos0/env configuration.
type Config struct {
	// Level is the minimum level written to stdout.
	Level slog.Level `env:"LOG_LEVEL" envDefault:"info"`

	SentryDSN         string `env:"SENTRY_DSN"`
	SentryEnvironment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
	// SentryLevel is the minimum level kept as Sentry logs. Errors always
	// become Sentry issues.
	SentryLevel slog.Level `env:"SENTRY_LEVEL" envDefault:"warn"`
	// SentryTags are attached to every Sentry event, e.g. "region:eu,tier:web".
	SentryTags map[string]string `env:"SENTRY_TAGS"`

	// Release identifies the container build in Sentry, e.g. "minicat@1.0".
	Release string
}

// NewWithSentry creates a logger writing JSON to stdout and, when a DSN is
// set, to Sentry as well. Records keep the context_path and servlet
// attributes attached with [WithAttrs], so Sentry issues name the
// application and servlet that failed. If the SDK cannot start, the logger
// falls back to stdout only.
func NewWithSentry(cfg Config, extractors ...ContextExtractor) *slog.Logger {
	return newWithSentry(os.Stdout, cfg, extractors...)
}

func newWithSentry(w io.Writer, cfg Config, extractors ...ContextExtractor) *slog.Logger {
	stdout := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: cfg.Level})
	if cfg.SentryDSN == "" {
		return slog.New(NewLogHandlerDecorator(stdout, extractors...))
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     cfg.Release,
		EnableLogs:  true,
	}); err != nil {
		slog.New(stdout).Error("sentry disabled", slog.String("error", err.Error()))
		return slog.New(NewLogHandlerDecorator(stdout, extractors...))
	}
	if len(cfg.SentryTags) > 0 {
		sentry.ConfigureScope(func(scope *sentry.Scope) {
			for k, v := range cfg.SentryTags {
				scope.SetTag(k, v)
			}
		})
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   sentryLevels(cfg.SentryLevel),
	}.NewSentryHandler(context.Background())

	return slog.New(NewLogHandlerDecorator(newMultiHandler(stdout, sentryHandler), extractors...))
}

// sentryLevels lists the standard levels at or above min.
func sentryLevels(min slog.Level) []slog.Level {
	levels := make([]slog.Level, 0, 4)
	for _, l := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
		if l >= min {
			levels = append(levels, l)
		}
	}
	if len(levels) == 0 {
		levels = append(levels, slog.LevelError)
	}
	return levels
}
