package logger

import (
	"context"
	"log/slog"
)

// Sink is the outward logging boundary offered to servlets.
//
// Delivery is best-effort: a failing or panicking slog handler is contained
// here and never surfaces to the caller, so logging cannot fail a request.
type Sink struct {
	log *slog.Logger
}

// NewSink wraps l. A nil logger yields a sink that discards everything.
func NewSink(l *slog.Logger) *Sink {
	if l == nil {
		l = NewNope()
	}
	return &Sink{log: l}
}

// Log records an informational message.
func (s *Sink) Log(ctx context.Context, msg string) {
	s.emit(ctx, slog.LevelInfo, msg, nil)
}

// LogError records msg together with its cause.
func (s *Sink) LogError(ctx context.Context, msg string, cause error) {
	s.emit(ctx, slog.LevelError, msg, cause)
}

// Logger returns the underlying structured logger.
func (s *Sink) Logger() *slog.Logger {
	return s.log
}

func (s *Sink) emit(ctx context.Context, level slog.Level, msg string, cause error) {
	defer func() {
		_ = recover()
	}()

	if ctx == nil {
		ctx = context.Background()
	}
	if cause != nil {
		s.log.Log(ctx, level, msg, slog.String("error", cause.Error()))
		return
	}
	s.log.Log(ctx, level, msg)
}
