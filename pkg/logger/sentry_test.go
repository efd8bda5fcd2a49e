package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewWithSentryStdoutLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := newWithSentry(&buf, Config{Level: slog.LevelWarn})

	ctx := WithAttrs(context.Background(), slog.String("context_path", "/shop"), slog.String("servlet", "catalog"))
	log.InfoContext(ctx, "servlet ready")
	log.WarnContext(ctx, "servlet slow")

	out := buf.String()
	require.NotContains(t, out, "servlet ready")
	require.Contains(t, out, `"msg":"servlet slow"`)
	require.Contains(t, out, `"context_path":"/shop"`)
	require.Contains(t, out, `"servlet":"catalog"`)
}

func TestSentryLevels(t *testing.T) {
	t.Parallel()

	require.Equal(t, []slog.Level{slog.LevelWarn, slog.LevelError}, sentryLevels(slog.LevelWarn))
	require.Equal(t, []slog.Level{slog.LevelError}, sentryLevels(slog.LevelError))
	require.Len(t, sentryLevels(slog.LevelDebug), 4)
	require.Equal(t, []slog.Level{slog.LevelError}, sentryLevels(slog.LevelError+4))
}

type failingHandler struct{ err error }

func (failingHandler) Enabled(context.Context, slog.Level) bool    { return true }
func (h failingHandler) Handle(context.Context, slog.Record) error { return h.err }
func (h failingHandler) WithAttrs([]slog.Attr) slog.Handler        { return h }
func (h failingHandler) WithGroup(string) slog.Handler             { return h }

func TestMultiHandlerKeepsDelivering(t *testing.T) {
	t.Parallel()

	boom := errors.New("sentry unreachable")
	var buf bytes.Buffer
	h := newMultiHandler(failingHandler{err: boom}, slog.NewJSONHandler(&buf, nil))

	err := slog.New(h).With("servlet", "cart").Handler().Handle(context.Background(),
		slog.NewRecord(time.Now(), slog.LevelError, "service failed", 0))
	require.ErrorIs(t, err, boom)
	require.Contains(t, buf.String(), `"servlet":"cart"`)
	require.Contains(t, buf.String(), `"msg":"service failed"`)
}
