package logger_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/minicat/pkg/logger"
)

type panickingHandler struct{}

func (panickingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (panickingHandler) Handle(context.Context, slog.Record) error {
	panic("handler exploded")
}
func (h panickingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h panickingHandler) WithGroup(string) slog.Handler      { return h }

func TestSink(t *testing.T) {
	t.Parallel()

	t.Run("writes message and cause", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		sink := logger.NewSink(logger.NewWithWriter(&buf, slog.LevelInfo))

		sink.Log(context.Background(), "servlet started")
		sink.LogError(context.Background(), "servlet failed", errors.New("disk full"))

		out := buf.String()
		require.Contains(t, out, `"msg":"servlet started"`)
		require.Contains(t, out, `"msg":"servlet failed"`)
		require.Contains(t, out, `"error":"disk full"`)
	})

	t.Run("contains handler panics", func(t *testing.T) {
		t.Parallel()

		sink := logger.NewSink(slog.New(panickingHandler{}))
		require.NotPanics(t, func() {
			sink.Log(context.Background(), "x")
			sink.LogError(context.Background(), "y", errors.New("z"))
		})
	})

	t.Run("nil logger and nil context are tolerated", func(t *testing.T) {
		t.Parallel()

		sink := logger.NewSink(nil)
		require.NotPanics(t, func() {
			//nolint:staticcheck // nil context is part of the contract
			sink.Log(nil, "x")
		})
		require.NotNil(t, sink.Logger())
	})
}

func TestLogHandlerDecorator(t *testing.T) {
	t.Parallel()

	type key struct{}
	extract := func(ctx context.Context) (slog.Attr, bool) {
		if v, ok := ctx.Value(key{}).(string); ok {
			return slog.String("request_id", v), true
		}
		return slog.Attr{}, false
	}

	var buf bytes.Buffer
	log := logger.NewWithWriter(&buf, slog.LevelInfo, extract, nil)

	ctx := context.WithValue(context.Background(), key{}, "req-1")
	log.InfoContext(ctx, "dispatched")
	log.Info("no request")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	require.Contains(t, string(lines[0]), `"request_id":"req-1"`)
	require.NotContains(t, string(lines[1]), "request_id")
}
