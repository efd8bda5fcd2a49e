package internal_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/minicat/internal"
	"github.com/dmitrymomot/minicat/pkg/health"
)

func TestAppStartStop(t *testing.T) {
	t.Parallel()

	app := internal.New(internal.WithTempDir(t.TempDir()))
	require.Nil(t, app.SharedContext())
	require.ErrorIs(t, app.Stop(time.Second), internal.ErrNotStarted)
	require.ErrorIs(t, dispatch(app, "/"), internal.ErrUnavailable)

	require.NoError(t, app.Start(context.Background()))
	require.ErrorIs(t, app.Start(context.Background()), internal.ErrAlreadyStarted)
	require.NotNil(t, app.SharedContext())

	require.NoError(t, app.Stop(time.Second))
	require.NoError(t, app.Stop(time.Second))

	err := dispatch(app, "/")
	require.ErrorIs(t, err, internal.ErrUnavailable)
	require.ErrorIs(t, err, internal.ErrNotStarted)

	rec := serve(app, http.MethodGet, "/")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "5", rec.Header().Get("Retry-After"))
}

func TestAppStartCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	app := internal.New(internal.WithTempDir(t.TempDir()))
	require.ErrorIs(t, app.Start(ctx), context.Canceled)
}

func TestAppContextPath(t *testing.T) {
	t.Parallel()

	app := startApp(t,
		internal.WithContextPath("/shop"),
		internal.WithServlet("all", internal.ServletFunc(func(req *internal.Request, resp internal.Response) error {
			_, err := fmt.Fprintf(resp, "%s %s %s", req.ContextPath(), req.Path(), req.RequestURI())
			return err
		}), internal.Patterns("/*")),
	)
	require.Equal(t, "/shop", app.ContextPath())

	tests := []struct {
		target string
		code   int
		body   string
	}{
		{"/shop/cart", http.StatusOK, "/shop /cart /shop/cart"},
		{"/shop", http.StatusOK, "/shop / /shop/"},
		{"/shopping", http.StatusNotFound, "Not Found\n"},
		{"/other", http.StatusNotFound, "Not Found\n"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			t.Parallel()
			rec := serve(app, http.MethodGet, tt.target)
			require.Equal(t, tt.code, rec.Code)
			require.Equal(t, tt.body, rec.Body.String())
		})
	}
}

func TestAppErrorRendering(t *testing.T) {
	t.Parallel()

	app := startApp(t,
		internal.WithRetryAfter(30*time.Second),
		internal.WithServlet("http", internal.ServletFunc(func(_ *internal.Request, resp internal.Response) error {
			resp.Header().Set("X-Partial", "1")
			return internal.NewHTTPError(http.StatusBadRequest, "bad input", internal.WithError(errors.New("parse")))
		}), internal.Patterns("/http")),
		internal.WithServlet("plain", internal.ServletFunc(func(*internal.Request, internal.Response) error {
			return errors.New("secret detail")
		}), internal.Patterns("/plain")),
		internal.WithServlet("busy", internal.ServletFunc(func(*internal.Request, internal.Response) error {
			return fmt.Errorf("%w: maintenance", internal.ErrUnavailable)
		}), internal.Patterns("/busy")),
		internal.WithServlet("late", internal.ServletFunc(func(_ *internal.Request, resp internal.Response) error {
			resp.WriteHeader(http.StatusAccepted)
			_, _ = resp.Write([]byte("partial"))
			return errors.New("after commit")
		}), internal.Patterns("/late")),
		internal.WithServlet("broken", &lifecycleSpy{initErr: errors.New("no db")}, internal.Patterns("/broken")),
	)

	t.Run("http error", func(t *testing.T) {
		t.Parallel()
		rec := serve(app, http.MethodGet, "/http")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		require.Equal(t, "bad input\n", rec.Body.String())
		require.Empty(t, rec.Header().Get("X-Partial"))
		require.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	})

	t.Run("plain error hides detail", func(t *testing.T) {
		t.Parallel()
		rec := serve(app, http.MethodGet, "/plain")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		require.NotContains(t, rec.Body.String(), "secret")
	})

	t.Run("unavailable", func(t *testing.T) {
		t.Parallel()
		rec := serve(app, http.MethodGet, "/busy")
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		require.Equal(t, "30", rec.Header().Get("Retry-After"))
	})

	t.Run("committed response is left alone", func(t *testing.T) {
		t.Parallel()
		rec := serve(app, http.MethodGet, "/late")
		require.Equal(t, http.StatusAccepted, rec.Code)
		require.Equal(t, "partial", rec.Body.String())
	})

	t.Run("failed init", func(t *testing.T) {
		t.Parallel()
		rec := serve(app, http.MethodGet, "/broken")
		require.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestAppErrorHandler(t *testing.T) {
	t.Parallel()

	app := startApp(t,
		internal.WithErrorHandler(func(_ *internal.Request, resp internal.Response, err error) error {
			resp.Header().Set("Content-Type", "application/json")
			resp.WriteHeader(internal.StatusFor(err))
			return json.NewEncoder(resp).Encode(map[string]int{"status": internal.StatusFor(err)})
		}),
		internal.WithServlet("a", echo("a"), internal.Patterns("/a")),
	)

	rec := serve(app, http.MethodGet, "/missing")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"status":404}`, rec.Body.String())
}

func TestAppHealthChecks(t *testing.T) {
	t.Parallel()

	app := startApp(t,
		internal.WithContextPath("/shop"),
		internal.WithServlet("ok", &lifecycleSpy{}, internal.LoadOnStartup(0)),
		internal.WithServlet("lazy", &lifecycleSpy{}),
		internal.WithServlet("bad", &lifecycleSpy{initErr: errors.New("no db")}, internal.LoadOnStartup(1)),
	)

	checks := app.HealthChecks()
	require.Len(t, checks, 3)
	require.NoError(t, checks["/shop/ok"](context.Background()))
	require.NoError(t, checks["/shop/lazy"](context.Background()))
	badErr := checks["/shop/bad"](context.Background())
	require.ErrorIs(t, badErr, internal.ErrInitialization)
	require.ErrorIs(t, badErr, health.ErrNotServing)
	var se *health.StateError
	require.ErrorAs(t, badErr, &se)
	require.Equal(t, "failed_init", se.State)
	require.Equal(t, "bad", se.Component)

	resp := health.Run(context.Background(), checks)
	require.Equal(t, health.StatusUnhealthy, resp.Status)
	require.Equal(t, "failed_init", resp.Checks["/shop/bad"].State)
	require.Empty(t, resp.Checks["/shop/ok"].State)

	require.NoError(t, app.Stop(time.Second))
	stopped := checks["/shop/ok"](context.Background())
	require.ErrorIs(t, stopped, internal.ErrUnavailable)
	require.ErrorAs(t, stopped, &se)
	require.Equal(t, "destroyed", se.State)
}

func TestAppRequestBody(t *testing.T) {
	t.Parallel()

	app := startApp(t,
		internal.WithServlet("upper", internal.ServletFunc(func(req *internal.Request, resp internal.Response) error {
			body, err := io.ReadAll(req.Body())
			if err != nil {
				return err
			}
			_, err = resp.Write([]byte(strings.ToUpper(req.Method() + " " + string(body))))
			return err
		}), internal.Patterns("/upper")),
	)

	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/upper", strings.NewReader("hello")))
	require.Equal(t, "POST HELLO", rec.Body.String())
}

func TestNewRequest(t *testing.T) {
	t.Parallel()

	req, err := internal.NewRequest(context.Background(), "", "/a/b?x=1&x=2", nil, nil)
	require.NoError(t, err)
	require.Equal(t, http.MethodGet, req.Method())
	require.Equal(t, "/a/b", req.Path())
	require.Equal(t, []string{"1", "2"}, req.Query()["x"])
	require.Equal(t, internal.DispatchRequest, req.DispatchType())
	require.Nil(t, req.Dispatcher("/a"))
	require.NotEmpty(t, req.ID())

	req.SetAttribute("k", "v")
	require.Equal(t, []string{"k"}, req.AttributeNames())

	_, err = internal.NewRequest(context.Background(), http.MethodGet, "relative", nil, nil)
	require.Error(t, err)
}
