package internal_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/minicat/internal"
)

func startApp(t *testing.T, opts ...internal.Option) *internal.App {
	t.Helper()
	app := internal.New(append([]internal.Option{internal.WithTempDir(t.TempDir())}, opts...)...)
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(func() { _ = app.Stop(time.Second) })
	return app
}

func serve(app *internal.App, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func dispatch(app *internal.App, target string) error {
	req, err := internal.NewRequest(context.Background(), http.MethodGet, target, nil, nil)
	if err != nil {
		return err
	}
	return app.Dispatch(req, internal.NewResponseWriter(httptest.NewRecorder(), 0))
}

// echo writes "name|servletPath|pathInfo".
func echo(name string) internal.Servlet {
	return internal.ServletFunc(func(req *internal.Request, resp internal.Response) error {
		_, err := fmt.Fprintf(resp, "%s|%s|%s", name, req.ServletPath(), req.PathInfo())
		return err
	})
}

// lifecycleSpy records lifecycle calls and flags a Service call made outside Ready.
type lifecycleSpy struct {
	initErr   error
	initPanic any
	initDelay time.Duration
	block     chan struct{}
	order     func(string)
	name      string

	inits      atomic.Int32
	services   atomic.Int32
	destroys   atomic.Int32
	violations atomic.Int32
	ready      atomic.Bool
	destroyed  atomic.Bool
}

func (p *lifecycleSpy) Init(*internal.Config) error {
	p.inits.Add(1)
	if p.order != nil {
		p.order(p.name)
	}
	if p.initDelay > 0 {
		time.Sleep(p.initDelay)
	}
	if p.initPanic != nil {
		panic(p.initPanic)
	}
	if p.initErr != nil {
		return p.initErr
	}
	p.ready.Store(true)
	return nil
}

func (p *lifecycleSpy) Service(_ *internal.Request, resp internal.Response) error {
	if !p.ready.Load() || p.destroyed.Load() {
		p.violations.Add(1)
	}
	p.services.Add(1)
	if p.block != nil {
		<-p.block
	}
	_, err := resp.Write([]byte("ok"))
	return err
}

func (p *lifecycleSpy) Destroy() {
	p.destroys.Add(1)
	p.destroyed.Store(true)
}
