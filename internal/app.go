package internal

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/minicat/pkg/cache"
	"github.com/dmitrymomot/minicat/pkg/health"
	"github.com/dmitrymomot/minicat/pkg/logger"
	"github.com/dmitrymomot/minicat/pkg/mimetype"
	"github.com/dmitrymomot/minicat/pkg/resource"
)

const (
	defaultShutdownTimeout = 30 * time.Second
	defaultRetryAfter      = 5 * time.Second
)

// ErrorHandler renders a failed dispatch. It is called only while the
// response is still uncommitted.
type ErrorHandler func(req *Request, resp Response, err error) error

// App is one deployed application: its servlets, its mapping table and its
// shared context. Configure it with New; Start brings it up and Stop takes
// it down.
type App struct {
	docRoot      resource.Source
	errorHandler ErrorHandler
	initParams   map[string]string
	mimeTypes    map[string]string
	logger       *slog.Logger
	ctx          *SharedContext
	host         *host
	engine       *Engine
	resolver     *resource.Resolver
	archives     []resource.Source
	protected    []string
	defs         []*Definition
	optErrs      []error

	contextPath string
	displayName string
	tempBase    string

	maxDepth   int
	bufferSize int
	retryAfter time.Duration
	policy     AcquirePolicy

	effectiveMajor int
	effectiveMinor int

	mu      sync.RWMutex
	started bool
	stopped bool
}

// New creates an application with the given options.
//
// Example:
//
//	app := minicat.New(
//	    minicat.WithContextPath("/shop"),
//	    minicat.WithDocumentRoot(docroot),
//	    minicat.WithServlet("catalog", catalog, minicat.Patterns("/catalog/*")),
//	    minicat.WithServletKind("files", minicat.StaticKind, minicat.Patterns("/")),
//	)
func New(opts ...Option) *App {
	a := &App{
		logger:     logger.NewNope(),
		maxDepth:   defaultMaxDispatchDepth,
		retryAfter: defaultRetryAfter,
		initParams: map[string]string{},

		effectiveMajor: MajorVersion,
		effectiveMinor: MinorVersion,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ContextPath returns the URL prefix the application is mounted at.
func (a *App) ContextPath() string { return a.contextPath }

// SharedContext returns the running application's context, nil before Start.
func (a *App) SharedContext() *SharedContext {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.ctx
}

// Instance returns the lifecycle handle of the named servlet after Start.
func (a *App) Instance(name string) (*Instance, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.engine == nil {
		return nil, false
	}
	return a.engine.Instance(name)
}

// Start validates the definitions, builds the mapping table and the shared
// context, and initializes load-on-startup servlets in ascending order.
// A servlet whose Init fails stays unavailable without failing Start.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return ErrAlreadyStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := a.validate(); err != nil {
		return err
	}

	table, err := newMappingTable(a.defs)
	if err != nil {
		return err
	}

	tempDir, err := os.MkdirTemp(a.tempBase, "minicat-*")
	if err != nil {
		return fmt.Errorf("minicat: create temp dir: %w", err)
	}

	resolver := resource.New(a.docRoot, resource.WithArchives(a.archives...))
	libs := make([]string, 0, len(a.archives))
	for _, s := range a.archives {
		if s != nil {
			libs = append(libs, s.Name())
		}
	}

	protected := a.protected
	if len(protected) == 0 {
		protected = DefaultProtectedPaths
	}
	upper := make([]string, len(protected))
	for i, p := range protected {
		upper[i] = strings.ToUpper(strings.TrimSuffix(p, "/"))
	}

	engine := &Engine{
		table:     table,
		instances: make(map[string]*Instance, len(a.defs)),
		log:       a.logger,
		maxDepth:  a.maxDepth,
	}
	sc := &SharedContext{
		attrs: cache.NewMemory[any](
			cache.WithDefaultTTL(-1),
			cache.WithCleanupInterval(0),
		),
		initParams:  a.initParams,
		mime:        mimetype.New(a.mimeTypes),
		resources:   resolver,
		engine:      engine,
		sink:        logger.NewSink(a.logger.With(slog.String("context_path", a.contextPath))),
		protected:   upper,
		contextPath: a.contextPath,
		displayName: a.displayName,
		tempDir:     tempDir,
		host:        a.host,
		major:       a.effectiveMajor,
		minor:       a.effectiveMinor,
	}
	if sc.host == nil {
		// Standalone applications only see themselves.
		sc.host = &host{}
	}
	sc.SetAttribute(AttrTempDir, tempDir)
	sc.SetAttribute(AttrOrderedLibs, libs)

	for _, d := range a.defs {
		s, err := d.instantiate()
		if err != nil {
			_ = resolver.Close()
			_ = os.RemoveAll(tempDir)
			return err
		}
		cfg := &Config{name: d.Name, params: d.InitParams, ctx: sc}
		inst := newInstance(d, s, cfg, a.policy, a.logger)
		engine.instances[d.Name] = inst
		engine.ordered = append(engine.ordered, inst)
	}

	a.ctx = sc
	a.engine = engine
	a.resolver = resolver
	a.started = true
	sc.host.register(sc)

	eager := make([]*Instance, 0, len(engine.ordered))
	for _, inst := range engine.ordered {
		if inst.def.LoadOnStartup >= 0 {
			eager = append(eager, inst)
		}
	}
	slices.SortStableFunc(eager, func(x, y *Instance) int {
		return cmp.Compare(x.def.LoadOnStartup, y.def.LoadOnStartup)
	})
	for _, inst := range eager {
		// Failures are logged by the instance and surface on dispatch.
		_ = inst.Activate()
	}

	a.logger.InfoContext(ctx, "application started",
		slog.String("context_path", a.contextPath),
		slog.Int("servlets", len(a.defs)),
		slog.Any("sources", resolver.Sources()),
	)
	return nil
}

// Stop drains and destroys every servlet concurrently, then tears down the
// shared context. Drain timeouts are reported joined; teardown still happens.
func (a *App) Stop(timeout time.Duration) error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return ErrNotStarted
	}
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	// New dispatches are refused from here on; in-flight ones drain below.
	a.stopped = true
	sc, resolver, instances := a.ctx, a.resolver, a.engine.ordered
	a.mu.Unlock()
	sc.host.unregister(sc)

	errs := make([]error, len(instances))
	var g errgroup.Group
	for i, inst := range instances {
		g.Go(func() error {
			errs[i] = inst.BeginShutdown(timeout)
			return nil
		})
	}
	_ = g.Wait()

	for _, err := range errs {
		if err != nil {
			sc.LogError("servlet shutdown", err)
		}
	}

	ctx := context.Background()
	if err := sc.attrs.Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := sc.attrs.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := resolver.Close(); err != nil {
		errs = append(errs, fmt.Errorf("minicat: close resources: %w", err))
	}
	if err := os.RemoveAll(sc.tempDir); err != nil {
		errs = append(errs, fmt.Errorf("minicat: remove temp dir: %w", err))
	}

	a.logger.Info("application stopped", slog.String("context_path", a.contextPath))
	return errors.Join(errs...)
}

// Dispatch services req within this application. Requests built with
// NewRequest are bound to the application first.
func (a *App) Dispatch(req *Request, resp Response) error {
	a.mu.RLock()
	engine, sc, ok := a.engine, a.ctx, a.started && !a.stopped
	a.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %w", ErrUnavailable, ErrNotStarted)
	}

	if req.app == nil {
		req = req.clone()
		req.app = sc
		req.contextPath = sc.contextPath
	}
	return engine.Dispatch(req, resp)
}

// ServeHTTP is the transport boundary. It strips the context path, runs the
// dispatch and turns errors into a status when nothing was committed.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, a.bufferSize)

	rel, ok := a.relativePath(r.URL.Path)
	if !ok {
		a.renderError(nil, rw, fmt.Errorf("%w: %s", ErrNotFound, r.URL.Path))
		_ = rw.finish()
		return
	}

	req := newHTTPRequest(r, rel)
	if err := a.Dispatch(req, rw); err != nil {
		a.renderError(req, rw, err)
	}
	if err := rw.finish(); err != nil {
		a.logger.DebugContext(r.Context(), "response flush failed", slog.Any("error", err))
	}
}

// HealthChecks reports one readiness check per servlet, keyed by
// context path and servlet name.
func (a *App) HealthChecks() health.Checks {
	a.mu.RLock()
	defer a.mu.RUnlock()

	checks := make(health.Checks)
	if a.engine == nil {
		return checks
	}
	for _, inst := range a.engine.ordered {
		checks[a.contextPath+"/"+inst.Name()] = func(context.Context) error {
			switch st := inst.State(); st {
			case StateFailedInit:
				return &health.StateError{Component: inst.Name(), State: st.String(), Cause: inst.InitErr()}
			case StateDraining, StateDestroyed:
				return &health.StateError{Component: inst.Name(), State: st.String(), Cause: ErrUnavailable}
			default:
				return nil
			}
		}
	}
	return checks
}

func (a *App) relativePath(p string) (string, bool) {
	if a.contextPath == "" {
		return p, true
	}
	rest, ok := strings.CutPrefix(p, a.contextPath)
	if !ok || (rest != "" && !strings.HasPrefix(rest, "/")) {
		return "", false
	}
	if rest == "" {
		rest = "/"
	}
	return rest, true
}

func (a *App) renderError(req *Request, rw *ResponseWriter, err error) {
	status := StatusFor(err)
	ctx := context.Background()
	if req != nil {
		ctx = req.Context()
	}

	switch {
	case errors.Is(err, ErrTransport):
		a.logger.WarnContext(ctx, "transport failure", slog.Any("error", err))
	case status >= http.StatusInternalServerError:
		a.logger.ErrorContext(ctx, "dispatch failed", slog.Int("status", status), slog.Any("error", err))
	default:
		a.logger.DebugContext(ctx, "dispatch rejected", slog.Int("status", status), slog.Any("error", err))
	}

	if rw.Committed() || rw.Closed() {
		return
	}
	if err := rw.Reset(); err != nil {
		return
	}
	if status == http.StatusServiceUnavailable && a.retryAfter > 0 {
		rw.Header().Set("Retry-After", strconv.Itoa(int(a.retryAfter.Seconds())))
	}
	httpErr := AsHTTPError(err)
	if httpErr != nil {
		for k, vs := range httpErr.Header {
			for _, v := range vs {
				rw.Header().Add(k, v)
			}
		}
	}

	if a.errorHandler != nil && req != nil {
		herr := a.errorHandler(req, rw, err)
		if herr == nil {
			return
		}
		a.logger.ErrorContext(ctx, "error handler failed", slog.Any("error", herr))
		if rw.Committed() || rw.Reset() != nil {
			return
		}
	}

	msg := http.StatusText(status)
	if httpErr != nil && httpErr.Message != "" {
		msg = httpErr.Message
	}
	rw.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rw.Header().Set("X-Content-Type-Options", "nosniff")
	rw.WriteHeader(status)
	_, _ = rw.Write([]byte(msg + "\n"))
}

func (a *App) validate() error {
	if cp := a.contextPath; cp != "" && (!strings.HasPrefix(cp, "/") || strings.HasSuffix(cp, "/")) {
		return fmt.Errorf("%w: context path %q must be empty or start with '/' without a trailing '/'", ErrConfiguration, cp)
	}
	if len(a.optErrs) > 0 {
		return errors.Join(a.optErrs...)
	}
	if a.maxDepth <= 0 {
		return fmt.Errorf("%w: max dispatch depth must be positive", ErrConfiguration)
	}
	seen := make(map[string]bool, len(a.defs))
	for _, d := range a.defs {
		if err := d.validate(); err != nil {
			return err
		}
		if seen[d.Name] {
			return fmt.Errorf("%w: servlet %q defined twice", ErrConfiguration, d.Name)
		}
		seen[d.Name] = true
	}
	return nil
}
