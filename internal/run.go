package internal

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrymomot/minicat/middlewares"
	"github.com/dmitrymomot/minicat/pkg/health"
	"github.com/dmitrymomot/minicat/pkg/logger"
)

// Run starts every mounted application, serves HTTP and blocks until
// shutdown. On SIGINT, SIGTERM or base context cancellation it stops
// accepting requests, then drains and destroys every application.
//
// Example:
//
//	shop := minicat.New(
//	    minicat.WithContextPath("/shop"),
//	    minicat.WithServlet("catalog", catalog, minicat.Patterns("/catalog/*")),
//	)
//
//	err := minicat.Run(
//	    minicat.Mount(shop),
//	    minicat.Address(":8080"),
//	    minicat.HealthPaths("/health/live", "/health/ready"),
//	    minicat.Logger(slog),
//	)
func Run(opts ...RunOption) error {
	cfg := buildRunConfig(opts...)
	if cfg.logger == nil {
		cfg.logger = logger.NewNope()
	}

	handler, err := buildHandler(cfg)
	if err != nil {
		return err
	}

	ctx := cfg.baseCtx
	if ctx == nil {
		ctx = context.Background()
	}
	if err := startApps(ctx, cfg.apps); err != nil {
		return err
	}

	hooks := append([]func(context.Context) error{stopAppsHook(cfg)}, cfg.shutdownHooks...)

	return runServer(runtimeConfig{
		handler:         handler,
		address:         cfg.address,
		logger:          cfg.logger,
		shutdownTimeout: cfg.shutdownTimeout,
		shutdownHooks:   hooks,
		baseCtx:         cfg.baseCtx,
	})
}

// buildHandler routes every application by context path. Deeper context
// paths win over shallower ones; the root application takes the rest.
func buildHandler(cfg *runConfig) (http.Handler, error) {
	if len(cfg.apps) == 0 {
		return nil, fmt.Errorf("%w: no applications mounted", ErrConfiguration)
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middlewares.RequestID())
	r.Use(middlewares.Recover(middlewares.WithRecoverLogger(cfg.logger)))
	if cfg.requestTimeout > 0 {
		r.Use(middlewares.Timeout(cfg.requestTimeout))
	}

	if cfg.livenessPath != "" {
		r.Get(cfg.livenessPath, health.LivenessHandler())
	}
	if cfg.readinessPath != "" {
		apps := cfg.apps
		static := maps.Clone(cfg.checks)
		r.Get(cfg.readinessPath, health.DynamicReadinessHandler(func() health.Checks {
			checks := maps.Clone(static)
			for _, app := range apps {
				maps.Copy(checks, app.HealthChecks())
			}
			return checks
		}, health.WithLogger(cfg.logger)))
	}

	newHost(cfg.apps...)

	apps := slices.Clone(cfg.apps)
	slices.SortStableFunc(apps, func(x, y *App) int {
		return cmp.Compare(len(y.contextPath), len(x.contextPath))
	})

	seen := make(map[string]bool, len(apps))
	for _, app := range apps {
		cp := app.contextPath
		if seen[cp] {
			return nil, fmt.Errorf("%w: context path %q mounted twice", ErrConfiguration, cp)
		}
		seen[cp] = true

		if cp == "" {
			r.NotFound(app.ServeHTTP)
			r.MethodNotAllowed(app.ServeHTTP)
			continue
		}
		r.Handle(cp, app)
		r.Handle(cp+"/*", app)
	}
	return r, nil
}

// startApps starts apps in mount order. A failure stops the ones already
// running.
func startApps(ctx context.Context, apps []*App) error {
	for i, app := range apps {
		if err := app.Start(ctx); err != nil {
			var errs []error
			errs = append(errs, fmt.Errorf("minicat: start %q: %w", app.contextPath, err))
			for _, started := range apps[:i] {
				if err := started.Stop(0); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		}
	}
	return nil
}

// stopAppsHook stops every application concurrently. Draining shares the
// shutdown deadline with the HTTP server, so the whole shutdown stays
// within the configured timeout.
func stopAppsHook(cfg *runConfig) func(context.Context) error {
	return func(ctx context.Context) error {
		timeout := drainTimeout(ctx, cfg.shutdownTimeout)

		var g errgroup.Group
		errs := make([]error, len(cfg.apps))
		for i, app := range cfg.apps {
			g.Go(func() error {
				errs[i] = app.Stop(timeout)
				return nil
			})
		}
		_ = g.Wait()

		err := errors.Join(errs...)
		if err != nil {
			cfg.logger.Error("applications stopped with errors", slog.Any("error", err))
		}
		return err
	}
}

// drainTimeout is what remains of ctx's deadline, bounded by limit. It is
// always positive, since a non-positive drain timeout waits forever.
func drainTimeout(ctx context.Context, limit time.Duration) time.Duration {
	if limit <= 0 {
		limit = defaultShutdownTimeout
	}
	dl, ok := ctx.Deadline()
	if !ok {
		return limit
	}
	return max(min(limit, time.Until(dl)), time.Millisecond)
}
