package internal

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmitrymomot/minicat/pkg/health"
)

// RunOption configures the server runtime.
type RunOption func(*runConfig)

// runConfig holds runtime configuration for the server.
type runConfig struct {
	address         string
	logger          *slog.Logger
	shutdownTimeout time.Duration
	shutdownHooks   []func(context.Context) error
	apps            []*App
	checks          health.Checks
	livenessPath    string
	readinessPath   string
	requestTimeout  time.Duration
	baseCtx         context.Context
}

// buildRunConfig creates a runConfig from the provided options.
func buildRunConfig(opts ...RunOption) *runConfig {
	cfg := &runConfig{
		checks:          make(health.Checks),
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Address sets the HTTP server address.
// Defaults to ":8080".
func Address(addr string) RunOption {
	return func(c *runConfig) {
		if addr != "" {
			c.address = addr
		}
	}
}

// Logger sets the runtime logger.
// If nil, logging is disabled.
func Logger(l *slog.Logger) RunOption {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// ShutdownTimeout bounds graceful shutdown: the HTTP server, servlet
// draining and shutdown hooks share it.
// Defaults to 30 seconds.
func ShutdownTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		if d > 0 {
			c.shutdownTimeout = d
		}
	}
}

// ShutdownHook registers a cleanup function to run during shutdown, after
// every application has stopped. Hooks are called in registration order.
func ShutdownHook(fn func(context.Context) error) RunOption {
	return func(c *runConfig) {
		if fn != nil {
			c.shutdownHooks = append(c.shutdownHooks, fn)
		}
	}
}

// Mount deploys apps at their context paths.
//
// Example:
//
//	minicat.Run(
//	    minicat.Mount(shop, admin),
//	    minicat.Address(":8080"),
//	)
func Mount(apps ...*App) RunOption {
	return func(c *runConfig) {
		for _, app := range apps {
			if app != nil {
				c.apps = append(c.apps, app)
			}
		}
	}
}

// HealthPaths enables liveness and readiness endpoints. Readiness reports
// every servlet of every mounted application. An empty path disables the
// endpoint.
//
// Example:
//
//	minicat.HealthPaths("/health/live", "/health/ready")
func HealthPaths(liveness, readiness string) RunOption {
	return func(c *runConfig) {
		c.livenessPath = liveness
		c.readinessPath = readiness
	}
}

// ReadinessCheck adds a named check to the readiness endpoint.
func ReadinessCheck(name string, fn health.CheckFunc) RunOption {
	return func(c *runConfig) {
		if name != "" && fn != nil {
			c.checks[name] = fn
		}
	}
}

// RequestTimeout sets a deadline on every request context. Zero disables it.
func RequestTimeout(d time.Duration) RunOption {
	return func(c *runConfig) {
		c.requestTimeout = d
	}
}

// WithContext sets a custom base context for signal handling.
// Useful for testing or when integrating with existing context hierarchies.
// Defaults to context.Background() if not set.
func WithContext(ctx context.Context) RunOption {
	return func(c *runConfig) {
		if ctx != nil {
			c.baseCtx = ctx
		}
	}
}
