package internal

import (
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/dmitrymomot/minicat/pkg/logger"
	"github.com/dmitrymomot/minicat/pkg/resource"
)

// Option configures an application.
type Option func(*App)

// ServletOption configures one servlet definition.
type ServletOption func(*Definition)

// Patterns appends URL patterns: "/exact", "/prefix/*", "*.ext" or "/" (default).
func Patterns(patterns ...string) ServletOption {
	return func(d *Definition) {
		d.Patterns = append(d.Patterns, patterns...)
	}
}

// InitParam sets one servlet init parameter.
func InitParam(name, value string) ServletOption {
	return func(d *Definition) {
		if d.InitParams == nil {
			d.InitParams = make(map[string]string)
		}
		d.InitParams[name] = value
	}
}

// LoadOnStartup makes the servlet initialize at application start. Lower
// values start first; negative restores lazy initialization.
func LoadOnStartup(order int) ServletOption {
	return func(d *Definition) {
		d.LoadOnStartup = order
	}
}

// WithServlet registers a servlet instance under name.
//
// Example:
//
//	minicat.WithServlet("catalog", catalog,
//	    minicat.Patterns("/catalog/*", "*.product"),
//	    minicat.InitParam("page_size", "20"),
//	    minicat.LoadOnStartup(1),
//	)
func WithServlet(name string, s Servlet, opts ...ServletOption) Option {
	return func(a *App) {
		d := &Definition{Name: name, Servlet: s, LoadOnStartup: -1}
		for _, opt := range opts {
			opt(d)
		}
		a.defs = append(a.defs, d)
	}
}

// WithServletKind registers a servlet created by the factory registered for kind.
// An unknown kind fails Start with a configuration error.
func WithServletKind(name, kind string, opts ...ServletOption) Option {
	return func(a *App) {
		f, ok := LookupFactory(kind)
		if !ok {
			a.optErrs = append(a.optErrs, fmt.Errorf("%w: servlet %q: unknown kind %q", ErrConfiguration, name, kind))
			return
		}
		d := &Definition{Name: name, Factory: f, LoadOnStartup: -1}
		for _, opt := range opts {
			opt(d)
		}
		a.defs = append(a.defs, d)
	}
}

// WithDefinitions registers prepared definitions in order.
func WithDefinitions(defs ...Definition) Option {
	return func(a *App) {
		for _, d := range defs {
			d.InitParams = maps.Clone(d.InitParams)
			a.defs = append(a.defs, &d)
		}
	}
}

// WithContextPath sets the URL prefix the application is mounted at.
// It must be empty (root) or start with "/" without a trailing slash.
func WithContextPath(p string) Option {
	return func(a *App) {
		a.contextPath = p
	}
}

// WithDisplayName sets a human-readable application name.
func WithDisplayName(name string) Option {
	return func(a *App) {
		a.displayName = name
	}
}

// WithInitParam sets one application init parameter.
func WithInitParam(name, value string) Option {
	return func(a *App) {
		a.initParams[name] = value
	}
}

// WithInitParams merges application init parameters.
func WithInitParams(params map[string]string) Option {
	return func(a *App) {
		maps.Copy(a.initParams, params)
	}
}

// WithDocumentRoot sets the application's own resource tree, searched first.
func WithDocumentRoot(src resource.Source) Option {
	return func(a *App) {
		a.docRoot = src
	}
}

// WithArchives appends bundled archive roots, searched after the document
// tree in the order given.
func WithArchives(srcs ...resource.Source) Option {
	return func(a *App) {
		a.archives = append(a.archives, srcs...)
	}
}

// WithMimeTypes adds or overrides extension mappings.
func WithMimeTypes(types map[string]string) Option {
	return func(a *App) {
		if a.mimeTypes == nil {
			a.mimeTypes = make(map[string]string, len(types))
		}
		maps.Copy(a.mimeTypes, types)
	}
}

// WithProtectedPaths replaces the directories refused to client-originated
// resource lookups. Defaults to /WEB-INF and /META-INF.
func WithProtectedPaths(paths ...string) Option {
	return func(a *App) {
		a.protected = append([]string(nil), paths...)
	}
}

// WithMaxDispatchDepth bounds forward/include chains. Default: 16.
func WithMaxDispatchDepth(n int) Option {
	return func(a *App) {
		a.maxDepth = n
	}
}

// WithResponseBuffer sets the response buffer size in bytes. Output up to
// this size can still be discarded by a forward. Default: 0 (unbuffered).
func WithResponseBuffer(n int) Option {
	return func(a *App) {
		a.bufferSize = n
	}
}

// WithAcquirePolicy sets what dispatches do while a servlet initializes.
// Default: AcquireWait.
func WithAcquirePolicy(p AcquirePolicy) Option {
	return func(a *App) {
		a.policy = p
	}
}

// WithRetryAfter sets the Retry-After hint sent with 503 responses.
// Zero omits the header. Default: 5 seconds.
func WithRetryAfter(d time.Duration) Option {
	return func(a *App) {
		a.retryAfter = d
	}
}

// WithEffectiveVersion records the container version the application was
// written against. Default: the running container's version.
func WithEffectiveVersion(major, minor int) Option {
	return func(a *App) {
		a.effectiveMajor, a.effectiveMinor = major, minor
	}
}

// WithTempDir sets the parent directory of the application's temp directory.
// Default: os.TempDir().
func WithTempDir(dir string) Option {
	return func(a *App) {
		a.tempBase = dir
	}
}

// WithErrorHandler renders failed dispatches in place of the plain-text default.
//
// Example:
//
//	minicat.WithErrorHandler(func(req *minicat.Request, resp minicat.Response, err error) error {
//	    resp.Header().Set("Content-Type", "application/json")
//	    resp.WriteHeader(minicat.StatusFor(err))
//	    return json.NewEncoder(resp).Encode(map[string]string{"error": http.StatusText(minicat.StatusFor(err))})
//	})
func WithErrorHandler(h ErrorHandler) Option {
	return func(a *App) {
		a.errorHandler = h
	}
}

// WithLogger creates a JSON logger with a component name and optional extractors.
//
// Example:
//
//	minicat.New(
//	    minicat.WithLogger("shop", middlewares.RequestIDExtractor()),
//	)
func WithLogger(component string, extractors ...logger.ContextExtractor) Option {
	return func(a *App) {
		a.logger = logger.New(extractors...).With("component", component)
	}
}

// WithCustomLogger sets a fully custom logger.
func WithCustomLogger(l *slog.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.logger = l
		}
	}
}
