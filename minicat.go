package minicat

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dmitrymomot/minicat/internal"
	"github.com/dmitrymomot/minicat/pkg/descriptor"
	"github.com/dmitrymomot/minicat/pkg/health"
	"github.com/dmitrymomot/minicat/pkg/logger"
	"github.com/dmitrymomot/minicat/pkg/resource"
)

// Type aliases - public API
type (
	// App is one deployed application: servlets, mapping table and shared context.
	App = internal.App

	// Servlet is a request handler hosted by the container.
	Servlet = internal.Servlet

	// ServletFunc adapts a function to the Servlet interface.
	ServletFunc = internal.ServletFunc

	// Describer is implemented by servlets that report an information string.
	Describer = internal.Describer

	// Config is what a servlet receives at Init.
	Config = internal.Config

	// Factory creates a servlet for a registered kind.
	Factory = internal.Factory

	// Definition declares one servlet of an application.
	Definition = internal.Definition

	// Instance is the lifecycle gate of one hosted servlet.
	Instance = internal.Instance

	// State is a servlet's lifecycle state.
	State = internal.State

	// AcquirePolicy decides what requests do while a servlet initializes.
	AcquirePolicy = internal.AcquirePolicy

	// Request is the container's view of one inbound call.
	Request = internal.Request

	// Response is the sink a servlet writes output to.
	Response = internal.Response

	// ResponseWriter adapts http.ResponseWriter to Response.
	ResponseWriter = internal.ResponseWriter

	// DispatchType tells a servlet how a call reached it.
	DispatchType = internal.DispatchType

	// Dispatcher forwards or includes a request.
	Dispatcher = internal.Dispatcher

	// SharedContext is the state shared by all servlets of an application.
	SharedContext = internal.SharedContext

	// ErrorHandler renders failed dispatches.
	ErrorHandler = internal.ErrorHandler

	// Option configures an application.
	Option = internal.Option

	// ServletOption configures one servlet registration.
	ServletOption = internal.ServletOption

	// RunOption configures the server runtime.
	RunOption = internal.RunOption

	// ContextExtractor extracts a slog attribute from context.
	// Used with WithLogger to add request-scoped values to logs.
	ContextExtractor = logger.ContextExtractor

	// ServletError is a failure attributed to one servlet.
	ServletError = internal.ServletError

	// PanicError carries a value recovered from a panicking servlet.
	PanicError = internal.PanicError

	// DrainTimeoutError reports a servlet destroyed with requests in flight.
	DrainTimeoutError = internal.DrainTimeoutError

	// HTTPError lets a servlet choose the error status.
	HTTPError = internal.HTTPError

	// HTTPErrorOption configures an HTTPError.
	HTTPErrorOption = internal.HTTPErrorOption
)

// Container identification.
const (
	ServerName   = internal.ServerName
	MajorVersion = internal.MajorVersion
	MinorVersion = internal.MinorVersion
)

// Lifecycle states.
const (
	StateUninitialized = internal.StateUninitialized
	StateInitializing  = internal.StateInitializing
	StateReady         = internal.StateReady
	StateDraining      = internal.StateDraining
	StateDestroyed     = internal.StateDestroyed
	StateFailedInit    = internal.StateFailedInit
)

// Acquire policies.
const (
	AcquireWait     = internal.AcquireWait
	AcquireFailFast = internal.AcquireFailFast
)

// Dispatch types.
const (
	DispatchRequest = internal.DispatchRequest
	DispatchForward = internal.DispatchForward
	DispatchInclude = internal.DispatchInclude
)

// Request attributes set on forwarded and included requests.
const (
	AttrForwardRequestURI  = internal.AttrForwardRequestURI
	AttrForwardContextPath = internal.AttrForwardContextPath
	AttrForwardServletPath = internal.AttrForwardServletPath
	AttrForwardPathInfo    = internal.AttrForwardPathInfo
	AttrForwardQueryString = internal.AttrForwardQueryString

	AttrIncludeRequestURI  = internal.AttrIncludeRequestURI
	AttrIncludeContextPath = internal.AttrIncludeContextPath
	AttrIncludeServletPath = internal.AttrIncludeServletPath
	AttrIncludePathInfo    = internal.AttrIncludePathInfo
	AttrIncludeQueryString = internal.AttrIncludeQueryString
)

// Context attributes published at start.
const (
	AttrTempDir     = internal.AttrTempDir
	AttrOrderedLibs = internal.AttrOrderedLibs
)

// StaticKind is the registered kind of the built-in static file servlet.
const StaticKind = internal.StaticKind

// Errors
var (
	ErrConfiguration    = internal.ErrConfiguration
	ErrInitialization   = internal.ErrInitialization
	ErrUnavailable      = internal.ErrUnavailable
	ErrDispatchProtocol = internal.ErrDispatchProtocol
	ErrService          = internal.ErrService
	ErrTransport        = internal.ErrTransport
	ErrDrainTimeout     = internal.ErrDrainTimeout
	ErrNotFound         = internal.ErrNotFound
	ErrTornDown         = internal.ErrTornDown
	ErrNotStarted       = internal.ErrNotStarted
	ErrAlreadyStarted   = internal.ErrAlreadyStarted
	ErrForwardCommitted = internal.ErrForwardCommitted
	ErrDepthExceeded    = internal.ErrDepthExceeded
	ErrResetCommitted   = internal.ErrResetCommitted
	ErrProtectedPath    = internal.ErrProtectedPath
)

// Constructors

// New creates an application with the given options.
//
// Example:
//
//	app := minicat.New(
//	    minicat.WithContextPath("/shop"),
//	    minicat.WithServlet("catalog", catalog, minicat.Patterns("/catalog/*")),
//	)
func New(opts ...Option) *App {
	return internal.New(opts...)
}

// Run starts every mounted application, serves HTTP and blocks until shutdown.
//
// Example:
//
//	err := minicat.Run(
//	    minicat.Mount(shop, admin),
//	    minicat.Address(":8080"),
//	    minicat.HealthPaths("/health/live", "/health/ready"),
//	    minicat.Logger(slog),
//	)
func Run(opts ...RunOption) error {
	return internal.Run(opts...)
}

// NewRequest builds a request for an application-relative target, for
// dispatching without an HTTP server.
func NewRequest(ctx context.Context, method, target string) (*Request, error) {
	return internal.NewRequest(ctx, method, target, nil, nil)
}

// NewResponseWriter wraps w with a response buffer of bufferSize bytes.
func NewResponseWriter(w http.ResponseWriter, bufferSize int) *ResponseWriter {
	return internal.NewResponseWriter(w, bufferSize)
}

// FromDescriptor turns a deployment descriptor into application options.
func FromDescriptor(d *descriptor.Descriptor) ([]Option, error) {
	return internal.FromDescriptor(d)
}

// RegisterFactory makes a servlet kind available to descriptors and WithServletKind.
// It panics on an empty or duplicate kind.
func RegisterFactory(kind string, f Factory) {
	internal.RegisterFactory(kind, f)
}

// Factories returns the registered servlet kinds, sorted.
func Factories() []string {
	return internal.Factories()
}

// NewHTTPError creates an HTTPError. An empty message defaults to the status text.
func NewHTTPError(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	return internal.NewHTTPError(code, message, opts...)
}

// WithError attaches the underlying error to an HTTPError.
func WithError(err error) HTTPErrorOption {
	return internal.WithError(err)
}

// WithHeader adds a header to an HTTPError response.
func WithHeader(key, value string) HTTPErrorOption {
	return internal.WithHeader(key, value)
}

// StatusFor maps a dispatch error to an HTTP status.
func StatusFor(err error) int {
	return internal.StatusFor(err)
}

// Servlet options

// Patterns appends URL patterns to a servlet registration.
func Patterns(patterns ...string) ServletOption {
	return internal.Patterns(patterns...)
}

// InitParam sets a servlet init parameter.
func InitParam(name, value string) ServletOption {
	return internal.InitParam(name, value)
}

// LoadOnStartup initializes the servlet at start, in ascending order.
func LoadOnStartup(order int) ServletOption {
	return internal.LoadOnStartup(order)
}

// App options

// WithServlet registers a servlet instance.
func WithServlet(name string, s Servlet, opts ...ServletOption) Option {
	return internal.WithServlet(name, s, opts...)
}

// WithServletKind registers a servlet created by a registered factory.
func WithServletKind(name, kind string, opts ...ServletOption) Option {
	return internal.WithServletKind(name, kind, opts...)
}

// WithDefinitions registers prepared servlet definitions.
func WithDefinitions(defs ...Definition) Option {
	return internal.WithDefinitions(defs...)
}

// WithContextPath sets the URL prefix the application is mounted at.
func WithContextPath(p string) Option {
	return internal.WithContextPath(p)
}

// WithDisplayName sets a human-readable application name.
func WithDisplayName(name string) Option {
	return internal.WithDisplayName(name)
}

// WithInitParam sets an application init parameter.
func WithInitParam(name, value string) Option {
	return internal.WithInitParam(name, value)
}

// WithInitParams merges application init parameters.
func WithInitParams(params map[string]string) Option {
	return internal.WithInitParams(params)
}

// WithDocumentRoot sets the application's own resource tree.
func WithDocumentRoot(src resource.Source) Option {
	return internal.WithDocumentRoot(src)
}

// WithArchives appends archive resource roots, searched after the document tree.
func WithArchives(srcs ...resource.Source) Option {
	return internal.WithArchives(srcs...)
}

// WithMimeTypes adds or overrides extension to media type mappings.
func WithMimeTypes(types map[string]string) Option {
	return internal.WithMimeTypes(types)
}

// WithProtectedPaths replaces the directories hidden from client paths.
func WithProtectedPaths(paths ...string) Option {
	return internal.WithProtectedPaths(paths...)
}

// WithMaxDispatchDepth bounds forward/include chains.
func WithMaxDispatchDepth(n int) Option {
	return internal.WithMaxDispatchDepth(n)
}

// WithResponseBuffer sets the response buffer size in bytes.
func WithResponseBuffer(n int) Option {
	return internal.WithResponseBuffer(n)
}

// WithAcquirePolicy sets what requests do while a servlet initializes.
func WithAcquirePolicy(p AcquirePolicy) Option {
	return internal.WithAcquirePolicy(p)
}

// WithEffectiveVersion records the container version the application targets.
func WithEffectiveVersion(major, minor int) Option {
	return internal.WithEffectiveVersion(major, minor)
}

// WithRetryAfter sets the Retry-After hint of 503 responses.
func WithRetryAfter(d time.Duration) Option {
	return internal.WithRetryAfter(d)
}

// WithTempDir sets the parent of the application's temp directory.
func WithTempDir(dir string) Option {
	return internal.WithTempDir(dir)
}

// WithErrorHandler sets a custom renderer for failed dispatches.
func WithErrorHandler(h ErrorHandler) Option {
	return internal.WithErrorHandler(h)
}

// WithLogger creates a logger with a component name and optional extractors.
// The component name is added to every log entry for easy filtering.
//
// Example:
//
//	minicat.New(
//	    minicat.WithLogger("shop", middlewares.RequestIDExtractor()),
//	)
func WithLogger(component string, extractors ...ContextExtractor) Option {
	return internal.WithLogger(component, extractors...)
}

// WithCustomLogger sets a fully custom logger.
func WithCustomLogger(l *slog.Logger) Option {
	return internal.WithCustomLogger(l)
}

// Run options

// Address sets the HTTP server address.
func Address(addr string) RunOption {
	return internal.Address(addr)
}

// Logger sets the runtime logger.
func Logger(l *slog.Logger) RunOption {
	return internal.Logger(l)
}

// ShutdownTimeout bounds graceful shutdown.
func ShutdownTimeout(d time.Duration) RunOption {
	return internal.ShutdownTimeout(d)
}

// ShutdownHook registers a cleanup function run after every application stopped.
func ShutdownHook(fn func(context.Context) error) RunOption {
	return internal.ShutdownHook(fn)
}

// Mount deploys applications at their context paths.
func Mount(apps ...*App) RunOption {
	return internal.Mount(apps...)
}

// HealthPaths enables liveness and readiness endpoints.
func HealthPaths(liveness, readiness string) RunOption {
	return internal.HealthPaths(liveness, readiness)
}

// ReadinessCheck adds a named check to the readiness endpoint.
func ReadinessCheck(name string, fn health.CheckFunc) RunOption {
	return internal.ReadinessCheck(name, fn)
}

// RequestTimeout sets a deadline on every request context.
func RequestTimeout(d time.Duration) RunOption {
	return internal.RequestTimeout(d)
}

// WithContext sets a custom base context for signal handling.
func WithContext(ctx context.Context) RunOption {
	return internal.WithContext(ctx)
}
