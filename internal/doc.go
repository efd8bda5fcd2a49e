// Package internal provides the core types and implementation of the minicat
// servlet container.
//
// This package is internal and should not be used directly. Import
// "github.com/dmitrymomot/minicat" instead, which re-exports the public API.
//
// # Core Types
//
//   - App: one deployed application with its servlets, mapping table and shared context
//   - Servlet: request handler with Init, Service and Destroy callbacks
//   - Instance: lifecycle gate of one hosted servlet
//   - Engine: maps request paths to servlets and runs each call through the gate
//   - Dispatcher: forwards or includes a request to another servlet or a static resource
//   - SharedContext: init parameters, attributes, resources and logging shared by an application
//   - Request, Response: the container's view of one call
//
// # Lifecycle
//
// Each servlet moves through uninitialized, initializing, ready, draining and
// destroyed; a failed Init leaves it in failed_init for good. Init runs exactly
// once, either at start (LoadOnStartup >= 0, ascending) or on the first request.
// Service is never called before Init succeeded nor after Destroy started.
//
//	app := internal.New(
//	    internal.WithServlet("catalog", catalog,
//	        internal.Patterns("/catalog/*"),
//	        internal.LoadOnStartup(1),
//	    ),
//	)
//	if err := app.Start(ctx); err != nil {
//	    return err
//	}
//	defer app.Stop(30 * time.Second)
//
// Stop drains every servlet concurrently. A servlet still busy when the
// timeout expires is destroyed anyway and reported as a DrainTimeoutError.
//
// # URL Mapping
//
// Patterns follow servlet rules: exact ("/a/b"), path prefix ("/a/*"),
// extension ("*.jsp") and default ("/"). An exact match wins over the longest
// prefix, which wins over an extension, which wins over the default. The empty
// pattern matches the context root only.
//
// # Forward and Include
//
// A forward hands the response to another target. It fails once output was
// committed, discards buffered output, and closes the response when the target
// returns. An include runs the target inside the current response; the target
// cannot change status or headers. Both are bounded by WithMaxDispatchDepth.
//
//	func (s *Checkout) Service(req *internal.Request, resp internal.Response) error {
//	    if !signedIn(req) {
//	        return req.Dispatcher("/login?next=/checkout").Forward(req, resp)
//	    }
//	    ...
//	}
//
// # Errors
//
// Every container error matches one sentinel with errors.Is: ErrConfiguration,
// ErrInitialization, ErrUnavailable, ErrDispatchProtocol, ErrService,
// ErrTransport, ErrDrainTimeout or ErrNotFound. At the HTTP boundary they map
// to 404, 503 with Retry-After, or 500; an HTTPError picks its own status.
//
// # Server Runtime
//
// Run mounts applications by context path on a chi router, serves HTTP and
// shuts everything down on SIGINT or SIGTERM.
package internal
