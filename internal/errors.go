package internal

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Container error taxonomy. Every error returned by the container matches
// exactly one of these with errors.Is.
var (
	// ErrConfiguration reports a malformed application definition. Fatal at start.
	ErrConfiguration = errors.New("minicat: configuration error")

	// ErrInitialization reports a servlet whose Init failed. The servlet stays
	// unavailable for the life of the application; siblings are unaffected.
	ErrInitialization = errors.New("minicat: servlet initialization failed")

	// ErrUnavailable reports a dispatch to a servlet that is not ready, for
	// example while it drains. Retryable.
	ErrUnavailable = errors.New("minicat: servlet unavailable")

	// ErrDispatchProtocol reports a misuse of forward or include.
	ErrDispatchProtocol = errors.New("minicat: dispatch protocol violation")

	// ErrService wraps failures returned or raised by a servlet's Service.
	ErrService = errors.New("minicat: servlet service failed")

	// ErrTransport wraps I/O failures reading the request or writing the response.
	ErrTransport = errors.New("minicat: transport failure")

	// ErrDrainTimeout reports a shutdown that destroyed a servlet with requests
	// still in flight.
	ErrDrainTimeout = errors.New("minicat: drain timeout")

	// ErrNotFound reports that no servlet or resource matches a path.
	ErrNotFound = errors.New("minicat: no target for path")

	// ErrTornDown is returned when a request releases a servlet that was
	// destroyed under it by a forced shutdown.
	ErrTornDown = errors.New("minicat: servlet destroyed while in service")

	// ErrNotStarted is returned by operations that need a started application.
	ErrNotStarted = errors.New("minicat: application not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("minicat: application already started")
)

// Dispatch protocol violations.
var (
	ErrForwardCommitted = fmt.Errorf("%w: forward after response committed", ErrDispatchProtocol)
	ErrDepthExceeded    = fmt.Errorf("%w: dispatch depth exceeded", ErrDispatchProtocol)
	ErrResetCommitted   = fmt.Errorf("%w: reset after response committed", ErrDispatchProtocol)
)

// ServletError is a failure attributed to one servlet. Kind is ErrInitialization
// or ErrService; Err is the cause reported by the servlet.
type ServletError struct {
	Kind    error
	Err     error
	Servlet string
}

func (e *ServletError) Error() string {
	return fmt.Sprintf("%s: %q: %v", e.Kind, e.Servlet, e.Err)
}

func (e *ServletError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// PanicError carries a value recovered from a panicking servlet callback.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// DrainTimeoutError reports a forced teardown.
type DrainTimeoutError struct {
	Servlet     string
	Outstanding int
	Timeout     time.Duration
}

func (e *DrainTimeoutError) Error() string {
	return fmt.Sprintf("%s: servlet %q destroyed after %s with %d request(s) in flight",
		ErrDrainTimeout, e.Servlet, e.Timeout, e.Outstanding)
}

func (e *DrainTimeoutError) Unwrap() error {
	return ErrDrainTimeout
}

// HTTPError lets a servlet choose the status written at the transport
// boundary when it fails before committing a response.
type HTTPError struct {
	// Err is the underlying error (for logging, not exposed to clients).
	Err error

	// Header is added to the error response.
	Header http.Header

	// Message is the client-facing message.
	Message string

	// Code is the HTTP status code.
	Code int
}

func (e *HTTPError) Error() string {
	return e.Message
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

func (e *HTTPError) StatusCode() int {
	return e.Code
}

// HTTPErrorOption configures an HTTPError.
type HTTPErrorOption func(*HTTPError)

// NewHTTPError creates an HTTPError. An empty message defaults to the status text.
func NewHTTPError(code int, message string, opts ...HTTPErrorOption) *HTTPError {
	if message == "" {
		message = http.StatusText(code)
	}
	e := &HTTPError{Code: code, Message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithError attaches the underlying error.
func WithError(err error) HTTPErrorOption {
	return func(e *HTTPError) {
		e.Err = err
	}
}

// WithHeader adds a header to the error response.
func WithHeader(key, value string) HTTPErrorOption {
	return func(e *HTTPError) {
		if e.Header == nil {
			e.Header = make(http.Header)
		}
		e.Header.Add(key, value)
	}
}

// AsHTTPError extracts the first HTTPError in err's tree, or nil.
func AsHTTPError(err error) *HTTPError {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}
	return nil
}

// StatusFor maps a dispatch error to the status written at the transport boundary.
func StatusFor(err error) int {
	if httpErr := AsHTTPError(err); httpErr != nil {
		return httpErr.Code
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func serviceError(servlet string, err error) error {
	if err == nil {
		return nil
	}
	var se *ServletError
	if errors.As(err, &se) ||
		errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrDispatchProtocol) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrNotFound) {
		// Errors from nested dispatches and transport keep their identity.
		return err
	}
	return &ServletError{Kind: ErrService, Servlet: servlet, Err: err}
}
