package internal

import (
	"errors"
	"net/http"
	"sync"
)

// Response is the writable sink a servlet produces output into.
//
// Output is buffered up to BufferSize bytes. The response commits when the
// buffer overflows or on Flush; from then on status and headers are fixed
// and Reset fails. With a zero buffer any non-empty Write commits.
//
// A servlet that wraps the Response it forwards with should expose the
// wrapped value through an Unwrap() Response method, so the forward can
// close the underlying response.
type Response interface {
	Header() http.Header
	// WriteHeader records the status sent at commit. Ignored once committed.
	WriteHeader(code int)
	Write(p []byte) (int, error)
	Status() int
	Committed() bool
	Flush() error
	// Reset discards status, headers and buffered output.
	Reset() error
	// ResetBuffer discards buffered output only.
	ResetBuffer() error
	BufferSize() int
}

// ResponseWriter adapts an http.ResponseWriter to Response.
type ResponseWriter struct {
	w            http.ResponseWriter
	buf          []byte
	beforeCommit []func()
	size         int64
	bufSize      int
	status       int
	committed    bool
	closed       bool
	mu           sync.Mutex
}

// NewResponseWriter wraps w with a buffer of bufferSize bytes.
func NewResponseWriter(w http.ResponseWriter, bufferSize int) *ResponseWriter {
	if bufferSize < 0 {
		bufferSize = 0
	}
	return &ResponseWriter{
		w:       w,
		bufSize: bufferSize,
		status:  http.StatusOK,
	}
}

// OnCommit registers a hook run right before status and headers are sent.
// Hooks run in registration order and must not write to the response.
func (w *ResponseWriter) OnCommit(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.beforeCommit = append(w.beforeCommit, fn)
}

func (w *ResponseWriter) Header() http.Header {
	return w.w.Header()
}

func (w *ResponseWriter) WriteHeader(code int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed || w.closed {
		return
	}
	w.status = code
}

// Write buffers or sends p. Writes after the response was closed by a
// forward are discarded.
func (w *ResponseWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return len(p), nil
	}
	if !w.committed && len(w.buf)+len(p) <= w.bufSize {
		w.buf = append(w.buf, p...)
		return len(p), nil
	}
	if err := w.commitLocked(); err != nil {
		return 0, err
	}
	n, err := w.w.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, errors.Join(ErrTransport, err)
	}
	return n, nil
}

// Flush commits the response and pushes buffered output to the client.
func (w *ResponseWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *ResponseWriter) Reset() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return ErrResetCommitted
	}
	clear(w.w.Header())
	w.status = http.StatusOK
	w.buf = w.buf[:0]
	return nil
}

func (w *ResponseWriter) ResetBuffer() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return ErrResetCommitted
	}
	w.buf = w.buf[:0]
	return nil
}

func (w *ResponseWriter) Status() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *ResponseWriter) Committed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.committed
}

func (w *ResponseWriter) BufferSize() int { return w.bufSize }

// Size returns the number of body bytes sent to the client.
func (w *ResponseWriter) Size() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.size
}

// Closed reports whether a forward has finished the response.
func (w *ResponseWriter) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Unwrap returns the underlying http.ResponseWriter.
func (w *ResponseWriter) Unwrap() http.ResponseWriter {
	return w.w
}

// finish flushes and closes the response; later writes are discarded.
func (w *ResponseWriter) finish() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	err := w.flushLocked()
	w.closed = true
	return err
}

func (w *ResponseWriter) flushLocked() error {
	if w.closed {
		return nil
	}
	if err := w.commitLocked(); err != nil {
		return err
	}
	if f, ok := w.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func (w *ResponseWriter) commitLocked() error {
	if !w.committed {
		w.committed = true
		hooks := w.beforeCommit
		w.beforeCommit = nil
		for _, fn := range hooks {
			fn()
		}
		w.w.WriteHeader(w.status)
	}
	if len(w.buf) == 0 {
		return nil
	}
	n, err := w.w.Write(w.buf)
	w.size += int64(n)
	w.buf = w.buf[:0]
	if err != nil {
		return errors.Join(ErrTransport, err)
	}
	return nil
}

// includeResponse is the view handed to an included target. Status, header
// and reset calls are ignored; output merges into the parent.
type includeResponse struct {
	parent Response
	header http.Header
}

func newIncludeResponse(parent Response) *includeResponse {
	return &includeResponse{parent: parent, header: make(http.Header)}
}

func (r *includeResponse) Header() http.Header         { return r.header }
func (r *includeResponse) WriteHeader(int)             {}
func (r *includeResponse) Write(p []byte) (int, error) { return r.parent.Write(p) }
func (r *includeResponse) Status() int                 { return r.parent.Status() }
func (r *includeResponse) Committed() bool             { return r.parent.Committed() }
func (r *includeResponse) Flush() error                { return r.parent.Flush() }
func (r *includeResponse) Reset() error                { return nil }
func (r *includeResponse) ResetBuffer() error          { return nil }
func (r *includeResponse) BufferSize() int             { return r.parent.BufferSize() }

// finisher is implemented by responses that a forward can close.
type finisher interface {
	finish() error
}

// finishResponse closes resp after a forward. A servlet's own wrapper is
// flushed, then unwrapped through Unwrap() Response until the container's
// response is reached and closed. Include views are left open since their
// parent belongs to the including servlet's caller.
func finishResponse(resp Response) error {
	if f, ok := resp.(finisher); ok {
		return f.finish()
	}
	if _, ok := resp.(*includeResponse); ok {
		return nil
	}
	if err := resp.Flush(); err != nil {
		return err
	}
	if u, ok := resp.(interface{ Unwrap() Response }); ok {
		if inner := u.Unwrap(); inner != nil {
			return finishResponse(inner)
		}
	}
	return nil
}

var (
	_ Response = (*ResponseWriter)(nil)
	_ Response = (*includeResponse)(nil)
)
