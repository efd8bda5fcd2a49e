package internal

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResponseWriterBuffering(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewResponseWriter(rec, 8)

	w.Header().Set("X-Test", "1")
	w.WriteHeader(http.StatusCreated)
	if _, err := w.Write([]byte("abcd")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if w.Committed() {
		t.Error("expected response to stay uncommitted while output fits the buffer")
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected nothing sent, got %q", rec.Body.String())
	}

	if err := w.ResetBuffer(); err != nil {
		t.Fatalf("reset buffer: %v", err)
	}
	if w.Status() != http.StatusCreated {
		t.Errorf("expected status kept by ResetBuffer, got %d", w.Status())
	}

	if _, err := w.Write([]byte("0123456789")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !w.Committed() {
		t.Error("expected overflow to commit")
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if rec.Body.String() != "0123456789" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if rec.Header().Get("X-Test") != "1" {
		t.Error("expected header to be sent")
	}
	if w.Size() != 10 {
		t.Errorf("expected size 10, got %d", w.Size())
	}

	w.WriteHeader(http.StatusTeapot)
	if w.Status() != http.StatusCreated {
		t.Errorf("expected status fixed after commit, got %d", w.Status())
	}
	if err := w.Reset(); !errors.Is(err, ErrResetCommitted) {
		t.Errorf("expected ErrResetCommitted, got %v", err)
	}
	if err := w.ResetBuffer(); !errors.Is(err, ErrDispatchProtocol) {
		t.Errorf("expected ErrDispatchProtocol, got %v", err)
	}
}

func TestResponseWriterReset(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewResponseWriter(rec, 64)

	w.Header().Set("X-Test", "1")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("gone"))

	if err := w.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if w.Header().Get("X-Test") != "" {
		t.Error("expected headers cleared")
	}
	if w.Status() != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Status())
	}

	_, _ = w.Write([]byte("fresh"))
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if rec.Body.String() != "fresh" || rec.Code != http.StatusOK {
		t.Errorf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

func TestResponseWriterUnbuffered(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewResponseWriter(rec, -1)

	if w.BufferSize() != 0 {
		t.Errorf("expected negative buffer size clamped to 0, got %d", w.BufferSize())
	}
	w.WriteHeader(http.StatusAccepted)
	if w.Committed() {
		t.Error("WriteHeader alone must not commit")
	}
	if _, err := w.Write(nil); err != nil {
		t.Fatalf("write: %v", err)
	}
	if w.Committed() {
		t.Error("empty write must not commit")
	}
	_, _ = w.Write([]byte("x"))
	if !w.Committed() {
		t.Error("expected first byte to commit")
	}
}

func TestResponseWriterFinish(t *testing.T) {
	rec := httptest.NewRecorder()
	w := NewResponseWriter(rec, 64)

	var hooks int
	w.OnCommit(func() { hooks++ })
	w.OnCommit(func() { w.w.Header().Set("X-Hook", "1") })

	_, _ = w.Write([]byte("done"))
	if err := w.finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if !w.Closed() || !w.Committed() {
		t.Error("expected finished response to be committed and closed")
	}

	n, err := w.Write([]byte("ignored"))
	if err != nil || n != len("ignored") {
		t.Errorf("expected discarded write to succeed, got %d %v", n, err)
	}
	if err := w.Flush(); err != nil {
		t.Errorf("flush after close: %v", err)
	}
	if err := w.finish(); err != nil {
		t.Errorf("second finish: %v", err)
	}

	if rec.Body.String() != "done" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
	if hooks != 1 {
		t.Errorf("expected commit hooks to run once, ran %d", hooks)
	}
	if rec.Header().Get("X-Hook") != "1" {
		t.Error("expected hook header to be sent")
	}
	if w.Unwrap() != rec {
		t.Error("Unwrap must return the wrapped writer")
	}
}

type failingWriter struct {
	*httptest.ResponseRecorder
}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestResponseWriterTransportError(t *testing.T) {
	w := NewResponseWriter(failingWriter{httptest.NewRecorder()}, 0)

	_, err := w.Write([]byte("x"))
	if !errors.Is(err, ErrTransport) {
		t.Errorf("expected ErrTransport, got %v", err)
	}
}

func TestIncludeResponse(t *testing.T) {
	rec := httptest.NewRecorder()
	parent := NewResponseWriter(rec, 64)
	parent.WriteHeader(http.StatusCreated)

	inc := newIncludeResponse(parent)
	inc.WriteHeader(http.StatusInternalServerError)
	inc.Header().Set("X-Included", "1")
	_, _ = inc.Write([]byte("part"))
	if err := inc.Reset(); err != nil {
		t.Errorf("reset: %v", err)
	}
	if err := inc.ResetBuffer(); err != nil {
		t.Errorf("reset buffer: %v", err)
	}
	if err := finishResponse(inc); err != nil {
		t.Errorf("finish include view: %v", err)
	}
	if parent.Closed() {
		t.Error("finishing an include view must not close the parent")
	}

	if inc.Status() != http.StatusCreated {
		t.Errorf("expected parent status, got %d", inc.Status())
	}
	if inc.BufferSize() != 64 {
		t.Errorf("expected parent buffer size, got %d", inc.BufferSize())
	}
	if parent.Header().Get("X-Included") != "" {
		t.Error("include must not change parent headers")
	}

	if err := parent.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if rec.Code != http.StatusCreated || rec.Body.String() != "part" {
		t.Errorf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}

// upperResponse is a servlet-side wrapper that upper-cases output.
type upperResponse struct {
	Response
}

func (r upperResponse) Write(p []byte) (int, error) {
	out := make([]byte, len(p))
	for i, c := range p {
		if 'a' <= c && c <= 'z' {
			c -= 'a' - 'A'
		}
		out[i] = c
	}
	return r.Response.Write(out)
}

func (r upperResponse) Unwrap() Response { return r.Response }

func TestFinishResponseUnwrapsServletWrapper(t *testing.T) {
	rec := httptest.NewRecorder()
	parent := NewResponseWriter(rec, 64)
	wrapped := upperResponse{parent}

	if _, err := wrapped.Write([]byte("target")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := finishResponse(wrapped); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if !parent.Closed() {
		t.Error("expected the wrapped response to be closed")
	}

	if _, err := wrapped.Write([]byte(" caller")); err != nil {
		t.Errorf("late write should be discarded silently, got %v", err)
	}
	if rec.Body.String() != "TARGET" {
		t.Errorf("expected only the target output, got %q", rec.Body.String())
	}
}

// opaqueResponse wraps without exposing Unwrap.
type opaqueResponse struct {
	Response
}

func TestFinishResponseOpaqueWrapperFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	parent := NewResponseWriter(rec, 64)
	wrapped := opaqueResponse{parent}

	_, _ = wrapped.Write([]byte("body"))
	if err := finishResponse(wrapped); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if rec.Body.String() != "body" {
		t.Errorf("expected flushed output, got %q", rec.Body.String())
	}
	if parent.Closed() {
		t.Error("an opaque wrapper cannot be closed")
	}
}
