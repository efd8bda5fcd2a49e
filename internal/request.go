package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dmitrymomot/minicat/middlewares"
)

// DispatchType tells a servlet how the current call reached it.
type DispatchType int

const (
	DispatchRequest DispatchType = iota
	DispatchForward
	DispatchInclude
)

func (t DispatchType) String() string {
	switch t {
	case DispatchForward:
		return "forward"
	case DispatchInclude:
		return "include"
	default:
		return "request"
	}
}

// Request attributes set by the container on dispatched requests. They are
// read-only: SetAttribute cannot shadow them.
const (
	AttrForwardRequestURI  = "minicat.forward.request_uri"
	AttrForwardContextPath = "minicat.forward.context_path"
	AttrForwardServletPath = "minicat.forward.servlet_path"
	AttrForwardPathInfo    = "minicat.forward.path_info"
	AttrForwardQueryString = "minicat.forward.query_string"

	AttrIncludeRequestURI  = "minicat.include.request_uri"
	AttrIncludeContextPath = "minicat.include.context_path"
	AttrIncludeServletPath = "minicat.include.servlet_path"
	AttrIncludePathInfo    = "minicat.include.path_info"
	AttrIncludeQueryString = "minicat.include.query_string"
)

// requestState is shared by a request and every request derived from it
// along a forward/include chain.
type requestState struct {
	attrs map[string]any
	id    string
	mu    sync.RWMutex
}

// Request is the container's view of one inbound call. Forward and include
// derive new Request values that share the attribute map of the original.
type Request struct {
	ctx     context.Context
	header  http.Header
	body    io.Reader
	query   url.Values
	state   *requestState
	derived map[string]any
	app     *SharedContext

	method      string
	remoteAddr  string
	contextPath string
	servletPath string
	pathInfo    string

	depth        int
	dispatchType DispatchType
}

// NewRequest builds a request for target, an application-relative path with
// an optional query string. A nil header or body is replaced by an empty one.
func NewRequest(ctx context.Context, method, target string, header http.Header, body io.Reader) (*Request, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("minicat: parse request target %q: %w", target, err)
	}
	p := u.Path
	if p == "" {
		p = "/"
	}
	if !strings.HasPrefix(p, "/") {
		return nil, fmt.Errorf("minicat: request path %q is not absolute", target)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if header == nil {
		header = make(http.Header)
	}
	if body == nil {
		body = http.NoBody
	}
	if method == "" {
		method = http.MethodGet
	}
	return &Request{
		ctx:         ctx,
		method:      method,
		header:      header,
		body:        &transportReader{r: body},
		query:       u.Query(),
		servletPath: p,
		state: &requestState{
			attrs: make(map[string]any),
			id:    uuid.NewString(),
		},
	}, nil
}

// newHTTPRequest adapts an inbound HTTP request; rel is the path below the
// application's context path.
func newHTTPRequest(r *http.Request, rel string) *Request {
	id := middlewares.GetRequestID(r.Context())
	if id == "" {
		id = uuid.NewString()
	}
	body := io.Reader(http.NoBody)
	if r.Body != nil {
		body = r.Body
	}
	return &Request{
		ctx:         r.Context(),
		method:      r.Method,
		header:      r.Header,
		body:        &transportReader{r: body},
		query:       r.URL.Query(),
		remoteAddr:  r.RemoteAddr,
		servletPath: rel,
		state: &requestState{
			attrs: make(map[string]any),
			id:    id,
		},
	}
}

func (r *Request) Context() context.Context { return r.ctx }

// WithContext returns a shallow copy of r using ctx.
func (r *Request) WithContext(ctx context.Context) *Request {
	c := r.clone()
	c.ctx = ctx
	return c
}

func (r *Request) Method() string      { return r.method }
func (r *Request) Header() http.Header { return r.header }
func (r *Request) RemoteAddr() string  { return r.remoteAddr }

// Body returns the request body. Read failures other than io.EOF match ErrTransport.
func (r *Request) Body() io.Reader { return r.body }

// ID returns the request id, shared by every dispatch of the same inbound request.
func (r *Request) ID() string { return r.state.id }

func (r *Request) ContextPath() string { return r.contextPath }
func (r *Request) ServletPath() string { return r.servletPath }
func (r *Request) PathInfo() string    { return r.pathInfo }

// Path returns the application-relative path: servlet path plus path info.
func (r *Request) Path() string {
	if p := r.servletPath + r.pathInfo; p != "" {
		return p
	}
	return "/"
}

// RequestURI returns the context path followed by Path.
func (r *Request) RequestURI() string { return r.contextPath + r.Path() }

// Query returns a copy of the query parameters.
func (r *Request) Query() url.Values { return cloneValues(r.query) }

// QueryParam returns the first value of the named query parameter.
func (r *Request) QueryParam(name string) string { return r.query.Get(name) }

// QueryString returns the encoded query parameters.
func (r *Request) QueryString() string { return r.query.Encode() }

func (r *Request) DispatchType() DispatchType { return r.dispatchType }

// Depth returns the number of forward/include hops that led to this call.
func (r *Request) Depth() int { return r.depth }

// SharedContext returns the application serving the request, or nil before dispatch.
func (r *Request) SharedContext() *SharedContext { return r.app }

// Attribute returns a request attribute. Container-set dispatch attributes
// take precedence over values stored with SetAttribute.
func (r *Request) Attribute(name string) (any, bool) {
	if v, ok := r.derived[name]; ok {
		return v, true
	}
	r.state.mu.RLock()
	defer r.state.mu.RUnlock()
	v, ok := r.state.attrs[name]
	return v, ok
}

// SetAttribute stores a request attribute visible along the whole dispatch
// chain. A nil value removes the attribute.
func (r *Request) SetAttribute(name string, value any) {
	if value == nil {
		r.RemoveAttribute(name)
		return
	}
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	r.state.attrs[name] = value
}

func (r *Request) RemoveAttribute(name string) {
	r.state.mu.Lock()
	defer r.state.mu.Unlock()
	delete(r.state.attrs, name)
}

// AttributeNames returns every visible attribute name, sorted.
func (r *Request) AttributeNames() []string {
	r.state.mu.RLock()
	names := slices.Collect(maps.Keys(r.state.attrs))
	r.state.mu.RUnlock()
	for k := range r.derived {
		if !slices.Contains(names, k) {
			names = append(names, k)
		}
	}
	slices.Sort(names)
	return names
}

// Dispatcher returns a dispatcher for p. A relative p is resolved against
// the directory of the current path. Nil means nothing resolves.
func (r *Request) Dispatcher(p string) *Dispatcher {
	if r.app == nil || p == "" {
		return nil
	}
	if !strings.HasPrefix(p, "/") {
		target, query, _ := strings.Cut(p, "?")
		p = path.Join(path.Dir(r.Path()), target)
		if strings.HasSuffix(target, "/") && p != "/" {
			p += "/"
		}
		if query != "" {
			p += "?" + query
		}
	}
	return r.app.Dispatcher(p)
}

func (r *Request) clone() *Request {
	c := *r
	return &c
}

// derive returns the request seen by a dispatch target.
func (r *Request) derive(t DispatchType) *Request {
	c := r.clone()
	c.dispatchType = t
	c.depth = r.depth + 1
	c.derived = maps.Clone(r.derived)
	if c.derived == nil {
		c.derived = make(map[string]any)
	}
	return c
}

// mergeQuery returns params with the values of extra placed first.
func mergeQuery(extra, params url.Values) url.Values {
	out := cloneValues(params)
	for k, vs := range extra {
		out[k] = append(slices.Clone(vs), params[k]...)
	}
	return out
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = slices.Clone(vs)
	}
	return out
}

// transportReader marks body read failures as transport errors.
type transportReader struct {
	r io.Reader
}

func (t *transportReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		err = errors.Join(ErrTransport, err)
	}
	return n, err
}
