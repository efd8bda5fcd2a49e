package internal

import (
	"errors"
	"fmt"
	"io"
	"net/url"
)

// Dispatcher transfers a request to another servlet or to a static
// resource. Its target is fixed when the dispatcher is created.
type Dispatcher struct {
	app   *SharedContext
	inst  *Instance
	query url.Values
	match match
	path  string

	named    bool
	resource bool
}

// Forward hands the whole response to the target.
//
// It fails with ErrForwardCommitted once output reached the client. Buffered
// output is discarded. After the target returns successfully, the response
// is flushed and closed, and later writes by the caller are dropped.
func (d *Dispatcher) Forward(req *Request, resp Response) error {
	if resp.Committed() {
		return ErrForwardCommitted
	}
	if err := d.checkDepth(req); err != nil {
		return err
	}
	if err := resp.ResetBuffer(); err != nil {
		return fmt.Errorf("%w: %w", ErrForwardCommitted, err)
	}

	fr := req.derive(DispatchForward)
	if !d.named {
		if _, first := fr.derived[AttrForwardRequestURI]; !first {
			fr.derived[AttrForwardRequestURI] = req.RequestURI()
			fr.derived[AttrForwardContextPath] = req.ContextPath()
			fr.derived[AttrForwardServletPath] = req.ServletPath()
			fr.derived[AttrForwardPathInfo] = req.PathInfo()
			fr.derived[AttrForwardQueryString] = req.QueryString()
		}
		fr.servletPath, fr.pathInfo = d.targetPaths()
		fr.query = mergeQuery(d.query, req.query)
	}

	if err := d.invoke(fr, resp, true); err != nil {
		// Left open so the failure can still be rendered.
		return err
	}
	return finishResponse(resp)
}

// Include runs the target inside the current response. The target cannot
// change status or headers; control returns to the caller afterwards.
func (d *Dispatcher) Include(req *Request, resp Response) error {
	if err := d.checkDepth(req); err != nil {
		return err
	}

	ir := req.derive(DispatchInclude)
	if !d.named {
		sp, pi := d.targetPaths()
		ir.derived[AttrIncludeRequestURI] = req.ContextPath() + d.path
		ir.derived[AttrIncludeContextPath] = req.ContextPath()
		ir.derived[AttrIncludeServletPath] = sp
		ir.derived[AttrIncludePathInfo] = pi
		ir.derived[AttrIncludeQueryString] = d.query.Encode()
		ir.query = mergeQuery(d.query, req.query)
	}

	return d.invoke(ir, newIncludeResponse(resp), false)
}

// Path returns the target path, empty for named dispatchers.
func (d *Dispatcher) Path() string { return d.path }

// Named reports whether the dispatcher targets a servlet by name.
func (d *Dispatcher) Named() bool { return d.named }

func (d *Dispatcher) checkDepth(req *Request) error {
	limit := d.app.engine.maxDepth
	if req.depth >= limit {
		return fmt.Errorf("%w: limit %d reached at %q", ErrDepthExceeded, limit, req.Path())
	}
	return nil
}

func (d *Dispatcher) targetPaths() (servletPath, pathInfo string) {
	if d.resource {
		return d.path, ""
	}
	return d.match.servletPath, d.match.pathInfo
}

func (d *Dispatcher) invoke(req *Request, resp Response, forward bool) error {
	if d.resource {
		return d.serveResource(req, resp, forward)
	}
	return d.app.engine.serve(d.inst, req, resp)
}

func (d *Dispatcher) serveResource(req *Request, resp Response, forward bool) error {
	rc, err := d.app.ResourceStream(req.Context(), d.path)
	if err != nil {
		return err
	}
	defer rc.Close()

	if forward {
		if ct, ok := d.app.MimeType(d.path); ok {
			resp.Header().Set("Content-Type", ct)
		}
	}
	if _, err := io.Copy(resp, rc); err != nil {
		if errors.Is(err, ErrTransport) {
			return err
		}
		return errors.Join(ErrTransport, err)
	}
	return nil
}
