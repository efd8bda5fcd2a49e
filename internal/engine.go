package internal

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/minicat/pkg/logger"
)

const defaultMaxDispatchDepth = 16

// Engine routes requests to servlet instances and runs each call through the
// instance's lifecycle gate.
type Engine struct {
	table     *mappingTable
	instances map[string]*Instance
	ordered   []*Instance // declaration order
	log       *slog.Logger
	maxDepth  int
}

// Dispatch maps req's path to a servlet and services it.
func (e *Engine) Dispatch(req *Request, resp Response) error {
	m, ok := e.table.match(req.Path())
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, req.Path())
	}
	r := req.clone()
	r.servletPath, r.pathInfo = m.servletPath, m.pathInfo
	return e.serve(e.instances[m.servlet], r, resp)
}

// Instance returns the instance registered as name.
func (e *Engine) Instance(name string) (*Instance, bool) {
	inst, ok := e.instances[name]
	return inst, ok
}

// serve runs activate, acquire, service and release. The slot is released
// on every exit path, panics included.
func (e *Engine) serve(inst *Instance, req *Request, resp Response) (err error) {
	// Records logged with the request context name the servlet being run.
	req = req.WithContext(logger.WithAttrs(req.Context(),
		slog.String("context_path", req.contextPath),
		slog.String("servlet", inst.Name()),
	))

	if inst.State() == StateUninitialized {
		if err := inst.Activate(); err != nil {
			return err
		}
	}

	h, err := inst.Acquire(req.Context())
	if err != nil {
		return err
	}
	defer func() {
		if rerr := h.Release(); rerr != nil {
			e.log.ErrorContext(req.Context(), "servlet torn down during service",
				slog.String("path", req.Path()),
			)
			err = errors.Join(err, rerr)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			perr := recovered(r)
			e.log.ErrorContext(req.Context(), "servlet panicked",
				slog.Any("panic", r),
				slog.String("stack", string(perr.Stack)),
			)
			err = &ServletError{Kind: ErrService, Servlet: inst.Name(), Err: perr}
		}
	}()

	return serviceError(inst.Name(), inst.servlet.Service(req, resp))
}
