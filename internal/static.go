package internal

import (
	"errors"
	"io"
	"net/http"
	"strings"
)

// StaticKind is the factory kind of the built-in static resource servlet.
const StaticKind = "static"

const defaultCacheControl = "public, max-age=3600"

func init() {
	RegisterFactory(StaticKind, func() Servlet { return &StaticServlet{} })
}

// StaticServlet serves files from the application's resource roots. Client
// requests go through the public access tier; forwards and includes use the
// internal tier and may reach protected directories. Map it to "/" to make
// it the default servlet.
//
// Init parameters:
//
//	welcome        file served for directory paths (default "index.html"; "" disables)
//	cache_control  Cache-Control header value (default "public, max-age=3600")
type StaticServlet struct {
	app          *SharedContext
	welcome      string
	cacheControl string
}

func (s *StaticServlet) Init(cfg *Config) error {
	s.app = cfg.SharedContext()
	s.welcome = "index.html"
	if v, ok := cfg.InitParam("welcome"); ok {
		s.welcome = v
	}
	s.cacheControl = defaultCacheControl
	if v, ok := cfg.InitParam("cache_control"); ok {
		s.cacheControl = v
	}
	return nil
}

func (s *StaticServlet) Service(req *Request, resp Response) error {
	if req.Method() != http.MethodGet && req.Method() != http.MethodHead {
		return NewHTTPError(http.StatusMethodNotAllowed, "", WithHeader("Allow", "GET, HEAD"))
	}

	// Included content is addressed by the include target, not the caller's path.
	p := req.Path()
	if req.DispatchType() == DispatchInclude {
		sp, _ := req.Attribute(AttrIncludeServletPath)
		pi, _ := req.Attribute(AttrIncludePathInfo)
		if v, ok := sp.(string); ok && v != "" {
			p = v
			if v, ok := pi.(string); ok {
				p += v
			}
		}
	}

	locate, open := s.app.PublicResource, s.app.PublicResourceStream
	if req.DispatchType() != DispatchRequest {
		locate, open = s.app.Resource, s.app.ResourceStream
	}

	loc, err := locate(req.Context(), p)
	if err == nil && loc.Dir {
		if s.welcome == "" {
			return NewHTTPError(http.StatusNotFound, "", WithError(ErrNotFound))
		}
		p = strings.TrimSuffix(loc.Path, "/") + "/" + s.welcome
		_, err = locate(req.Context(), p)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "", WithError(err))
		}
		return err
	}

	rc, err := open(req.Context(), p)
	if err != nil {
		return err
	}
	defer rc.Close()

	h := resp.Header()
	if ct, ok := s.app.MimeType(p); ok {
		h.Set("Content-Type", ct)
	}
	h.Set("X-Content-Type-Options", "nosniff")
	if s.cacheControl != "" {
		h.Set("Cache-Control", s.cacheControl)
	}
	if req.Method() == http.MethodHead {
		return nil
	}
	if _, err := io.Copy(resp, rc); err != nil {
		if errors.Is(err, ErrTransport) {
			return err
		}
		return errors.Join(ErrTransport, err)
	}
	return nil
}

func (s *StaticServlet) Destroy() {}

func (s *StaticServlet) Info() string {
	return ServerName + " static resource servlet"
}
