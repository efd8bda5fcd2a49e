// Package minicat is a small servlet container for Go.
//
// An application is a set of servlets mapped to URL patterns, sharing one
// context: init parameters, attributes, resources and a log. The container
// owns each servlet's lifecycle, routes requests to it, and lets servlets
// forward or include requests to one another.
//
// # Quick Start
//
// Create an application with minicat.New(), register servlets, and run it:
//
//	shop := minicat.New(
//	    minicat.WithContextPath("/shop"),
//	    minicat.WithDocumentRoot(docroot),
//	    minicat.WithServlet("catalog", catalog.New(repo),
//	        minicat.Patterns("/catalog/*", "*.product"),
//	        minicat.LoadOnStartup(1),
//	    ),
//	    minicat.WithServletKind("files", minicat.StaticKind, minicat.Patterns("/")),
//	)
//
//	if err := minicat.Run(minicat.Mount(shop), minicat.Address(":8080")); err != nil {
//	    log.Fatal(err)
//	}
//
// # Servlets
//
// Servlets implement the [Servlet] interface. Init runs exactly once before
// the first Service call; Destroy runs once after the last one:
//
//	type Catalog struct {
//	    pageSize int
//	}
//
//	func (c *Catalog) Init(cfg *minicat.Config) error {
//	    v, _ := cfg.InitParam("page_size")
//	    c.pageSize, _ = strconv.Atoi(v)
//	    return nil
//	}
//
//	func (c *Catalog) Service(req *minicat.Request, resp minicat.Response) error {
//	    if req.PathInfo() == "" {
//	        return req.Dispatcher("/catalog/index").Forward(req, resp)
//	    }
//	    _, err := fmt.Fprintf(resp, "item %s", req.PathInfo())
//	    return err
//	}
//
//	func (c *Catalog) Destroy() {}
//
// [ServletFunc] adapts a plain function when no Init or Destroy is needed.
//
// # Deployment Descriptors
//
// Applications can be described in YAML and built with [FromDescriptor].
// Servlets are then referenced by kind, registered with [RegisterFactory].
//
// # Errors
//
// Container errors match one of the exported sentinels with errors.Is.
// Return an [HTTPError] from Service to choose the status written when the
// response is still uncommitted.
package minicat
