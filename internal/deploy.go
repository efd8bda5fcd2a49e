package internal

import (
	"errors"
	"fmt"
	"io"

	"github.com/dmitrymomot/minicat/pkg/descriptor"
	"github.com/dmitrymomot/minicat/pkg/resource"
)

// FromDescriptor turns a deployment descriptor into application options.
// Servlets are created from their registered kinds in declaration order.
// Archives are opened here and closed when the application stops.
//
// Example:
//
//	d, err := descriptor.Load("deploy/shop.yaml")
//	if err != nil {
//	    return err
//	}
//	opts, err := minicat.FromDescriptor(d)
//	if err != nil {
//	    return err
//	}
//	app := minicat.New(append(opts, minicat.WithCustomLogger(log))...)
func FromDescriptor(d *descriptor.Descriptor) ([]Option, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil descriptor", ErrConfiguration)
	}
	if err := d.Validate(); err != nil {
		return nil, errors.Join(ErrConfiguration, err)
	}

	opts := []Option{
		WithContextPath(d.ContextPath),
		WithDisplayName(d.DisplayName),
		WithInitParams(d.InitParams),
		WithMimeTypes(d.MimeTypes),
		WithResponseBuffer(d.ResponseBuffer),
	}
	if len(d.Protected) > 0 {
		opts = append(opts, WithProtectedPaths(d.Protected...))
	}
	if d.MaxDispatchDepth > 0 {
		opts = append(opts, WithMaxDispatchDepth(d.MaxDispatchDepth))
	}

	var opened []resource.Source
	fail := func(err error) ([]Option, error) {
		for _, s := range opened {
			if c, ok := s.(io.Closer); ok {
				_ = c.Close()
			}
		}
		return nil, errors.Join(ErrConfiguration, err)
	}

	if d.DocumentRoot != "" {
		root, err := resource.Dir(d.DocumentRoot)
		if err != nil {
			return fail(err)
		}
		opts = append(opts, WithDocumentRoot(root))
	}
	for _, p := range d.Archives {
		a, err := resource.OpenArchive(p)
		if err != nil {
			return fail(err)
		}
		opened = append(opened, a)
	}
	for _, a := range d.S3Archives {
		s, err := resource.NewS3(a.Name, a.S3Config)
		if err != nil {
			return fail(err)
		}
		opened = append(opened, s)
	}
	if len(opened) > 0 {
		opts = append(opts, WithArchives(opened...))
	}

	for _, s := range d.Servlets {
		sopts := []ServletOption{
			Patterns(s.Patterns...),
			LoadOnStartup(s.StartupOrder()),
		}
		for k, v := range s.InitParams {
			sopts = append(sopts, InitParam(k, v))
		}
		opts = append(opts, WithServletKind(s.Name, s.Kind, sopts...))
	}
	return opts, nil
}
