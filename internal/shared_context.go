package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/dmitrymomot/minicat/pkg/cache"
	"github.com/dmitrymomot/minicat/pkg/logger"
	"github.com/dmitrymomot/minicat/pkg/mimetype"
	"github.com/dmitrymomot/minicat/pkg/resource"
)

// Server identification reported by ServerInfo.
const (
	ServerName   = "minicat"
	MajorVersion = 1
	MinorVersion = 0
)

// Context attributes published by the container at start.
const (
	// AttrTempDir holds the application's private temporary directory (string).
	AttrTempDir = "minicat.context.tempdir"
	// AttrOrderedLibs holds the archive names in search order ([]string).
	AttrOrderedLibs = "minicat.context.orderedLibs"
)

// DefaultProtectedPaths are refused to client-originated resource lookups.
var DefaultProtectedPaths = []string{"/WEB-INF", "/META-INF"}

// ErrProtectedPath marks a public lookup that named a protected directory.
// It is always joined with ErrNotFound.
var ErrProtectedPath = errors.New("minicat: protected path")

// maxUnescapeRounds bounds repeated percent-decoding of public paths.
const maxUnescapeRounds = 8

// SharedContext is the state every servlet of one application shares.
//
// Init parameters are fixed at start. Attributes may be read and written
// concurrently; each key is updated atomically and no ordering is promised
// between writers.
type SharedContext struct {
	attrs      *cache.Memory[any]
	initParams map[string]string
	mime       *mimetype.Table
	resources  *resource.Resolver
	engine     *Engine
	sink       *logger.Sink
	protected  []string // upper-cased

	host        *host
	contextPath string
	displayName string
	tempDir     string

	major, minor int
}

func (c *SharedContext) ContextPath() string { return c.contextPath }
func (c *SharedContext) DisplayName() string { return c.displayName }

// InitParam returns an application init parameter. ok is false when absent.
func (c *SharedContext) InitParam(name string) (value string, ok bool) {
	value, ok = c.initParams[name]
	return value, ok
}

// InitParamNames returns the init parameter names, sorted.
func (c *SharedContext) InitParamNames() []string {
	return slices.Sorted(maps.Keys(c.initParams))
}

// Attribute returns the named attribute.
func (c *SharedContext) Attribute(name string) (any, bool) {
	v, err := c.attrs.Get(context.Background(), name)
	if err != nil {
		return nil, false
	}
	return v, true
}

// SetAttribute stores an attribute; the last writer wins. A nil value removes it.
func (c *SharedContext) SetAttribute(name string, value any) {
	if value == nil {
		c.RemoveAttribute(name)
		return
	}
	if err := c.attrs.Set(context.Background(), name, value, 0); err != nil {
		c.sink.LogError(context.Background(), "set context attribute "+name, err)
	}
}

func (c *SharedContext) RemoveAttribute(name string) {
	_ = c.attrs.Delete(context.Background(), name)
}

// AttributeNames returns a sorted snapshot of the attribute names.
func (c *SharedContext) AttributeNames() []string {
	return c.attrs.Keys()
}

// MimeType returns the media type registered for file's extension.
func (c *SharedContext) MimeType(file string) (string, bool) {
	return c.mime.Lookup(file)
}

// ResourcePaths lists the immediate children of dir. Directories end with "/".
// Protected directories are visible.
func (c *SharedContext) ResourcePaths(ctx context.Context, dir string) ([]string, error) {
	paths, err := c.resources.Paths(ctx, dir)
	return paths, resourceError(err)
}

// Resource locates p. Protected directories are visible.
func (c *SharedContext) Resource(ctx context.Context, p string) (resource.Location, error) {
	loc, err := c.resources.Locate(ctx, p)
	return loc, resourceError(err)
}

// ResourceStream opens the file at p. Protected directories are visible.
func (c *SharedContext) ResourceStream(ctx context.Context, p string) (io.ReadCloser, error) {
	rc, err := c.resources.Open(ctx, p)
	return rc, resourceError(err)
}

// PublicResource locates a client-supplied path. The path is decoded and
// canonicalized first; anything inside a protected directory is absent.
func (c *SharedContext) PublicResource(ctx context.Context, p string) (resource.Location, error) {
	clean, err := c.publicPath(p)
	if err != nil {
		return resource.Location{}, err
	}
	return c.Resource(ctx, clean)
}

// PublicResourceStream opens a client-supplied path under the same rules
// as PublicResource.
func (c *SharedContext) PublicResourceStream(ctx context.Context, p string) (io.ReadCloser, error) {
	clean, err := c.publicPath(p)
	if err != nil {
		return nil, err
	}
	return c.ResourceStream(ctx, clean)
}

// IsProtected reports whether the canonical path p lies in a protected directory.
func (c *SharedContext) IsProtected(p string) bool {
	up := strings.ToUpper(p)
	for _, prot := range c.protected {
		if up == prot || strings.HasPrefix(up, prot+"/") {
			return true
		}
	}
	return false
}

// publicPath canonicalizes an externally supplied path.
func (c *SharedContext) publicPath(p string) (string, error) {
	decoded := p
	stable := false
	for range maxUnescapeRounds {
		next, err := url.PathUnescape(decoded)
		if err != nil {
			return "", errors.Join(ErrNotFound, resource.ErrNotFound, resource.ErrInvalidPath)
		}
		if next == decoded {
			stable = true
			break
		}
		decoded = next
	}
	if !stable {
		return "", errors.Join(ErrNotFound, resource.ErrNotFound, resource.ErrInvalidPath)
	}

	decoded = strings.ReplaceAll(decoded, "\\", "/")
	decoded = stripPathParams(decoded)
	if !strings.HasPrefix(decoded, "/") {
		decoded = "/" + decoded
	}

	clean, err := resource.Clean(decoded)
	if err != nil {
		return "", errors.Join(ErrNotFound, resource.ErrNotFound, err)
	}
	if c.IsProtected(clean) {
		return "", errors.Join(ErrNotFound, resource.ErrNotFound, ErrProtectedPath)
	}
	return clean, nil
}

// Dispatcher returns a dispatcher for a context-relative path with an
// optional query string. The target is a mapped servlet, else a file in
// the resource roots. Nil when nothing resolves.
func (c *SharedContext) Dispatcher(p string) *Dispatcher {
	target, rawQuery, _ := strings.Cut(p, "?")
	clean, err := resource.Clean(target)
	if err != nil {
		return nil
	}
	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil
	}

	if m, ok := c.engine.table.match(clean); ok {
		return &Dispatcher{
			app:   c,
			inst:  c.engine.instances[m.servlet],
			match: m,
			path:  clean,
			query: query,
		}
	}

	loc, err := c.resources.Locate(context.Background(), clean)
	if err != nil || loc.Dir {
		return nil
	}
	return &Dispatcher{
		app:      c,
		path:     clean,
		query:    query,
		resource: true,
	}
}

// NamedDispatcher returns a dispatcher for the servlet registered as name,
// nil when there is none.
func (c *SharedContext) NamedDispatcher(name string) *Dispatcher {
	inst, ok := c.engine.instances[name]
	if !ok {
		return nil
	}
	return &Dispatcher{app: c, inst: inst, named: true}
}

// Log writes msg to the application log. It never fails.
func (c *SharedContext) Log(msg string) {
	c.sink.Log(context.Background(), msg)
}

// LogError writes msg with its cause to the application log. It never fails.
func (c *SharedContext) LogError(msg string, cause error) {
	c.sink.LogError(context.Background(), msg, cause)
}

// Logger returns the application's structured logger.
func (c *SharedContext) Logger() *slog.Logger {
	return c.sink.Logger()
}

// TempDir returns the application's private temporary directory.
func (c *SharedContext) TempDir() string { return c.tempDir }

// ServerInfo returns the container name and version.
func (c *SharedContext) ServerInfo() string {
	return fmt.Sprintf("%s/%d.%d", ServerName, MajorVersion, MinorVersion)
}

func (c *SharedContext) MajorVersion() int { return MajorVersion }
func (c *SharedContext) MinorVersion() int { return MinorVersion }

// EffectiveMajorVersion returns the container version the application was
// declared against. It defaults to MajorVersion.
func (c *SharedContext) EffectiveMajorVersion() int { return c.major }

// EffectiveMinorVersion pairs with EffectiveMajorVersion.
func (c *SharedContext) EffectiveMinorVersion() int { return c.minor }

// Context returns the running application that serves uripath, an absolute
// server path. The longest matching context path wins; nil when no
// application matches. A standalone application only finds itself.
func (c *SharedContext) Context(uripath string) *SharedContext {
	if !strings.HasPrefix(uripath, "/") {
		return nil
	}
	return c.host.lookup(uripath)
}

// resourceError makes resolver misses match ErrNotFound as well.
func resourceError(err error) error {
	if err != nil && errors.Is(err, resource.ErrNotFound) {
		return errors.Join(ErrNotFound, err)
	}
	return err
}

// stripPathParams removes ";param" suffixes from every segment.
func stripPathParams(p string) string {
	if !strings.Contains(p, ";") {
		return p
	}
	segs := strings.Split(p, "/")
	for i, s := range segs {
		if j := strings.IndexByte(s, ';'); j >= 0 {
			segs[i] = s[:j]
		}
	}
	return strings.Join(segs, "/")
}
