package internal

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Servlet is a request handler hosted by the container.
//
// One instance serves every request mapped to it, concurrently: Service must
// be safe for overlapping calls. The container guarantees Init returns
// successfully before the first Service call and that Destroy runs at most
// once, after the last tracked Service call.
type Servlet interface {
	Init(cfg *Config) error
	Service(req *Request, resp Response) error
	Destroy()
}

// Describer is implemented by servlets that report an information string
// (author, version) in readiness reports.
type Describer interface {
	Info() string
}

// ServletFunc adapts a function to the Servlet interface with no-op Init and Destroy.
type ServletFunc func(req *Request, resp Response) error

func (f ServletFunc) Init(*Config) error { return nil }

func (f ServletFunc) Service(req *Request, resp Response) error { return f(req, resp) }

func (f ServletFunc) Destroy() {}

// Config is what a servlet receives at Init.
type Config struct {
	params map[string]string
	ctx    *SharedContext
	name   string
}

// Name returns the servlet's registered name.
func (c *Config) Name() string { return c.name }

// InitParam returns the named init parameter. ok is false when absent.
func (c *Config) InitParam(name string) (value string, ok bool) {
	value, ok = c.params[name]
	return value, ok
}

// InitParamNames returns the init parameter names, sorted.
func (c *Config) InitParamNames() []string {
	return slices.Sorted(maps.Keys(c.params))
}

// SharedContext returns the application the servlet belongs to.
func (c *Config) SharedContext() *SharedContext { return c.ctx }

// Factory creates a servlet instance.
type Factory func() Servlet

var (
	factoriesMu sync.RWMutex
	factories   = map[string]Factory{}
)

// RegisterFactory makes a servlet kind available to deployment descriptors.
// It panics if kind is empty, f is nil, or kind is already registered.
func RegisterFactory(kind string, f Factory) {
	if kind == "" || f == nil {
		panic("minicat: RegisterFactory requires a kind and a factory")
	}
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if _, dup := factories[kind]; dup {
		panic(fmt.Sprintf("minicat: servlet kind %q registered twice", kind))
	}
	factories[kind] = f
}

// LookupFactory returns the factory registered for kind.
func LookupFactory(kind string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[kind]
	return f, ok
}

// Factories returns the registered servlet kinds, sorted.
func Factories() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	return slices.Sorted(maps.Keys(factories))
}

// Definition declares one servlet of an application.
// Definitions are immutable once the application starts.
type Definition struct {
	// Servlet is the instance to host. Exactly one of Servlet and Factory is set.
	Servlet Servlet
	// Factory creates the instance at application start.
	Factory Factory
	// InitParams are passed to the servlet through its Config.
	InitParams map[string]string
	Name       string
	// Patterns are URL patterns, in declaration order. A definition without
	// patterns is reachable only through a named dispatcher.
	Patterns []string
	// LoadOnStartup orders eager initialization at start, ascending.
	// Negative means the servlet initializes on its first request.
	LoadOnStartup int
}

func (d *Definition) validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: servlet without a name", ErrConfiguration)
	}
	if (d.Servlet == nil) == (d.Factory == nil) {
		return fmt.Errorf("%w: servlet %q needs exactly one of an instance or a factory", ErrConfiguration, d.Name)
	}
	return nil
}

func (d *Definition) instantiate() (Servlet, error) {
	if d.Servlet != nil {
		return d.Servlet, nil
	}
	s := d.Factory()
	if s == nil {
		return nil, fmt.Errorf("%w: factory for servlet %q returned nil", ErrConfiguration, d.Name)
	}
	return s, nil
}
