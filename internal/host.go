package internal

import (
	"slices"
	"strings"
	"sync"
)

// host is the set of applications served by one container process.
// Shared contexts register while their application runs, so siblings can
// find each other.
type host struct {
	mu       sync.RWMutex
	contexts []*SharedContext
}

// newHost binds apps to one host. It must run before the apps start.
func newHost(apps ...*App) *host {
	h := &host{}
	for _, app := range apps {
		app.mu.Lock()
		app.host = h
		app.mu.Unlock()
	}
	return h
}

func (h *host) register(sc *SharedContext) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.contexts = append(h.contexts, sc)
}

func (h *host) unregister(sc *SharedContext) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.contexts = slices.DeleteFunc(h.contexts, func(c *SharedContext) bool { return c == sc })
}

// lookup returns the registered context whose context path is the longest
// prefix of uripath, nil when none matches.
func (h *host) lookup(uripath string) *SharedContext {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var best *SharedContext
	for _, sc := range h.contexts {
		if !underContextPath(uripath, sc.contextPath) {
			continue
		}
		if best == nil || len(sc.contextPath) > len(best.contextPath) {
			best = sc
		}
	}
	return best
}

// underContextPath reports whether p addresses the application mounted at cp.
func underContextPath(p, cp string) bool {
	return cp == "" || p == cp || strings.HasPrefix(p, cp+"/")
}
