package internal

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

type patternKind int

const (
	patternExact patternKind = iota
	patternPrefix
	patternExtension
	patternDefault
	patternRoot
)

// match is the outcome of mapping a request path to a servlet.
type match struct {
	servlet     string
	pattern     string
	servletPath string
	pathInfo    string
}

type prefixMapping struct {
	prefix  string // without the trailing "/*"; "" for "/*"
	pattern string
	servlet string
}

type mappingEntry struct {
	pattern string
	servlet string
}

// mappingTable resolves request paths with servlet precedence rules:
// exact, then longest path prefix, then extension, then default.
type mappingTable struct {
	exact      map[string]mappingEntry
	extensions map[string]mappingEntry
	prefixes   []prefixMapping // longest prefix first
	root       *mappingEntry
	def        *mappingEntry
}

// newMappingTable compiles the patterns of defs. Malformed patterns and
// patterns claimed twice are configuration errors.
func newMappingTable(defs []*Definition) (*mappingTable, error) {
	t := &mappingTable{
		exact:      make(map[string]mappingEntry),
		extensions: make(map[string]mappingEntry),
	}
	owner := make(map[string]string)

	for _, d := range defs {
		for _, p := range d.Patterns {
			kind, key, err := parsePattern(p)
			if err != nil {
				return nil, fmt.Errorf("%w: servlet %q: %w", ErrConfiguration, d.Name, err)
			}
			if prev, dup := owner[p]; dup {
				return nil, fmt.Errorf("%w: pattern %q mapped by both %q and %q", ErrConfiguration, p, prev, d.Name)
			}
			owner[p] = d.Name

			e := mappingEntry{pattern: p, servlet: d.Name}
			switch kind {
			case patternExact:
				t.exact[key] = e
			case patternPrefix:
				t.prefixes = append(t.prefixes, prefixMapping{prefix: key, pattern: p, servlet: d.Name})
			case patternExtension:
				t.extensions[key] = e
			case patternDefault:
				t.def = &e
			case patternRoot:
				t.root = &e
			}
		}
	}

	slices.SortStableFunc(t.prefixes, func(a, b prefixMapping) int {
		return cmp.Compare(len(b.prefix), len(a.prefix))
	})
	return t, nil
}

// parsePattern classifies p and returns its lookup key.
func parsePattern(p string) (patternKind, string, error) {
	switch {
	case p == "":
		return patternRoot, "", nil
	case p == "/":
		return patternDefault, "", nil
	case strings.HasPrefix(p, "*."):
		ext := p[2:]
		if ext == "" || strings.ContainsAny(ext, "/*") {
			return 0, "", fmt.Errorf("malformed extension pattern %q", p)
		}
		return patternExtension, ext, nil
	case !strings.HasPrefix(p, "/"):
		return 0, "", fmt.Errorf("pattern %q must start with '/' or '*.'", p)
	case strings.HasSuffix(p, "/*"):
		prefix := strings.TrimSuffix(p, "/*")
		if strings.Contains(prefix, "*") {
			return 0, "", fmt.Errorf("malformed path pattern %q", p)
		}
		return patternPrefix, prefix, nil
	case strings.Contains(p, "*"):
		return 0, "", fmt.Errorf("wildcard only allowed as trailing \"/*\" or leading \"*.\" in %q", p)
	default:
		return patternExact, p, nil
	}
}

// match finds the servlet for an application-relative path.
func (t *mappingTable) match(path string) (match, bool) {
	if path == "" {
		path = "/"
	}

	if path == "/" && t.root != nil {
		return match{servlet: t.root.servlet, pattern: t.root.pattern, pathInfo: "/"}, true
	}

	if e, ok := t.exact[path]; ok {
		return match{servlet: e.servlet, pattern: e.pattern, servletPath: path}, true
	}

	for _, pm := range t.prefixes {
		switch {
		case pm.prefix == "":
			return match{servlet: pm.servlet, pattern: pm.pattern, pathInfo: path}, true
		case path == pm.prefix:
			return match{servlet: pm.servlet, pattern: pm.pattern, servletPath: path}, true
		case strings.HasPrefix(path, pm.prefix+"/"):
			return match{
				servlet:     pm.servlet,
				pattern:     pm.pattern,
				servletPath: pm.prefix,
				pathInfo:    path[len(pm.prefix):],
			}, true
		}
	}

	last := path[strings.LastIndex(path, "/")+1:]
	if dot := strings.LastIndex(last, "."); dot >= 0 {
		if e, ok := t.extensions[last[dot+1:]]; ok {
			return match{servlet: e.servlet, pattern: e.pattern, servletPath: path}, true
		}
	}

	if t.def != nil {
		return match{servlet: t.def.servlet, pattern: t.def.pattern, servletPath: path}, true
	}
	return match{}, false
}
