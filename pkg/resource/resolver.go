package resource

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/dmitrymomot/minicat/pkg/cache"
)

const defaultMemoTTL = time.Minute

// Resolver maps virtual application paths onto an ordered list of sources.
//
// The document tree is searched first, then every archive root in the order
// it was added. The first source holding a path wins.
type Resolver struct {
	memo    *cache.Memory[int]
	sources []Source
	memoTTL time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithArchives appends archive roots after the document tree, in order.
func WithArchives(srcs ...Source) Option {
	return func(r *Resolver) {
		for _, s := range srcs {
			if s != nil {
				r.sources = append(r.sources, s)
			}
		}
	}
}

// WithMemoTTL sets how long a resolved location is remembered.
// Zero or negative disables memoisation.
// Default: 1 minute.
func WithMemoTTL(d time.Duration) Option {
	return func(r *Resolver) {
		r.memoTTL = d
	}
}

// New creates a resolver. docRoot may be nil for applications without a
// document tree.
func New(docRoot Source, opts ...Option) *Resolver {
	r := &Resolver{memoTTL: defaultMemoTTL}
	if docRoot != nil {
		r.sources = append(r.sources, docRoot)
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.memoTTL > 0 {
		r.memo = cache.NewMemory[int](
			cache.WithDefaultTTL(r.memoTTL),
			cache.WithCleanupInterval(r.memoTTL),
		)
	}
	return r
}

// Sources returns the source names in search order.
func (r *Resolver) Sources() []string {
	names := make([]string, len(r.sources))
	for i, s := range r.sources {
		names[i] = s.Name()
	}
	return names
}

// Locate finds the first source holding p, file or directory.
func (r *Resolver) Locate(ctx context.Context, p string) (Location, error) {
	clean, err := cleanForLookup(p)
	if err != nil {
		return Location{}, err
	}
	idx, entry, err := r.find(ctx, clean)
	if err != nil {
		return Location{}, err
	}
	src := r.sources[idx]
	return Location{
		Source: src.Name(),
		Path:   clean,
		URL:    src.URL(rel(clean)),
		Dir:    entry.Dir,
	}, nil
}

// Open returns a byte stream for the file at p.
func (r *Resolver) Open(ctx context.Context, p string) (io.ReadCloser, error) {
	clean, err := cleanForLookup(p)
	if err != nil {
		return nil, err
	}
	idx, entry, err := r.find(ctx, clean)
	if err != nil {
		return nil, err
	}
	if entry.Dir {
		return nil, ErrIsDir
	}
	rc, err := r.sources[idx].Open(ctx, rel(clean))
	if err != nil && errors.Is(err, ErrNotFound) && r.memo != nil {
		// The memo pointed at a file that has since gone away.
		_ = r.memo.Delete(ctx, clean)
	}
	return rc, err
}

// Paths lists the immediate children of directory dir across all sources.
// Returned paths are absolute; directories carry a trailing "/".
// ErrNotFound is returned when no source has the directory.
func (r *Resolver) Paths(ctx context.Context, dir string) ([]string, error) {
	clean, err := cleanForLookup(dir)
	if err != nil {
		return nil, err
	}
	base := clean
	if base != "/" {
		base += "/"
	}

	seen := make(map[string]struct{})
	found := false
	for _, src := range r.sources {
		entries, err := src.ReadDir(ctx, rel(clean))
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, err
		}
		found = true
		for _, e := range entries {
			p := base + e.Name
			if e.Dir {
				p += "/"
			}
			seen[p] = struct{}{}
		}
	}
	if !found {
		return nil, ErrNotFound
	}

	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	slices.Sort(out)
	return out, nil
}

// Close closes every source that holds resources, such as open archives.
func (r *Resolver) Close() error {
	var errs []error
	for _, s := range r.sources {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if r.memo != nil {
		_ = r.memo.Close()
	}
	return errors.Join(errs...)
}

func (r *Resolver) find(ctx context.Context, clean string) (int, Entry, error) {
	if r.memo == nil {
		return r.search(ctx, clean)
	}

	idx, err := cache.GetOrSet(ctx, r.memo, clean, func(ctx context.Context) (int, time.Duration, error) {
		i, _, err := r.search(ctx, clean)
		return i, 0, err
	})
	if err != nil {
		return 0, Entry{}, err
	}
	entry, err := r.sources[idx].Stat(ctx, rel(clean))
	if err == nil {
		return idx, entry, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return 0, Entry{}, err
	}
	// Stale memo entry: search again and remember the fresh answer.
	_ = r.memo.Delete(ctx, clean)
	i, e, err := r.search(ctx, clean)
	if err == nil {
		_ = r.memo.Set(ctx, clean, i, 0)
	}
	return i, e, err
}

func (r *Resolver) search(ctx context.Context, clean string) (int, Entry, error) {
	for i := range r.sources {
		e, err := r.sources[i].Stat(ctx, rel(clean))
		if err == nil {
			return i, e, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return 0, Entry{}, err
		}
	}
	return 0, Entry{}, ErrNotFound
}

// cleanForLookup canonicalizes p; every rejection reads as "absent".
func cleanForLookup(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", errors.Join(ErrNotFound, ErrInvalidPath)
	}
	clean, err := Clean(p)
	if err != nil {
		return "", errors.Join(ErrNotFound, err)
	}
	return clean, nil
}
