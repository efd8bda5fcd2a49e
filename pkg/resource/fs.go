package resource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
)

// FS is a source backed by any fs.FS: a confined os.Root for the document tree,
// embed.FS for compiled-in assets, fstest.MapFS in tests.
type FS struct {
	fsys    fs.FS
	root    *os.Root
	name    string
	baseURL string
}

// NewFS wraps fsys. baseURL prefixes locations; it may be empty.
func NewFS(name string, fsys fs.FS, baseURL string) *FS {
	return &FS{fsys: fsys, name: name, baseURL: baseURL}
}

// Dir returns a source rooted at a directory on the local filesystem.
// Lookups are confined to the directory: a symlink leading outside it
// resolves as not found. Close releases the directory handle.
func Dir(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resource: resolve document root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("resource: document root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("resource: document root %q is not a directory", abs)
	}
	r, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("resource: document root: %w", err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	src := NewFS("docroot", r.FS(), u.String())
	src.root = r
	return src, nil
}

func (s *FS) Name() string { return s.name }

// Close releases the directory handle of a source created by Dir.
func (s *FS) Close() error {
	if s.root == nil {
		return nil
	}
	return s.root.Close()
}

func (s *FS) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := s.fsys.Open(fsName(name))
	if err != nil {
		return nil, s.mapError(err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, s.mapError(err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, ErrIsDir
	}
	return f, nil
}

func (s *FS) Stat(_ context.Context, name string) (Entry, error) {
	info, err := fs.Stat(s.fsys, fsName(name))
	if err != nil {
		return Entry{}, s.mapError(err)
	}
	return entryFromInfo(info), nil
}

func (s *FS) ReadDir(_ context.Context, name string) ([]Entry, error) {
	des, err := fs.ReadDir(s.fsys, fsName(name))
	if err != nil {
		return nil, s.mapError(err)
	}
	out := make([]Entry, 0, len(des))
	for _, de := range des {
		e := Entry{Name: de.Name(), Dir: de.IsDir()}
		if de.Type()&fs.ModeSymlink != 0 {
			// Listed by what the link resolves to; dangling or escaping links are hidden.
			info, err := fs.Stat(s.fsys, path.Join(fsName(name), de.Name()))
			if err != nil {
				continue
			}
			e = entryFromInfo(info)
			e.Name = de.Name()
		} else if info, err := de.Info(); err == nil {
			e = entryFromInfo(info)
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *FS) URL(name string) string {
	if s.baseURL == "" {
		return "/" + name
	}
	return s.baseURL + "/" + name
}

func fsName(name string) string {
	if name == "" {
		return "."
	}
	return name
}

func entryFromInfo(info fs.FileInfo) Entry {
	return Entry{
		Name:    path.Base(info.Name()),
		Dir:     info.IsDir(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
}

func (s *FS) mapError(err error) error {
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
		return errors.Join(ErrNotFound, err)
	}
	// A confined root refuses names that leave it, symlinks included.
	var pe *fs.PathError
	if s.root != nil && errors.As(err, &pe) && !errors.Is(err, fs.ErrPermission) {
		return errors.Join(ErrNotFound, ErrTraversal, err)
	}
	return err
}

var _ io.Closer = (*FS)(nil)

var _ Source = (*FS)(nil)
