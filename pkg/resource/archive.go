package resource

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"path/filepath"
)

// ArchiveRoot is the directory inside a bundled library archive whose
// contents are published at the application root.
const ArchiveRoot = "META-INF/resources"

// Archive is a source reading the embedded resource root of a zip archive.
type Archive struct {
	*FS
	closer io.Closer
}

// OpenArchive opens the zip file at path. The archive stays open until Close.
func OpenArchive(path string) (*Archive, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resource: resolve archive: %w", err)
	}
	zr, err := zip.OpenReader(abs)
	if err != nil {
		return nil, fmt.Errorf("resource: open archive %q: %w", abs, err)
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	a, err := newArchive(filepath.Base(abs), &zr.Reader, "jar:"+u.String()+"!/"+ArchiveRoot)
	if err != nil {
		_ = zr.Close()
		return nil, err
	}
	a.closer = zr
	return a, nil
}

// NewArchive reads a zip archive from r. Nothing needs closing.
func NewArchive(name string, r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("resource: read archive %q: %w", name, err)
	}
	return newArchive(name, zr, "jar:"+name+"!/"+ArchiveRoot)
}

func newArchive(name string, zr *zip.Reader, baseURL string) (*Archive, error) {
	sub, err := fs.Sub(zr, ArchiveRoot)
	if err != nil {
		return nil, fmt.Errorf("resource: archive %q: %w", name, err)
	}
	return &Archive{FS: NewFS(name, sub, baseURL)}, nil
}

// Close releases the underlying file, if any.
func (a *Archive) Close() error {
	if a.closer == nil {
		return nil
	}
	return a.closer.Close()
}

var _ Source = (*Archive)(nil)
