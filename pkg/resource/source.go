package resource

import (
	"context"
	"io"
	"time"
)

// Entry describes one file or directory inside a source.
type Entry struct {
	ModTime time.Time
	Name    string
	Size    int64
	Dir     bool
}

// Location identifies where a virtual path was found.
type Location struct {
	// Source is the name of the source that holds the resource.
	Source string
	// Path is the cleaned virtual path.
	Path string
	// URL is a source-specific locator (file:, jar:file:, s3:).
	URL string
	// Dir reports whether the location is a directory.
	Dir bool
}

// Source is one resource root. Names passed to a source are already cleaned,
// slash-separated and relative ("" denotes the root).
//
// Implementations return an error wrapping ErrNotFound for missing names.
type Source interface {
	// Name identifies the source in listings and locations.
	Name() string

	// Open returns a stream for a regular file.
	Open(ctx context.Context, name string) (io.ReadCloser, error)

	// Stat describes a file or directory.
	Stat(ctx context.Context, name string) (Entry, error)

	// ReadDir lists the immediate children of a directory.
	ReadDir(ctx context.Context, name string) ([]Entry, error)

	// URL returns a locator for name.
	URL(name string) string
}
