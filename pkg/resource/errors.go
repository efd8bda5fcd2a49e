package resource

import "errors"

var (
	// ErrNotFound is returned when no source holds the requested path.
	ErrNotFound = errors.New("resource: not found")

	// ErrTraversal is returned when a path climbs above the application root.
	// It is always joined with ErrNotFound so callers can treat it as absent.
	ErrTraversal = errors.New("resource: path escapes application root")

	// ErrInvalidPath is returned for paths that are not absolute slash-separated
	// virtual paths, or that contain NUL bytes or backslashes.
	ErrInvalidPath = errors.New("resource: invalid path")

	// ErrIsDir is returned when a byte stream is requested for a directory.
	ErrIsDir = errors.New("resource: is a directory")
)
