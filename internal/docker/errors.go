package docker

import "errors"

// Sentinel errors surfaced by file operations so callers can map them to
// tool-level results with errors.Is.
var (
	// ErrNotFound indicates the requested path does not exist in the container.
	ErrNotFound = errors.New("file not found in sandbox")

	// ErrIsDirectory indicates a file read targeted a directory.
	ErrIsDirectory = errors.New("path is a directory")
)
