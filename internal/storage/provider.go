// Package storage defines rooted, traversal-safe file access used for the
// vault and for the knowledge-base mirror.
package storage

import "io/fs"

// WalkFunc is called for every Markdown file found by Walk. rel uses
// forward slashes and is relative to the provider root. When a directory
// below the root cannot be read, fn is called once with that directory,
// a nil info and the error; its subtree is skipped unless fn returns an
// error, which aborts the walk.
type WalkFunc func(rel string, info fs.FileInfo, err error) error

// Provider is the interface for rooted file operations.
type Provider interface {
	// Root returns the absolute root directory.
	Root() string
	// Exists reports whether the root directory is present.
	Exists() bool
	// Walk visits every .md file under the root. skipDir is consulted for
	// each directory (relative path) and may prune it.
	Walk(skipDir func(rel string) bool, fn WalkFunc) error
	// Read returns the raw bytes of the file at rel.
	Read(rel string) ([]byte, error)
	// Stat returns file info for rel.
	Stat(rel string) (fs.FileInfo, error)
	// Write atomically writes content to rel, creating parent directories.
	Write(rel string, content []byte) error
	// Delete removes the file at rel.
	Delete(rel string) error
}
