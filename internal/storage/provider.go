// Package storage defines the corpus file-system abstraction.
package storage

import "time"

// DocMeta describes one Markdown document in the corpus.
type DocMeta struct {
	Path      string
	Checksum  string
	UpdatedAt time.Time
}

// WalkOptions filters the code listing produced by Walk.
type WalkOptions struct {
	// IncludeBuildDirs keeps dependency and build output directories
	// (node_modules, vendor, dist, ...) in the listing.
	IncludeBuildDirs bool
	// RespectGitignore drops paths matched by the root .gitignore.
	RespectGitignore bool
	// Exclude holds doublestar patterns matched against slash-separated
	// relative paths.
	Exclude []string
}

// Provider is the interface for corpus file operations. All paths are
// slash-separated and relative to the corpus root.
type Provider interface {
	// Root returns the absolute corpus root.
	Root() string
	// ListDocs returns every .md file under dir, sorted by path. A missing
	// dir yields an empty listing.
	ListDocs(dir string) ([]DocMeta, error)
	// Walk returns every regular file under the root that passes opts,
	// sorted by path.
	Walk(opts WalkOptions) ([]string, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path.
	Write(path string, content []byte) error
}
