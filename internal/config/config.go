// Package config holds the in-process options an attaca store is built
// with: the plumbing a library caller wires up directly, as a
// DefaultOptions-plus-functional-overrides shape rather than a
// file-backed configuration.
package config

import (
	"os"

	"github.com/attaca-vcs/attaca/internal/digest"
)

// Options configures an object store.
type Options struct {
	// Algorithm is the digest algorithm new objects are hashed with.
	Algorithm digest.Algorithm

	// ObjectCacheSize bounds the number of resident Objects the
	// handle cache keeps strongly referenced at once.
	ObjectCacheSize int

	// CompressionThreshold is the minimum encoded-object size, in
	// bytes, at which the KV layer zstd-compresses values before
	// writing them. Zero disables compression.
	CompressionThreshold int

	// FileMode is the permission bits used when creating a new bbolt
	// database file.
	FileMode os.FileMode
}

// DefaultOptions returns the baseline Options every store starts from.
func DefaultOptions() Options {
	return Options{
		Algorithm:            digest.SHA3_256,
		ObjectCacheSize:      4096,
		CompressionThreshold: 1024,
		FileMode:             0o666,
	}
}

// Option mutates Options in place, the functional-options idiom used to
// layer overrides onto DefaultOptions().
type Option func(*Options)

// WithAlgorithm overrides the digest algorithm.
func WithAlgorithm(algo digest.Algorithm) Option {
	return func(o *Options) { o.Algorithm = algo }
}

// WithObjectCacheSize overrides the resident-object LRU capacity.
func WithObjectCacheSize(n int) Option {
	return func(o *Options) { o.ObjectCacheSize = n }
}

// WithCompressionThreshold overrides the zstd compression cutoff.
func WithCompressionThreshold(n int) Option {
	return func(o *Options) { o.CompressionThreshold = n }
}

// WithFileMode overrides the bbolt database file mode.
func WithFileMode(mode os.FileMode) Option {
	return func(o *Options) { o.FileMode = mode }
}

// Apply builds Options from DefaultOptions() plus the given overrides.
func Apply(opts ...Option) Options {
	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
