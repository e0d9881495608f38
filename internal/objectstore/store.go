// Package objectstore wires the object cache to a branch-naming layer,
// giving callers the store-level API: install objects through a builder,
// resolve digests to handles, and move named branches forward under
// compare-and-swap.
package objectstore

import (
	"context"
	"fmt"
	"io"

	"github.com/attaca-vcs/attaca/internal/attacaerr"
	"github.com/attaca-vcs/attaca/internal/config"
	"github.com/attaca-vcs/attaca/internal/digest"
	"github.com/attaca-vcs/attaca/internal/kvstore"
	"github.com/attaca-vcs/attaca/internal/objcache"
	"github.com/attaca-vcs/attaca/internal/objects"
	"github.com/attaca-vcs/attaca/internal/telemetry"
)

// Store is the object store: an object cache paired with an algorithm
// and a branch-naming layer.
type Store struct {
	cache    *objcache.Cache
	branches kvstore.Branches
	algo     digest.Algorithm
	log      telemetry.Logger
	closer   io.Closer
}

// New builds a Store over cache, using branches for branch storage and
// algo to hash newly installed objects.
func New(cache *objcache.Cache, branches kvstore.Branches, algo digest.Algorithm, log telemetry.Logger) *Store {
	return &Store{cache: cache, branches: branches, algo: algo, log: log}
}

// Open builds a Store backed by a bbolt database at path, layering opts
// onto config.DefaultOptions to pick the digest algorithm, the resident
// object cache size, the compression threshold, and the database file
// mode. The returned Store owns the database file; callers should Close
// it when done.
func Open(path string, log telemetry.Logger, opts ...config.Option) (*Store, error) {
	cfg := config.Apply(opts...)

	db, err := kvstore.Open(path, cfg.FileMode, cfg.CompressionThreshold)
	if err != nil {
		return nil, fmt.Errorf("objectstore: open %s: %w", path, err)
	}

	cache, err := objcache.New(db, cfg.ObjectCacheSize, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("objectstore: new cache for %s: %w", path, err)
	}

	s := New(cache, db, cfg.Algorithm, log)
	s.closer = db
	return s, nil
}

// Close releases the store's backing database, if it was opened with
// Open. Stores built directly with New own nothing and Close is a no-op.
func (s *Store) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// Algorithm returns the digest algorithm this store hashes new objects
// with.
func (s *Store) Algorithm() digest.Algorithm { return s.algo }

// Install canonicalises and installs a pre-built object, such as one
// produced by objects.NewSubtree, and returns its handle.
func (s *Store) Install(ctx context.Context, o objects.Object) (*objcache.Handle, error) {
	return s.cache.InstallObject(ctx, s.algo, o)
}

// Resolve looks up d's handle. If a handle for d has already been
// created it is returned directly; otherwise Resolve consults the
// backing object store and, on a hit, registers and returns a handle.
// It returns (nil, nil) when no handle for d exists yet and the backing
// store holds no object under d; a handle created earlier (for example by
// LoadBranch) is returned even if its object was never installed. It
// fails with attacaerr.UnsupportedDigest if d names an algorithm this
// binary doesn't recognise.
func (s *Store) Resolve(ctx context.Context, d digest.Digest) (*objcache.Handle, error) {
	if _, ok := d.Algorithm(); !ok {
		return nil, fmt.Errorf("objectstore: resolve %s: %w", d, attacaerr.UnsupportedDigest)
	}
	if h, ok := s.cache.PeekHandle(d); ok {
		return h, nil
	}
	obj, err := s.cache.GetObject(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("objectstore: resolve %s: %w", d, err)
	}
	if obj == nil {
		return nil, nil
	}
	return s.cache.HandleForDigest(d), nil
}

// HandleBuilder accumulates a blob and a list of child references before
// installing the resulting object in one step.
type HandleBuilder struct {
	store *Store
	blob  []byte
	refs  []digest.Digest
}

// NewHandleBuilder starts an empty builder on s.
func (s *Store) NewHandleBuilder() *HandleBuilder {
	return &HandleBuilder{store: s}
}

// Write appends bytes to the builder's blob.
func (b *HandleBuilder) Write(p []byte) *HandleBuilder {
	b.blob = append(b.blob, p...)
	return b
}

// AddRef appends a child reference, in order, to the builder's ref list.
func (b *HandleBuilder) AddRef(h *objcache.Handle) *HandleBuilder {
	b.refs = append(b.refs, h.Digest())
	return b
}

// Finish canonicalises the accumulated blob and refs, installs the
// resulting object, and returns its handle.
func (b *HandleBuilder) Finish(ctx context.Context) (*objcache.Handle, error) {
	o := objects.Object{Blob: b.blob, Refs: b.refs}
	return b.store.cache.InstallObject(ctx, b.store.algo, o)
}

// LoadBranch returns the handle a branch currently points at, or
// (nil, nil) if the branch has never been set.
func (s *Store) LoadBranch(ctx context.Context, name string) (*objcache.Handle, error) {
	raw, ok, err := s.branches.Load(name)
	if err != nil {
		return nil, fmt.Errorf("objectstore: load branch %q: %w", name, err)
	}
	if !ok {
		return nil, nil
	}
	d, err := digest.FromBytes(s.algo, raw)
	if err != nil {
		return nil, fmt.Errorf("objectstore: branch %q points at malformed digest: %w", name, attacaerr.MalformedObject)
	}
	return s.cache.HandleForDigest(d), nil
}

// SwapBranch moves name from expectedPrev (nil meaning "unset") to
// newHandle under compare-and-swap, failing with attacaerr.BranchConflict
// if the branch's live value has since diverged from expectedPrev.
func (s *Store) SwapBranch(ctx context.Context, name string, expectedPrev, newHandle *objcache.Handle) error {
	var expectedBytes []byte
	if expectedPrev != nil {
		expectedBytes = expectedPrev.Digest().Bytes()
	}

	swapped, err := s.branches.CompareAndSwap(name, expectedBytes, newHandle.Digest().Bytes())
	if err != nil {
		return fmt.Errorf("objectstore: swap branch %q: %w", name, err)
	}
	if !swapped {
		return fmt.Errorf("objectstore: swap branch %q: %w", name, attacaerr.BranchConflict)
	}
	return nil
}
