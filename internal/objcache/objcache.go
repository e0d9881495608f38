// Package objcache implements the local object cache and handle manager:
// a concurrent, content-addressed cache layered over a persistent KV
// database, with weak-reference deduplication so each object is resident
// at most once while handles remain cheap to pass around.
package objcache

import (
	"context"
	"fmt"
	"sync"
	"weak"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/attaca-vcs/attaca/internal/attacaerr"
	"github.com/attaca-vcs/attaca/internal/digest"
	"github.com/attaca-vcs/attaca/internal/kvstore"
	"github.com/attaca-vcs/attaca/internal/objects"
	"github.com/attaca-vcs/attaca/internal/telemetry"
)

// Cache is the object and handle cache. It owns no file handles of its
// own; db is the persistent backing store.
type Cache struct {
	db  kvstore.KV
	log telemetry.Logger

	handles sync.Map // digest.Digest -> *Handle

	objMu   sync.Mutex // guards objects against concurrent Add racing Get
	objects *lru.Cache[digest.Digest, *objects.Object]

	install singleflight.Group
}

// New creates a Cache backed by db, with a resident-object LRU of the
// given capacity. The cache may drop strong references to objects with
// no other holders; a bounded LRU gives that allowance a concrete policy.
func New(db kvstore.KV, objectCacheSize int, log telemetry.Logger) (*Cache, error) {
	if objectCacheSize <= 0 {
		objectCacheSize = 1
	}
	l, err := lru.New[digest.Digest, *objects.Object](objectCacheSize)
	if err != nil {
		return nil, fmt.Errorf("objcache: new LRU: %w", err)
	}
	return &Cache{db: db, objects: l, log: log}, nil
}

// HandleForDigest returns the canonical handle for d, creating and
// inserting it into the handles map on first use. Concurrent callers
// racing on the same d observe the same handle value: sync.Map.LoadOrStore
// is the stdlib's atomic upsert-with-hook primitive for this.
func (c *Cache) HandleForDigest(d digest.Digest) *Handle {
	h := &Handle{digest: d, cache: c}
	actual, _ := c.handles.LoadOrStore(d, h)
	return actual.(*Handle)
}

// PeekHandle returns the canonical handle for d if one has already been
// created, without creating one. The second return reports whether a
// handle exists yet; a handle existing does not by itself mean the
// object it addresses has ever been found in the database.
func (c *Cache) PeekHandle(d digest.Digest) (*Handle, bool) {
	v, ok := c.handles.Load(d)
	if !ok {
		return nil, false
	}
	return v.(*Handle), true
}

// GetObject returns the resident object for d, fetching from the KV
// database on a cache miss. It returns (nil, nil) if d is not present
// anywhere, attacaerr.StorageError on DB I/O failure, and
// attacaerr.MalformedObject on decode failure.
func (c *Cache) GetObject(ctx context.Context, d digest.Digest) (*objects.Object, error) {
	c.objMu.Lock()
	if obj, ok := c.objects.Get(d); ok {
		c.objMu.Unlock()
		c.log.Debug("objcache: resident hit", zap.String("digest", d.String()))
		return obj, nil
	}
	c.objMu.Unlock()

	raw, err := c.db.Get(d.Bytes())
	if err != nil {
		c.log.Error("objcache: db get failed", zap.String("digest", d.String()), zap.Error(err))
		return nil, fmt.Errorf("objcache: get %s: %w", d, err)
	}
	if raw == nil {
		return nil, nil
	}

	obj, err := objects.Decode(raw)
	if err != nil {
		c.log.Error("objcache: decode failed", zap.String("digest", d.String()), zap.Error(err))
		return nil, fmt.Errorf("objcache: decode %s: %w", d, err)
	}

	c.objMu.Lock()
	if existing, ok := c.objects.Get(d); ok {
		c.objMu.Unlock()
		return existing, nil
	}
	c.objects.Add(d, &obj)
	c.objMu.Unlock()

	return &obj, nil
}

// InstallObject canonicalises, digests, installs and persists o, and
// returns its handle. It is idempotent: installing the same object twice
// yields an equal handle and does not corrupt the database. Concurrent
// installs of objects with equal digests are coalesced through a
// singleflight.Group keyed by digest, so a deduplication race is resolved
// without surfacing an error to either caller.
func (c *Cache) InstallObject(ctx context.Context, algo digest.Algorithm, o objects.Object) (*Handle, error) {
	d := objects.Digest(algo, o)

	v, err, _ := c.install.Do(d.String(), func() (interface{}, error) {
		h := c.HandleForDigest(d)

		c.objMu.Lock()
		if _, ok := c.objects.Get(d); !ok {
			c.objects.Add(d, &o)
		}
		c.objMu.Unlock()

		encoded := objects.Encode(algo, o)
		if err := c.db.Put(d.Bytes(), encoded); err != nil {
			c.log.Error("objcache: install put failed", zap.String("digest", d.String()), zap.Error(err))
			return nil, fmt.Errorf("objcache: install %s: %w", d, err)
		}

		c.log.Debug("objcache: installed", zap.String("digest", d.String()))
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// Handle is a lightweight, clonable reference to an object resident in a
// particular Cache. Two handles are equal iff their digests are equal;
// ordering and hashing are on the digest alone.
type Handle struct {
	digest digest.Digest
	cache  *Cache

	mu   sync.Mutex
	weak weak.Pointer[objects.Object]
}

// Digest returns the handle's content address.
func (h *Handle) Digest() digest.Digest { return h.digest }

// Equal reports whether h and other address the same digest.
func (h *Handle) Equal(other *Handle) bool {
	if other == nil {
		return false
	}
	return h.digest == other.digest
}

// Load returns the resident object for h, consulting the handle's own
// weak slot first. It takes the handle's slot lock, attempts to upgrade
// the weak.Pointer; on failure it calls GetObject and stores a fresh weak
// reference back into the slot. Repeated loads of the same handle are
// then free of database traffic for as long as any consumer holds the
// object strongly elsewhere (e.g. in the cache's resident LRU).
func (h *Handle) Load(ctx context.Context) (*objects.Object, error) {
	h.mu.Lock()
	if obj := h.weak.Value(); obj != nil {
		h.mu.Unlock()
		return obj, nil
	}
	h.mu.Unlock()

	obj, err := h.cache.GetObject(ctx, h.digest)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("objcache: load %s: %w", h.digest, attacaerr.HandleDangling)
	}

	h.mu.Lock()
	h.weak = weak.Make(obj)
	h.mu.Unlock()

	return obj, nil
}
