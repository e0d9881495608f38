package objcache

import "github.com/attaca-vcs/attaca/internal/objects"

// RefIterator is a lazy cursor over a parent object's child references:
// it holds the parent alive and constructs each child's canonical handle
// on demand via HandleForDigest, so two iterations over the same object
// yield pointer-identical handles.
type RefIterator struct {
	cache  *Cache
	parent *objects.Object
	index  int
}

// Refs returns an iterator over obj's child references, anchored to c so
// every yielded handle is the cache's canonical handle for its digest.
func (c *Cache) Refs(obj *objects.Object) *RefIterator {
	return &RefIterator{cache: c, parent: obj}
}

// Next returns the next child handle, or ok=false once the refs are
// exhausted.
func (it *RefIterator) Next() (handle *Handle, ok bool) {
	if it.index >= len(it.parent.Refs) {
		return nil, false
	}
	d := it.parent.Refs[it.index]
	it.index++
	return it.cache.HandleForDigest(d), true
}

// Len returns the total number of refs this iterator walks.
func (it *RefIterator) Len() int { return len(it.parent.Refs) }
