package tree

import (
	"context"
	"fmt"

	"github.com/attaca-vcs/attaca/internal/attacaerr"
	"github.com/attaca-vcs/attaca/internal/objectstore"
	"github.com/attaca-vcs/attaca/internal/objects"
)

// StoreMarshaller is the concrete Marshaller every caller outside of
// tests reaches for: it installs each subtree level into an
// objectstore.Store and confirms opaque entries are resolvable in it.
type StoreMarshaller struct {
	store *objectstore.Store
}

// NewStoreMarshaller returns a Marshaller that installs into store.
func NewStoreMarshaller(store *objectstore.Store) *StoreMarshaller {
	return &StoreMarshaller{store: store}
}

// ProcessOpaque confirms the entry's digest resolves in the backing
// store, failing with attacaerr.HandleDangling if it addresses an object
// that was never installed.
func (sm *StoreMarshaller) ProcessOpaque(ctx context.Context, entry objects.SubtreeEntry) error {
	h, err := sm.store.Resolve(ctx, entry.Digest)
	if err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("tree: opaque entry %s: %w", entry.Digest, attacaerr.HandleDangling)
	}
	return nil
}

// ProcessSubtree installs the given level as a canonical Subtree object.
func (sm *StoreMarshaller) ProcessSubtree(ctx context.Context, entries map[string]objects.SubtreeEntry) (objects.SubtreeEntry, error) {
	obj := objects.NewSubtree(entries)
	h, err := sm.store.Install(ctx, obj)
	if err != nil {
		return objects.SubtreeEntry{}, err
	}
	return objects.SubtreeEntry{Kind: objects.EntrySubtree, Digest: h.Digest(), Size: uint64(len(obj.Blob))}, nil
}
