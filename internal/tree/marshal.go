package tree

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/attaca-vcs/attaca/internal/digest"
	"github.com/attaca-vcs/attaca/internal/objects"
)

// Marshaller installs the objects a tree marshals down to. ProcessOpaque
// is a notification that an already-addressed entry was visited;
// ProcessSubtree receives one fully-resolved level of a directory and
// must install it, returning the SubtreeEntry that addresses it.
type Marshaller interface {
	ProcessOpaque(ctx context.Context, entry objects.SubtreeEntry) error
	ProcessSubtree(ctx context.Context, entries map[string]objects.SubtreeEntry) (objects.SubtreeEntry, error)
}

// Marshal walks t bottom-up, installing every transparent level through
// m and returning the digest of the root. Transparent children are
// processed concurrently; the arena's mutex is held only while a node is
// taken out of it, never across the recursive call that follows.
// Cancelling the errgroup's context on the first error aborts sibling
// subtrees as soon as they next check ctx.Err(); objects already
// installed by other branches are left in the store, since the store is
// append-only and orphaned content is benign.
func Marshal(ctx context.Context, t *Tree, m Marshaller) (digest.Digest, error) {
	var mu sync.Mutex
	entry, err := marshalNode(ctx, t, t.root, m, &mu)
	if err != nil {
		return digest.Digest{}, err
	}
	return entry.Hash(), nil
}

func marshalNode(ctx context.Context, t *Tree, id NodeId, m Marshaller, mu *sync.Mutex) (objects.SubtreeEntry, error) {
	if err := ctx.Err(); err != nil {
		return objects.SubtreeEntry{}, err
	}

	mu.Lock()
	n := t.arena.take(id)
	mu.Unlock()
	if n == nil {
		return objects.SubtreeEntry{}, fmt.Errorf("tree: marshal: node %d already consumed", id)
	}

	switch n.kind {
	case nodeOpaque:
		if err := m.ProcessOpaque(ctx, n.entry); err != nil {
			return objects.SubtreeEntry{}, err
		}
		return n.entry, nil

	case nodeTransparent:
		names := make([]string, 0, len(n.children))
		for name := range n.children {
			names = append(names, name)
		}
		sort.Strings(names)

		g, gctx := errgroup.WithContext(ctx)
		results := make([]objects.SubtreeEntry, len(names))
		for i, name := range names {
			i, childID := i, n.children[name]
			g.Go(func() error {
				entry, err := marshalNode(gctx, t, childID, m, mu)
				if err != nil {
					return err
				}
				results[i] = entry
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return objects.SubtreeEntry{}, err
		}

		entries := make(map[string]objects.SubtreeEntry, len(names))
		for i, name := range names {
			entries[name] = results[i]
		}
		return m.ProcessSubtree(ctx, entries)

	default:
		return objects.SubtreeEntry{}, fmt.Errorf("tree: marshal: node %d has unknown kind", id)
	}
}
