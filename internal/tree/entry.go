package tree

import (
	"github.com/attaca-vcs/attaca/internal/digest"
	"github.com/attaca-vcs/attaca/internal/objects"
)

// Result is the outcome of walking a path against a Tree: exactly one
// of Occupied, Vacant, or Blocked.
type Result interface {
	isResult()
}

// Occupied means the path addresses an existing node, leaf or interior,
// already represented in the arena.
type Occupied struct {
	tree *Tree
	id   NodeId
}

func (*Occupied) isResult() {}

// NodeID returns the arena id this result addresses.
func (o *Occupied) NodeID() NodeId { return o.id }

// Entry returns the node's opaque entry and true, or (zero, false) if
// the occupied node is a transparent interior node rather than a leaf.
func (o *Occupied) Entry() (objects.SubtreeEntry, bool) {
	n := o.tree.arena.get(o.id)
	if n == nil || n.kind != nodeOpaque {
		return objects.SubtreeEntry{}, false
	}
	return n.entry, true
}

// Remove clears the occupied node, returning a Vacant result at the
// same id.
func (o *Occupied) Remove() *Vacant {
	o.tree.arena.take(o.id)
	return &Vacant{tree: o.tree, direct: true, targetID: o.id}
}

// Replace overwrites the occupied node with a new opaque entry.
func (o *Occupied) Replace(entry objects.SubtreeEntry) *Occupied {
	o.tree.arena.put(o.id, &arenaNode{kind: nodeOpaque, entry: entry})
	return &Occupied{tree: o.tree, id: o.id}
}

// Vacant means the path walks off the tree: either at an interior node
// missing the next component, at an empty slot left by a prior Remove,
// or at a file entry that still has path components left beneath it.
type Vacant struct {
	tree *Tree

	// Set when the vacancy was reached by descending a transparent
	// node's map and not finding firstComponent.
	parentID       NodeId
	firstComponent string
	restComponents []string

	// Set when the vacancy is a single slot at a known id: an empty slot
	// (from Occupied.Remove, or a node that was taken and never
	// replaced), or the slot of a file entry the walk could not descend
	// past.
	direct   bool
	targetID NodeId
}

func (*Vacant) isResult() {}

// Insert allocates a chain of fresh transparent nodes for any remaining
// path components, terminates the chain with an opaque node carrying
// entry, and splices it into place. For a direct vacancy it writes entry
// into that slot alone: an empty slot is filled, a file entry there is
// replaced, and no path components below that slot are created.
func (v *Vacant) Insert(entry objects.SubtreeEntry) *Occupied {
	if v.direct {
		v.tree.arena.put(v.targetID, &arenaNode{kind: nodeOpaque, entry: entry})
		return &Occupied{tree: v.tree, id: v.targetID}
	}

	id := v.tree.arena.alloc(&arenaNode{kind: nodeOpaque, entry: entry})
	for i := len(v.restComponents) - 1; i >= 0; i-- {
		id = v.tree.arena.alloc(&arenaNode{kind: nodeTransparent, children: map[string]NodeId{v.restComponents[i]: id}})
	}

	parent := v.tree.arena.get(v.parentID)
	parent.children[v.firstComponent] = id
	return &Occupied{tree: v.tree, id: id}
}

// Blocked means the walk encountered an opaque node partway through: an
// unexpanded subtree digest stands where the remaining path components
// still need to descend.
type Blocked struct {
	tree      *Tree
	id        NodeId
	remaining []string
}

func (*Blocked) isResult() {}

// Digest returns the digest of the unexpanded subtree blocking this
// walk.
func (b *Blocked) Digest() digest.Digest {
	return b.tree.arena.get(b.id).entry.Digest
}

// Remaining returns the path components still unconsumed, starting with
// the one that hit the opaque node.
func (b *Blocked) Remaining() []string {
	return append([]string(nil), b.remaining...)
}

// Unblock grafts subtree into the arena at the blocking id and resumes
// walking the remaining components from there.
func (b *Blocked) Unblock(subtree *Tree) Result {
	b.tree.graftAt(b.id, subtree)
	return b.tree.walkFrom(b.id, b.remaining)
}

// Entry walks path against t's root and returns the resulting state.
func (t *Tree) Entry(path []string) Result {
	return t.walkFrom(t.root, path)
}

func (t *Tree) walkFrom(start NodeId, path []string) Result {
	cur := start
	for i, component := range path {
		n := t.arena.get(cur)
		if n == nil {
			return &Vacant{tree: t, direct: true, targetID: cur}
		}
		switch n.kind {
		case nodeOpaque:
			if n.entry.Kind != objects.EntrySubtree {
				// A file entry is a dead end: there is nothing beneath
				// it to descend into, so the remaining path is simply
				// missing rather than blocked on a fetch.
				return &Vacant{tree: t, direct: true, targetID: cur}
			}
			remaining := make([]string, 0, len(path)-i)
			remaining = append(remaining, path[i:]...)
			return &Blocked{tree: t, id: cur, remaining: remaining}
		case nodeTransparent:
			next, ok := n.children[component]
			if !ok {
				rest := make([]string, 0, len(path)-i-1)
				rest = append(rest, path[i+1:]...)
				return &Vacant{tree: t, parentID: cur, firstComponent: component, restComponents: rest}
			}
			cur = next
		}
	}

	n := t.arena.get(cur)
	if n == nil {
		return &Vacant{tree: t, direct: true, targetID: cur}
	}
	return &Occupied{tree: t, id: cur}
}
