// Package tree implements an editable, lazily-expanded view over a
// content-addressed subtree: an arena of nodes that are either opaque
// (an unexpanded child reference) or transparent (a directory of named
// children), supporting path-based editing before the result is
// marshalled back down into subtree objects.
package tree

import (
	"github.com/attaca-vcs/attaca/internal/objects"
)

// NodeId identifies a slot in an Arena. IDs are never reused: once
// allocated, an id keeps its meaning even after its slot is taken or
// overwritten.
type NodeId int

type nodeKind uint8

const (
	nodeOpaque nodeKind = iota
	nodeTransparent
)

type arenaNode struct {
	kind     nodeKind
	entry    objects.SubtreeEntry  // valid when kind == nodeOpaque
	children map[string]NodeId // valid when kind == nodeTransparent
}

// Arena is a growable sequence of optional nodes. It is not safe for
// concurrent use by itself; callers that mutate it from multiple
// goroutines (Marshal) serialize access with their own mutex.
type Arena struct {
	nodes []*arenaNode
}

func (a *Arena) alloc(n *arenaNode) NodeId {
	a.nodes = append(a.nodes, n)
	return NodeId(len(a.nodes) - 1)
}

// get returns the node at id without removing it, or nil if the slot is
// empty.
func (a *Arena) get(id NodeId) *arenaNode {
	return a.nodes[id]
}

// take removes and returns the node at id, leaving the slot empty.
func (a *Arena) take(id NodeId) *arenaNode {
	n := a.nodes[id]
	a.nodes[id] = nil
	return n
}

// put overwrites the slot at id, which may or may not currently be
// empty.
func (a *Arena) put(id NodeId, n *arenaNode) {
	a.nodes[id] = n
}

// Tree is an Arena together with the id of its root node.
type Tree struct {
	arena *Arena
	root  NodeId
}

// NewTree returns an empty tree: a single transparent root with no
// children.
func NewTree() *Tree {
	arena := &Arena{}
	root := arena.alloc(&arenaNode{kind: nodeTransparent, children: map[string]NodeId{}})
	return &Tree{arena: arena, root: root}
}

// NewOpaqueRoot returns a tree whose root is itself opaque: an
// unexpanded reference, useful for seeding a walk that starts blocked.
func NewOpaqueRoot(entry objects.SubtreeEntry) *Tree {
	arena := &Arena{}
	root := arena.alloc(&arenaNode{kind: nodeOpaque, entry: entry})
	return &Tree{arena: arena, root: root}
}

// FromSubtreeEntries builds a one-level tree whose root is transparent
// and whose children are opaque entries, mirroring the shape a decoded
// Subtree object's entry map takes before any of its children have been
// expanded further.
func FromSubtreeEntries(entries map[string]objects.SubtreeEntry) *Tree {
	t := NewTree()
	root := t.arena.get(t.root)
	for name, entry := range entries {
		id := t.arena.alloc(&arenaNode{kind: nodeOpaque, entry: entry})
		root.children[name] = id
	}
	return t
}

// Append copies subtree's arena onto the end of t's arena, offsetting
// every interior NodeId by the prior length, and returns the new id of
// subtree's root within t.
func (t *Tree) Append(subtree *Tree) NodeId {
	offset := NodeId(len(t.arena.nodes))
	for _, n := range subtree.arena.nodes {
		t.arena.nodes = append(t.arena.nodes, copyOffset(n, offset))
	}
	return subtree.root + offset
}

func copyOffset(n *arenaNode, offset NodeId) *arenaNode {
	if n == nil {
		return nil
	}
	switch n.kind {
	case nodeOpaque:
		return &arenaNode{kind: nodeOpaque, entry: n.entry}
	case nodeTransparent:
		children := make(map[string]NodeId, len(n.children))
		for name, id := range n.children {
			children[name] = id + offset
		}
		return &arenaNode{kind: nodeTransparent, children: children}
	default:
		return nil
	}
}

// graftAt copies subtree into t and moves its root content into id's
// existing slot, so nodes already pointing at id observe the grafted
// content without needing to be updated themselves.
func (t *Tree) graftAt(id NodeId, subtree *Tree) {
	newRoot := t.Append(subtree)
	moved := t.arena.take(newRoot)
	t.arena.put(id, moved)
}
