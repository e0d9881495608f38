package tree

import (
	"iter"
	"sort"

	"github.com/attaca-vcs/attaca/internal/objects"
)

type frame struct {
	prefix string
	id     NodeId
}

// All returns a depth-first, pre-order iterator over the tree's opaque
// entries, yielding each entry's slash-joined path. Sibling order is
// sorted by name for reproducibility.
func (t *Tree) All() iter.Seq2[string, objects.SubtreeEntry] {
	return func(yield func(string, objects.SubtreeEntry) bool) {
		stack := []frame{{prefix: "", id: t.root}}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			n := t.arena.get(f.id)
			if n == nil {
				continue
			}
			switch n.kind {
			case nodeOpaque:
				if !yield(f.prefix, n.entry) {
					return
				}
			case nodeTransparent:
				names := make([]string, 0, len(n.children))
				for name := range n.children {
					names = append(names, name)
				}
				sort.Strings(names)
				for i := len(names) - 1; i >= 0; i-- {
					name := names[i]
					childPrefix := name
					if f.prefix != "" {
						childPrefix = f.prefix + "/" + name
					}
					stack = append(stack, frame{prefix: childPrefix, id: n.children[name]})
				}
			}
		}
	}
}
