package tree

import (
	"sort"

	"github.com/attaca-vcs/attaca/internal/objects"
)

// PathEntry pairs a slash-component path with the entry it should address.
type PathEntry struct {
	Path  []string
	Entry objects.SubtreeEntry
}

// FromIter builds a Tree from a flat list of path entries. Entries are
// sorted lexicographically by path before insertion, so parent
// directories are always created before their children.
func FromIter(entries []PathEntry) *Tree {
	sorted := append([]PathEntry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool {
		return pathLess(sorted[i].Path, sorted[j].Path)
	})

	t := NewTree()
	for _, e := range sorted {
		switch r := t.Entry(e.Path).(type) {
		case *Vacant:
			r.Insert(e.Entry)
		case *Occupied:
			r.Replace(e.Entry)
		case *Blocked:
			panic("tree: FromIter hit a Blocked traversal on a tree with no opaque subtrees")
		}
	}
	return t
}

func pathLess(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
