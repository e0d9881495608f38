package objects

import (
	"testing"
	"time"

	"github.com/attaca-vcs/attaca/internal/digest"
)

func TestSubtreeRoundTrip(t *testing.T) {
	algo := digest.SHA3_256
	fileDigest := Digest(algo, NewSmallData([]byte("contents")))
	otherDigest := Digest(algo, NewSmallData([]byte("other!!!")))

	entries := map[string]SubtreeEntry{
		"b.txt": {Kind: EntryFile, Digest: otherDigest, Size: 8},
		"a.txt": {Kind: EntryFile, Digest: fileDigest, Size: 8},
	}
	obj := NewSubtree(entries)

	decoded, err := DecodeSubtree(obj.Blob, obj.Refs)
	if err != nil {
		t.Fatalf("DecodeSubtree: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(decoded))
	}
	for name, e := range entries {
		got, ok := decoded[name]
		if !ok {
			t.Fatalf("missing entry %q", name)
		}
		if got != e {
			t.Fatalf("entry %q mismatch: got %+v want %+v", name, got, e)
		}
	}

	// refs must be in sorted-name order regardless of map iteration order.
	if len(obj.Refs) != 2 || obj.Refs[0] != fileDigest || obj.Refs[1] != otherDigest {
		t.Fatalf("unexpected refs: %v", obj.Refs)
	}
}

func TestSubtreeCanonicalBytesAreOrderIndependent(t *testing.T) {
	algo := digest.SHA3_256
	fd := Digest(algo, NewSmallData([]byte("x")))

	e1 := map[string]SubtreeEntry{"a": {Kind: EntryFile, Digest: fd, Size: 1}, "b": {Kind: EntryFile, Digest: fd, Size: 1}}
	e2 := map[string]SubtreeEntry{"b": {Kind: EntryFile, Digest: fd, Size: 1}, "a": {Kind: EntryFile, Digest: fd, Size: 1}}

	if Digest(algo, NewSubtree(e1)) != Digest(algo, NewSubtree(e2)) {
		t.Fatal("subtree digest depends on map iteration order")
	}
}

func TestLargeDataRoundTrip(t *testing.T) {
	algo := digest.SHA3_256
	c1 := Digest(algo, NewSmallData([]byte("chunk1")))
	c2 := Digest(algo, NewSmallData([]byte("chunk2")))

	obj := NewLargeData(12, []LargeDataChild{
		{Size: 6, Digest: c1},
		{Size: 6, Digest: c2},
	})

	total, children, err := DecodeLargeData(obj.Blob, obj.Refs)
	if err != nil {
		t.Fatalf("DecodeLargeData: %v", err)
	}
	if total != 12 {
		t.Fatalf("total size mismatch: got %d", total)
	}
	if len(children) != 2 || children[0].Digest != c1 || children[1].Digest != c2 {
		t.Fatalf("children mismatch: %+v", children)
	}
}

func TestCommitRoundTrip(t *testing.T) {
	algo := digest.SHA3_256
	subtree := Digest(algo, NewSubtree(nil))
	parent := Digest(algo, NewSmallData([]byte("parent-commit")))
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	c := Commit{Subtree: subtree, Parents: []digest.Digest{parent}, Message: "initial commit", Timestamp: ts}
	obj := NewCommit(c)

	decoded, err := DecodeCommit(obj.Blob, obj.Refs)
	if err != nil {
		t.Fatalf("DecodeCommit: %v", err)
	}
	if decoded.Subtree != subtree {
		t.Fatalf("subtree mismatch: got %v want %v", decoded.Subtree, subtree)
	}
	if len(decoded.Parents) != 1 || decoded.Parents[0] != parent {
		t.Fatalf("parents mismatch: got %v", decoded.Parents)
	}
	if decoded.Message != c.Message {
		t.Fatalf("message mismatch: got %q", decoded.Message)
	}
	if !decoded.Timestamp.Equal(ts) {
		t.Fatalf("timestamp mismatch: got %v want %v", decoded.Timestamp, ts)
	}

	if len(obj.Refs) != 2 || obj.Refs[0] != subtree || obj.Refs[1] != parent {
		t.Fatalf("commit refs must be subtree then parents, got %v", obj.Refs)
	}
}
