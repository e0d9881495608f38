package objects

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"github.com/attaca-vcs/attaca/internal/attacaerr"
	"github.com/attaca-vcs/attaca/internal/digest"
)

// Tag bytes identifying the higher-level kind a blob payload holds. This
// is the first byte of every Object.Blob produced by this file.
const (
	tagSmallData byte = 1
	tagLargeData byte = 2
	tagSubtree   byte = 3
	tagCommit    byte = 4
)

// NewSmallData builds the Object for a one-chunk blob: blob = small_tag
// || chunk bytes, refs = nil.
func NewSmallData(chunk []byte) Object {
	blob := make([]byte, 0, len(chunk)+1)
	blob = append(blob, tagSmallData)
	blob = append(blob, chunk...)
	return Object{Blob: blob}
}

// DecodeSmallData extracts the chunk bytes from a SmallData object's
// blob.
func DecodeSmallData(blob []byte) ([]byte, error) {
	if len(blob) == 0 || blob[0] != tagSmallData {
		return nil, fmt.Errorf("objects: not a SmallData blob: %w", attacaerr.MalformedObject)
	}
	return blob[1:], nil
}

// LargeDataChild is one entry of a LargeData object's child list: the
// byte size of the chunk it addresses, and the chunk's digest.
type LargeDataChild struct {
	Size   uint64
	Digest digest.Digest
}

// NewLargeData builds the Object for a multi-chunk blob. blob encodes
// (total_size, [(child_size, child_digest)]); refs is the listed child
// digests in order.
func NewLargeData(totalSize uint64, children []LargeDataChild) Object {
	var buf bytes.Buffer
	buf.WriteByte(tagLargeData)
	writeUvarint(&buf, totalSize)
	writeUvarint(&buf, uint64(len(children)))
	refs := make([]digest.Digest, len(children))
	for i, c := range children {
		writeUvarint(&buf, c.Size)
		buf.Write(c.Digest.Bytes())
		refs[i] = c.Digest
	}
	return Object{Blob: buf.Bytes(), Refs: refs}
}

// DecodeLargeData parses a LargeData blob back into its total size and
// child list. refs supplies the already-decoded child digests (from
// Object.Refs), since the raw blob alone doesn't carry algorithm
// identity.
func DecodeLargeData(blob []byte, refs []digest.Digest) (totalSize uint64, children []LargeDataChild, err error) {
	if len(blob) == 0 || blob[0] != tagLargeData {
		return 0, nil, fmt.Errorf("objects: not a LargeData blob: %w", attacaerr.MalformedObject)
	}
	r := bytes.NewReader(blob[1:])
	totalSize, err = binary.ReadUvarint(r)
	if err != nil {
		return 0, nil, fmt.Errorf("objects: read total size: %w", attacaerr.MalformedObject)
	}
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, nil, fmt.Errorf("objects: read child count: %w", attacaerr.MalformedObject)
	}
	if count != uint64(len(refs)) {
		return 0, nil, fmt.Errorf("objects: child count %d disagrees with %d refs: %w", count, len(refs), attacaerr.MalformedObject)
	}
	children = make([]LargeDataChild, count)
	for i := range children {
		size, err := binary.ReadUvarint(r)
		if err != nil {
			return 0, nil, fmt.Errorf("objects: read child %d size: %w", i, attacaerr.MalformedObject)
		}
		skip := make([]byte, len(refs[i].Bytes()))
		if n, err := r.Read(skip); err != nil || n != len(skip) {
			return 0, nil, fmt.Errorf("objects: read child %d digest: %w", i, attacaerr.MalformedObject)
		}
		children[i] = LargeDataChild{Size: size, Digest: refs[i]}
	}
	return totalSize, children, nil
}

// SubtreeEntryKind distinguishes a File leaf from an opaque Subtree
// reference within a directory listing.
type SubtreeEntryKind uint8

const (
	EntryFile SubtreeEntryKind = iota + 1
	EntrySubtree
)

// SubtreeEntry is one of the two variants a directory entry or an
// editable tree's opaque node can hold: a file with its hash and size,
// or an unexpanded subtree hash.
type SubtreeEntry struct {
	Kind   SubtreeEntryKind
	Digest digest.Digest
	Size   uint64 // meaningful only when Kind == EntryFile
}

// Hash returns the digest this entry points at, used uniformly whether
// the entry is a file or a subtree.
func (e SubtreeEntry) Hash() digest.Digest { return e.Digest }

// NewSubtree builds the Object for a directory: blob encodes a sorted
// name -> entry mapping; refs is the entries' digests in the same sorted
// order.
func NewSubtree(entries map[string]SubtreeEntry) Object {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.WriteByte(tagSubtree)
	writeUvarint(&buf, uint64(len(names)))
	refs := make([]digest.Digest, 0, len(names))
	for _, name := range names {
		e := entries[name]
		writeUvarint(&buf, uint64(len(name)))
		buf.WriteString(name)
		buf.WriteByte(byte(e.Kind))
		buf.Write(e.Digest.Bytes())
		writeUvarint(&buf, e.Size)
		refs = append(refs, e.Digest)
	}
	return Object{Blob: buf.Bytes(), Refs: refs}
}

// DecodeSubtree parses a Subtree blob back into its name -> entry
// mapping. refs supplies the already-decoded child digests.
func DecodeSubtree(blob []byte, refs []digest.Digest) (map[string]SubtreeEntry, error) {
	if len(blob) == 0 || blob[0] != tagSubtree {
		return nil, fmt.Errorf("objects: not a Subtree blob: %w", attacaerr.MalformedObject)
	}
	r := bytes.NewReader(blob[1:])
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("objects: read entry count: %w", attacaerr.MalformedObject)
	}
	if count != uint64(len(refs)) {
		return nil, fmt.Errorf("objects: entry count %d disagrees with %d refs: %w", count, len(refs), attacaerr.MalformedObject)
	}

	entries := make(map[string]SubtreeEntry, count)
	prevName := ""
	for i := uint64(0); i < count; i++ {
		nameLen, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("objects: read name length for entry %d: %w", i, attacaerr.MalformedObject)
		}
		nameBytes := make([]byte, nameLen)
		if n, err := r.Read(nameBytes); err != nil || uint64(n) != nameLen {
			return nil, fmt.Errorf("objects: read name for entry %d: %w", i, attacaerr.MalformedObject)
		}
		name := string(nameBytes)
		if i > 0 && name <= prevName {
			return nil, fmt.Errorf("objects: entries not sorted at %q: %w", name, attacaerr.MalformedObject)
		}
		prevName = name

		kindByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("objects: read kind for entry %q: %w", name, attacaerr.MalformedObject)
		}
		kind := SubtreeEntryKind(kindByte)
		if kind != EntryFile && kind != EntrySubtree {
			return nil, fmt.Errorf("objects: unknown entry kind %d for %q: %w", kindByte, name, attacaerr.MalformedObject)
		}

		skip := make([]byte, len(refs[i].Bytes()))
		if n, err := r.Read(skip); err != nil || n != len(skip) {
			return nil, fmt.Errorf("objects: read digest for entry %q: %w", name, attacaerr.MalformedObject)
		}

		size, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("objects: read size for entry %q: %w", name, attacaerr.MalformedObject)
		}

		entries[name] = SubtreeEntry{Kind: kind, Digest: refs[i], Size: size}
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("objects: trailing bytes after subtree entries: %w", attacaerr.MalformedObject)
	}
	return entries, nil
}

// Commit is the payload of a commit object: the subtree it records, its
// parents, a free-text message, and a timestamp.
type Commit struct {
	Subtree   digest.Digest
	Parents   []digest.Digest
	Message   string
	Timestamp time.Time
}

// NewCommit builds the Object for a commit: blob encodes (subtree_digest,
// [parent_digest], message, timestamp); refs is subtree_digest followed
// by parent_digests.
func NewCommit(c Commit) Object {
	var buf bytes.Buffer
	buf.WriteByte(tagCommit)
	buf.Write(c.Subtree.Bytes())
	writeUvarint(&buf, uint64(len(c.Parents)))
	for _, p := range c.Parents {
		buf.Write(p.Bytes())
	}
	msg := []byte(c.Message)
	writeUvarint(&buf, uint64(len(msg)))
	buf.Write(msg)
	buf.WriteString(c.Timestamp.UTC().Format(time.RFC3339Nano))

	refs := make([]digest.Digest, 0, 1+len(c.Parents))
	refs = append(refs, c.Subtree)
	refs = append(refs, c.Parents...)
	return Object{Blob: buf.Bytes(), Refs: refs}
}

// DecodeCommit parses a Commit blob back into its fields. refs supplies
// the already-decoded subtree+parent digests, in the same order NewCommit
// wrote them.
func DecodeCommit(blob []byte, refs []digest.Digest) (Commit, error) {
	if len(blob) == 0 || blob[0] != tagCommit {
		return Commit{}, fmt.Errorf("objects: not a Commit blob: %w", attacaerr.MalformedObject)
	}
	if len(refs) == 0 {
		return Commit{}, fmt.Errorf("objects: commit missing subtree ref: %w", attacaerr.MalformedObject)
	}
	subtree, parents := refs[0], refs[1:]

	r := bytes.NewReader(blob[1:])
	digestSize := len(subtree.Bytes())
	skip := make([]byte, digestSize)
	if n, err := r.Read(skip); err != nil || n != digestSize {
		return Commit{}, fmt.Errorf("objects: read subtree digest: %w", attacaerr.MalformedObject)
	}

	parentCount, err := binary.ReadUvarint(r)
	if err != nil || parentCount != uint64(len(parents)) {
		return Commit{}, fmt.Errorf("objects: parent count disagrees with refs: %w", attacaerr.MalformedObject)
	}
	for range parents {
		if n, err := r.Read(skip); err != nil || n != digestSize {
			return Commit{}, fmt.Errorf("objects: read parent digest: %w", attacaerr.MalformedObject)
		}
	}

	msgLen, err := binary.ReadUvarint(r)
	if err != nil {
		return Commit{}, fmt.Errorf("objects: read message length: %w", attacaerr.MalformedObject)
	}
	msgBytes := make([]byte, msgLen)
	if n, err := r.Read(msgBytes); err != nil || uint64(n) != msgLen {
		return Commit{}, fmt.Errorf("objects: read message: %w", attacaerr.MalformedObject)
	}

	rest := make([]byte, r.Len())
	if _, err := r.Read(rest); err != nil {
		return Commit{}, fmt.Errorf("objects: read timestamp: %w", attacaerr.MalformedObject)
	}
	ts, err := time.Parse(time.RFC3339Nano, string(rest))
	if err != nil {
		return Commit{}, fmt.Errorf("objects: parse timestamp: %w", attacaerr.MalformedObject)
	}

	return Commit{
		Subtree:   subtree,
		Parents:   parents,
		Message:   string(msgBytes),
		Timestamp: ts,
	}, nil
}
