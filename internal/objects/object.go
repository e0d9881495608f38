// Package objects implements attaca's canonical object encoding: the
// exact byte representation that digests are computed over, and the four
// higher-level object kinds layered on top of it (SmallData, LargeData,
// Subtree, Commit).
package objects

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/attaca-vcs/attaca/internal/attacaerr"
	"github.com/attaca-vcs/attaca/internal/digest"
)

// Object is the canonical unit stored in the KV database: an ordered byte
// blob plus an ordered sequence of child digests. The pair is immutable
// once its digest has been computed.
type Object struct {
	Blob []byte
	Refs []digest.Digest
}

// Digest computes the content address of o: the digest of its canonical
// encoding under algo.
func Digest(algo digest.Algorithm, o Object) digest.Digest {
	return algo.Hash(Encode(algo, o))
}

// Encode produces the canonical byte encoding:
//
//	object := leb128_u64(|blob|) || blob || encoded_refs
//	encoded_refs := algo_name_nul || leb128_u64(digest_size) ||
//	                leb128_u64(|refs|) || concat(ref_bytes)
//
// The algorithm name and digest size are always written, even when refs
// is empty, so every encoding is independently decodable.
func Encode(algo digest.Algorithm, o Object) []byte {
	var buf bytes.Buffer
	writeUvarint(&buf, uint64(len(o.Blob)))
	buf.Write(o.Blob)

	buf.WriteString(algo.Name())
	buf.WriteByte(0)
	writeUvarint(&buf, uint64(algo.Size()))
	writeUvarint(&buf, uint64(len(o.Refs)))
	for _, r := range o.Refs {
		buf.Write(r.Bytes())
	}
	return buf.Bytes()
}

// Decode parses canonical bytes back into an Object. It fails with
// attacaerr.MalformedObject on truncation, length overflow, or ref-block
// inconsistency, and with attacaerr.UnsupportedDigest when the embedded
// algorithm name is not one this binary recognises.
func Decode(data []byte) (Object, error) {
	r := bytes.NewReader(data)

	blobLen, err := binary.ReadUvarint(r)
	if err != nil {
		return Object{}, fmt.Errorf("objects: read blob length: %w", attacaerr.MalformedObject)
	}
	if blobLen > uint64(r.Len()) {
		return Object{}, fmt.Errorf("objects: blob length %d exceeds remaining %d bytes: %w", blobLen, r.Len(), attacaerr.MalformedObject)
	}
	blob := make([]byte, blobLen)
	if _, err := r.Read(blob); err != nil {
		return Object{}, fmt.Errorf("objects: read blob: %w", attacaerr.MalformedObject)
	}

	algoName, err := readNulString(r)
	if err != nil {
		return Object{}, fmt.Errorf("objects: read algorithm name: %w", attacaerr.MalformedObject)
	}
	algo, ok := digest.Lookup(algoName)
	if !ok {
		return Object{}, fmt.Errorf("objects: unknown digest algorithm %q: %w", algoName, attacaerr.UnsupportedDigest)
	}

	digestSize, err := binary.ReadUvarint(r)
	if err != nil || digestSize != uint64(algo.Size()) {
		return Object{}, fmt.Errorf("objects: inconsistent digest size for %q: %w", algoName, attacaerr.MalformedObject)
	}

	refCount, err := binary.ReadUvarint(r)
	if err != nil {
		return Object{}, fmt.Errorf("objects: read ref count: %w", attacaerr.MalformedObject)
	}
	refs := make([]digest.Digest, refCount)
	for i := range refs {
		raw := make([]byte, digestSize)
		if n, err := r.Read(raw); err != nil || uint64(n) != digestSize {
			return Object{}, fmt.Errorf("objects: truncated ref %d: %w", i, attacaerr.MalformedObject)
		}
		d, err := digest.FromBytes(algo, raw)
		if err != nil {
			return Object{}, fmt.Errorf("objects: ref %d: %w", i, attacaerr.MalformedObject)
		}
		refs[i] = d
	}

	if r.Len() != 0 {
		return Object{}, fmt.Errorf("objects: %d trailing bytes after refs: %w", r.Len(), attacaerr.MalformedObject)
	}

	return Object{Blob: blob, Refs: refs}, nil
}

func writeUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func readNulString(r *bytes.Reader) (string, error) {
	var out bytes.Buffer
	for {
		b, err := r.ReadByte()
		if err != nil {
			return "", err
		}
		if b == 0 {
			return out.String(), nil
		}
		out.WriteByte(b)
	}
}
