// Package digest implements the fixed-width cryptographic digests that
// attaca uses as content addresses. A Digest packs its algorithm's name
// and raw hash bytes into one comparable, hashable, totally ordered value,
// so it can be used directly as a map key without a wrapper type.
package digest

import (
	"crypto/sha3"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	"lukechampine.com/blake3"
)

// Algorithm names a hash family supported by a store. The zero value is
// not a valid Algorithm.
type Algorithm struct {
	name string
	size int
	new  func() hash.Hash
}

// Name returns the algorithm's on-disk identifier, embedded in every
// EncodedRefs block so decoders can validate before reading fixed-width
// digests.
func (a Algorithm) Name() string { return a.name }

// Size returns the fixed digest size in bytes for this algorithm.
func (a Algorithm) Size() int { return a.size }

func (a Algorithm) newHash() hash.Hash { return a.new() }

// Hash computes the digest of data under this algorithm.
func (a Algorithm) Hash(data []byte) Digest {
	w := NewWriter(a)
	w.Write(data)
	return w.Sum()
}

// IsZero reports whether a is the unset zero value.
func (a Algorithm) IsZero() bool { return a.new == nil }

var (
	// SHA3_256 is the store's default digest algorithm, using the
	// standard library's FIPS 202 SHA3-256 implementation.
	SHA3_256 = Algorithm{name: "sha3-256", size: 32, new: func() hash.Hash { return sha3.New256() }}

	// BLAKE3_256 trades cryptographic strength against a malicious
	// producer for speed; a store may opt into it when that tradeoff
	// is acceptable.
	BLAKE3_256 = Algorithm{name: "blake3-256", size: 32, new: func() hash.Hash { return blake3.New(32, nil) }}
)

var registry = map[string]Algorithm{
	SHA3_256.name:   SHA3_256,
	BLAKE3_256.name: BLAKE3_256,
}

// Lookup resolves an algorithm by its on-disk name. The ok result is false
// when the name is not one this binary was built to support — the caller
// should surface attacaerr.UnsupportedDigest.
func Lookup(name string) (Algorithm, bool) {
	a, ok := registry[name]
	return a, ok
}

// Writer accumulates bytes and finalises them to a Digest, avoiding the
// need to materialise a buffer to digest a canonical encoding.
type Writer struct {
	algo Algorithm
	h    hash.Hash
}

// NewWriter creates a Writer for the given algorithm.
func NewWriter(algo Algorithm) *Writer {
	return &Writer{algo: algo, h: algo.newHash()}
}

// Write implements io.Writer.
func (w *Writer) Write(p []byte) (int, error) { return w.h.Write(p) }

// Sum finalises the accumulated bytes into a Digest.
func (w *Writer) Sum() Digest {
	sum := w.h.Sum(nil)
	return Digest{value: w.algo.name + "\x00" + string(sum)}
}

// Digest is a fixed-size, immutable, comparable value identifying an
// object by the digest of its canonical encoding. Two digests compare
// equal iff their byte representations (including algorithm) are equal.
type Digest struct {
	value string
}

// Zero is the absent digest, used where a nilable handle would otherwise
// be required (e.g. "no previous branch value").
var Zero Digest

// IsZero reports whether d is the unset zero value.
func (d Digest) IsZero() bool { return d.value == "" }

// FromBytes builds a Digest from algorithm-dependent raw bytes. It fails
// if the byte slice is not exactly algo.Size() bytes long — from_bytes
// and as_bytes are bijective on the fixed size.
func FromBytes(algo Algorithm, raw []byte) (Digest, error) {
	if len(raw) != algo.size {
		return Digest{}, fmt.Errorf("digest: %s expects %d bytes, got %d", algo.name, algo.size, len(raw))
	}
	return Digest{value: algo.name + "\x00" + string(raw)}, nil
}

// Algorithm returns the algorithm this digest was computed under, if it
// is one this binary recognises.
func (d Digest) Algorithm() (Algorithm, bool) {
	name, _, ok := d.split()
	if !ok {
		return Algorithm{}, false
	}
	return Lookup(name)
}

// AlgorithmName returns the raw algorithm name embedded in the digest,
// regardless of whether this binary supports it.
func (d Digest) AlgorithmName() string {
	name, _, ok := d.split()
	if !ok {
		return ""
	}
	return name
}

// Bytes returns the raw hash bytes (without the algorithm tag).
func (d Digest) Bytes() []byte {
	_, raw, ok := d.split()
	if !ok {
		return nil
	}
	return []byte(raw)
}

func (d Digest) split() (name, raw string, ok bool) {
	i := strings.IndexByte(d.value, 0)
	if i < 0 {
		return "", "", false
	}
	return d.value[:i], d.value[i+1:], true
}

// String renders the digest as "algorithm:hex".
func (d Digest) String() string {
	name, raw, ok := d.split()
	if !ok {
		return "<zero digest>"
	}
	return name + ":" + hex.EncodeToString([]byte(raw))
}

// Compare provides the digest's total lexicographic order.
func (d Digest) Compare(other Digest) int {
	return strings.Compare(d.value, other.value)
}

// Less reports whether d sorts before other.
func (d Digest) Less(other Digest) bool { return d.Compare(other) < 0 }
