package objects

import (
	"bytes"
	"testing"

	"github.com/attaca-vcs/attaca/internal/digest"
)

func TestCanonicalRoundTrip(t *testing.T) {
	algo := digest.SHA3_256
	a := Digest(algo, NewSmallData([]byte("A")))
	b := Digest(algo, NewSmallData([]byte("B")))

	o := Object{Blob: []byte("parent"), Refs: []digest.Digest{a, b}}
	encoded := Encode(algo, o)

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.Equal(decoded.Blob, o.Blob) {
		t.Fatalf("blob mismatch: got %q want %q", decoded.Blob, o.Blob)
	}
	if len(decoded.Refs) != 2 || decoded.Refs[0] != a || decoded.Refs[1] != b {
		t.Fatalf("refs mismatch: got %v want [%v %v]", decoded.Refs, a, b)
	}
}

func TestDigestStability(t *testing.T) {
	algo := digest.SHA3_256
	o1 := Object{Blob: []byte("hello"), Refs: nil}
	o2 := Object{Blob: []byte("hello"), Refs: nil}
	if Digest(algo, o1) != Digest(algo, o2) {
		t.Fatal("equal objects produced different digests")
	}
}

func TestEncodeEmptyRefsStillEmbedsAlgorithm(t *testing.T) {
	algo := digest.SHA3_256
	o := Object{Blob: []byte("hello\n")}
	encoded := Encode(algo, o)

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Refs) != 0 {
		t.Fatalf("expected no refs, got %d", len(decoded.Refs))
	}
}

func TestDecodeTruncatedBlobLength(t *testing.T) {
	if _, err := Decode([]byte{0xff, 0xff, 0xff, 0xff, 0xff}); err == nil {
		t.Fatal("expected error decoding truncated/overflowing blob length")
	}
}

func TestDecodeUnsupportedAlgorithm(t *testing.T) {
	algo := digest.SHA3_256
	o := Object{Blob: []byte("x")}
	encoded := Encode(algo, o)

	// Corrupt the algorithm name in place: "sha3-256\x00" -> "sha9-256\x00"
	corrupted := bytes.Replace(encoded, []byte("sha3-256\x00"), []byte("sha9-256\x00"), 1)
	if bytes.Equal(corrupted, encoded) {
		t.Fatal("test setup failed to corrupt algorithm name")
	}
	if _, err := Decode(corrupted); err == nil {
		t.Fatal("expected error decoding object with unknown algorithm")
	}
}

func TestSmallDataRoundTripThroughCanonicalEncoding(t *testing.T) {
	algo := digest.SHA3_256
	o := NewSmallData([]byte("hello\n"))
	encoded := Encode(algo, o)

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	chunk, err := DecodeSmallData(decoded.Blob)
	if err != nil {
		t.Fatalf("DecodeSmallData: %v", err)
	}
	if string(chunk) != "hello\n" {
		t.Fatalf("chunk mismatch: got %q", chunk)
	}
	if len(decoded.Refs) != 0 {
		t.Fatal("SmallData must have no refs")
	}

	d := Digest(algo, Object{Blob: o.Blob, Refs: nil})
	if d != Digest(algo, decoded) {
		t.Fatal("digest is not stable across encode/decode")
	}
}

func TestReferenceGraphRoundTrip(t *testing.T) {
	algo := digest.SHA3_256
	oa := NewSmallData([]byte("A"))
	ob := NewSmallData([]byte("B"))
	da := Digest(algo, oa)
	db := Digest(algo, ob)

	parent := Object{Blob: nil, Refs: []digest.Digest{da, db}}
	encoded := Encode(algo, parent)
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded.Refs) != 2 || decoded.Refs[0] != da || decoded.Refs[1] != db {
		t.Fatalf("expected refs [%v %v], got %v", da, db, decoded.Refs)
	}
}
