// Package kvstore implements the external key-value database that the
// object cache and branch storage are layered over, backed by
// go.etcd.io/bbolt, generalized from a fixed hash-mapping bucket layout
// into a generic digest-keyed object store plus a branch CAS bucket.
package kvstore

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"
	"go.etcd.io/bbolt"

	"github.com/attaca-vcs/attaca/internal/attacaerr"
)

var (
	bucketObjects  = []byte("objects")
	bucketBranches = []byte("branches")
)

// KV is the external key-value contract: a get and a put over raw
// digest-keyed bytes, safe for concurrent use.
type KV interface {
	// Get returns the stored value, or (nil, nil) if key is absent.
	Get(key []byte) ([]byte, error)
	// Put stores value under key. Overwriting with identical bytes is
	// legal and idempotent.
	Put(key, value []byte) error
}

// Branches is the branch storage contract: a persistent name -> digest
// map with compare-and-swap.
type Branches interface {
	// Load returns the branch's current value, or ok=false if the
	// branch has never been set.
	Load(name string) (value []byte, ok bool, err error)
	// CompareAndSwap succeeds (ok=true) iff the branch's current value
	// equals expected (nil meaning "absent"); on success it stores
	// newValue.
	CompareAndSwap(name string, expected, newValue []byte) (ok bool, err error)
}

// compressedPrefix marks a value as zstd-compressed so Get can tell
// compressed values apart from ones written below the threshold.
const compressedPrefix = 0x01
const rawPrefix = 0x00

// BoltDB implements KV and Branches over a single bbolt database file.
// Values of at least compressionThreshold bytes are zstd-compressed
// before the bbolt Put; a threshold of zero or less disables compression.
type BoltDB struct {
	db                   *bbolt.DB
	compressionThreshold int
	encoder              *zstd.Encoder
	decoder              *zstd.Decoder
}

// Open opens (creating if necessary) a bbolt database at path and
// ensures its buckets exist.
func Open(path string, mode os.FileMode, compressionThreshold int) (*BoltDB, error) {
	db, err := bbolt.Open(path, mode, nil)
	if err != nil {
		return nil, fmt.Errorf("kvstore: open %s: %w", path, errors.Join(err, attacaerr.StorageError))
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketObjects); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketBranches)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kvstore: create buckets: %w", errors.Join(err, attacaerr.StorageError))
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kvstore: zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("kvstore: zstd decoder: %w", err)
	}

	return &BoltDB{db: db, compressionThreshold: compressionThreshold, encoder: enc, decoder: dec}, nil
}

// Close closes the underlying bbolt database.
func (b *BoltDB) Close() error {
	b.decoder.Close()
	return b.db.Close()
}

// Get implements KV.Get.
func (b *BoltDB) Get(key []byte) ([]byte, error) {
	var raw []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketObjects).Get(key)
		if v == nil {
			return nil
		}
		raw = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("kvstore: get: %w", errors.Join(err, attacaerr.StorageError))
	}
	if raw == nil {
		return nil, nil
	}
	return b.decode(raw)
}

// Put implements KV.Put.
func (b *BoltDB) Put(key, value []byte) error {
	encoded := b.encodeValue(value)
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketObjects).Put(key, encoded)
	})
	if err != nil {
		return fmt.Errorf("kvstore: put: %w", errors.Join(err, attacaerr.StorageError))
	}
	return nil
}

func (b *BoltDB) encodeValue(value []byte) []byte {
	if len(value) < b.compressionThreshold || b.compressionThreshold <= 0 {
		out := make([]byte, 0, len(value)+1)
		out = append(out, rawPrefix)
		return append(out, value...)
	}
	compressed := b.encoder.EncodeAll(value, make([]byte, 0, len(value)))
	out := make([]byte, 0, len(compressed)+1)
	out = append(out, compressedPrefix)
	return append(out, compressed...)
}

func (b *BoltDB) decode(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return nil, fmt.Errorf("kvstore: empty stored value: %w", attacaerr.MalformedObject)
	}
	prefix, payload := stored[0], stored[1:]
	switch prefix {
	case rawPrefix:
		return payload, nil
	case compressedPrefix:
		out, err := b.decoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("kvstore: zstd decode: %w", errors.Join(err, attacaerr.StorageError))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("kvstore: unknown value prefix %d: %w", prefix, attacaerr.MalformedObject)
	}
}

// Load implements Branches.Load.
func (b *BoltDB) Load(name string) ([]byte, bool, error) {
	var value []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketBranches).Get([]byte(name))
		if v == nil {
			return nil
		}
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("kvstore: load branch %q: %w", name, errors.Join(err, attacaerr.StorageError))
	}
	return value, value != nil, nil
}

// CompareAndSwap implements Branches.CompareAndSwap. bbolt serializes all
// writers against a single database-wide lock, so this transaction is
// linearisable per branch name (indeed per database).
func (b *BoltDB) CompareAndSwap(name string, expected, newValue []byte) (bool, error) {
	var swapped bool
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketBranches)
		current := bucket.Get([]byte(name))
		if !bytes.Equal(current, expected) {
			swapped = false
			return nil
		}
		if newValue == nil {
			swapped = true
			return bucket.Delete([]byte(name))
		}
		swapped = true
		return bucket.Put([]byte(name), newValue)
	})
	if err != nil {
		return false, fmt.Errorf("kvstore: compare-and-swap branch %q: %w", name, errors.Join(err, attacaerr.StorageError))
	}
	return swapped, nil
}
