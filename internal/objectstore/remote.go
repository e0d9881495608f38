package objectstore

import (
	"context"

	"github.com/attaca-vcs/attaca/internal/attacaerr"
)

// RemoteBackend is the interface a networked peer implements to exchange
// objects with this store. No implementation lives in this module; wiring
// a concrete transport (HTTP, gRPC, a message broker) is left to callers
// that need replication.
type RemoteBackend interface {
	WriteObject(ctx context.Context, digest []byte, encoded []byte) error
	ReadObject(ctx context.Context, digest []byte) (encoded []byte, ok bool, err error)
}

// NoBranches is a kvstore.Branches for stores that only ever address
// objects by digest and never need named branches: Load reports every
// branch absent, and CompareAndSwap always fails with
// attacaerr.Unimplemented.
type NoBranches struct{}

// Load always reports the branch absent with no error, since no branch
// has ever been nor can ever be set.
func (NoBranches) Load(name string) ([]byte, bool, error) {
	return nil, false, nil
}

// CompareAndSwap always fails.
func (NoBranches) CompareAndSwap(name string, expected, newValue []byte) (bool, error) {
	return false, attacaerr.Unimplemented
}
