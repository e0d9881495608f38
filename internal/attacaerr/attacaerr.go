// Package attacaerr defines the error kinds the core surfaces to callers,
// as plain sentinel errors wrapped with fmt.Errorf("...: %w", ...).
package attacaerr

import "errors"

var (
	// MalformedObject means canonical decode failed or lengths were
	// inconsistent.
	MalformedObject = errors.New("attaca: malformed object")

	// UnsupportedDigest means the caller supplied a digest whose
	// algorithm this store does not implement.
	UnsupportedDigest = errors.New("attaca: unsupported digest algorithm")

	// StorageError means the underlying KV backend failed (I/O,
	// permission, corruption).
	StorageError = errors.New("attaca: storage error")

	// HandleDangling means a handle's digest is not present in the
	// store.
	HandleDangling = errors.New("attaca: handle dangling")

	// BranchConflict means the compare-and-set precondition on
	// SwapBranch failed.
	BranchConflict = errors.New("attaca: branch conflict")

	// Unimplemented means the operation is intentionally not provided
	// by this store.
	Unimplemented = errors.New("attaca: unimplemented")
)

// Is reports whether err wraps target, delegating to errors.Is. Exported
// purely so callers don't have to import both errors and attacaerr.
func Is(err, target error) bool { return errors.Is(err, target) }
