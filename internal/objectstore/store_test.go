package objectstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/attaca-vcs/attaca/internal/attacaerr"
	"github.com/attaca-vcs/attaca/internal/config"
	"github.com/attaca-vcs/attaca/internal/digest"
	"github.com/attaca-vcs/attaca/internal/objcache"
	"github.com/attaca-vcs/attaca/internal/telemetry"
)

type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(key []byte) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

func (m *memKV) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

type memBranches struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemBranches() *memBranches { return &memBranches{data: make(map[string][]byte)} }

func (b *memBranches) Load(name string) ([]byte, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[name]
	return v, ok, nil
}

func (b *memBranches) CompareAndSwap(name string, expected, newValue []byte) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cur, ok := b.data[name]
	if !ok {
		cur = nil
	}
	if string(cur) != string(expected) {
		return false, nil
	}
	if newValue == nil {
		delete(b.data, name)
		return true, nil
	}
	b.data[name] = append([]byte(nil), newValue...)
	return true, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	cache, err := objcache.New(newMemKV(), 64, telemetry.NewNop())
	if err != nil {
		t.Fatalf("objcache.New: %v", err)
	}
	return New(cache, newMemBranches(), digest.SHA3_256, telemetry.NewNop())
}

func TestHandleBuilderFinishInstallsAndResolves(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	child, err := s.NewHandleBuilder().Write([]byte("leaf")).Finish(ctx)
	if err != nil {
		t.Fatalf("child Finish: %v", err)
	}

	parent, err := s.NewHandleBuilder().Write([]byte("parent")).AddRef(child).Finish(ctx)
	if err != nil {
		t.Fatalf("parent Finish: %v", err)
	}

	resolved, err := s.Resolve(ctx, parent.Digest())
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !resolved.Equal(parent) {
		t.Fatal("Resolve did not return the installed handle")
	}

	obj, err := resolved.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(obj.Refs) != 1 || obj.Refs[0] != child.Digest() {
		t.Fatalf("unexpected refs: %v", obj.Refs)
	}
}

func TestOpenBuildsStoreFromConfigAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "attaca.db")
	ctx := context.Background()

	s, err := Open(path, telemetry.NewNop(), config.WithAlgorithm(digest.BLAKE3_256), config.WithObjectCacheSize(8))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if s.Algorithm() != digest.BLAKE3_256 {
		t.Fatalf("expected configured algorithm BLAKE3_256, got %v", s.Algorithm())
	}

	h, err := s.NewHandleBuilder().Write([]byte("payload")).Finish(ctx)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(path, telemetry.NewNop(), config.WithAlgorithm(digest.BLAKE3_256))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	resolved, err := reopened.Resolve(ctx, h.Digest())
	if err != nil {
		t.Fatalf("Resolve after reopen: %v", err)
	}
	if resolved == nil {
		t.Fatal("expected the installed object to persist across Close/Open")
	}
	obj, err := resolved.Load(ctx)
	if err != nil {
		t.Fatalf("Load after reopen: %v", err)
	}
	if string(obj.Blob) != "payload" {
		t.Fatalf("unexpected blob after reopen: %q", obj.Blob)
	}
}

func TestResolveReturnsNilOnGenuineMiss(t *testing.T) {
	s := newTestStore(t)
	neverInstalled := digest.SHA3_256.Hash([]byte("never installed"))

	h, err := s.Resolve(context.Background(), neverInstalled)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if h != nil {
		t.Fatalf("expected nil handle for a digest that was never installed, got %v", h)
	}
}

func TestResolveUnsupportedAlgorithm(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Resolve(context.Background(), digest.Digest{}); !attacaerr.Is(err, attacaerr.UnsupportedDigest) {
		t.Fatalf("expected UnsupportedDigest, got %v", err)
	}
}

// Branch compare-and-swap scenario: initial set succeeds, a stale
// expectation is rejected, and the correct expectation advances the
// branch.
func TestBranchCompareAndSwap(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	h1, err := s.NewHandleBuilder().Write([]byte("commit1")).Finish(ctx)
	if err != nil {
		t.Fatalf("Finish h1: %v", err)
	}

	if err := s.SwapBranch(ctx, "main", nil, h1); err != nil {
		t.Fatalf("initial SwapBranch: %v", err)
	}

	loaded, err := s.LoadBranch(ctx, "main")
	if err != nil {
		t.Fatalf("LoadBranch: %v", err)
	}
	if loaded == nil || !loaded.Equal(h1) {
		t.Fatalf("branch does not point at h1: %v", loaded)
	}

	h2, err := s.NewHandleBuilder().Write([]byte("commit2")).AddRef(h1).Finish(ctx)
	if err != nil {
		t.Fatalf("Finish h2: %v", err)
	}

	if err := s.SwapBranch(ctx, "main", nil, h2); !attacaerr.Is(err, attacaerr.BranchConflict) {
		t.Fatalf("expected BranchConflict on stale expectation, got %v", err)
	}

	if err := s.SwapBranch(ctx, "main", h1, h2); err != nil {
		t.Fatalf("SwapBranch with correct expectation: %v", err)
	}

	loaded, err = s.LoadBranch(ctx, "main")
	if err != nil {
		t.Fatalf("LoadBranch after swap: %v", err)
	}
	if loaded == nil || !loaded.Equal(h2) {
		t.Fatalf("branch does not point at h2: %v", loaded)
	}
}

func TestLoadBranchNeverSet(t *testing.T) {
	s := newTestStore(t)
	h, err := s.LoadBranch(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("LoadBranch: %v", err)
	}
	if h != nil {
		t.Fatal("expected nil handle for a branch that was never set")
	}
}

func TestNoBranchesRejectsSwap(t *testing.T) {
	var nb NoBranches
	if _, _, err := nb.Load("x"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := nb.CompareAndSwap("x", nil, []byte("y")); !attacaerr.Is(err, attacaerr.Unimplemented) {
		t.Fatalf("expected Unimplemented, got %v", err)
	}
}
