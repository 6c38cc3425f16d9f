package lstore_test

import (
	"context"
	"errors"
	"github.com/ValentinKolb/stacKV/lib/db"
	"github.com/ValentinKolb/stacKV/lib/db/engines/archive"
	"github.com/ValentinKolb/stacKV/lib/db/engines/bolt"
	"github.com/ValentinKolb/stacKV/lib/db/engines/file"
	"github.com/ValentinKolb/stacKV/lib/store"
	"github.com/ValentinKolb/stacKV/lib/store/lstore"
	storetesting "github.com/ValentinKolb/stacKV/lib/store/testing"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"path/filepath"
	"sync"
	"testing"
)

// leaves returns one constructor per engine, each creating a fresh store with the given fallback
func leaves() map[string]func(t *testing.T, fallback store.IStore) store.IStore {
	return map[string]func(t *testing.T, fallback store.IStore) store.IStore{
		"memory": func(t *testing.T, fallback store.IStore) store.IStore {
			return lstore.NewMemoryStore(fallback)
		},
		"file": func(t *testing.T, fallback store.IStore) store.IStore {
			return lstore.NewFileStore(file.DBOptions{Fs: afero.NewMemMapFs(), Dir: "/prefs"}, fallback)
		},
		"archive": func(t *testing.T, fallback store.IStore) store.IStore {
			s, err := lstore.NewArchiveStore(archive.DBOptions{Fs: afero.NewMemMapFs(), Path: "/prefs.zip", FlushThreshold: 2}, fallback)
			if err != nil {
				t.Fatalf("NewArchiveStore failed: %v", err)
			}
			return s
		},
		"bolt": func(t *testing.T, fallback store.IStore) store.IStore {
			s, err := lstore.NewBoltStore(bolt.DBOptions{Path: filepath.Join(t.TempDir(), "prefs.db")}, fallback)
			if err != nil {
				t.Fatalf("NewBoltStore failed: %v", err)
			}
			return s
		},
	}
}

func TestReadThroughCaching(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range leaves() {
		t.Run(name, func(t *testing.T) {
			slow := lstore.NewMemoryStore(nil)
			if _, _, err := slow.Set(ctx, "only-below", []byte("v")); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			fast := newStore(t, slow)
			defer fast.Close()

			val, ok, err := fast.Get(ctx, "only-below")
			if err != nil || !ok || string(val) != "v" {
				t.Fatalf("expected value from fallback, got %q ok=%v err=%v", val, ok, err)
			}

			// detach the fallback, the value must have been cached
			fast.SetFallback(nil)
			val, ok, err = fast.Get(ctx, "only-below")
			if err != nil || !ok || string(val) != "v" {
				t.Errorf("expected cached value after detaching the fallback, got %q ok=%v err=%v", val, ok, err)
			}
		})
	}
}

// gatedStore blocks the first Get after reading from inner until release is closed
type gatedStore struct {
	store.IStore
	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func newGatedStore(inner store.IStore) *gatedStore {
	return &gatedStore{IStore: inner, read: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	value, ok, err := g.IStore.Get(ctx, key)
	g.once.Do(func() {
		close(g.read)
		<-g.release
	})
	return value, ok, err
}

func TestReadThroughDoesNotOverwriteNewerWrite(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range leaves() {
		t.Run(name, func(t *testing.T) {
			below := lstore.NewMemoryStore(nil)
			if _, _, err := below.Set(ctx, "k", []byte("v0")); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			gated := newGatedStore(below)
			top := newStore(t, gated)
			defer top.Close()

			done := make(chan []byte)
			go func() {
				val, _, _ := top.Get(ctx, "k")
				done <- val
			}()

			<-gated.read
			if _, _, err := top.Set(ctx, "k", []byte("v1")); err != nil {
				t.Fatalf("Set failed: %v", err)
			}
			close(gated.release)
			if val := <-done; string(val) != "v0" {
				t.Errorf("the concurrent read should return what it read, got %q", val)
			}

			top.SetFallback(nil)
			val, ok, err := top.Get(ctx, "k")
			if err != nil || !ok || string(val) != "v1" {
				t.Errorf("the completed write must win over the read-through fill, got %q ok=%v err=%v", val, ok, err)
			}
		})
	}
}

func TestOldValueContract(t *testing.T) {
	ctx := context.Background()
	for name, newStore := range leaves() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t, lstore.NewMemoryStore(nil))
			defer s.Close()

			old, existed, err := s.Set(ctx, "k", []byte("v1"))
			if err != nil || existed || old != nil {
				t.Fatalf("first Set should report no old value, got %q existed=%v err=%v", old, existed, err)
			}
			old, existed, err = s.Set(ctx, "k", []byte("v2"))
			if err != nil || !existed || string(old) != "v1" {
				t.Errorf("second Set should return v1, got %q existed=%v err=%v", old, existed, err)
			}
		})
	}
}

func TestOldValueFromFallback(t *testing.T) {
	ctx := context.Background()
	below := lstore.NewMemoryStore(nil)
	if _, _, err := below.Set(ctx, "k", []byte("below")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	top := lstore.NewMemoryStore(below)
	defer top.Close()

	old, existed, err := top.Set(ctx, "k", []byte("new"))
	if err != nil || !existed || string(old) != "below" {
		t.Errorf("expected the fallback's old value, got %q existed=%v err=%v", old, existed, err)
	}

	// the own prior value wins
	if _, _, err := below.Set(ctx, "k", []byte("diverged")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	old, _, _ = top.Set(ctx, "k", []byte("newer"))
	if string(old) != "new" {
		t.Errorf("expected the own old value new, got %q", old)
	}
}

func TestEmptyValueIsPresent(t *testing.T) {
	ctx := context.Background()
	below := lstore.NewMemoryStore(nil)
	if _, _, err := below.Set(ctx, "empty", []byte{}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	top := lstore.NewMemoryStore(below)
	defer top.Close()

	val, ok, err := top.Get(ctx, "empty")
	if err != nil || !ok || len(val) != 0 {
		t.Fatalf("expected an empty value to be found, got %q ok=%v err=%v", val, ok, err)
	}
	top.SetFallback(nil)
	if ok, _ := top.ContainsKey(ctx, "empty"); !ok {
		t.Errorf("an empty value must be cached like any other value")
	}
}

func TestRemoveOnlyInFallback(t *testing.T) {
	ctx := context.Background()
	below := lstore.NewMemoryStore(nil)
	if _, _, err := below.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	top := lstore.NewMemoryStore(below)
	defer top.Close()

	removed, err := top.Remove(ctx, "k")
	if err != nil || !removed {
		t.Fatalf("expected removal in the fallback to count, got %v err=%v", removed, err)
	}
	if ok, _ := top.ContainsKey(ctx, "k"); ok {
		t.Errorf("key should be gone from the chain")
	}
	if removed, _ := top.Remove(ctx, "k"); removed {
		t.Errorf("removing an absent key must return false")
	}
}

func TestListKeysUnion(t *testing.T) {
	ctx := context.Background()
	below := lstore.NewMemoryStore(nil)
	top := lstore.NewMemoryStore(below)
	defer top.Close()

	_, _, _ = below.Set(ctx, "b", []byte("1"))
	_, _, _ = below.Set(ctx, "c", []byte("1"))
	_, _, _ = top.Set(ctx, "a", []byte("1"))
	_, _, _ = top.Set(ctx, "c", []byte("2"))

	keys, err := top.ListKeys(ctx)
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, keys); diff != "" {
		t.Errorf("ListKeys mismatch (-want +got):\n%s", diff)
	}

	if err := top.RemoveAll(ctx); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if keys, _ := below.ListKeys(ctx); len(keys) != 0 {
		t.Errorf("RemoveAll must clear the fallback, got %v", keys)
	}
}

func TestFallbackErrorsPropagate(t *testing.T) {
	ctx := context.Background()
	remote := storetesting.NewFlakyStore()
	remote.SetFailing(true)
	top := lstore.NewMemoryStore(remote)
	defer top.Close()

	if _, _, err := top.Get(ctx, "k"); !errors.Is(err, storetesting.ErrTimeout) {
		t.Errorf("expected the fallback error, got %v", err)
	}
	if _, _, err := top.Set(ctx, "k", []byte("v")); !errors.Is(err, storetesting.ErrTimeout) {
		t.Errorf("expected the fallback error, got %v", err)
	}
	// the local write happened before the fallback failed
	top.SetFallback(nil)
	if ok, _ := top.ContainsKey(ctx, "k"); !ok {
		t.Errorf("expected the value to be written locally")
	}
}

func TestCloseIsTransitiveAndIdempotent(t *testing.T) {
	ctx := context.Background()
	below := lstore.NewMemoryStore(nil)
	top := lstore.NewMemoryStore(below)

	if err := top.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := top.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
	if !below.Closed() {
		t.Errorf("Close must close the fallback")
	}
	if _, _, err := top.Get(ctx, "k"); !errors.Is(err, store.ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

// readOnlyDB is an engine that only supports reads
type readOnlyDB struct {
	db.KVDB
}

func (readOnlyDB) SupportsFeature(feature db.Feature) bool {
	return db.FeaturesReadOnly&feature == feature
}

func TestUnsupportedOperations(t *testing.T) {
	ctx := context.Background()
	mem, err := lstore.NewLocalStore(func() (db.KVDB, error) {
		return readOnlyDB{lstore.NewMemoryStore(nil).DB()}, nil
	}, nil)
	if err != nil {
		t.Fatalf("NewLocalStore failed: %v", err)
	}
	defer mem.Close()

	if _, _, err := mem.Set(ctx, "k", []byte("v")); !errors.Is(err, store.ErrUnsupported) {
		t.Errorf("Set: expected ErrUnsupported, got %v", err)
	}
	if _, err := mem.Remove(ctx, "k"); !errors.Is(err, store.ErrUnsupported) {
		t.Errorf("Remove: expected ErrUnsupported, got %v", err)
	}
	if err := mem.RemoveAll(ctx); !errors.Is(err, store.ErrUnsupported) {
		t.Errorf("RemoveAll: expected ErrUnsupported, got %v", err)
	}
	if _, ok, err := mem.Get(ctx, "k"); err != nil || ok {
		t.Errorf("Get should be supported, got ok=%v err=%v", ok, err)
	}
}

func TestFactoryError(t *testing.T) {
	boom := errors.New("boom")
	if _, err := lstore.NewLocalStore(func() (db.KVDB, error) { return nil, boom }, nil); !errors.Is(err, boom) {
		t.Errorf("expected the factory error, got %v", err)
	}
}
