package archive

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/stacKV/lib/db"
	dbtesting "github.com/ValentinKolb/stacKV/lib/db/testing"
	"github.com/spf13/afero"
	"path/filepath"
	"sort"
	"testing"
)

func newTestDB(t testing.TB, fs afero.Fs, threshold int) db.KVDB {
	t.Helper()
	database, err := NewArchiveDB(DBOptions{Fs: fs, Path: "/data/store.zip", FlushThreshold: threshold})
	if err != nil {
		t.Fatalf("NewArchiveDB failed: %v", err)
	}
	return database
}

func Test(t *testing.T) {
	for _, threshold := range []int{1, 3, 1000} {
		dbtesting.RunKVDBTests(t, fmt.Sprintf("ArchiveDB(threshold=%d)", threshold), func() db.KVDB {
			return newTestDB(t, afero.NewMemMapFs(), threshold)
		})
	}
	dbtesting.RunKVDBTests(t, "ArchiveDB(os)", func() db.KVDB {
		database, err := NewArchiveDB(DBOptions{Path: filepath.Join(t.TempDir(), "store.zip"), FlushThreshold: 4})
		if err != nil {
			t.Fatalf("NewArchiveDB failed: %v", err)
		}
		return database
	})
}

func TestWriteBuffer(t *testing.T) {
	b := NewWriteBuffer(3)
	if b.Record() || b.Record() {
		t.Fatalf("flush requested before the threshold was reached")
	}
	if !b.Record() {
		t.Fatalf("expected a flush at the threshold")
	}
	if b.Pending() != 3 {
		t.Errorf("expected 3 pending changes, got %d", b.Pending())
	}
	b.Reset()
	if b.Pending() != 0 || b.Flushes() != 1 {
		t.Errorf("expected reset buffer with one flush, got pending=%d flushes=%d", b.Pending(), b.Flushes())
	}
	b.Reset()
	if b.Flushes() != 1 {
		t.Errorf("resetting an empty buffer must not count as flush")
	}

	if !NewWriteBuffer(0).Record() {
		t.Errorf("threshold 0 should flush on every change")
	}
}

func TestFlushAtThreshold(t *testing.T) {
	fs := afero.NewMemMapFs()
	database := newTestDB(t, fs, 3)
	ctx := context.Background()
	flusher := database.(Flusher)

	for i := 0; i < 2; i++ {
		if _, _, err := database.Set(ctx, fmt.Sprintf("key-%d", i), []byte("value")); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	if exists, _ := afero.Exists(fs, "/data/store.zip"); exists {
		t.Fatalf("archive must not be written before the threshold")
	}
	if flusher.Pending() != 2 {
		t.Errorf("expected 2 pending changes, got %d", flusher.Pending())
	}

	if _, _, err := database.Set(ctx, "key-2", []byte("value")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if exists, _ := afero.Exists(fs, "/data/store.zip"); !exists {
		t.Fatalf("archive should be written once the threshold is reached")
	}
	if flusher.Pending() != 0 {
		t.Errorf("expected no pending changes after flush, got %d", flusher.Pending())
	}

	// a second engine on the same file sees the committed state
	other := newTestDB(t, fs, 3)
	defer other.Close()
	keys, err := other.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	sort.Strings(keys)
	if len(keys) != 3 || keys[0] != "key-0" || keys[2] != "key-2" {
		t.Errorf("expected the three committed keys, got %v", keys)
	}
}

func TestCloseFlushesAndReopen(t *testing.T) {
	fs := afero.NewMemMapFs()
	ctx := context.Background()

	database := newTestDB(t, fs, 100)
	if _, _, err := database.Set(ctx, "a", []byte("1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, _, err := database.Set(ctx, "b/c", []byte("2")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got %v", err)
	}
	if _, _, err := database.Get(ctx, "a"); err == nil {
		t.Errorf("expected an error when using a closed archive")
	}

	reopened := newTestDB(t, fs, 100)
	defer reopened.Close()
	val, ok, err := reopened.Get(ctx, "b/c")
	if err != nil || !ok || string(val) != "2" {
		t.Fatalf("expected persisted value 2, got %q ok=%v err=%v", val, ok, err)
	}

	// Clear hides committed entries before it is flushed
	if err := reopened.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if ok, _ := reopened.Has(ctx, "a"); ok {
		t.Errorf("expected a to be gone after Clear")
	}
	if err := reopened.(Flusher).Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if keys, _ := reopened.Keys(ctx); len(keys) != 0 {
		t.Errorf("expected an empty archive after Clear and Flush, got %v", keys)
	}
}

func TestCorruptArchive(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/data/store.zip", []byte("this is not a zip file"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := NewArchiveDB(DBOptions{Fs: fs, Path: "/data/store.zip"}); err == nil {
		t.Errorf("expected an error for a corrupt archive")
	}
}

func TestFailedFlushKeepsChangesPending(t *testing.T) {
	ctx := context.Background()
	database, err := NewArchiveDB(DBOptions{Fs: afero.NewReadOnlyFs(afero.NewMemMapFs()), Path: "/data/store.zip", FlushThreshold: 1})
	if err != nil {
		t.Fatalf("NewArchiveDB failed: %v", err)
	}

	// the write is applied, the flush error is logged
	if _, _, err := database.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("a failing flush must not fail the write, got %v", err)
	}
	if stored, err := database.SetIfAbsent(ctx, "other", []byte("v")); err != nil || !stored {
		t.Fatalf("expected SetIfAbsent to apply, got stored=%v err=%v", stored, err)
	}
	val, ok, err := database.Get(ctx, "k")
	if err != nil || !ok || string(val) != "v" {
		t.Errorf("expected the pending value, got %q ok=%v err=%v", val, ok, err)
	}
	if pending := database.(Flusher).Pending(); pending != 2 {
		t.Errorf("expected 2 pending changes, got %d", pending)
	}
	if err := database.(Flusher).Flush(); err == nil {
		t.Errorf("an explicit Flush must report the error")
	}
	if err := database.Close(); err == nil {
		t.Errorf("Close must report that the pending changes could not be written")
	}
}
