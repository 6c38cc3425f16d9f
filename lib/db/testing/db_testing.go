package testing

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/stacKV/lib/db"
	"github.com/google/go-cmp/cmp"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("OldValue", func(t *testing.T) {
			testOldValue(t, factory())
		})

		t.Run("SetIfAbsent", func(t *testing.T) {
			testSetIfAbsent(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory())
		})

		t.Run("Keys", func(t *testing.T) {
			testKeys(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("Concurrency", func(t *testing.T) {
			testConcurrency(t, factory())
		})

		t.Run("RealisticUsage", func(t *testing.T) {
			testRealisticUsage(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func mustSet(t testing.TB, database db.KVDB, key string, value []byte) {
	t.Helper()
	if _, _, err := database.Set(context.Background(), key, value); err != nil {
		t.Fatalf("Set(%q) failed: %v", key, err)
	}
}

func mustGet(t testing.TB, database db.KVDB, key string) ([]byte, bool) {
	t.Helper()
	val, ok, err := database.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("Get(%q) failed: %v", key, err)
	}
	return val, ok
}

func mustHas(t testing.TB, database db.KVDB, key string) bool {
	t.Helper()
	ok, err := database.Has(context.Background(), key)
	if err != nil {
		t.Fatalf("Has(%q) failed: %v", key, err)
	}
	return ok
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	mustSet(t, database, testKey, testValue1)

	result, exists := mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	mustSet(t, database, testKey, testValue2)

	result, exists = mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists = mustGet(t, database, "nonexistent-key")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _ := mustGet(t, database, testKey)
	retrievedValue[0] = 'X'

	originalValue, _ := mustGet(t, database, testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}

	input := []byte("mutable-input")
	mustSet(t, database, testKey, input)
	input[0] = 'X'
	result, _ = mustGet(t, database, testKey)
	if !bytes.Equal(result, []byte("mutable-input")) {
		t.Errorf("Set should copy the value, got %s", result)
	}
}

func testOldValue(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)

	ctx := context.Background()

	old, loaded, err := database.Set(ctx, "old-key", []byte("v1"))
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if loaded || old != nil {
		t.Errorf("Expected no old value on first Set, got %q (loaded=%v)", old, loaded)
	}

	old, loaded, err = database.Set(ctx, "old-key", []byte("v2"))
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if !loaded || !bytes.Equal(old, []byte("v1")) {
		t.Errorf("Expected old value v1, got %q (loaded=%v)", old, loaded)
	}

	// an insert reports no old value, and the returned slices are not the stored ones
	old, loaded, err = database.Set(ctx, "fresh-key", []byte("new"))
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if loaded || old != nil {
		t.Errorf("Expected no old value on insert, got %q (loaded=%v)", old, loaded)
	}
	if val, _, _ := database.Get(ctx, "fresh-key"); len(val) > 0 {
		val[0] = 'X'
	}
	if val, _, _ := database.Get(ctx, "fresh-key"); !bytes.Equal(val, []byte("new")) {
		t.Errorf("Mutating a returned value changed the stored value: %q", val)
	}
}

func testSetIfAbsent(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	ctx := context.Background()

	stored, err := database.SetIfAbsent(ctx, "fill", []byte("v1"))
	if err != nil || !stored {
		t.Fatalf("Expected SetIfAbsent to store a missing key, got stored=%v err=%v", stored, err)
	}
	stored, err = database.SetIfAbsent(ctx, "fill", []byte("v2"))
	if err != nil || stored {
		t.Fatalf("Expected SetIfAbsent to keep an existing key, got stored=%v err=%v", stored, err)
	}
	if val, ok, _ := database.Get(ctx, "fill"); !ok || !bytes.Equal(val, []byte("v1")) {
		t.Errorf("Expected v1 to survive, got %q (found=%v)", val, ok)
	}

	// an empty value is present as well
	mustSet(t, database, "empty", []byte{})
	if stored, _ := database.SetIfAbsent(ctx, "empty", []byte("v")); stored {
		t.Errorf("SetIfAbsent must not replace an empty value")
	}

	// exactly one concurrent writer wins
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if ok, err := database.SetIfAbsent(ctx, "race", []byte(fmt.Sprintf("v%d", i))); err == nil && ok {
				wins.Add(1)
			}
		}(i)
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Errorf("Expected exactly one stored value, got %d", wins.Load())
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	ctx := context.Background()
	testKey := "delete-test-key"

	mustSet(t, database, testKey, []byte("delete-test-value"))

	deleted, err := database.Delete(ctx, testKey)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Errorf("Expected Delete to report an existing key")
	}

	if _, exists := mustGet(t, database, testKey); exists {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}

	deleted, err = database.Delete(ctx, "nonexistent-key")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted {
		t.Errorf("Expected Delete of a nonexistent key to return false")
	}
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureDelete|db.FeatureHas)

	testKey := "has-exists-test-key"

	if mustHas(t, database, testKey) {
		t.Errorf("Expected Has to return false for nonexistent key")
	}

	mustSet(t, database, testKey, []byte("has-exists-test-value"))

	if !mustHas(t, database, testKey) {
		t.Errorf("Expected Has to return true after Set")
	}

	if _, err := database.Delete(context.Background(), testKey); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if mustHas(t, database, testKey) {
		t.Errorf("Expected Has to return false after Delete")
	}
}

func testClear(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureClear|db.FeatureHas)

	for i := 0; i < 10; i++ {
		mustSet(t, database, fmt.Sprintf("clear-key-%d", i), []byte("value"))
	}

	if err := database.Clear(context.Background()); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		if mustHas(t, database, fmt.Sprintf("clear-key-%d", i)) {
			t.Errorf("Expected clear-key-%d to be gone after Clear", i)
		}
	}

	// the database must stay usable after Clear
	mustSet(t, database, "after-clear", []byte("value"))
	if !mustHas(t, database, "after-clear") {
		t.Errorf("Expected Set after Clear to work")
	}
}

func testKeys(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureDelete|db.FeatureKeys)

	ctx := context.Background()
	want := []string{"a", "b/c", "d:e", "f?"}
	for _, k := range want {
		mustSet(t, database, k, []byte(k))
	}
	mustSet(t, database, "removed", []byte("x"))
	if _, err := database.Delete(ctx, "removed"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	got, err := database.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	sort.Strings(got)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	// Empty value (must be found, not treated as absent)
	mustSet(t, database, "empty-value-key", []byte{})
	result, exists := mustGet(t, database, "empty-value-key")
	if !exists {
		t.Errorf("Expected key with empty value to exist")
	}
	if len(result) != 0 {
		t.Errorf("Expected empty value, got %v", result)
	}

	// Unicode and filesystem hostile keys
	for _, key := range []string{"🔑-ключ-鍵", "../escape", "with/slash", "trailing.", "CON", "a\\b"} {
		value := []byte("value for " + key)
		mustSet(t, database, key, value)
		result, exists = mustGet(t, database, key)
		if !exists || !bytes.Equal(result, value) {
			t.Errorf("Key %q: expected %q, got %q (exists=%v)", key, value, result, exists)
		}
	}

	// Keys that sanitize to the same file name must not collide
	mustSet(t, database, "x/y", []byte("slash"))
	mustSet(t, database, "x\\y", []byte("backslash"))
	if v, _ := mustGet(t, database, "x/y"); !bytes.Equal(v, []byte("slash")) {
		t.Errorf("Expected slash, got %q", v)
	}

	// Large value
	large := bytes.Repeat([]byte("0123456789"), 10*1024)
	mustSet(t, database, "large-key", large)
	result, _ = mustGet(t, database, "large-key")
	if !bytes.Equal(result, large) {
		t.Errorf("Large value was not stored correctly (len %d)", len(result))
	}
}

func testConcurrency(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	const workers = 8
	const perWorker = 25

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				key := fmt.Sprintf("concurrent-%d-%d", w, i)
				if _, _, err := database.Set(context.Background(), key, []byte(key)); err != nil {
					t.Errorf("Set(%s) failed: %v", key, err)
				}
			}
		}(w)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		for i := 0; i < perWorker; i++ {
			key := fmt.Sprintf("concurrent-%d-%d", w, i)
			if v, ok := mustGet(t, database, key); !ok || string(v) != key {
				t.Errorf("Expected %s, got %q (exists=%v)", key, v, ok)
			}
		}
	}
}

func testRealisticUsage(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturesAll)

	ctx := context.Background()

	// a small preference store: write, overwrite, delete, list
	prefs := map[string]string{
		"ui.theme":     "dark",
		"ui.language":  "en",
		"sync.enabled": "true",
	}
	for k, v := range prefs {
		mustSet(t, database, k, []byte(v))
	}

	old, loaded, err := database.Set(ctx, "ui.theme", []byte("light"))
	if err != nil || !loaded || string(old) != "dark" {
		t.Errorf("Expected old theme dark, got %q (loaded=%v, err=%v)", old, loaded, err)
	}

	if _, err := database.Delete(ctx, "sync.enabled"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	keys, err := database.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	sort.Strings(keys)
	if diff := cmp.Diff([]string{"ui.language", "ui.theme"}, keys); diff != "" {
		t.Errorf("Keys mismatch (-want +got):\n%s", diff)
	}

	info := database.GetInfo()
	if info.DbType == "" {
		t.Errorf("Expected GetInfo to report the implementation")
	}
}
