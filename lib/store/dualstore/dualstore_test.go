package dualstore

import (
	"context"
	"errors"
	"github.com/ValentinKolb/stacKV/lib/store/lstore"
	storetesting "github.com/ValentinKolb/stacKV/lib/store/testing"
	"github.com/google/go-cmp/cmp"
	"testing"
	"time"
)

func TestFastHitWins(t *testing.T) {
	ctx := context.Background()
	slow := storetesting.NewFlakyStore()
	slow.SetDelay(5 * time.Second)
	fast := lstore.NewMemoryStore(nil)
	_, _, _ = fast.Set(ctx, "k", []byte("fast"))

	s := New(slow, fast)
	defer s.Close()

	start := time.Now()
	val, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(val) != "fast" {
		t.Fatalf("expected the fast value, got %q ok=%v err=%v", val, ok, err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Get waited for the slow store (%v)", elapsed)
	}

	start = time.Now()
	if ok, err := s.ContainsKey(ctx, "k"); err != nil || !ok {
		t.Errorf("expected ContainsKey true, got %v err=%v", ok, err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("ContainsKey waited for the slow store (%v)", elapsed)
	}
}

func TestMissWaitsForBoth(t *testing.T) {
	ctx := context.Background()
	slow := storetesting.NewFlakyStore()
	_, _, _ = slow.Set(ctx, "late", []byte("slow"))
	slow.SetDelay(100 * time.Millisecond)
	fast := lstore.NewMemoryStore(nil)

	s := New(fast, slow)
	defer s.Close()

	// the fast miss must not win over the slow hit
	val, ok, err := s.Get(ctx, "late")
	if err != nil || !ok || string(val) != "slow" {
		t.Fatalf("expected the slow value, got %q ok=%v err=%v", val, ok, err)
	}

	start := time.Now()
	val, ok, err = s.Get(ctx, "missing")
	if err != nil || ok || val != nil {
		t.Fatalf("expected a miss, got %q ok=%v err=%v", val, ok, err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("a miss must only be reported after both stores answered (%v)", elapsed)
	}
}

func TestErrors(t *testing.T) {
	ctx := context.Background()
	broken := storetesting.NewFlakyStore()
	broken.SetFailing(true)
	healthy := lstore.NewMemoryStore(nil)
	_, _, _ = healthy.Set(ctx, "k", []byte("v"))

	s := New(broken, healthy)
	defer s.Close()

	if val, ok, err := s.Get(ctx, "k"); err != nil || !ok || string(val) != "v" {
		t.Errorf("a hit must win over an error, got %q ok=%v err=%v", val, ok, err)
	}
	if _, _, err := s.Get(ctx, "missing"); !errors.Is(err, storetesting.ErrTimeout) {
		t.Errorf("an error with a miss must be reported, got %v", err)
	}
}

func TestWritesAndRemoves(t *testing.T) {
	ctx := context.Background()
	primary := lstore.NewMemoryStore(nil)
	secondary := lstore.NewMemoryStore(nil)
	s := New(primary, secondary)
	defer s.Close()

	if _, _, err := s.Set(ctx, "p", []byte("1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if ok, _ := secondary.ContainsKey(ctx, "p"); ok {
		t.Errorf("Set must only write to the primary")
	}
	_, _, _ = secondary.Set(ctx, "s", []byte("2"))

	keys, err := s.ListKeys(ctx)
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}
	if diff := cmp.Diff([]string{"p", "s"}, keys); diff != "" {
		t.Errorf("ListKeys mismatch (-want +got):\n%s", diff)
	}

	if removed, err := s.Remove(ctx, "s"); err != nil || !removed {
		t.Errorf("removing from one store must count, got %v err=%v", removed, err)
	}
	if removed, _ := s.Remove(ctx, "s"); removed {
		t.Errorf("expected false for an absent key")
	}
	if err := s.RemoveAll(ctx); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if keys, _ := s.ListKeys(ctx); len(keys) != 0 {
		t.Errorf("RemoveAll must clear both stores, got %v", keys)
	}
}

func TestCloseBoth(t *testing.T) {
	primary := lstore.NewMemoryStore(nil)
	secondary := lstore.NewMemoryStore(nil)
	s := New(primary, secondary)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !primary.Closed() || !secondary.Closed() {
		t.Errorf("Close must close both stores")
	}
}
