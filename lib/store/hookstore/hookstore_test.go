package hookstore

import (
	"context"
	"errors"
	"github.com/ValentinKolb/stacKV/lib/store/lstore"
	"testing"
)

func TestHooks(t *testing.T) {
	ctx := context.Background()
	var (
		sets      []string
		removes   []string
		removeAll int
	)
	s := New(lstore.NewMemoryStore(nil), Hooks{
		OnSet: func(_ context.Context, key string, newValue, oldValue []byte, existed bool) error {
			sets = append(sets, key+"="+string(newValue)+"<"+string(oldValue))
			return nil
		},
		OnRemove: func(_ context.Context, key string) error {
			removes = append(removes, key)
			return nil
		},
		OnRemoveAll: func(context.Context) error {
			removeAll++
			return nil
		},
	})
	defer s.Close()

	_, _, _ = s.Set(ctx, "k", []byte("v1"))
	_, _, _ = s.Set(ctx, "k", []byte("v2"))
	_, _ = s.Remove(ctx, "k")
	_, _ = s.Remove(ctx, "missing")
	_ = s.RemoveAll(ctx)

	if len(sets) != 2 || sets[0] != "k=v1<" || sets[1] != "k=v2<v1" {
		t.Errorf("unexpected OnSet calls: %v", sets)
	}
	if len(removes) != 1 || removes[0] != "k" {
		t.Errorf("OnRemove must only fire for removed keys, got %v", removes)
	}
	if removeAll != 1 {
		t.Errorf("expected one OnRemoveAll call, got %d", removeAll)
	}
}

func TestHookError(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("index unavailable")
	inner := lstore.NewMemoryStore(nil)
	s := New(inner, Hooks{
		OnSet: func(context.Context, string, []byte, []byte, bool) error { return boom },
	})
	defer s.Close()

	_, _, err := s.Set(ctx, "k", []byte("v"))
	var hookErr *HookError
	if !errors.As(err, &hookErr) || !errors.Is(err, boom) || hookErr.Hook != "OnSet" {
		t.Fatalf("expected a wrapped OnSet error, got %v", err)
	}
	// the write itself succeeded
	if ok, _ := inner.ContainsKey(ctx, "k"); !ok {
		t.Errorf("expected the value to be written despite the hook error")
	}
}

func TestNoHooks(t *testing.T) {
	ctx := context.Background()
	s := New(lstore.NewMemoryStore(nil), Hooks{})
	defer s.Close()

	if _, _, err := s.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if removed, err := s.Remove(ctx, "k"); err != nil || !removed {
		t.Errorf("expected removal without hooks, got %v err=%v", removed, err)
	}
}
