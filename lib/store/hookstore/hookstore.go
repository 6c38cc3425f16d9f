package hookstore

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/stacKV/lib/store"
)

// Hooks are called after the corresponding operation of the fallback succeeded.
// Every hook is optional.
type Hooks struct {
	// OnSet receives the written value and the value it replaced (existed = false for new keys)
	OnSet func(ctx context.Context, key string, newValue, oldValue []byte, existed bool) error
	// OnRemove is called if the key was removed somewhere in the chain
	OnRemove func(ctx context.Context, key string) error
	// OnRemoveAll is called after the chain was cleared
	OnRemoveAll func(ctx context.Context) error
}

// HookError wraps the error returned by a hook. The operation itself already succeeded.
type HookError struct {
	Hook string
	Key  string
	Err  error
}

func (e *HookError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s hook failed: %v", e.Hook, e.Err)
	}
	return fmt.Sprintf("%s hook for %q failed: %v", e.Hook, e.Key, e.Err)
}

func (e *HookError) Unwrap() error {
	return e.Err
}

// Store calls mutation hooks around its fallback
type Store struct {
	store.Base
	hooks Hooks
}

// New creates a hook layer over inner.
func New(inner store.IStore, hooks Hooks) *Store {
	s := &Store{hooks: hooks}
	s.SetFallback(inner)
	return s
}

func (s *Store) inner() (store.IStore, error) {
	if s.Closed() {
		return nil, store.ErrClosed
	}
	inner := s.Fallback()
	if inner == nil {
		return nil, store.NewError(store.RetCInvalidOperation, "hook store has no fallback")
	}
	return inner, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	inner, err := s.inner()
	if err != nil {
		return nil, false, err
	}
	return inner.Get(ctx, key)
}

func (s *Store) Set(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	inner, err := s.inner()
	if err != nil {
		return nil, false, err
	}
	old, existed, err := inner.Set(ctx, key, value)
	if err != nil {
		return nil, false, err
	}
	if s.hooks.OnSet != nil {
		if err := s.hooks.OnSet(ctx, key, value, old, existed); err != nil {
			return old, existed, &HookError{Hook: "OnSet", Key: key, Err: err}
		}
	}
	return old, existed, nil
}

func (s *Store) Remove(ctx context.Context, key string) (bool, error) {
	inner, err := s.inner()
	if err != nil {
		return false, err
	}
	removed, err := inner.Remove(ctx, key)
	if err != nil {
		return false, err
	}
	if removed && s.hooks.OnRemove != nil {
		if err := s.hooks.OnRemove(ctx, key); err != nil {
			return removed, &HookError{Hook: "OnRemove", Key: key, Err: err}
		}
	}
	return removed, nil
}

func (s *Store) RemoveAll(ctx context.Context) error {
	inner, err := s.inner()
	if err != nil {
		return err
	}
	if err := inner.RemoveAll(ctx); err != nil {
		return err
	}
	if s.hooks.OnRemoveAll != nil {
		if err := s.hooks.OnRemoveAll(ctx); err != nil {
			return &HookError{Hook: "OnRemoveAll", Err: err}
		}
	}
	return nil
}

func (s *Store) ContainsKey(ctx context.Context, key string) (bool, error) {
	inner, err := s.inner()
	if err != nil {
		return false, err
	}
	return inner.ContainsKey(ctx, key)
}

func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	inner, err := s.inner()
	if err != nil {
		return nil, err
	}
	return inner.ListKeys(ctx)
}

// Close closes the fallback chain.
func (s *Store) Close() error {
	return s.CloseChain(nil)
}
