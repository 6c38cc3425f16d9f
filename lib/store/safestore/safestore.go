package safestore

import (
	"context"
	"errors"
	"github.com/ValentinKolb/stacKV/lib/store"
)

// Matcher selects errors that are passed to the caller instead of being absorbed
type Matcher func(err error) bool

// Is matches errors for which errors.Is(err, target) holds.
func Is(target error) Matcher {
	return func(err error) bool {
		return errors.Is(err, target)
	}
}

// As matches errors that wrap an error of type E.
func As[E error]() Matcher {
	return func(err error) bool {
		var e E
		return errors.As(err, &e)
	}
}

// Options configures the error boundary
type Options struct {
	// OnError is called for every absorbed error (nil = store.LogErrors)
	OnError store.ErrorHandler
	// Rethrow lists the errors that are returned unchanged
	Rethrow []Matcher
}

// Store absorbs the errors of its fallback: the error is passed to OnError and a safe
// default is returned (not found, false, no-op, no keys). Errors matched by a Rethrow
// matcher, unsupported operations and a canceled caller context are returned unchanged.
type Store struct {
	store.Base
	onError store.ErrorHandler
	rethrow []Matcher
}

// New creates an error boundary around inner.
func New(inner store.IStore, opts Options) *Store {
	if opts.OnError == nil {
		opts.OnError = store.LogErrors
	}
	s := &Store{onError: opts.OnError, rethrow: opts.Rethrow}
	s.SetFallback(inner)
	return s
}

// absorb returns nil if err was handled and the safe default should be returned
func (s *Store) absorb(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrUnsupported) || store.Canceled(ctx) {
		return err
	}
	for _, match := range s.rethrow {
		if match(err) {
			return err
		}
	}
	s.onError(err)
	return nil
}

func (s *Store) inner() (store.IStore, error) {
	if s.Closed() {
		return nil, store.ErrClosed
	}
	inner := s.Fallback()
	if inner == nil {
		return nil, store.NewError(store.RetCInvalidOperation, "safe store has no fallback")
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
	value, found, err := inner.Get(ctx, key)
	if err != nil {
		return nil, false, s.absorb(ctx, err)
	}
	return value, found, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	inner, err := s.inner()
	if err != nil {
		return nil, false, err
	}
	old, existed, err := inner.Set(ctx, key, value)
	if err != nil {
		return nil, false, s.absorb(ctx, err)
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
		return false, s.absorb(ctx, err)
	}
	return removed, nil
}

func (s *Store) RemoveAll(ctx context.Context) error {
	inner, err := s.inner()
	if err != nil {
		return err
	}
	return s.absorb(ctx, inner.RemoveAll(ctx))
}

func (s *Store) ContainsKey(ctx context.Context, key string) (bool, error) {
	inner, err := s.inner()
	if err != nil {
		return false, err
	}
	ok, err := inner.ContainsKey(ctx, key)
	if err != nil {
		return false, s.absorb(ctx, err)
	}
	return ok, nil
}

func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	inner, err := s.inner()
	if err != nil {
		return nil, err
	}
	keys, err := inner.ListKeys(ctx)
	if err != nil {
		return []string{}, s.absorb(ctx, err)
	}
	return keys, nil
}

// Close closes the fallback chain.
func (s *Store) Close() error {
	return s.CloseChain(nil)
}
