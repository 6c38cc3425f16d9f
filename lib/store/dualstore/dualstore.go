package dualstore

import (
	"context"
	"github.com/ValentinKolb/stacKV/lib/store"
	"github.com/hashicorp/go-multierror"
)

// Store races two stores of equal standing. The primary sits in the fallback slot,
// the secondary is fixed at construction.
type Store struct {
	store.Base
	secondary store.IStore
}

// New creates a dual store. Set only writes to primary, all other operations use both.
func New(primary, secondary store.IStore) *Store {
	s := &Store{secondary: secondary}
	s.SetFallback(primary)
	return s
}

// Primary returns the store receiving writes.
func (s *Store) Primary() store.IStore {
	return s.Fallback()
}

// Secondary returns the second store.
func (s *Store) Secondary() store.IStore {
	return s.secondary
}

func (s *Store) stores() (store.IStore, store.IStore, error) {
	if s.Closed() {
		return nil, nil, store.ErrClosed
	}
	primary := s.Fallback()
	if primary == nil || s.secondary == nil {
		return nil, nil, store.NewError(store.RetCInvalidOperation, "dual store needs two stores")
	}
	return primary, s.secondary, nil
}

// --------------------------------------------------------------------------
// Race
// --------------------------------------------------------------------------

type result struct {
	value []byte
	hit   bool
	err   error
}

// race runs fn against both stores. The first hit wins and cancels the other call.
// A miss is only reported when both stores missed, an error only if no store had a hit.
func race(ctx context.Context, a, b store.IStore, fn func(ctx context.Context, s store.IStore) result) (result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan result, 2)
	for _, s := range []store.IStore{a, b} {
		go func(s store.IStore) {
			results <- fn(ctx, s)
		}(s)
	}

	var errs *multierror.Error
	for i := 0; i < 2; i++ {
		r := <-results
		if r.err == nil && r.hit {
			return r, nil
		}
		if r.err != nil {
			errs = multierror.Append(errs, r.err)
		}
	}
	return result{}, errs.ErrorOrNil()
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	primary, secondary, err := s.stores()
	if err != nil {
		return nil, false, err
	}
	r, err := race(ctx, primary, secondary, func(ctx context.Context, s store.IStore) result {
		value, found, err := s.Get(ctx, key)
		return result{value: value, hit: found, err: err}
	})
	if err != nil {
		return nil, false, err
	}
	return r.value, r.hit, nil
}

func (s *Store) ContainsKey(ctx context.Context, key string) (bool, error) {
	primary, secondary, err := s.stores()
	if err != nil {
		return false, err
	}
	r, err := race(ctx, primary, secondary, func(ctx context.Context, s store.IStore) result {
		ok, err := s.ContainsKey(ctx, key)
		return result{hit: ok, err: err}
	})
	if err != nil {
		return false, err
	}
	return r.hit, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	primary, _, err := s.stores()
	if err != nil {
		return nil, false, err
	}
	return primary.Set(ctx, key, value)
}

func (s *Store) Remove(ctx context.Context, key string) (bool, error) {
	primary, secondary, err := s.stores()
	if err != nil {
		return false, err
	}
	var errs *multierror.Error
	removed := false
	for _, st := range []store.IStore{primary, secondary} {
		ok, err := st.Remove(ctx, key)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		removed = removed || ok
	}
	return removed, errs.ErrorOrNil()
}

func (s *Store) RemoveAll(ctx context.Context) error {
	primary, secondary, err := s.stores()
	if err != nil {
		return err
	}
	var errs *multierror.Error
	for _, st := range []store.IStore{primary, secondary} {
		if err := st.RemoveAll(ctx); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	primary, secondary, err := s.stores()
	if err != nil {
		return nil, err
	}
	a, err := primary.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	b, err := secondary.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	return store.MergeKeys(a, b), nil
}

// Close closes both stores.
func (s *Store) Close() error {
	return s.CloseChain(func() error {
		if s.secondary == nil {
			return nil
		}
		return s.secondary.Close()
	})
}
