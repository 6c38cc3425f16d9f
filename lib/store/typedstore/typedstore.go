package typedstore

import (
	"context"
	"github.com/ValentinKolb/stacKV/lib/store"
	"github.com/ValentinKolb/stacKV/lib/store/codec"
)

// Store fixes the value type of a store chain to T. It has no failure semantics of its
// own: errors of the chain are returned unchanged, bytes that do not decode into a T are
// reported as *codec.DecodeError.
type Store[T any] struct {
	inner store.IStore
	codec codec.IValueCodec
}

// New creates a typed view on inner. A nil codec selects JSON.
func New[T any](inner store.IStore, c codec.IValueCodec) *Store[T] {
	if c == nil {
		c = codec.NewJSONCodec()
	}
	return &Store[T]{inner: inner, codec: c}
}

// Inner returns the wrapped store.
func (s *Store[T]) Inner() store.IStore {
	return s.inner
}

// Get returns the value for key or def if the key is absent in the whole chain.
// A stored value that equals def is still reported as stored value.
func (s *Store[T]) Get(ctx context.Context, key string, def T) (T, error) {
	return Get(ctx, s.inner, s.codec, key, def)
}

// Lookup returns the value for key and whether it was found.
func (s *Store[T]) Lookup(ctx context.Context, key string) (T, bool, error) {
	return Lookup[T](ctx, s.inner, s.codec, key)
}

// Set stores v and returns the previous value. If the previous bytes cannot be decoded the
// write still happened and a *codec.DecodeError is returned together with existed = true.
func (s *Store[T]) Set(ctx context.Context, key string, v T) (old T, existed bool, err error) {
	return Set(ctx, s.inner, s.codec, key, v)
}

// GetAll returns all entries of the chain. Keys removed while listing are skipped.
func (s *Store[T]) GetAll(ctx context.Context) (map[string]T, error) {
	keys, err := s.inner.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	all := make(map[string]T, len(keys))
	for _, key := range keys {
		v, ok, err := s.Lookup(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			all[key] = v
		}
	}
	return all, nil
}

// Remove removes key from the chain.
func (s *Store[T]) Remove(ctx context.Context, key string) (bool, error) {
	return s.inner.Remove(ctx, key)
}

// RemoveAll clears the chain.
func (s *Store[T]) RemoveAll(ctx context.Context) error {
	return s.inner.RemoveAll(ctx)
}

// ContainsKey reports whether key exists in the chain.
func (s *Store[T]) ContainsKey(ctx context.Context, key string) (bool, error) {
	return s.inner.ContainsKey(ctx, key)
}

// Keys returns the sorted keys of the chain.
func (s *Store[T]) Keys(ctx context.Context) ([]string, error) {
	return s.inner.ListKeys(ctx)
}

// Close closes the wrapped chain.
func (s *Store[T]) Close() error {
	return s.inner.Close()
}

// --------------------------------------------------------------------------
// Generic helpers on plain stores
// --------------------------------------------------------------------------

// Lookup reads key from s and decodes it into a T.
func Lookup[T any](ctx context.Context, s store.IStore, c codec.IValueCodec, key string) (T, bool, error) {
	var zero T
	b, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return zero, false, err
	}
	v, err := codec.Unmarshal[T](c, b)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Get reads key from s, def is returned only if the key is absent.
func Get[T any](ctx context.Context, s store.IStore, c codec.IValueCodec, key string, def T) (T, error) {
	v, found, err := Lookup[T](ctx, s, c, key)
	if err != nil {
		return def, err
	}
	if !found {
		return def, nil
	}
	return v, nil
}

// Set encodes v and writes it to s, the previous value is decoded into a T.
func Set[T any](ctx context.Context, s store.IStore, c codec.IValueCodec, key string, v T) (T, bool, error) {
	var zero T
	b, err := codec.Marshal(c, v)
	if err != nil {
		return zero, false, err
	}
	oldBytes, existed, err := s.Set(ctx, key, b)
	if err != nil || !existed {
		return zero, false, err
	}
	old, err := codec.Unmarshal[T](c, oldBytes)
	if err != nil {
		return zero, true, err
	}
	return old, true, nil
}
