package obsstore

import (
	"bytes"
	"context"
	"github.com/ValentinKolb/stacKV/lib/store"
	"github.com/puzpuzpuz/xsync/v3"
	"sync"
	"sync/atomic"
)

// EventType is the kind of change reported by an Event
type EventType int

const (
	EventAdd     EventType = iota // a new key was written
	EventReplace                  // an existing key got a different value
	EventRemove                   // a key was removed
	EventReset                    // the store was cleared
)

func (t EventType) String() string {
	switch t {
	case EventAdd:
		return "Add"
	case EventReplace:
		return "Replace"
	case EventRemove:
		return "Remove"
	case EventReset:
		return "Reset"
	default:
		return "Unknown"
	}
}

// Event describes one change of the store. Old is set for Replace and New for Add and Replace.
type Event struct {
	Type EventType
	Key  string
	Old  []byte
	New  []byte
}

// Listener receives change events. It is called on the goroutine that made the change
// and must not block.
type Listener func(Event)

// Store emits change events for every successful mutation of its fallback
type Store struct {
	store.Base
	listeners *xsync.MapOf[uint64, Listener]
	nextID    atomic.Uint64
}

// New creates an observable layer over inner.
func New(inner store.IStore) *Store {
	s := &Store{listeners: xsync.NewMapOf[uint64, Listener]()}
	s.SetFallback(inner)
	return s
}

// Subscribe registers l and returns the function that removes it again.
// Subscriptions are independent of the store lifecycle.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	id := s.nextID.Add(1)
	s.listeners.Store(id, l)
	var once sync.Once
	return func() {
		once.Do(func() { s.listeners.Delete(id) })
	}
}

// Listeners returns the number of active subscriptions.
func (s *Store) Listeners() int {
	return s.listeners.Size()
}

func (s *Store) emit(e Event) {
	s.listeners.Range(func(_ uint64, l Listener) bool {
		l(e)
		return true
	})
}

func (s *Store) inner() (store.IStore, error) {
	if s.Closed() {
		return nil, store.ErrClosed
	}
	inner := s.Fallback()
	if inner == nil {
		return nil, store.NewError(store.RetCInvalidOperation, "observable store has no fallback")
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

	switch {
	case !existed:
		s.emit(Event{Type: EventAdd, Key: key, New: store.CopyBytes(value)})
	case !bytes.Equal(old, value):
		s.emit(Event{Type: EventReplace, Key: key, Old: old, New: store.CopyBytes(value)})
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
	if removed {
		s.emit(Event{Type: EventRemove, Key: key})
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
	s.emit(Event{Type: EventReset})
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

// Close closes the fallback chain. Subscriptions stay registered.
func (s *Store) Close() error {
	return s.CloseChain(nil)
}
