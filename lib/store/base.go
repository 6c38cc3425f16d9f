package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Shared chain base (embedded by every layer)
// --------------------------------------------------------------------------

// Base holds the fallback slot and the close-once logic shared by every layer.
// Embed it in a layer and call CloseChain from the layer's Close method.
//
// The fallback is borrowed: several layers may point to the same store,
// but only one owner should drive RemoveAll and Close (this is not checked at runtime).
type Base struct {
	mu        sync.RWMutex
	fallback  IStore
	closeOnce sync.Once
	closeErr  error
	closed    atomic.Bool
}

// Fallback returns the store beneath this layer.
func (b *Base) Fallback() IStore {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.fallback
}

// SetFallback replaces the store beneath this layer.
func (b *Base) SetFallback(fallback IStore) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fallback = fallback
}

// CloseChain runs release (may be nil) and closes the fallback afterward.
// Only the first call has an effect, later calls return the result of the first one.
func (b *Base) CloseChain(release func() error) error {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		if release != nil {
			b.closeErr = release()
		}
		if fb := b.Fallback(); fb != nil {
			if err := fb.Close(); err != nil && b.closeErr == nil {
				b.closeErr = err
			}
		}
	})
	return b.closeErr
}

// Closed reports whether CloseChain was called.
func (b *Base) Closed() bool {
	return b.closed.Load()
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// MergeKeys returns the sorted, de-duplicated union of the given key lists.
func MergeKeys(lists ...[]string) []string {
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, k := range list {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Canceled reports whether the caller gave up on the operation.
// Decorators use this to never retry or absorb a cancellation requested by the caller.
func Canceled(ctx context.Context) bool {
	return ctx.Err() != nil
}

// CopyBytes returns a copy of b (nil stays nil).
func CopyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
