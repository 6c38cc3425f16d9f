package testing

import (
	"context"
	"errors"
	"github.com/ValentinKolb/stacKV/lib/db"
	"github.com/ValentinKolb/stacKV/lib/db/engines/memory"
	"github.com/ValentinKolb/stacKV/lib/store"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTimeout is the default error returned by a failing FlakyStore
var ErrTimeout = errors.New("remote store timed out")

// --------------------------------------------------------------------------
// FlakyStore
// --------------------------------------------------------------------------

// FlakyStore is an in-memory leaf that can be told to fail. It simulates an unreliable
// remote backend in tests.
type FlakyStore struct {
	store.Base
	data db.KVDB

	failing  atomic.Bool
	failNext atomic.Int64
	calls    atomic.Int64
	delay    atomic.Int64

	mu      sync.Mutex
	failErr error
}

// NewFlakyStore creates a FlakyStore that does not fail until told to.
func NewFlakyStore() *FlakyStore {
	return &FlakyStore{data: memory.NewMemoryDB(), failErr: ErrTimeout}
}

// SetFailing makes every following call fail (true) or succeed (false).
func (f *FlakyStore) SetFailing(failing bool) {
	f.failing.Store(failing)
}

// FailNext makes the next n calls fail.
func (f *FlakyStore) FailNext(n int) {
	f.failNext.Store(int64(n))
}

// FailWith sets the error returned by failing calls.
func (f *FlakyStore) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErr = err
}

// SetDelay delays every call by d (the delay observes the context).
func (f *FlakyStore) SetDelay(d time.Duration) {
	f.delay.Store(int64(d))
}

// Calls returns the number of contract calls made so far.
func (f *FlakyStore) Calls() int {
	return int(f.calls.Load())
}

// Has reports whether the key reached the backing data, ignoring failure mode.
func (f *FlakyStore) Has(key string) bool {
	ok, _ := f.data.Has(context.Background(), key)
	return ok
}

func (f *FlakyStore) enter(ctx context.Context) error {
	f.calls.Add(1)
	if d := time.Duration(f.delay.Load()); d > 0 {
		if err := Sleep(ctx, d); err != nil {
			return err
		}
	}
	if f.failNext.Load() > 0 && f.failNext.Add(-1) >= 0 {
		return f.err()
	}
	if f.failing.Load() {
		return f.err()
	}
	return nil
}

func (f *FlakyStore) err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failErr
}

func (f *FlakyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := f.enter(ctx); err != nil {
		return nil, false, err
	}
	return f.data.Get(ctx, key)
}

func (f *FlakyStore) Set(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	if err := f.enter(ctx); err != nil {
		return nil, false, err
	}
	return f.data.Set(ctx, key, value)
}

func (f *FlakyStore) Remove(ctx context.Context, key string) (bool, error) {
	if err := f.enter(ctx); err != nil {
		return false, err
	}
	return f.data.Delete(ctx, key)
}

func (f *FlakyStore) RemoveAll(ctx context.Context) error {
	if err := f.enter(ctx); err != nil {
		return err
	}
	return f.data.Clear(ctx)
}

func (f *FlakyStore) ContainsKey(ctx context.Context, key string) (bool, error) {
	if err := f.enter(ctx); err != nil {
		return false, err
	}
	return f.data.Has(ctx, key)
}

func (f *FlakyStore) ListKeys(ctx context.Context) ([]string, error) {
	if err := f.enter(ctx); err != nil {
		return nil, err
	}
	keys, err := f.data.Keys(ctx)
	sort.Strings(keys)
	return keys, err
}

func (f *FlakyStore) Close() error {
	return f.CloseChain(f.data.Close)
}

// --------------------------------------------------------------------------
// ErrorRecorder
// --------------------------------------------------------------------------

// ErrorRecorder collects the errors passed to its Handle method (a store.ErrorHandler).
type ErrorRecorder struct {
	mu     sync.Mutex
	errors []error
}

// Handle records err, use it as store.ErrorHandler.
func (r *ErrorRecorder) Handle(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

// Count returns the number of recorded errors.
func (r *ErrorRecorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

// Errors returns a copy of the recorded errors.
func (r *ErrorRecorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}

// --------------------------------------------------------------------------
// Helper Functions
// --------------------------------------------------------------------------

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
