package rstore

import (
	"context"
	"github.com/ValentinKolb/stacKV/lib/store"
	"github.com/ValentinKolb/stacKV/lib/store/lstore"
	"github.com/lni/dragonboat/v4/logger"
	"time"
)

var log = logger.GetLogger("store")

const (
	defaultInterval       = 5 * time.Minute
	defaultInitialBackoff = time.Second
	defaultMaxBackoff     = 5 * time.Minute
)

// Options configures the remote store
type Options struct {
	// Interval is the minimum age of the snapshot before a read triggers a refresh (0 = 5m)
	Interval time.Duration
	// Cache receives the downloaded rows (nil = a new in-memory store). It is closed with the remote store.
	Cache store.IStore
	// Online blocks until the network is available (optional). It is called before the first download.
	Online func(ctx context.Context) error
	// Now returns the current time (nil = time.Now)
	Now func() time.Time
	// InitialBackoff and MaxBackoff bound the wait after failed downloads (0 = 1s and 5m)
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = defaultInterval
	}
	if o.Cache == nil {
		o.Cache = lstore.NewMemoryStore(nil)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = defaultInitialBackoff
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = defaultMaxBackoff
	}
	return o
}

// RemoteStore is a read-only leaf over a remote dataset. Get, ContainsKey and ListKeys are
// served from a local cache that is refreshed in the background, Set, Remove and RemoveAll
// fail with an unsupported operation error.
type RemoteStore struct {
	*lstore.Store
	remote *remoteDB
}

// NewRemoteStore creates a remote store. Nothing is downloaded until the first read.
func NewRemoteStore(fetcher Fetcher, opts Options) *RemoteStore {
	remote := newRemoteDB(fetcher, opts.withDefaults())
	return &RemoteStore{
		Store:  lstore.New(remote, nil),
		remote: remote,
	}
}

// Refresh downloads the dataset now, independent of the refresh interval.
func (r *RemoteStore) Refresh(ctx context.Context) (RefreshStats, error) {
	if r.Closed() {
		return RefreshStats{}, store.ErrClosed
	}
	return r.remote.refresh(ctx, false)
}

// Phase returns the state of the snapshot.
func (r *RemoteStore) Phase() Phase {
	return r.remote.phase()
}

// LastFetch returns the time of the last successful download (zero if there was none).
func (r *RemoteStore) LastFetch() time.Time {
	r.remote.mu.Lock()
	defer r.remote.mu.Unlock()
	return r.remote.state.lastFetch
}

// LastError returns the error of the last download if it failed.
func (r *RemoteStore) LastError() error {
	r.remote.mu.Lock()
	defer r.remote.mu.Unlock()
	return r.remote.state.lastErr
}
