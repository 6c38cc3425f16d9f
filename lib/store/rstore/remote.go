package rstore

import (
	"bytes"
	"context"
	"errors"
	"github.com/ValentinKolb/stacKV/lib/db"
	"github.com/ValentinKolb/stacKV/lib/store"
	"github.com/cenkalti/backoff/v4"
	"sync"
	"time"
)

// Phase is the state of the remote snapshot
type Phase int

const (
	PhaseNotLoaded Phase = iota // no download succeeded yet
	PhaseLoaded                 // the first snapshot was downloaded
	PhaseRefreshed              // the snapshot was refreshed at least once
)

func (p Phase) String() string {
	switch p {
	case PhaseNotLoaded:
		return "NotLoaded"
	case PhaseLoaded:
		return "Loaded"
	case PhaseRefreshed:
		return "Refreshed"
	default:
		return "Unknown"
	}
}

// RefreshStats describes the outcome of one successful refresh
type RefreshStats struct {
	Rows    int // rows in the downloaded dataset
	Written int // rows written to the cache (new or changed)
	Removed int // rows removed from the cache
}

// state is the snapshot state machine, guarded by remoteDB.mu
type state struct {
	phase       Phase
	snapshot    map[string][]byte
	lastFetch   time.Time
	failures    int
	nextAttempt time.Time // downloads are not started before this time after a failure
	lastErr     error
	refreshing  bool
	closed      bool
}

// remoteDB is the read-only engine of the remote store. Reads are served from the cache
// store, downloads update the cache with the rows that changed.
type remoteDB struct {
	fetcher Fetcher
	cache   store.IStore
	opts    Options

	mu    sync.Mutex
	state state
	bo    backoff.BackOff

	// fetchMu serializes downloads
	fetchMu sync.Mutex

	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
}

func newRemoteDB(fetcher Fetcher, opts Options) *remoteDB {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = opts.InitialBackoff
	exp.MaxInterval = opts.MaxBackoff
	exp.MaxElapsedTime = 0
	exp.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	return &remoteDB{
		fetcher:  fetcher,
		cache:    opts.Cache,
		opts:     opts,
		bo:       exp,
		bgCtx:    ctx,
		bgCancel: cancel,
	}
}

// --------------------------------------------------------------------------
// Snapshot handling
// --------------------------------------------------------------------------

// ensureLoaded blocks until the first snapshot was downloaded
func (r *remoteDB) ensureLoaded(ctx context.Context) error {
	if r.phase() != PhaseNotLoaded {
		return nil
	}
	if r.opts.Online != nil {
		if err := r.opts.Online(ctx); err != nil {
			return err
		}
	}

	r.mu.Lock()
	wait := r.state.nextAttempt.Sub(r.opts.Now())
	r.mu.Unlock()
	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	_, err := r.refresh(ctx, true)
	return err
}

// maybeRefresh starts a background refresh unless one is running, the snapshot is younger
// than the interval or the failure backoff has not passed yet
func (r *remoteDB) maybeRefresh() {
	r.mu.Lock()
	now := r.opts.Now()
	if r.state.closed || r.state.refreshing || r.state.phase == PhaseNotLoaded ||
		now.Sub(r.state.lastFetch) < r.opts.Interval || now.Before(r.state.nextAttempt) {
		r.mu.Unlock()
		return
	}
	r.state.refreshing = true
	// Add under mu, Close sets closed under mu before it waits
	r.bg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.bg.Done()
		defer func() {
			r.mu.Lock()
			r.state.refreshing = false
			r.mu.Unlock()
		}()
		if _, err := r.refresh(r.bgCtx, false); err != nil && r.bgCtx.Err() == nil {
			log.Warningf("background refresh failed: %v", err)
		}
	}()
}

// refresh downloads the dataset and writes the difference to the last snapshot into the cache.
// With initial set nothing happens if a snapshot was loaded in the meantime.
func (r *remoteDB) refresh(ctx context.Context, initial bool) (RefreshStats, error) {
	r.fetchMu.Lock()
	defer r.fetchMu.Unlock()

	if initial && r.phase() != PhaseNotLoaded {
		return RefreshStats{}, nil
	}

	rows, err := r.fetcher.Fetch(ctx)
	if err != nil {
		return RefreshStats{}, r.fail("download", err)
	}

	r.mu.Lock()
	previous := r.state.snapshot
	r.mu.Unlock()

	stats := RefreshStats{Rows: len(rows)}
	snapshot := make(map[string][]byte, len(rows))
	for key, value := range rows {
		snapshot[key] = value
		if old, ok := previous[key]; ok && bytes.Equal(old, value) {
			continue
		}
		if _, _, err := r.cache.Set(ctx, key, value); err != nil {
			// the snapshot stays at the previous state, the next refresh writes again
			return stats, r.fail("cache write", err)
		}
		stats.Written++
	}
	for key := range previous {
		if _, ok := rows[key]; ok {
			continue
		}
		if _, err := r.cache.Remove(ctx, key); err != nil {
			return stats, r.fail("cache remove", err)
		}
		stats.Removed++
	}

	r.mu.Lock()
	r.state.snapshot = snapshot
	r.state.lastFetch = r.opts.Now()
	r.state.failures = 0
	r.state.lastErr = nil
	r.state.nextAttempt = time.Time{}
	if r.state.phase == PhaseNotLoaded {
		r.state.phase = PhaseLoaded
	} else {
		r.state.phase = PhaseRefreshed
	}
	r.bo.Reset()
	r.mu.Unlock()

	log.Debugf("remote snapshot refreshed: %d rows, %d written, %d removed", stats.Rows, stats.Written, stats.Removed)
	return stats, nil
}

// fail records a failed refresh and schedules the next attempt after the backoff
func (r *remoteDB) fail(stage string, err error) error {
	r.mu.Lock()
	r.state.failures++
	r.state.lastErr = err
	r.state.nextAttempt = r.opts.Now().Add(r.bo.NextBackOff())
	failures := r.state.failures
	r.mu.Unlock()
	log.Warningf("refresh failed at %s (%d in a row): %v", stage, failures, err)
	return err
}

func (r *remoteDB) phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.phase
}

// read makes sure a snapshot exists and schedules a debounced refresh
func (r *remoteDB) read(ctx context.Context) error {
	if err := r.ensureLoaded(ctx); err != nil {
		return err
	}
	r.maybeRefresh()
	return nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.KVDB)
// --------------------------------------------------------------------------

var errReadOnly = errors.New("remote store is read-only")

func (r *remoteDB) Set(context.Context, string, []byte) ([]byte, bool, error) {
	return nil, false, errReadOnly
}

func (r *remoteDB) SetIfAbsent(context.Context, string, []byte) (bool, error) {
	return false, errReadOnly
}

func (r *remoteDB) Delete(context.Context, string) (bool, error) {
	return false, errReadOnly
}

func (r *remoteDB) Clear(context.Context) error {
	return errReadOnly
}

func (r *remoteDB) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := r.read(ctx); err != nil {
		return nil, false, err
	}
	return r.cache.Get(ctx, key)
}

func (r *remoteDB) Has(ctx context.Context, key string) (bool, error) {
	if err := r.read(ctx); err != nil {
		return false, err
	}
	return r.cache.ContainsKey(ctx, key)
}

func (r *remoteDB) Keys(ctx context.Context) ([]string, error) {
	if err := r.read(ctx); err != nil {
		return nil, err
	}
	return r.cache.ListKeys(ctx)
}

func (r *remoteDB) SupportsFeature(feature db.Feature) bool {
	return db.FeaturesReadOnly&feature == feature
}

func (r *remoteDB) GetInfo() db.DatabaseInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return db.DatabaseInfo{
		DbType:            db.ImplRemote,
		SupportedFeatures: db.FeaturesReadOnly.Features(),
		Metadata: map[string]interface{}{
			"phase":      r.state.phase.String(),
			"rows":       len(r.state.snapshot),
			"last_fetch": r.state.lastFetch,
			"failures":   r.state.failures,
			"interval":   r.opts.Interval.String(),
		},
	}
}

// Close stops background refreshes and closes the cache store.
func (r *remoteDB) Close() error {
	r.mu.Lock()
	r.state.closed = true
	r.mu.Unlock()
	r.bgCancel()
	r.bg.Wait()
	return r.cache.Close()
}
