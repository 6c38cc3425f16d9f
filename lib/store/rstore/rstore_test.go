package rstore

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/stacKV/lib/store"
	"github.com/ValentinKolb/stacKV/lib/store/hookstore"
	"github.com/ValentinKolb/stacKV/lib/store/lstore"
	storetesting "github.com/ValentinKolb/stacKV/lib/store/testing"
	"github.com/google/go-cmp/cmp"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// dataset is a fetcher over mutable rows that counts the downloads
type dataset struct {
	mu      sync.Mutex
	rows    map[string][]byte
	fail    error
	fetches atomic.Int64
}

func (d *dataset) Fetch(context.Context) (map[string][]byte, error) {
	d.fetches.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fail != nil {
		return nil, d.fail
	}
	rows := make(map[string][]byte, len(d.rows))
	for k, v := range d.rows {
		rows[k] = v
	}
	return rows, nil
}

func (d *dataset) set(rows map[string]string, fail error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rows = make(map[string][]byte, len(rows))
	for k, v := range rows {
		d.rows[k] = []byte(v)
	}
	d.fail = fail
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not reached in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFirstReadBlocksUntilLoaded(t *testing.T) {
	ctx := context.Background()
	data := &dataset{}
	data.set(map[string]string{"a": "1", "b": "2"}, nil)
	s := NewRemoteStore(data, Options{})
	defer s.Close()

	if s.Phase() != PhaseNotLoaded || data.fetches.Load() != 0 {
		t.Fatalf("nothing must be downloaded before the first read")
	}
	val, ok, err := s.Get(ctx, "a")
	if err != nil || !ok || string(val) != "1" {
		t.Fatalf("expected 1, got %q ok=%v err=%v", val, ok, err)
	}
	if s.Phase() != PhaseLoaded {
		t.Errorf("expected phase Loaded, got %s", s.Phase())
	}
	keys, err := s.ListKeys(ctx)
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}
	if diff := cmp.Diff([]string{"a", "b"}, keys); diff != "" {
		t.Errorf("ListKeys mismatch (-want +got):\n%s", diff)
	}
	if ok, _ := s.ContainsKey(ctx, "c"); ok {
		t.Errorf("c must not exist")
	}
}

func TestReadOnly(t *testing.T) {
	ctx := context.Background()
	data := &dataset{}
	s := NewRemoteStore(data, Options{})
	defer s.Close()

	if _, _, err := s.Set(ctx, "k", []byte("v")); !errors.Is(err, store.ErrUnsupported) {
		t.Errorf("Set: expected ErrUnsupported, got %v", err)
	}
	if _, err := s.Remove(ctx, "k"); !errors.Is(err, store.ErrUnsupported) {
		t.Errorf("Remove: expected ErrUnsupported, got %v", err)
	}
	if err := s.RemoveAll(ctx); !errors.Is(err, store.ErrUnsupported) {
		t.Errorf("RemoveAll: expected ErrUnsupported, got %v", err)
	}
}

func TestDebounce(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	data := &dataset{}
	data.set(map[string]string{"a": "1"}, nil)
	s := NewRemoteStore(data, Options{Interval: time.Minute, Now: clock.Now})
	defer s.Close()

	for i := 0; i < 5; i++ {
		if _, _, err := s.Get(ctx, "a"); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}
	if got := data.fetches.Load(); got != 1 {
		t.Fatalf("reads within the interval must not refresh, got %d downloads", got)
	}

	data.set(map[string]string{"a": "2"}, nil)
	clock.Advance(2 * time.Minute)
	if _, _, err := s.Get(ctx, "a"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	waitFor(t, func() bool { return s.Phase() == PhaseRefreshed })
	if got := data.fetches.Load(); got != 2 {
		t.Errorf("expected exactly one background refresh, got %d downloads", got)
	}
	val, _, _ := s.Get(ctx, "a")
	if string(val) != "2" {
		t.Errorf("expected the refreshed value 2, got %q", val)
	}
}

func TestRefreshWritesOnlyChanges(t *testing.T) {
	ctx := context.Background()
	var writes, removes atomic.Int64
	cache := hookstore.New(lstore.NewMemoryStore(nil), hookstore.Hooks{
		OnSet: func(context.Context, string, []byte, []byte, bool) error {
			writes.Add(1)
			return nil
		},
		OnRemove: func(context.Context, string) error {
			removes.Add(1)
			return nil
		},
	})
	data := &dataset{}
	data.set(map[string]string{"a": "1", "b": "2", "c": "3"}, nil)
	s := NewRemoteStore(data, Options{Cache: cache, Interval: time.Hour})
	defer s.Close()

	stats, err := s.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if stats.Written != 3 || writes.Load() != 3 {
		t.Fatalf("expected 3 initial writes, got %+v (%d)", stats, writes.Load())
	}

	data.set(map[string]string{"a": "1", "b": "changed", "d": "4"}, nil)
	stats, err = s.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	want := RefreshStats{Rows: 3, Written: 2, Removed: 1}
	if stats != want {
		t.Errorf("expected %+v, got %+v", want, stats)
	}
	if writes.Load() != 5 || removes.Load() != 1 {
		t.Errorf("expected 5 writes and 1 removal in total, got %d and %d", writes.Load(), removes.Load())
	}
	if ok, _ := s.ContainsKey(ctx, "c"); ok {
		t.Errorf("c disappeared remotely and must be removed")
	}
}

func TestFailuresBackOff(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("network down")
	data := &dataset{}
	data.set(nil, boom)
	s := NewRemoteStore(data, Options{InitialBackoff: 10 * time.Millisecond, MaxBackoff: 50 * time.Millisecond})
	defer s.Close()

	if _, _, err := s.Get(ctx, "a"); !errors.Is(err, boom) {
		t.Fatalf("expected the download error, got %v", err)
	}
	if s.Phase() != PhaseNotLoaded || !errors.Is(s.LastError(), boom) {
		t.Fatalf("a failed download must not change the phase")
	}

	data.set(map[string]string{"a": "1"}, nil)
	val, ok, err := s.Get(ctx, "a")
	if err != nil || !ok || string(val) != "1" {
		t.Fatalf("expected the download to succeed after the backoff, got %q ok=%v err=%v", val, ok, err)
	}
	if s.LastError() != nil || s.LastFetch().IsZero() {
		t.Errorf("a successful download must reset the failure state")
	}
}

func TestCacheWriteFailuresBackOff(t *testing.T) {
	ctx := context.Background()
	data := &dataset{}
	data.set(map[string]string{"a": "1"}, nil)
	cache := storetesting.NewFlakyStore()
	cache.SetFailing(true)
	s := NewRemoteStore(data, Options{Cache: cache, InitialBackoff: time.Hour, MaxBackoff: time.Hour})
	defer s.Close()

	if _, _, err := s.Get(ctx, "a"); !errors.Is(err, storetesting.ErrTimeout) {
		t.Fatalf("expected the cache error, got %v", err)
	}
	if !errors.Is(s.LastError(), storetesting.ErrTimeout) {
		t.Errorf("a failed cache write must be recorded, got %v", s.LastError())
	}

	// the next read waits for the backoff instead of downloading again
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, _, err := s.Get(short, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the read to wait for the backoff, got %v", err)
	}
	if data.fetches.Load() != 1 {
		t.Errorf("expected one download, got %d", data.fetches.Load())
	}
}

func TestNoRefreshAfterClose(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1000, 0)}
	data := &dataset{}
	data.set(map[string]string{"a": "1"}, nil)
	s := NewRemoteStore(data, Options{Interval: time.Minute, Now: clock.Now})

	if _, _, err := s.Get(ctx, "a"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	clock.Advance(time.Hour)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s.remote.maybeRefresh()
	s.remote.mu.Lock()
	refreshing := s.remote.state.refreshing
	s.remote.mu.Unlock()
	if refreshing || data.fetches.Load() != 1 {
		t.Errorf("a closed store must not start refreshes (refreshing=%v, fetches=%d)", refreshing, data.fetches.Load())
	}
}

func TestOnlineWait(t *testing.T) {
	data := &dataset{}
	data.set(map[string]string{"a": "1"}, nil)
	offline := errors.New("offline")
	s := NewRemoteStore(data, Options{Online: func(context.Context) error { return offline }})
	defer s.Close()

	if _, _, err := s.Get(context.Background(), "a"); !errors.Is(err, offline) {
		t.Errorf("expected the connectivity error, got %v", err)
	}
	if data.fetches.Load() != 0 {
		t.Errorf("nothing must be downloaded while offline")
	}
}

func TestSheetFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sheet.csv" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, "id,name,age\na,Ada,36\nb,Bob\n,nobody,1\n")
	}))
	defer server.Close()

	fetcher := &SheetFetcher{URL: server.URL + "/sheet.csv", Client: NewHTTPClient(0, time.Second)}
	rows, err := fetcher.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	want := map[string]string{
		"a": `{"age":"36","id":"a","name":"Ada"}`,
		"b": `{"age":"","id":"b","name":"Bob"}`,
	}
	got := make(map[string]string, len(rows))
	for k, v := range rows {
		got[k] = string(v)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}

	missing := &SheetFetcher{URL: server.URL + "/missing.csv", Client: NewHTTPClient(0, time.Second)}
	if _, err := missing.Fetch(context.Background()); err == nil {
		t.Errorf("expected an error for a missing sheet")
	}
}

func TestJSONFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"x": {"n": 1}, "y": "text"}`)
	}))
	defer server.Close()

	s := NewRemoteStore(&JSONFetcher{URL: server.URL, Client: NewHTTPClient(0, time.Second)}, Options{})
	defer s.Close()

	val, ok, err := s.Get(context.Background(), "x")
	if err != nil || !ok || string(val) != `{"n": 1}` {
		t.Errorf("expected the raw JSON value, got %q ok=%v err=%v", val, ok, err)
	}
}

func TestParseRows(t *testing.T) {
	if _, err := ParseRows([][]string{{""}}); err == nil {
		t.Errorf("expected an error without key column")
	}
	rows, err := ParseRows(nil)
	if err != nil || len(rows) != 0 {
		t.Errorf("expected no rows, got %v err=%v", rows, err)
	}
	rows, _ = ParseRows([][]string{{"id", "v"}, {"k", "1"}, {"k", "2"}})
	if string(rows["k"]) != `{"id":"k","v":"2"}` {
		t.Errorf("a later row must replace an earlier one, got %s", rows["k"])
	}
}
