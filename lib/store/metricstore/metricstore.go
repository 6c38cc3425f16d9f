package metricstore

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/stacKV/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"io"
	"time"
)

// Store records requests, errors, hits and latency of every operation of its fallback
type Store struct {
	store.Base
	set  *metrics.Set
	name string
}

// New creates a metrics layer over inner. The metrics are registered in set (nil = a new set)
// and labeled with name.
func New(inner store.IStore, set *metrics.Set, name string) *Store {
	if set == nil {
		set = metrics.NewSet()
	}
	if name == "" {
		name = "default"
	}
	s := &Store{set: set, name: name}
	s.SetFallback(inner)
	return s
}

// Metrics returns the set holding the metrics of this store.
func (s *Store) Metrics() *metrics.Set {
	return s.set
}

// WritePrometheus writes the metrics in Prometheus text format to w.
func (s *Store) WritePrometheus(w io.Writer) {
	s.set.WritePrometheus(w)
}

func (s *Store) metricName(metric, op string) string {
	return fmt.Sprintf(`stackv_store_%s{store=%q,op=%q}`, metric, s.name, op)
}

// observe counts the request and measures its latency, call the returned func with the result
func (s *Store) observe(op string) func(err error) {
	start := time.Now()
	s.set.GetOrCreateCounter(s.metricName("requests_total", op)).Inc()
	return func(err error) {
		s.set.GetOrCreateHistogram(s.metricName("duration_seconds", op)).UpdateDuration(start)
		if err != nil {
			s.set.GetOrCreateCounter(s.metricName("errors_total", op)).Inc()
		}
	}
}

func (s *Store) hit(op string, hit bool) {
	if hit {
		s.set.GetOrCreateCounter(s.metricName("hits_total", op)).Inc()
	} else {
		s.set.GetOrCreateCounter(s.metricName("misses_total", op)).Inc()
	}
}

func (s *Store) inner() (store.IStore, error) {
	if s.Closed() {
		return nil, store.ErrClosed
	}
	inner := s.Fallback()
	if inner == nil {
		return nil, store.NewError(store.RetCInvalidOperation, "metrics store has no fallback")
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
	done := s.observe("get")
	value, found, err := inner.Get(ctx, key)
	done(err)
	if err == nil {
		s.hit("get", found)
	}
	return value, found, err
}

func (s *Store) Set(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	inner, err := s.inner()
	if err != nil {
		return nil, false, err
	}
	done := s.observe("set")
	old, existed, err := inner.Set(ctx, key, value)
	done(err)
	return old, existed, err
}

func (s *Store) Remove(ctx context.Context, key string) (bool, error) {
	inner, err := s.inner()
	if err != nil {
		return false, err
	}
	done := s.observe("remove")
	removed, err := inner.Remove(ctx, key)
	done(err)
	return removed, err
}

func (s *Store) RemoveAll(ctx context.Context) error {
	inner, err := s.inner()
	if err != nil {
		return err
	}
	done := s.observe("remove_all")
	err = inner.RemoveAll(ctx)
	done(err)
	return err
}

func (s *Store) ContainsKey(ctx context.Context, key string) (bool, error) {
	inner, err := s.inner()
	if err != nil {
		return false, err
	}
	done := s.observe("contains")
	ok, err := inner.ContainsKey(ctx, key)
	done(err)
	if err == nil {
		s.hit("contains", ok)
	}
	return ok, err
}

func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	inner, err := s.inner()
	if err != nil {
		return nil, err
	}
	done := s.observe("list_keys")
	keys, err := inner.ListKeys(ctx)
	done(err)
	return keys, err
}

// Close closes the fallback chain. The metrics stay registered in the set.
func (s *Store) Close() error {
	return s.CloseChain(nil)
}
