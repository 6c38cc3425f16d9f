package lstore

import (
	"context"
	"github.com/ValentinKolb/stacKV/lib/db"
	"github.com/ValentinKolb/stacKV/lib/db/engines/archive"
	"github.com/ValentinKolb/stacKV/lib/db/engines/bolt"
	"github.com/ValentinKolb/stacKV/lib/db/engines/file"
	"github.com/ValentinKolb/stacKV/lib/db/engines/memory"
	"github.com/ValentinKolb/stacKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

// DBFactory creates the engine of a local store
type DBFactory func() (db.KVDB, error)

// Store turns a db.KVDB engine into a chained store.IStore.
// Reads fall through to the fallback and populate the engine, writes go to the engine first
// and are then propagated to the fallback.
type Store struct {
	store.Base
	db db.KVDB
}

// New creates a local store over the given engine. fallback may be nil.
func New(engine db.KVDB, fallback store.IStore) *Store {
	s := &Store{db: engine}
	s.SetFallback(fallback)
	return s
}

// NewLocalStore creates the engine with factory and wraps it in a local store.
func NewLocalStore(factory DBFactory, fallback store.IStore) (*Store, error) {
	engine, err := factory()
	if err != nil {
		return nil, err
	}
	return New(engine, fallback), nil
}

// NewMemoryStore creates an in-memory store. With a fallback it acts as a read-through
// and write-through cache on top of it.
func NewMemoryStore(fallback store.IStore) *Store {
	return New(memory.NewMemoryDB(), fallback)
}

// NewFileStore creates a store keeping one file per key in opts.Dir.
func NewFileStore(opts file.DBOptions, fallback store.IStore) *Store {
	return New(file.NewFileDB(opts), fallback)
}

// NewArchiveStore creates a store backed by a single zip archive.
func NewArchiveStore(opts archive.DBOptions, fallback store.IStore) (*Store, error) {
	return NewLocalStore(func() (db.KVDB, error) { return archive.NewArchiveDB(opts) }, fallback)
}

// NewBoltStore creates a store backed by a bbolt database file.
func NewBoltStore(opts bolt.DBOptions, fallback store.IStore) (*Store, error) {
	return NewLocalStore(func() (db.KVDB, error) { return bolt.NewBoltDB(opts) }, fallback)
}

// DB returns the engine of this layer.
func (s *Store) DB() db.KVDB {
	return s.db
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.Closed() {
		return nil, false, store.ErrClosed
	}
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, false, store.Unsupported("Get")
	}
	value, ok, err := s.db.Get(ctx, key)
	if err != nil || ok {
		return value, ok, err
	}

	fb := s.Fallback()
	if fb == nil {
		return nil, false, nil
	}
	value, ok, err = fb.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}

	// self-healing read-through, a failing cache write does not fail the read.
	// A Set that landed while the fallback was read is newer and must not be replaced.
	if s.db.SupportsFeature(db.FeatureSet) {
		if _, err := s.db.SetIfAbsent(ctx, key, value); err != nil {
			log.Warningf("caching %q from fallback failed: %v", key, err)
		}
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	if s.Closed() {
		return nil, false, store.ErrClosed
	}
	if !s.db.SupportsFeature(db.FeatureSet) {
		return nil, false, store.Unsupported("Set")
	}
	old, existed, err := s.db.Set(ctx, key, value)
	if err != nil {
		return nil, false, err
	}

	fb := s.Fallback()
	if fb == nil {
		return old, existed, nil
	}
	fbOld, fbExisted, err := fb.Set(ctx, key, value)
	if err != nil {
		return old, existed, err
	}
	// the own prior value is the most authoritative one
	if !existed {
		return fbOld, fbExisted, nil
	}
	return old, existed, nil
}

func (s *Store) Remove(ctx context.Context, key string) (bool, error) {
	if s.Closed() {
		return false, store.ErrClosed
	}
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return false, store.Unsupported("Remove")
	}
	removed, err := s.db.Delete(ctx, key)
	if err != nil {
		return false, err
	}

	if fb := s.Fallback(); fb != nil {
		fbRemoved, err := fb.Remove(ctx, key)
		if err != nil {
			return removed, err
		}
		removed = removed || fbRemoved
	}
	return removed, nil
}

func (s *Store) RemoveAll(ctx context.Context) error {
	if s.Closed() {
		return store.ErrClosed
	}
	if !s.db.SupportsFeature(db.FeatureClear) {
		return store.Unsupported("RemoveAll")
	}
	if err := s.db.Clear(ctx); err != nil {
		return err
	}
	if fb := s.Fallback(); fb != nil {
		return fb.RemoveAll(ctx)
	}
	return nil
}

func (s *Store) ContainsKey(ctx context.Context, key string) (bool, error) {
	if s.Closed() {
		return false, store.ErrClosed
	}
	if !s.db.SupportsFeature(db.FeatureHas) {
		return false, store.Unsupported("ContainsKey")
	}
	ok, err := s.db.Has(ctx, key)
	if err != nil || ok {
		return ok, err
	}
	if fb := s.Fallback(); fb != nil {
		return fb.ContainsKey(ctx, key)
	}
	return false, nil
}

func (s *Store) ListKeys(ctx context.Context) ([]string, error) {
	if s.Closed() {
		return nil, store.ErrClosed
	}
	if !s.db.SupportsFeature(db.FeatureKeys) {
		return nil, store.Unsupported("ListKeys")
	}
	keys, err := s.db.Keys(ctx)
	if err != nil {
		return nil, err
	}
	if fb := s.Fallback(); fb != nil {
		fbKeys, err := fb.ListKeys(ctx)
		if err != nil {
			return nil, err
		}
		return store.MergeKeys(keys, fbKeys), nil
	}
	return store.MergeKeys(keys), nil
}

// Close closes the engine and the fallback chain.
func (s *Store) Close() error {
	return s.CloseChain(s.db.Close)
}

// GetDBInfo returns information about the engine of this layer.
func (s *Store) GetDBInfo() db.DatabaseInfo {
	return s.db.GetInfo()
}
