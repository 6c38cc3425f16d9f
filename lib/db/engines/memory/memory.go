package memory

import (
	"context"
	"github.com/ValentinKolb/stacKV/lib/db"
	"github.com/puzpuzpuz/xsync/v3"
)

// memoryImpl is a concurrent in-memory engine backed by an xsync.MapOf
type memoryImpl struct {
	data *xsync.MapOf[string, []byte]
}

// NewMemoryDB creates a new, empty in-memory engine.
//
// Thread-safety: All methods are safe for concurrent use.
func NewMemoryDB() db.KVDB {
	return &memoryImpl{
		data: xsync.NewMapOf[string, []byte](),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.KVDB)
// --------------------------------------------------------------------------

func (m *memoryImpl) Set(_ context.Context, key string, value []byte) ([]byte, bool, error) {
	old, loaded := m.data.LoadAndStore(key, clone(value))
	if !loaded {
		// on insert LoadAndStore reports the new value
		return nil, false, nil
	}
	return old, true, nil
}

func (m *memoryImpl) SetIfAbsent(_ context.Context, key string, value []byte) (bool, error) {
	_, loaded := m.data.LoadOrStore(key, clone(value))
	return !loaded, nil
}

func (m *memoryImpl) Delete(_ context.Context, key string) (bool, error) {
	_, loaded := m.data.LoadAndDelete(key)
	return loaded, nil
}

func (m *memoryImpl) Clear(_ context.Context) error {
	m.data.Clear()
	return nil
}

func (m *memoryImpl) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, ok := m.data.Load(key)
	if !ok {
		return nil, false, nil
	}
	return clone(val), true, nil
}

func (m *memoryImpl) Has(_ context.Context, key string) (bool, error) {
	_, ok := m.data.Load(key)
	return ok, nil
}

func (m *memoryImpl) Keys(_ context.Context) ([]string, error) {
	keys := make([]string, 0, m.data.Size())
	m.data.Range(func(key string, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	return keys, nil
}

func (m *memoryImpl) SupportsFeature(feature db.Feature) bool {
	return db.FeaturesAll&feature == feature
}

func (m *memoryImpl) GetInfo() db.DatabaseInfo {
	return db.DatabaseInfo{
		DbType:            db.ImplMemory,
		SupportedFeatures: db.FeaturesAll.Features(),
		Metadata: map[string]int{
			"keys": m.data.Size(),
		},
	}
}

func (m *memoryImpl) Close() error {
	m.data.Clear()
	return nil
}

// clone copies a value, an empty value stays non-nil so that it can be told apart from "absent"
func clone(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
