package bolt

import (
	"bytes"
	"context"
	"fmt"
	"github.com/ValentinKolb/stacKV/lib/db"
	"go.etcd.io/bbolt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	defaultBucket  = "kv"
	defaultTimeout = time.Second
)

// DBOptions configures the bolt engine
type DBOptions struct {
	// Path of the database file (required). Parent directories are created.
	Path string
	// Bucket holding the entries (empty = "kv")
	Bucket string
	// Timeout waiting for the file lock (0 = 1s). A database locked by another process
	// surfaces as an error after this timeout.
	Timeout time.Duration
}

// boltImpl stores all entries in one bucket of a bbolt database file
type boltImpl struct {
	db     *bbolt.DB
	bucket []byte
	path   string

	// writeMu serializes structural writes of concurrent in-flight operations
	writeMu sync.Mutex
}

// NewBoltDB opens (or creates) the bbolt database at opts.Path.
func NewBoltDB(opts DBOptions) (db.KVDB, error) {
	if strings.TrimSpace(opts.Path) == "" {
		return nil, fmt.Errorf("bolt path is required")
	}
	if opts.Bucket == "" {
		opts.Bucket = defaultBucket
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}

	cleanPath := filepath.Clean(opts.Path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create dir for %s: %w", cleanPath, err)
	}
	bdb, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt db %s: %w", cleanPath, err)
	}

	b := &boltImpl{db: bdb, bucket: []byte(opts.Bucket), path: cleanPath}
	if err := b.ensureBucket(); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return b, nil
}

func (b *boltImpl) ensureBucket() error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(b.bucket); err != nil {
			return fmt.Errorf("create bucket %s: %w", b.bucket, err)
		}
		return nil
	})
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.KVDB)
// --------------------------------------------------------------------------

func (b *boltImpl) Set(ctx context.Context, key string, value []byte) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	var (
		old    []byte
		loaded bool
	)
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return fmt.Errorf("bucket %s is missing", b.bucket)
		}
		old, loaded = lookup(bucket, key)
		// bbolt keeps a reference to the value until the transaction commits
		return bucket.Put([]byte(key), cloneBytes(value))
	})
	if err != nil {
		return nil, false, fmt.Errorf("put %q: %w", key, err)
	}
	return old, loaded, nil
}

func (b *boltImpl) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	stored := false
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return fmt.Errorf("bucket %s is missing", b.bucket)
		}
		if _, ok := lookup(bucket, key); ok {
			return nil
		}
		stored = true
		return bucket.Put([]byte(key), cloneBytes(value))
	})
	if err != nil {
		return false, fmt.Errorf("put %q: %w", key, err)
	}
	return stored, nil
}

func (b *boltImpl) Delete(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	deleted := false
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return fmt.Errorf("bucket %s is missing", b.bucket)
		}
		if _, ok := lookup(bucket, key); !ok {
			return nil
		}
		deleted = true
		return bucket.Delete([]byte(key))
	})
	if err != nil {
		return false, fmt.Errorf("delete %q: %w", key, err)
	}
	return deleted, nil
}

func (b *boltImpl) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	return b.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(b.bucket); err != nil && err != bbolt.ErrBucketNotFound {
			return fmt.Errorf("clear bucket %s: %w", b.bucket, err)
		}
		_, err := tx.CreateBucket(b.bucket)
		return err
	})
}

func (b *boltImpl) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var (
		value []byte
		found bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return fmt.Errorf("bucket %s is missing", b.bucket)
		}
		value, found = lookup(bucket, key)
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, found, nil
}

func (b *boltImpl) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := b.Get(ctx, key)
	return ok, err
}

func (b *boltImpl) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		if bucket == nil {
			return fmt.Errorf("bucket %s is missing", b.bucket)
		}
		return bucket.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

func (b *boltImpl) SupportsFeature(feature db.Feature) bool {
	return db.FeaturesAll&feature == feature
}

func (b *boltImpl) GetInfo() db.DatabaseInfo {
	stats := b.db.Stats()
	return db.DatabaseInfo{
		DbType:            db.ImplBolt,
		SupportedFeatures: db.FeaturesAll.Features(),
		Metadata: map[string]interface{}{
			"path":     b.path,
			"bucket":   string(b.bucket),
			"open_txn": stats.OpenTxN,
		},
	}
}

func (b *boltImpl) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// lookup finds a key with a cursor so that empty values are found as well.
// The returned value is a copy, bbolt values are only valid inside the transaction.
func lookup(bucket *bbolt.Bucket, key string) ([]byte, bool) {
	k, v := bucket.Cursor().Seek([]byte(key))
	if k == nil || !bytes.Equal(k, []byte(key)) {
		return nil, false
	}
	return cloneBytes(v), true
}

// cloneBytes copies b, an empty value becomes a non-nil empty slice (bbolt treats nil as "absent")
func cloneBytes(v []byte) []byte {
	c := make([]byte, len(v))
	copy(c, v)
	return c
}
