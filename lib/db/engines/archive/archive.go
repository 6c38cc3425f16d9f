package archive

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/stacKV/lib/db"
	"github.com/ValentinKolb/stacKV/lib/db/util"
	"github.com/klauspost/compress/zip"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/afero"
	"io"
	"io/fs"
	"path/filepath"
	"sync"
)

var log = logger.GetLogger("engine")

// --------------------------------------------------------------------------
// Constants & Options
// --------------------------------------------------------------------------

const defaultFlushThreshold = 64

// DBOptions configures the archive engine
type DBOptions struct {
	// Fs is the filesystem holding the archive (nil = the OS filesystem)
	Fs afero.Fs
	// Path is the path of the zip file. It is created on the first flush.
	Path string
	// FlushThreshold is the number of uncommitted changes after which the archive is
	// rewritten and reopened (0 = default: 64)
	FlushThreshold int
}

// Flusher is implemented by the archive engine, Flush writes all pending changes to the archive file.
// Writes never fail because of a flush: a failed automatic flush is logged and retried with the next
// change, Flush and Close return the error.
type Flusher interface {
	Flush() error
	// Pending returns the number of uncommitted changes
	Pending() int
}

// change is an uncommitted write (value) or removal (deleted) of a key
type change struct {
	value   []byte
	deleted bool
}

// --------------------------------------------------------------------------
// Core archive engine structure
// --------------------------------------------------------------------------

// archiveImpl keeps one zip archive open across operations. Writes are collected in an
// in-memory delta on top of the archive, the WriteBuffer decides when the delta is
// merged into a new archive which then replaces (close + reopen) the old one.
type archiveImpl struct {
	fs   afero.Fs
	path string

	// mu guards all fields below, writes and the close/reopen transition take the write lock
	mu      sync.RWMutex
	file    afero.File           // open archive file (nil if no archive exists yet)
	entries map[string]*zip.File // key -> committed entry of the open archive
	delta   map[string]change    // uncommitted changes
	cleared bool                 // committed entries are hidden by a pending Clear
	buffer  *WriteBuffer
	closed  bool

	// readMu serializes entry reads, afero files do not promise concurrent ReadAt
	readMu sync.Mutex
}

// NewArchiveDB opens (or lazily creates) the zip archive at opts.Path.
// Returns an error if an existing archive cannot be read.
func NewArchiveDB(opts DBOptions) (db.KVDB, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.FlushThreshold == 0 {
		opts.FlushThreshold = defaultFlushThreshold
	}
	a := &archiveImpl{
		fs:     opts.Fs,
		path:   filepath.Clean(opts.Path),
		delta:  make(map[string]change),
		buffer: NewWriteBuffer(opts.FlushThreshold),
	}
	if err := a.open(); err != nil {
		return nil, err
	}
	return a, nil
}

// --------------------------------------------------------------------------
// Archive handling (callers must hold the write lock)
// --------------------------------------------------------------------------

// open opens the archive file and indexes its entries by key (stored in the entry comment)
func (a *archiveImpl) open() error {
	a.entries = make(map[string]*zip.File)

	file, err := a.fs.Open(a.path)
	if errors.Is(err, fs.ErrNotExist) {
		a.file = nil
		return nil
	}
	if err != nil {
		return fmt.Errorf("open archive %s: %w", a.path, err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("stat archive %s: %w", a.path, err)
	}
	reader, err := zip.NewReader(file, info.Size())
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("read archive %s: %w", a.path, err)
	}
	for _, f := range reader.File {
		a.entries[f.Comment] = f
	}
	a.file = file
	return nil
}

// flush merges the committed entries and the delta into a new archive and reopens it
func (a *archiveImpl) flush() error {
	if a.buffer.Pending() == 0 {
		return nil
	}

	if err := a.fs.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", a.path, err)
	}
	tmp, err := afero.TempFile(a.fs, filepath.Dir(a.path), filepath.Base(a.path)+"-*"+util.TempSuffix)
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	tmpName := tmp.Name()

	if err := a.writeMerged(tmp); err != nil {
		_ = tmp.Close()
		_ = a.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = a.fs.Remove(tmpName)
		return fmt.Errorf("write temp archive: %w", err)
	}

	// close + reopen
	if a.file != nil {
		if err := a.file.Close(); err != nil {
			log.Warningf("closing archive %s: %v", a.path, err)
		}
		a.file = nil
	}
	if err := a.fs.Rename(tmpName, a.path); err != nil {
		_ = a.fs.Remove(tmpName)
		// the old archive is untouched, try to get back to it
		if reopenErr := a.open(); reopenErr != nil {
			log.Errorf("reopening archive %s failed: %v", a.path, reopenErr)
		}
		return fmt.Errorf("replace archive %s: %w", a.path, err)
	}
	if err := a.open(); err != nil {
		log.Errorf("reopening archive %s failed: %v", a.path, err)
		return err
	}

	a.delta = make(map[string]change)
	a.cleared = false
	a.buffer.Reset()
	log.Debugf("archive %s rewritten with %d entries", a.path, len(a.entries))
	return nil
}

// writeMerged writes the merged view of the archive to w
func (a *archiveImpl) writeMerged(w io.Writer) error {
	zw := zip.NewWriter(w)

	write := func(key string, value []byte) error {
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:    util.FileName(key),
			Comment: key,
			Method:  zip.Deflate,
		})
		if err != nil {
			return fmt.Errorf("add %q to archive: %w", key, err)
		}
		if _, err := fw.Write(value); err != nil {
			return fmt.Errorf("add %q to archive: %w", key, err)
		}
		return nil
	}

	if !a.cleared {
		for key, f := range a.entries {
			if _, changed := a.delta[key]; changed {
				continue
			}
			value, err := a.readEntry(f)
			if err != nil {
				return err
			}
			if err := write(key, value); err != nil {
				return err
			}
		}
	}
	for key, c := range a.delta {
		if c.deleted {
			continue
		}
		if err := write(key, c.value); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish archive: %w", err)
	}
	return nil
}

// record registers a change and flushes if the write buffer asks for it.
// The change is already part of the delta, so a failed flush does not fail the write:
// it is logged and the change stays pending until the next flush (next change, Flush or Close).
func (a *archiveImpl) record() {
	if !a.buffer.Record() {
		return
	}
	if err := a.flush(); err != nil {
		log.Errorf("flushing archive %s failed, %d changes stay pending: %v", a.path, a.buffer.Pending(), err)
	}
}

// --------------------------------------------------------------------------
// Lookup (callers must hold at least the read lock)
// --------------------------------------------------------------------------

func (a *archiveImpl) lookup(key string) ([]byte, bool, error) {
	if c, ok := a.delta[key]; ok {
		if c.deleted {
			return nil, false, nil
		}
		return cloneBytes(c.value), true, nil
	}
	if a.cleared {
		return nil, false, nil
	}
	f, ok := a.entries[key]
	if !ok {
		return nil, false, nil
	}
	value, err := a.readEntry(f)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (a *archiveImpl) readEntry(f *zip.File) ([]byte, error) {
	a.readMu.Lock()
	defer a.readMu.Unlock()

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	value, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
	}
	return value, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.KVDB)
// --------------------------------------------------------------------------

func (a *archiveImpl) Set(_ context.Context, key string, value []byte) ([]byte, bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, false, errClosed
	}

	old, loaded, err := a.lookup(key)
	if err != nil {
		return nil, false, err
	}
	a.delta[key] = change{value: cloneBytes(value)}
	a.record()
	return old, loaded, nil
}

func (a *archiveImpl) SetIfAbsent(_ context.Context, key string, value []byte) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false, errClosed
	}

	_, loaded, err := a.lookup(key)
	if err != nil || loaded {
		return false, err
	}
	a.delta[key] = change{value: cloneBytes(value)}
	a.record()
	return true, nil
}

func (a *archiveImpl) Delete(_ context.Context, key string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false, errClosed
	}

	_, loaded, err := a.lookup(key)
	if err != nil || !loaded {
		return false, err
	}
	a.delta[key] = change{deleted: true}
	a.record()
	return true, nil
}

func (a *archiveImpl) Clear(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errClosed
	}

	a.delta = make(map[string]change)
	a.cleared = true
	a.record()
	return nil
}

func (a *archiveImpl) Get(_ context.Context, key string) ([]byte, bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, false, errClosed
	}
	return a.lookup(key)
}

func (a *archiveImpl) Has(_ context.Context, key string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return false, errClosed
	}

	if c, ok := a.delta[key]; ok {
		return !c.deleted, nil
	}
	if a.cleared {
		return false, nil
	}
	_, ok := a.entries[key]
	return ok, nil
}

func (a *archiveImpl) Keys(_ context.Context) ([]string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil, errClosed
	}

	keys := make([]string, 0, len(a.entries)+len(a.delta))
	if !a.cleared {
		for key := range a.entries {
			if _, changed := a.delta[key]; !changed {
				keys = append(keys, key)
			}
		}
	}
	for key, c := range a.delta {
		if !c.deleted {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (a *archiveImpl) SupportsFeature(feature db.Feature) bool {
	return db.FeaturesAll&feature == feature
}

func (a *archiveImpl) GetInfo() db.DatabaseInfo {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return db.DatabaseInfo{
		DbType:            db.ImplArchive,
		SupportedFeatures: db.FeaturesAll.Features(),
		Metadata: map[string]interface{}{
			"path":      a.path,
			"committed": len(a.entries),
			"pending":   a.buffer.Pending(),
			"threshold": a.buffer.Threshold(),
			"flushes":   a.buffer.Flushes(),
		},
	}
}

// Flush writes all pending changes to the archive file.
func (a *archiveImpl) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errClosed
	}
	return a.flush()
}

// Pending returns the number of uncommitted changes.
func (a *archiveImpl) Pending() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.buffer.Pending()
}

// Close flushes pending changes and closes the archive file.
func (a *archiveImpl) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	err := a.flush()
	if a.file != nil {
		if closeErr := a.file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		a.file = nil
	}
	return err
}

var errClosed = errors.New("archive is closed")

func cloneBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
