package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/ValentinKolb/stacKV/lib/db"
	"github.com/ValentinKolb/stacKV/lib/db/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/afero"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
)

var log = logger.GetLogger("engine")

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// DBOptions configures the file engine
type DBOptions struct {
	// Fs is the filesystem the files are written to (nil = the OS filesystem)
	Fs afero.Fs
	// Dir is the directory holding one file per key. It is created on the first write.
	Dir string
	// FileMode is used for new files (0 = 0o644)
	FileMode fs.FileMode
}

// ErrCollision is returned by writes whose key maps to a file owned by another key
var ErrCollision = errors.New("key collides with the file of another key")

// record is the content of a key file
type record struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// --------------------------------------------------------------------------
// Core file engine structure
// --------------------------------------------------------------------------

// fileImpl maps every key to one file inside a directory
type fileImpl struct {
	fs   afero.Fs
	dir  string
	mode fs.FileMode

	// writeMu serializes writes so that the reported old value is consistent
	writeMu sync.Mutex
}

// NewFileDB creates a new file engine. Missing directories are created lazily.
func NewFileDB(opts DBOptions) db.KVDB {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0o644
	}
	return &fileImpl{
		fs:   opts.Fs,
		dir:  filepath.Clean(opts.Dir),
		mode: opts.FileMode,
	}
}

// path returns the file path for a key
func (f *fileImpl) path(key string) string {
	return filepath.Join(f.dir, util.FileName(key))
}

// readRecord reads and decodes a key file.
// Missing and corrupt files are reported as not found, corrupt files are logged.
func (f *fileImpl) readRecord(path string) (record, bool, error) {
	data, err := afero.ReadFile(f.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return record{}, false, nil
	}
	if err != nil {
		return record{}, false, fmt.Errorf("read %s: %w", path, err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Warningf("ignoring corrupt file %s: %v", path, err)
		return record{}, false, nil
	}
	if rec.Value == nil {
		rec.Value = []byte{}
	}
	return rec, true, nil
}

// writeRecord atomically replaces the file for a key (temp file + rename)
func (f *fileImpl) writeRecord(key string, value []byte) error {
	data, err := json.Marshal(record{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	if err := f.fs.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", f.dir, err)
	}

	tmp, err := afero.TempFile(f.fs, f.dir, "write-*"+util.TempSuffix)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = f.fs.Remove(tmpName)
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = f.fs.Remove(tmpName)
		return fmt.Errorf("write %q: %w", key, err)
	}
	if err := f.fs.Chmod(tmpName, f.mode); err != nil {
		log.Debugf("chmod %s: %v", tmpName, err)
	}
	if err := f.fs.Rename(tmpName, f.path(key)); err != nil {
		_ = f.fs.Remove(tmpName)
		return fmt.Errorf("rename %q: %w", key, err)
	}
	return nil
}

// keyFiles lists the paths of all key files (skips directories and in-flight temp files)
func (f *fileImpl) keyFiles() ([]string, error) {
	infos, err := afero.ReadDir(f.fs, f.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", f.dir, err)
	}
	paths := make([]string, 0, len(infos))
	for _, info := range infos {
		if info.IsDir() || strings.HasSuffix(info.Name(), util.TempSuffix) {
			continue
		}
		paths = append(paths, filepath.Join(f.dir, info.Name()))
	}
	return paths, nil
}

// --------------------------------------------------------------------------
// Interface Methods (docu see db.KVDB)
// --------------------------------------------------------------------------

func (f *fileImpl) Set(_ context.Context, key string, value []byte) ([]byte, bool, error) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	old, loaded, err := f.owned(key)
	if err != nil {
		return nil, false, err
	}
	if err := f.writeRecord(key, value); err != nil {
		return nil, false, err
	}
	return old, loaded, nil
}

func (f *fileImpl) SetIfAbsent(_ context.Context, key string, value []byte) (bool, error) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	_, loaded, err := f.owned(key)
	if err != nil || loaded {
		return false, err
	}
	if err := f.writeRecord(key, value); err != nil {
		return false, err
	}
	return true, nil
}

func (f *fileImpl) Delete(_ context.Context, key string) (bool, error) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	_, loaded, err := f.get(key)
	if err != nil || !loaded {
		return false, err
	}
	if err := f.fs.Remove(f.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("delete %q: %w", key, err)
	}
	return true, nil
}

func (f *fileImpl) Clear(_ context.Context) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	paths, err := f.keyFiles()
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := f.fs.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("clear %s: %w", p, err)
		}
	}
	return nil
}

func (f *fileImpl) Get(_ context.Context, key string) ([]byte, bool, error) {
	return f.get(key)
}

func (f *fileImpl) get(key string) ([]byte, bool, error) {
	rec, ok, err := f.readRecord(f.path(key))
	if err != nil || !ok {
		return nil, false, err
	}
	// a file written for another key with the same name is not ours
	if rec.Key != key {
		return nil, false, nil
	}
	return rec.Value, true, nil
}

// owned is get for writers: a file holding the record of another key (e.g. on a case
// insensitive filesystem) is reported as ErrCollision instead of being overwritten
func (f *fileImpl) owned(key string) ([]byte, bool, error) {
	rec, ok, err := f.readRecord(f.path(key))
	if err != nil || !ok {
		return nil, false, err
	}
	if rec.Key != key {
		return nil, false, fmt.Errorf("%w: %q and %q map to %s", ErrCollision, key, rec.Key, f.path(key))
	}
	return rec.Value, true, nil
}

func (f *fileImpl) Has(_ context.Context, key string) (bool, error) {
	_, ok, err := f.get(key)
	return ok, err
}

func (f *fileImpl) Keys(_ context.Context) ([]string, error) {
	paths, err := f.keyFiles()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(paths))
	for _, p := range paths {
		rec, ok, err := f.readRecord(p)
		if err != nil {
			return nil, err
		}
		if ok {
			keys = append(keys, rec.Key)
		}
	}
	return keys, nil
}

func (f *fileImpl) SupportsFeature(feature db.Feature) bool {
	return db.FeaturesAll&feature == feature
}

func (f *fileImpl) GetInfo() db.DatabaseInfo {
	return db.DatabaseInfo{
		DbType:            db.ImplFile,
		SupportedFeatures: db.FeaturesAll.Features(),
		Metadata: map[string]string{
			"dir": f.dir,
			"fs":  f.fs.Name(),
		},
	}
}

// Close is a no-op, the engine holds no open handles between operations
func (f *fileImpl) Close() error {
	return nil
}
