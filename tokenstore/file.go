package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"

	vistream "github.com/vistream/vistream-go"
)

// File is a TokenStore backed by a small JSON file. Writes are atomic
// (temp file + rename) and every read-modify-write holds a cross-process
// file lock, so concurrent SDK processes sharing the path observe
// consistent per-key updates.
type File struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// compile-time check
var _ vistream.TokenStore = (*File)(nil)

// NewFile creates a file-backed store at path. The parent directory is
// created if missing. The file itself is created lazily on first Put.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, fmt.Errorf("tokenstore: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("tokenstore: create directory: %w", err)
	}
	return &File{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Get returns the value for key and whether it was present.
func (f *File) Get(key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.lock.RLock(); err != nil {
		return "", false, fmt.Errorf("tokenstore: acquire lock: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()

	values, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// Put stores value under key.
func (f *File) Put(key, value string) error {
	return f.update(func(values map[string]string) {
		values[key] = value
	})
}

// Delete removes key if present.
func (f *File) Delete(key string) error {
	return f.update(func(values map[string]string) {
		delete(values, key)
	})
}

// Clear removes all keys.
func (f *File) Clear() error {
	return f.update(func(values map[string]string) {
		for k := range values {
			delete(values, k)
		}
	})
}

// update applies fn under the file lock and writes the result atomically.
func (f *File) update(fn func(map[string]string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("tokenstore: acquire lock: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()

	values, err := f.read()
	if err != nil {
		return err
	}
	fn(values)
	return f.write(values)
}

// read loads the JSON file. A missing file is an empty store.
func (f *File) read() (map[string]string, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("tokenstore: read: %w", err)
	}

	values := make(map[string]string)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("tokenstore: decode: %w", err)
		}
	}
	return values, nil
}

// write replaces the file contents atomically.
func (f *File) write(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("tokenstore: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".tokens-*")
	if err != nil {
		return fmt.Errorf("tokenstore: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("tokenstore: write temp file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("tokenstore: chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("tokenstore: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("tokenstore: replace file: %w", err)
	}
	return nil
}
