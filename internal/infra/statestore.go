// Package infra implements infrastructure concerns (state store, ledger,
// secrets, processes).
package infra

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/frictionlabs/frictiond/internal/domain"
)

// FileStateStore implements domain.StateStore as a flat JSON document on
// disk. It is the cross-process channel between the main app, the
// monitor daemon and the short-lived shield processes, so every write
// goes through a file lock and an atomic temp-file/rename, and every
// read takes a shared lock.
//
// Only primitive values cross the process boundary; nested structures
// are rejected at the accessor layer by construction (there are no
// accessors for them).
type FileStateStore struct {
	path string
}

// NewFileStateStore creates a store backed by the given file. The file
// is created lazily on first write.
func NewFileStateStore(path string) *FileStateStore {
	return &FileStateStore{path: path}
}

// Path returns the backing file path (for tests and status output).
func (s *FileStateStore) Path() string {
	return s.path
}

// GetInt returns an integer value. JSON numbers are stored as float64
// by the decoder; anything that is not a whole number is treated as a
// type mismatch and reported as absent.
func (s *FileStateStore) GetInt(key string) (int64, bool, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return 0, false, err
	}
	f, isNum := raw.(float64)
	if !isNum {
		return 0, false, nil
	}
	return int64(f), true, nil
}

func (s *FileStateStore) GetBool(key string) (bool, bool, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return false, false, err
	}
	b, isBool := raw.(bool)
	if !isBool {
		return false, false, nil
	}
	return b, true, nil
}

func (s *FileStateStore) GetString(key string) (string, bool, error) {
	raw, ok, err := s.get(key)
	if err != nil || !ok {
		return "", false, err
	}
	str, isStr := raw.(string)
	if !isStr {
		return "", false, nil
	}
	return str, true, nil
}

func (s *FileStateStore) SetInt(key string, v int64) error {
	return s.set(key, v)
}

func (s *FileStateStore) SetBool(key string, v bool) error {
	return s.set(key, v)
}

func (s *FileStateStore) SetString(key string, v string) error {
	return s.set(key, v)
}

// Delete removes a key. Deleting an absent key is a no-op.
func (s *FileStateStore) Delete(key string) error {
	return s.update(func(doc map[string]any) {
		delete(doc, key)
	})
}

func (s *FileStateStore) get(key string) (any, bool, error) {
	unlock, err := s.lock(syscall.LOCK_SH)
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	doc, err := s.read()
	if err != nil {
		return nil, false, err
	}
	v, ok := doc[key]
	return v, ok, nil
}

func (s *FileStateStore) set(key string, v any) error {
	return s.update(func(doc map[string]any) {
		doc[key] = v
	})
}

// update performs a read-modify-write of the whole document under an
// exclusive lock. Single-key writes are therefore atomic; multi-key
// updates made as separate calls are deliberately not, per the
// eventual-consistency contract.
func (s *FileStateStore) update(mutate func(doc map[string]any)) error {
	unlock, err := s.lock(syscall.LOCK_EX)
	if err != nil {
		return err
	}
	defer unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	mutate(doc)
	return s.atomicWrite(doc)
}

// lock acquires a flock on a sidecar lock file to serialize access
// between processes. Returns the release func.
func (s *FileStateStore) lock(how int) (func(), error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	lockFile, err := os.OpenFile(s.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file: %w", err)
	}
	if err := syscall.Flock(int(lockFile.Fd()), how); err != nil {
		lockFile.Close()
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	return func() {
		_ = syscall.Flock(int(lockFile.Fd()), syscall.LOCK_UN)
		lockFile.Close()
	}, nil
}

// read loads the document. A missing file is an empty document, not an
// error: absent keys resolve to safe defaults at the accessor layer.
func (s *FileStateStore) read() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]any), nil
		}
		return nil, err
	}
	doc := make(map[string]any)
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("state file corrupted: %w", err)
	}
	return doc, nil
}

// atomicWrite writes the document via temp file + rename so a shield
// process killed mid-read never observes a torn file.
func (s *FileStateStore) atomicWrite(doc map[string]any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	// Temp name is unique per process to avoid a race between writers.
	tmpPath := fmt.Sprintf("%s.%d.tmp", s.path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Ensure FileStateStore implements domain.StateStore.
var _ domain.StateStore = (*FileStateStore)(nil)
