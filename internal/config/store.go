package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/viper"
)

// FileStore is the host tool's key/value configuration store, persisted as
// JSON. Dotted keys nest, so storage.timeout is stored under "storage". A
// missing or empty file is an empty store.
type FileStore struct {
	path string
	mu   sync.RWMutex
	v    *viper.Viper
}

// OpenFileStore loads the store at path.
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{path: path, v: newStoreViper(path)}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read config store: %w", err)
	}
	if info.Size() == 0 {
		return s, nil
	}
	if err := s.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to parse config store %s: %w", path, err)
	}
	return s, nil
}

func newStoreViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	v.SetConfigPermissions(0600)
	return v
}

// Path returns the file backing the store.
func (s *FileStore) Path() string {
	return s.path
}

// Lookup implements Source. Keys that only group other keys are not values.
func (s *FileStore) Lookup(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.v.IsSet(key) {
		return "", false
	}
	if _, group := s.v.Get(key).(map[string]any); group {
		return "", false
	}
	return s.v.GetString(key), true
}

// Set stores value under key. Call Save to persist.
func (s *FileStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v.Set(key, value)
}

// Unset removes key and reports whether it was present.
func (s *FileStore) Unset(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	// viper cannot delete a key, so the remaining ones move to a fresh instance.
	next := newStoreViper(s.path)
	found := false
	for _, k := range s.v.AllKeys() {
		if k == key {
			found = true
			continue
		}
		next.Set(k, s.v.Get(k))
	}
	if found {
		s.v = next
	}
	return found
}

// Keys returns all keys in sorted order.
func (s *FileStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := s.v.AllKeys()
	sort.Strings(keys)
	return keys
}

// Save writes the store back to disk, creating the parent directory.
func (s *FileStore) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	// The temporary name keeps a .json extension for viper's writer.
	tmp := s.path + ".tmp.json"
	if err := s.v.WriteConfigAs(tmp); err != nil {
		return fmt.Errorf("failed to write config store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace config store: %w", err)
	}
	return nil
}
