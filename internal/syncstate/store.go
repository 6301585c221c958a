// Package syncstate persists the last-synced modification time of every
// vault note.
package syncstate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// DefaultFile is the state file name inside the vault.
const DefaultFile = ".osmen_sync_state.json"

// FormatMtime renders t as float seconds since the epoch using the shortest
// representation, e.g. "1735718400.123456".
func FormatMtime(t time.Time) string {
	return strconv.FormatFloat(float64(t.UnixNano())/1e9, 'f', -1, 64)
}

// Store maps vault-relative paths to their last-synced mtime string.
// It is safe for concurrent use.
type Store struct {
	path string
	log  *slog.Logger

	mu      sync.RWMutex
	entries map[string]string
	dirty   bool
}

// Open loads the state file at path. A missing file yields an empty store;
// an unparsable one is logged and treated as empty.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{path: path, log: log, entries: make(map[string]string)}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("syncstate: read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		log.Warn("syncstate: corrupt state file, starting empty",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		s.entries = make(map[string]string)
	}
	return s, nil
}

// NewMemory returns a store that is never persisted.
func NewMemory() *Store {
	return &Store{log: slog.Default(), entries: make(map[string]string)}
}

// Path returns the backing file, or "" for memory stores.
func (s *Store) Path() string { return s.path }

// Get returns the recorded mtime for rel.
func (s *Store) Get(rel string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[rel]
	return v, ok
}

// Set records mtime for rel.
func (s *Store) Set(rel, mtime string) {
	s.mu.Lock()
	if prev, ok := s.entries[rel]; !ok || prev != mtime {
		s.entries[rel] = mtime
		s.dirty = true
	}
	s.mu.Unlock()
}

// Delete forgets rel.
func (s *Store) Delete(rel string) {
	s.mu.Lock()
	if _, ok := s.entries[rel]; ok {
		delete(s.entries, rel)
		s.dirty = true
	}
	s.mu.Unlock()
}

// Len returns the number of tracked paths.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Paths returns the tracked paths in sorted order.
func (s *Store) Paths() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.entries))
	for k := range s.entries {
		out = append(out, k)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of the mapping.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.entries))
	for k, v := range s.entries {
		out[k] = v
	}
	return out
}

// Save writes the mapping atomically as indented JSON. It does nothing
// for memory stores or when no entry changed since the last save, so an
// idle pass never touches the vault.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("syncstate: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("syncstate: mkdir: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(append(data, '\n'))); err != nil {
		return fmt.Errorf("syncstate: write %s: %w", s.path, err)
	}
	s.dirty = false
	return nil
}
