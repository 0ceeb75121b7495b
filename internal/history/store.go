package history

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/model"
)

// DefaultLimit is how many entries a store keeps before evicting the oldest.
const DefaultLimit = 50

// Store keeps executed requests newest first, evicting past its limit.
type Store interface {
	Append(entry model.HistoryEntry) error
	Entries() ([]model.HistoryEntry, error)
	ByRequest(requestID string) ([]model.HistoryEntry, error)
	Delete(id string) (bool, error)
	Clear() error
}

// MemoryStore is a process-local store.
type MemoryStore struct {
	mu      sync.RWMutex
	limit   int
	entries []model.HistoryEntry
}

func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{limit: normalizeLimit(limit)}
}

func (s *MemoryStore) Append(entry model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = prepend(s.entries, entry, s.limit)
	return nil
}

func (s *MemoryStore) Entries() ([]model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntries(s.entries), nil
}

func (s *MemoryStore) ByRequest(requestID string) ([]model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterByRequest(s.entries, requestID), nil
}

func (s *MemoryStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.entries, ok = remove(s.entries, id)
	return ok, nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
	return nil
}

// FileStore persists entries as an indented JSON array, rewriting the file
// through a temp file on every change.
type FileStore struct {
	path    string
	limit   int
	entries []model.HistoryEntry
	mu      sync.RWMutex
	loaded  bool
}

func NewFileStore(path string, limit int) *FileStore {
	return &FileStore{path: path, limit: normalizeLimit(limit)}
}

func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLoadedLocked()
}

func (s *FileStore) Append(entry model.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(); err != nil {
		return err
	}
	s.entries = prepend(s.entries, entry, s.limit)
	return s.persist()
}

func (s *FileStore) Entries() ([]model.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	return cloneEntries(s.entries), nil
}

func (s *FileStore) ByRequest(requestID string) ([]model.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureLoadedLocked(); err != nil {
		return nil, err
	}
	return filterByRequest(s.entries, requestID), nil
}

func (s *FileStore) Delete(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoadedLocked(); err != nil {
		return false, err
	}
	var ok bool
	s.entries, ok = remove(s.entries, id)
	if !ok {
		return false, nil
	}
	if err := s.persist(); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = []model.HistoryEntry{}
	s.loaded = true
	return s.persist()
}

func (s *FileStore) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "create history dir")
	}

	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "encode history")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "write history tmp")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errdef.Wrap(errdef.CodeFilesystem, err, "replace history file")
	}
	return nil
}

func (s *FileStore) ensureLoadedLocked() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.entries = []model.HistoryEntry{}
			s.loaded = true
			return nil
		}
		return errdef.Wrap(errdef.CodeHistory, err, "read history")
	}

	if len(data) == 0 {
		s.entries = []model.HistoryEntry{}
		s.loaded = true
		return nil
	}

	var entries []model.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return errdef.Wrap(errdef.CodeHistory, err, "parse history")
	}
	if len(entries) > s.limit {
		entries = entries[:s.limit]
	}
	s.entries = entries
	s.loaded = true
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

// prepend puts entry at the head and evicts from the tail. Order is insertion
// order; timestamps are never consulted.
func prepend(entries []model.HistoryEntry, entry model.HistoryEntry, limit int) []model.HistoryEntry {
	out := make([]model.HistoryEntry, 0, len(entries)+1)
	out = append(out, entry)
	out = append(out, entries...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func remove(entries []model.HistoryEntry, id string) ([]model.HistoryEntry, bool) {
	for i, entry := range entries {
		if entry.ID == id {
			out := make([]model.HistoryEntry, 0, len(entries)-1)
			out = append(out, entries[:i]...)
			return append(out, entries[i+1:]...), true
		}
	}
	return entries, false
}

func filterByRequest(entries []model.HistoryEntry, requestID string) []model.HistoryEntry {
	if requestID == "" {
		return cloneEntries(entries)
	}
	var matched []model.HistoryEntry
	for _, entry := range entries {
		if entry.RequestID == requestID {
			matched = append(matched, entry)
		}
	}
	return matched
}

func cloneEntries(entries []model.HistoryEntry) []model.HistoryEntry {
	out := make([]model.HistoryEntry, len(entries))
	copy(out, entries)
	return out
}
