package store

import (
	"context"
	"encoding/json"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/bcrosbie/namecache/internal/domain"
)

type nameTable struct {
	Names map[string]string `json:"names"`
}

// FileStore keeps the whole table in memory and rewrites a JSON document on
// every mutation. Suitable for small deployments and local development.
type FileStore struct {
	path  string
	mu    sync.RWMutex
	names map[string]string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:  path,
		names: map[string]string{},
	}
}

func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return domain.StoreError("failed to create data directory", err)
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.names = map[string]string{}
			return s.persistLocked(s.names)
		}
		return domain.StoreError("failed to read data file", err)
	}

	var parsed nameTable
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return domain.StoreError("failed to parse data file", err)
	}
	if parsed.Names == nil {
		parsed.Names = map[string]string{}
	}
	s.names = parsed.Names
	return nil
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) GetName(_ context.Context, namehash string) (domain.NameRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name, ok := s.names[namehash]
	if !ok {
		return domain.NameRecord{}, false, nil
	}
	return domain.NameRecord{Namehash: namehash, Name: name}, true, nil
}

func (s *FileStore) GetNames(_ context.Context, namehashes []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	found := make(map[string]string, len(namehashes))
	for _, namehash := range namehashes {
		if name, ok := s.names[namehash]; ok {
			found[namehash] = name
		}
	}
	return found, nil
}

func (s *FileStore) UpsertName(ctx context.Context, record domain.NameRecord) error {
	return s.UpsertNames(ctx, []domain.NameRecord{record})
}

func (s *FileStore) UpsertNames(_ context.Context, records []domain.NameRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := validateRecords(records); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.names)
	for _, record := range records {
		next[record.Namehash] = record.Name
	}
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.names = next
	return nil
}

func (s *FileStore) CountNames(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.names)), nil
}

func (s *FileStore) persistLocked(names map[string]string) error {
	serialized, err := json.MarshalIndent(nameTable{Names: names}, "", "  ")
	if err != nil {
		return domain.StoreError("failed to serialize names", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, append(serialized, '\n'), 0o600); err != nil {
		return domain.StoreError("failed to write temporary data file", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		return domain.StoreError("failed to atomically persist data file", err)
	}
	return nil
}
