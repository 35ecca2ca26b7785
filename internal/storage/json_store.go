package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/julianstephens/daystreak/internal/constants"
	"github.com/julianstephens/daystreak/internal/models"
)

// JSONStore keeps the guest document in a single JSON file, the same flat
// shape the sync server exchanges plus the local bookkeeping fields.
type JSONStore struct {
	path   string
	mu     sync.Mutex
	loaded bool
}

func NewJSONStore(configPath string) *JSONStore {
	return &JSONStore{
		path: configPath,
	}
}

// Init creates the document if it does not exist yet.
func (s *JSONStore) Init() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(s.path); err == nil {
		s.loaded = true
		return nil
	}

	if err := s.write(NewLocalData(time.Now())); err != nil {
		return err
	}
	s.loaded = true
	return nil
}

func (s *JSONStore) Load() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("storage not initialized, run '%s init' first", constants.AppName)
	}
	s.loaded = true
	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

// LoadData reads the document. Malformed habits or days are dropped rather
// than failing the load.
func (s *JSONStore) LoadData() (models.LocalData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return models.LocalData{}, fmt.Errorf("storage not loaded")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return models.LocalData{}, fmt.Errorf("failed to read storage: %w", err)
	}

	var doc models.LocalData
	if err := json.Unmarshal(data, &doc); err != nil {
		return models.LocalData{}, fmt.Errorf("failed to parse storage: %w", err)
	}
	doc.Data.Normalize()
	return doc, nil
}

func (s *JSONStore) SaveData(doc models.LocalData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return fmt.Errorf("storage not loaded")
	}
	return s.write(doc)
}

// write replaces the file atomically through a temporary sibling.
func (s *JSONStore) write(doc models.LocalData) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize storage: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write storage: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write storage: %w", err)
	}
	return nil
}

func (s *JSONStore) GetConfigPath() string {
	return s.path
}
