package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

// YAMLStore persists each collection as its own YAML file of key -> raw
// value under a base directory, modeled on the home-directory
// contexts.yaml layout muster uses for its own configuration storage.
type YAMLStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewYAMLStore returns a YAMLStore rooted at baseDir. The directory is
// created on first write; it need not exist yet.
func NewYAMLStore(baseDir string) *YAMLStore {
	return &YAMLStore{baseDir: baseDir}
}

type yamlDocument struct {
	Entries map[string]string `yaml:"entries"`
}

func (s *YAMLStore) path(collection string) string {
	return filepath.Join(s.baseDir, collection+".yaml")
}

func (s *YAMLStore) loadLocked(collection string) (yamlDocument, error) {
	data, err := os.ReadFile(s.path(collection))
	if err != nil {
		if os.IsNotExist(err) {
			return yamlDocument{Entries: map[string]string{}}, nil
		}
		return yamlDocument{}, fmt.Errorf("storage: read %s: %w", collection, err)
	}
	var doc yamlDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return yamlDocument{}, fmt.Errorf("storage: parse %s: %w", collection, err)
	}
	if doc.Entries == nil {
		doc.Entries = map[string]string{}
	}
	return doc, nil
}

func (s *YAMLStore) saveLocked(collection string, doc yamlDocument) error {
	if err := os.MkdirAll(s.baseDir, 0o755); err != nil {
		return fmt.Errorf("storage: create directory: %w", err)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("storage: marshal %s: %w", collection, err)
	}
	if err := os.WriteFile(s.path(collection), data, 0o644); err != nil {
		return fmt.Errorf("storage: write %s: %w", collection, err)
	}
	return nil
}

func (s *YAMLStore) Get(collection, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, err := s.loadLocked(collection)
	if err != nil {
		return nil, err
	}
	v, ok := doc.Entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

func (s *YAMLStore) Put(collection, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadLocked(collection)
	if err != nil {
		return err
	}
	doc.Entries[key] = string(value)
	return s.saveLocked(collection, doc)
}

func (s *YAMLStore) Delete(collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.loadLocked(collection)
	if err != nil {
		return err
	}
	delete(doc.Entries, key)
	return s.saveLocked(collection, doc)
}

func (s *YAMLStore) List(collection string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, err := s.loadLocked(collection)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(doc.Entries))
	for k := range doc.Entries {
		keys = append(keys, k)
	}
	return keys, nil
}
