package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

type jsonFile struct {
	Version int                          `json:"version"`
	Records map[string]map[string]Record `json:"records"` // collection -> key -> record
}

// JSONStore is the degraded backend: a single JSON document rewritten on every change.
// It has no transactions, so it does not implement Batcher.
type JSONStore struct {
	path string

	mu   sync.RWMutex
	data *jsonFile
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Name() string { return "json" }

func (s *JSONStore) Path() string { return s.path }

func (s *JSONStore) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	s.data = &jsonFile{Version: 1, Records: make(map[string]map[string]Record)}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read fallback store: %w", err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, s.data); err != nil {
		return fmt.Errorf("failed to parse fallback store: %w", err)
	}
	if s.data.Records == nil {
		s.data.Records = make(map[string]map[string]Record)
	}
	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

// save writes to a temp file and renames it over the old one. Caller holds mu.
func (s *JSONStore) save() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize fallback store: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write fallback store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace fallback store: %w", err)
	}
	return nil
}

func (s *JSONStore) loaded() error {
	if s.data == nil {
		return fmt.Errorf("fallback store not opened")
	}
	return nil
}

func (s *JSONStore) Put(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}

	coll, ok := s.data.Records[r.Collection]
	if !ok {
		coll = make(map[string]Record)
		s.data.Records[r.Collection] = coll
	}
	coll[r.Key] = r
	return s.save()
}

func (s *JSONStore) Get(collection, key string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.loaded(); err != nil {
		return Record{}, false, err
	}

	r, ok := s.data.Records[collection][key]
	return r, ok, nil
}

func (s *JSONStore) Scan(collection string, f Filter) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.loaded(); err != nil {
		return nil, err
	}

	var out []Record
	for _, r := range s.data.Records[collection] {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Seq != out[j].Seq {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

func (s *JSONStore) Delete(collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return err
	}

	if _, ok := s.data.Records[collection][key]; !ok {
		return nil
	}
	delete(s.data.Records[collection], key)
	return s.save()
}

func (s *JSONStore) DeleteWhere(collection string, f Filter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loaded(); err != nil {
		return 0, err
	}

	n := 0
	for key, r := range s.data.Records[collection] {
		if f.Match(r) {
			delete(s.data.Records[collection], key)
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return n, s.save()
}
