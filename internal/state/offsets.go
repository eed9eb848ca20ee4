package state

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
)

// Record is the persisted read position for one monitored file.
type Record struct {
	Offset      int64  `json:"offset"`
	Fingerprint string `json:"fingerprint"`
}

// Store persists per-file offsets as a JSON map keyed by path.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Load returns the persisted offsets. A missing or corrupt state file
// yields an empty map so monitoring starts from scratch instead of
// failing startup.
func (s *Store) Load() map[string]Record {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("state: read %s: %v (starting empty)", s.path, err)
		}
		return map[string]Record{}
	}
	var m map[string]Record
	if err := json.Unmarshal(data, &m); err != nil {
		log.Printf("state: corrupt state file %s: %v (starting empty)", s.path, err)
		return map[string]Record{}
	}
	if m == nil {
		m = map[string]Record{}
	}
	return m
}

// Save writes the offsets with write-to-temp-then-rename semantics so a
// crash mid-write cannot corrupt previously durable state.
func (s *Store) Save(m map[string]Record) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".logex-state-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
