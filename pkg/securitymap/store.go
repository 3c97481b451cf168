package securitymap

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store guards the single in-memory Document and persists it atomically to
// disk on every mutation, per SPEC_FULL.md §5: "securitymap — guarded by a
// single mutex; any mutation persists atomically to disk."
type Store struct {
	mu   sync.RWMutex
	doc  *Document
	path string
}

// Load reads path if it exists, or seeds a Default() document if it doesn't.
func Load(path string) (*Store, error) {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		s.doc = Default()
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read securitymap %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse securitymap %s: %w", path, err)
	}
	if doc.Config == nil {
		doc.Config = make(map[string][]Zone)
	}
	if doc.Timelapses == nil {
		doc.Timelapses = make(map[string]TimelapseConfig)
	}
	if doc.Motions == nil {
		doc.Motions = make(map[string]MotionConfig)
	}
	s.doc = &doc
	return s, nil
}

// View runs fn with a read lock held, for inspecting the document.
func (s *Store) View(fn func(doc *Document)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.doc)
}

// Mutate runs fn with a write lock held and then persists the document
// atomically. If fn returns an error, nothing is persisted and the error is
// returned verbatim. If persistence fails, the in-memory mutation is kept
// (per SPEC_FULL.md §7: "the in-memory mutation is kept so subsequent
// retries succeed once disk recovers") and the persistence error is
// returned.
func (s *Store) Mutate(fn func(doc *Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fn(s.doc); err != nil {
		return err
	}
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal securitymap: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".securitymap.*.json")
	if err != nil {
		return fmt.Errorf("create temp securitymap file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp securitymap file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp securitymap file: %w", err)
	}
	if err := tmp.Chmod(0640); err != nil {
		return fmt.Errorf("chmod temp securitymap file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp securitymap file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename temp securitymap file: %w", err)
	}

	success = true
	return nil
}
