package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
)

// ContextItem is one persistent-context entry: a file or image path the
// orchestrator re-reads and attaches on every run until removed.
type ContextItem struct {
	Kind string `json:"kind"` // "file" | "image"
	Path string `json:"path"`
}

// ContextItemStore persists the list of context items as one JSON array
// at a fixed path (config.DataLayout.ContextPath), read fresh on every
// access so the chat gateway's context commands and the orchestrator's
// own context assembly never disagree on the current list.
type ContextItemStore struct {
	path string
}

// NewContextItemStore wraps the persistent-context file at path.
func NewContextItemStore(path string) *ContextItemStore {
	return &ContextItemStore{path: path}
}

// List returns the current items, or an empty slice if the file does not
// exist yet.
func (s *ContextItemStore) List() ([]ContextItem, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading context file: %w", err)
	}
	var items []ContextItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parsing context file: %w", err)
	}
	return items, nil
}

func (s *ContextItemStore) save(items []ContextItem) error {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Add appends a new context item.
func (s *ContextItemStore) Add(kind, path string) error {
	items, err := s.List()
	if err != nil {
		return err
	}
	items = append(items, ContextItem{Kind: kind, Path: path})
	return s.save(items)
}

// Remove deletes the 1-based index-th item.
func (s *ContextItemStore) Remove(index int) error {
	items, err := s.List()
	if err != nil {
		return err
	}
	if index < 1 || index > len(items) {
		return fmt.Errorf("context index %d out of range (1..%d)", index, len(items))
	}
	items = append(items[:index-1], items[index:]...)
	return s.save(items)
}

// Clear removes every context item.
func (s *ContextItemStore) Clear() error {
	return s.save(nil)
}
