package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Override is a manual mode/priority assignment remembered across re-scans.
// Mode and Priority hold the names understood by tree.ParseMode and
// tree.ParsePriority; empty means no override.
type Override struct {
	Path      string    `yaml:"path"`
	Mode      string    `yaml:"mode,omitempty"`
	Priority  string    `yaml:"priority,omitempty"`
	Cascade   bool      `yaml:"cascade,omitempty"` // priority was pushed down to descendants
	UpdatedAt time.Time `yaml:"updated_at"`
}

type overrideFile struct {
	Overrides []Override `yaml:"overrides"`
}

// OverrideStore persists manual overrides to a YAML file
type OverrideStore struct {
	path string
	mu   sync.Mutex
}

// NewOverrideStore creates a store backed by path. An empty path uses
// overrides.yaml next to the default config file.
func NewOverrideStore(path string) (*OverrideStore, error) {
	if path == "" {
		dir, err := GetConfigDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get config directory: %w", err)
		}
		path = filepath.Join(dir, "overrides.yaml")
	}
	return &OverrideStore{path: path}, nil
}

// Path returns the backing file
func (s *OverrideStore) Path() string {
	return s.path
}

// List returns all saved overrides sorted by path
func (s *OverrideStore) List() ([]Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Set records or replaces the override for o.Path. An override with neither a
// mode nor a priority removes the entry.
func (s *OverrideStore) Set(o Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	overrides, err := s.load()
	if err != nil {
		return err
	}

	o.Path = filepath.Clean(o.Path)
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = time.Now()
	}

	kept := overrides[:0]
	for _, existing := range overrides {
		if !strings.EqualFold(existing.Path, o.Path) {
			kept = append(kept, existing)
		}
	}
	if o.Mode != "" || o.Priority != "" {
		kept = append(kept, o)
	}
	return s.save(kept)
}

// Remove deletes the override for path, if any
func (s *OverrideStore) Remove(path string) error {
	return s.Set(Override{Path: path})
}

func (s *OverrideStore) load() ([]Override, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read overrides file: %w", err)
	}

	var f overrideFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse overrides file: %w", err)
	}
	return f.Overrides, nil
}

func (s *OverrideStore) save(overrides []Override) error {
	sort.Slice(overrides, func(i, j int) bool {
		return strings.ToLower(overrides[i].Path) < strings.ToLower(overrides[j].Path)
	})

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create overrides directory: %w", err)
	}

	data, err := yaml.Marshal(overrideFile{Overrides: overrides})
	if err != nil {
		return fmt.Errorf("failed to marshal overrides: %w", err)
	}

	// Replace atomically via rename
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write overrides file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace overrides file: %w", err)
	}
	return nil
}
