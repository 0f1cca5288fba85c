// Package onboarding persists the one-time publishing setup wizard flags.
// Values are stored as the strings "true"/"false" to stay compatible with
// the browser's localStorage keys of the same names.
package onboarding

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	KeyCompleted = "publishing_onboarding_completed"
	KeySkipped   = "publishing_wizard_skipped"
)

type State struct {
	Completed  bool `json:"publishing_onboarding_completed"`
	Skipped    bool `json:"publishing_wizard_skipped"`
	ShowWizard bool `json:"show_wizard"`
}

type Store struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

func Load(path string) (*Store, error) {
	s := &Store{path: path, values: map[string]string{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read onboarding state: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("failed to parse onboarding state: %w", err)
	}
	if s.values == nil {
		s.values = map[string]string{}
	}
	return s, nil
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Completed: s.values[KeyCompleted] == "true",
		Skipped:   s.values[KeySkipped] == "true",
	}
	st.ShowWizard = !st.Completed && !st.Skipped
	return st
}

func (s *Store) ShouldShowWizard() bool {
	return s.State().ShowWizard
}

func (s *Store) MarkCompleted() error {
	return s.set(KeyCompleted, "true")
}

func (s *Store) MarkSkipped() error {
	return s.set(KeySkipped, "true")
}

func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = map[string]string{}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove onboarding state: %w", err)
	}
	return nil
}

func (s *Store) set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value

	data, err := yaml.Marshal(s.values)
	if err != nil {
		return fmt.Errorf("failed to encode onboarding state: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create onboarding state dir: %w", err)
		}
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write onboarding state: %w", err)
	}
	return nil
}
