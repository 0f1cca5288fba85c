package onboarding

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMissingFileShowsWizard(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "state.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !s.ShouldShowWizard() {
		t.Error("Expected wizard to show on first run")
	}
}

func TestMarkCompletedPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.yaml")

	s, _ := Load(path)
	if err := s.MarkCompleted(); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Expected state file: %v", err)
	}
	if !strings.Contains(string(data), `publishing_onboarding_completed: "true"`) {
		t.Errorf("Expected string boolean in file, got:\n%s", data)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	st := reloaded.State()
	if !st.Completed || st.Skipped || st.ShowWizard {
		t.Errorf("Unexpected state after reload: %+v", st)
	}
}

func TestSkipAndReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	s, _ := Load(path)

	s.MarkSkipped()
	if s.ShouldShowWizard() {
		t.Error("Skipped wizard must not show")
	}

	if err := s.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	if !s.ShouldShowWizard() {
		t.Error("Expected wizard after reset")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected state file removed")
	}
}

func TestNonTrueValuesAreFalse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	os.WriteFile(path, []byte("publishing_wizard_skipped: \"false\"\n"), 0o644)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !s.ShouldShowWizard() {
		t.Error("Expected wizard when skipped flag is \"false\"")
	}
}
