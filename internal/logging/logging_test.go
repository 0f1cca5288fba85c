package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/yourorg/camera-dashboard/internal/config"
)

func TestSetupWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "camdash.log")
	defer log.SetOutput(os.Stdout)

	if err := Setup(config.LoggingConfig{Level: "debug", Format: "json", Output: path}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if log.GetLevel() != log.DebugLevel {
		t.Errorf("Expected debug level, got %s", log.GetLevel())
	}

	log.WithField("camera_id", "cam1").Info("hello")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), `"message":"hello"`) || !strings.Contains(string(data), `"camera_id":"cam1"`) {
		t.Errorf("Unexpected log line: %s", data)
	}
}

func TestSetupBadLevelFallsBack(t *testing.T) {
	err := Setup(config.LoggingConfig{Level: "loud", Format: "text"})
	if err == nil {
		t.Error("Expected error for unknown level")
	}
	if log.GetLevel() != log.InfoLevel {
		t.Errorf("Expected info level, got %s", log.GetLevel())
	}
}
