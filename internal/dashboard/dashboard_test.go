package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yourorg/camera-dashboard/internal/camera"
	"github.com/yourorg/camera-dashboard/internal/config"
	"github.com/yourorg/camera-dashboard/internal/notify"
	"github.com/yourorg/camera-dashboard/internal/store"
)

func testConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	if err != nil {
		t.Fatalf("Default config failed: %v", err)
	}
	cfg.Backend.BaseURL = baseURL
	cfg.Backend.Timeout = 2 * time.Second
	cfg.Dashboard.HealthInterval = 0
	cfg.Dashboard.RefreshInterval = 0
	cfg.Onboarding.StatePath = filepath.Join(t.TempDir(), "onboarding.yaml")
	return cfg
}

func TestDashboardStartLoadsCameras(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/cameras", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]camera.Camera{
			{ID: "cam1", DisplayName: "Lobby", IsActive: true, Status: camera.StatusConnected, IsConnected: true},
			{ID: "cam2", DisplayName: "Gate", IsActive: true},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	d, err := New(testConfig(t, srv.URL))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop(context.Background())

	if err := d.Start(context.Background()); err == nil {
		t.Error("Expected error on second Start")
	}

	if got := len(d.Store().Cameras()); got != 2 {
		t.Errorf("Expected 2 cameras, got %d", got)
	}
	if err := d.Ready(); err != nil {
		t.Errorf("Expected ready, got %v", err)
	}

	diag := d.GetDiagnostics()
	if diag["total_cameras"] != 2 || diag["connected_cameras"] != 0 {
		t.Errorf("Unexpected diagnostics: %v", diag)
	}
	if diag["backend_reachable"] != true {
		t.Errorf("Expected backend reachable, got %v", diag["backend_reachable"])
	}
}

func TestDashboardUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d, err := New(testConfig(t, url))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start should survive a failed load: %v", err)
	}
	defer d.Stop(context.Background())

	if err := d.Ready(); err == nil {
		t.Error("Expected not ready while backend is unreachable")
	}
	if !d.Store().ConnectionError().HasError {
		t.Error("Expected connection banner")
	}
}

func TestPeriodicRefreshKeepsConnectedCamera(t *testing.T) {
	var (
		mu    sync.Mutex
		lists int
		stops int
	)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/cameras", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		lists++
		name := "Lobby"
		if lists > 1 {
			name = "Lobby East"
		}
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]camera.Camera{
			{ID: "cam1", DisplayName: name, IsActive: true},
		})
	})
	mux.HandleFunc("/api/v2/cameras/cam1/connect", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/v2/streaming/cam1/start", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"camera_id": "cam1", "stream_url": "rtsp://media/cam1"})
	})
	mux.HandleFunc("/api/v2/streaming/cam1/stop", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		stops++
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t, srv.URL)
	cfg.Dashboard.RefreshInterval = 10 * time.Millisecond
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop(context.Background())

	if err := d.Store().ConnectCamera(context.Background(), "cam1"); err != nil {
		t.Fatalf("ConnectCamera failed: %v", err)
	}

	listCount := func() int {
		mu.Lock()
		defer mu.Unlock()
		return lists
	}
	// two more list calls means at least one refresh ran entirely after connect
	want := listCount() + 2
	deadline := time.Now().Add(2 * time.Second)
	for listCount() < want {
		if time.Now().After(deadline) {
			t.Fatal("Timeout waiting for a refresh tick")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cam, _ := d.Store().GetCamera("cam1")
	if cam.DisplayName != "Lobby East" {
		t.Errorf("Expected refreshed name, got %q", cam.DisplayName)
	}
	if !cam.IsConnected || !cam.IsStreaming || cam.Status != camera.StatusConnected {
		t.Errorf("Refresh dropped the connection: status=%s connected=%v streaming=%v", cam.Status, cam.IsConnected, cam.IsStreaming)
	}
	var url string
	for _, g := range d.Store().Snapshot().GridItems {
		if g.Camera.ID == "cam1" {
			url = g.StreamingURL
		}
	}
	if url != "rtsp://media/cam1" {
		t.Errorf("Expected stream URL kept across refresh, got %q", url)
	}
	mu.Lock()
	defer mu.Unlock()
	if stops != 0 {
		t.Errorf("Refresh should not stop streams, got %d stop calls", stops)
	}
}

func TestStopWithoutStartFlushesNotifications(t *testing.T) {
	d, err := New(testConfig(t, "http://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var delivered atomic.Int32
	d.Notifications().AddSink(notify.SinkFunc(func(n notify.Notification) error {
		time.Sleep(20 * time.Millisecond)
		delivered.Add(1)
		return nil
	}))
	d.Notifications().Notify(notify.LevelError, "Connect failed", "cam1")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := d.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got := delivered.Load(); got != 1 {
		t.Errorf("Expected the pending delivery to finish before Stop returned, got %d", got)
	}
	if err := d.Stop(ctx); err != nil {
		t.Errorf("Second Stop failed: %v", err)
	}
}

type recordingNotifier struct {
	got []notify.Notification
}

func (r *recordingNotifier) Notify(level notify.Level, title, message string) notify.Notification {
	n := notify.Notification{Level: level, Title: title, Message: message}
	r.got = append(r.got, n)
	return n
}

func TestHealthMonitorThrottles(t *testing.T) {
	rec := &recordingNotifier{}
	h := NewHealthMonitor(rec, time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	snap := store.Snapshot{Cameras: []camera.Camera{{ID: "cam1", Status: camera.StatusError}}}

	h.Check(snap)
	h.Check(snap)
	if len(rec.got) != 1 {
		t.Fatalf("Expected 1 alert within throttle window, got %d", len(rec.got))
	}

	now = now.Add(2 * time.Minute)
	h.Check(snap)
	if len(rec.got) != 2 {
		t.Errorf("Expected alert after throttle window, got %d", len(rec.got))
	}
}

func TestHealthMonitorRisingFailures(t *testing.T) {
	rec := &recordingNotifier{}
	h := NewHealthMonitor(rec, time.Minute)

	cam := camera.Camera{ID: "cam1", DisplayName: "Lobby"}
	cam.Statistics.FailedConnections = 2
	h.Check(store.Snapshot{Cameras: []camera.Camera{cam}})
	if len(rec.got) != 0 {
		t.Fatalf("First observation should only record a baseline, got %d alerts", len(rec.got))
	}

	cam.Statistics.FailedConnections = 3
	h.Check(store.Snapshot{
		Cameras: []camera.Camera{cam},
		Errors:  map[string]string{"cam1": "timeout"},
	})
	if len(rec.got) != 1 || rec.got[0].Level != notify.LevelWarning {
		t.Fatalf("Expected one warning, got %+v", rec.got)
	}
}

func TestHealthMonitorBackendBanner(t *testing.T) {
	rec := &recordingNotifier{}
	h := NewHealthMonitor(rec, time.Minute)

	h.Check(store.Snapshot{ConnectionError: store.ConnectionError{HasError: true, ErrorMessage: "down"}})
	if len(rec.got) != 1 || rec.got[0].Level != notify.LevelError {
		t.Errorf("Expected backend alert, got %+v", rec.got)
	}
}
