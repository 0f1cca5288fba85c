package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yourorg/camera-dashboard/internal/camera"
	"github.com/yourorg/camera-dashboard/internal/config"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.BackendConfig{BaseURL: srv.URL, Timeout: 5 * time.Second, Token: "secret"})
}

func TestListCamerasSendsQueryAndAuth(t *testing.T) {
	var gotQuery, gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/cameras", func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("active_only")
		gotAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, []camera.Camera{
			{ID: "cam1", DisplayName: "Lobby", Status: camera.StatusConnected, IsConnected: true},
			{ID: "cam2", DisplayName: "Gate"},
		})
	})

	svc := NewCameraService(newTestClient(t, mux))
	cams, err := svc.ListCameras(context.Background(), true)
	if err != nil {
		t.Fatalf("ListCameras failed: %v", err)
	}

	if len(cams) != 2 {
		t.Fatalf("Expected 2 cameras, got %d", len(cams))
	}
	if cams[0].ID != "cam1" || cams[0].Status != camera.StatusConnected {
		t.Errorf("Unexpected first camera: %+v", cams[0])
	}
	if gotQuery != "true" {
		t.Errorf("Expected active_only=true, got %q", gotQuery)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Expected bearer token, got %q", gotAuth)
	}
}

func TestNetworkErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	svc := NewCameraService(New(config.BackendConfig{BaseURL: url, Timeout: time.Second}))
	_, err := svc.ListCameras(context.Background(), false)
	if err == nil {
		t.Fatal("Expected error from closed server")
	}
	if !IsNetwork(err) {
		t.Errorf("Expected NetworkError, got %T: %v", err, err)
	}
}

func TestCanceledContextIsNotNetworkError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/cameras", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []camera.Camera{{ID: "cam1"}})
	})
	svc := NewCameraService(newTestClient(t, mux))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := svc.ListCameras(ctx, false)
	if err == nil {
		t.Fatal("Expected error for canceled context")
	}
	if IsNetwork(err) {
		t.Errorf("Caller cancellation must not look like an unreachable backend: %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", err)
	}

	ctx, cancel = context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()
	_, err = svc.ListCameras(ctx, false)
	if IsNetwork(err) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected a plain deadline error, got %v", err)
	}
}

func TestValidationErrorBecomesDomainError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/cameras", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{
				{"loc": []any{"body", "ip_address"}, "msg": "invalid IP address"},
			},
		})
	})

	svc := NewCameraService(newTestClient(t, mux))
	_, err := svc.CreateCamera(context.Background(), camera.CreateRequest{DisplayName: "x", IPAddress: "bad"})

	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("Expected DomainError, got %T: %v", err, err)
	}
	if de.Fields["ip_address"] != "invalid IP address" {
		t.Errorf("Expected field error for ip_address, got %v", de.Fields)
	}
	if IsNetwork(err) {
		t.Error("Domain error must not classify as network")
	}
}

func TestNotFoundIsHTTPError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/cameras/nope", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "Camera not found"})
	})

	svc := NewCameraService(newTestClient(t, mux))
	_, err := svc.GetCamera(context.Background(), "nope")
	if !IsNotFound(err) {
		t.Fatalf("Expected not-found error, got %v", err)
	}

	var he *HTTPError
	errors.As(err, &he)
	if he.Message != "Camera not found" {
		t.Errorf("Expected detail message, got %q", he.Message)
	}
}

func TestConnectReportsBackendFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/cameras/cam1/connect", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		writeJSON(w, http.StatusOK, ActionResult{Success: false, Message: "camera unreachable"})
	})
	mux.HandleFunc("/api/v2/cameras/cam2/connect", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, ActionResult{Success: true})
	})

	svc := NewCameraService(newTestClient(t, mux))

	err := svc.ConnectCamera(context.Background(), "cam1")
	if !IsDomain(err) {
		t.Fatalf("Expected DomainError, got %v", err)
	}
	if err := svc.ConnectCamera(context.Background(), "cam2"); err != nil {
		t.Errorf("Expected success, got %v", err)
	}
}

func TestStopStreamToleratesNotConnected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/streaming/cam1/stop", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"detail": "Camera cam1 is not connected"})
	})

	svc := NewStreamingService(newTestClient(t, mux))
	if err := svc.StopStream(context.Background(), "cam1"); err != nil {
		t.Errorf("Expected no-op for not connected camera, got %v", err)
	}
}

func TestStartStreamSendsOptions(t *testing.T) {
	var got StreamOptions
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/streaming/cam1/start", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, StreamSession{StreamURL: "ws://backend/stream/cam1"})
	})

	svc := NewStreamingService(newTestClient(t, mux))
	session, err := svc.StartStream(context.Background(), "cam1", StreamOptions{Quality: "high", FPS: 25, Format: "jpeg"})
	if err != nil {
		t.Fatalf("StartStream failed: %v", err)
	}

	if got.Quality != "high" || got.FPS != 25 || got.Format != "jpeg" {
		t.Errorf("Unexpected options sent: %+v", got)
	}
	if session.CameraID != "cam1" {
		t.Errorf("Expected camera id filled in, got %q", session.CameraID)
	}
}

func TestMediaMTXEnvelope(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/mediamtx/servers", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "2" || r.URL.Query().Get("page_size") != "10" {
			t.Errorf("Unexpected pagination: %s", r.URL.RawQuery)
		}
		writeJSON(w, http.StatusOK, Envelope[Page[MediaServer]]{
			Success: true,
			Data: Page[MediaServer]{
				Items:    []MediaServer{{ID: "srv1", Name: "edge"}},
				Total:    25,
				Page:     2,
				PageSize: 10,
			},
		})
	})
	mux.HandleFunc("/api/v2/mediamtx/servers/srv1/test", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"error":   map[string]string{"code": "unreachable", "message": "connection timed out"},
		})
	})

	svc := NewMediaMTXService(newTestClient(t, mux))

	page, err := svc.ListServers(context.Background(), 2, 10)
	if err != nil {
		t.Fatalf("ListServers failed: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "srv1" {
		t.Errorf("Unexpected page items: %+v", page.Items)
	}
	if !page.HasNext() {
		t.Error("Expected another page after 2x10 of 25")
	}

	_, err = svc.TestConnection(context.Background(), "srv1")
	var de *DomainError
	if !errors.As(err, &de) {
		t.Fatalf("Expected DomainError, got %v", err)
	}
	if de.Code != "unreachable" || de.Message != "connection timed out" {
		t.Errorf("Unexpected envelope error: %+v", de)
	}
}

func TestStreamingSessionCalls(t *testing.T) {
	var calls []string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/streaming/cam1/connect", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "connect")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/v2/streaming/cam1/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"connected": true, "streaming": false})
	})
	mux.HandleFunc("/api/v2/streaming/cam1/disconnect", func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, "disconnect")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/v2/streaming/gone/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "no session"})
	})
	mux.HandleFunc("/api/v2/streaming/gone/disconnect", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"detail": "no session"})
	})

	svc := NewStreamingService(newTestClient(t, mux))
	ctx := context.Background()

	if err := svc.Connect(ctx, "cam1"); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	connected, err := svc.IsConnected(ctx, "cam1")
	if err != nil || !connected {
		t.Errorf("Expected cam1 connected, got %v (err %v)", connected, err)
	}
	if err := svc.Disconnect(ctx, "cam1"); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	connected, err = svc.IsConnected(ctx, "gone")
	if err != nil || connected {
		t.Errorf("Expected unknown session to read as disconnected, got %v (err %v)", connected, err)
	}
	if err := svc.Disconnect(ctx, "gone"); err != nil {
		t.Errorf("Expected disconnect of unknown session to succeed, got %v", err)
	}

	if len(calls) != 2 || calls[0] != "connect" || calls[1] != "disconnect" {
		t.Errorf("Unexpected call order: %v", calls)
	}
}

func TestMediaMTXServerLifecycle(t *testing.T) {
	var created, updated MediaServerRequest
	var deleted, loggedOut bool
	var creds map[string]string

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v2/mediamtx/servers", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&created)
		writeJSON(w, http.StatusCreated, Envelope[MediaServer]{
			Success: true,
			Data:    MediaServer{ID: "srv9", Name: created.Name, APIURL: created.APIURL, IsActive: created.IsActive},
		})
	})
	mux.HandleFunc("/api/v2/mediamtx/servers/srv9", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, Envelope[MediaServer]{
				Success: true,
				Data:    MediaServer{ID: "srv9", Name: "edge", APIURL: "http://edge:9997", IsActive: true},
			})
		case http.MethodPut:
			json.NewDecoder(r.Body).Decode(&updated)
			writeJSON(w, http.StatusOK, Envelope[MediaServer]{
				Success: true,
				Data:    MediaServer{ID: "srv9", Name: updated.Name, IsActive: updated.IsActive},
			})
		case http.MethodDelete:
			deleted = true
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
		}
	})
	mux.HandleFunc("/api/v2/mediamtx/servers/srv9/auth", func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&creds)
		writeJSON(w, http.StatusOK, Envelope[AuthSession]{
			Success: true,
			Data:    AuthSession{Token: "tok", ExpiresAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
		})
	})
	mux.HandleFunc("/api/v2/mediamtx/servers/srv9/logout", func(w http.ResponseWriter, r *http.Request) {
		loggedOut = true
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})

	svc := NewMediaMTXService(newTestClient(t, mux))
	ctx := context.Background()

	srv, err := svc.CreateServer(ctx, MediaServerRequest{Name: "edge", APIURL: "http://edge:9997", IsActive: true})
	if err != nil {
		t.Fatalf("CreateServer failed: %v", err)
	}
	if srv.ID != "srv9" || created.Name != "edge" {
		t.Errorf("Unexpected create round trip: sent %+v got %+v", created, srv)
	}

	srv, err = svc.GetServer(ctx, "srv9")
	if err != nil || srv.APIURL != "http://edge:9997" {
		t.Fatalf("GetServer: %+v (err %v)", srv, err)
	}

	srv, err = svc.UpdateServer(ctx, "srv9", MediaServerRequest{Name: "edge", IsActive: false})
	if err != nil {
		t.Fatalf("UpdateServer failed: %v", err)
	}
	if srv.IsActive || updated.IsActive {
		t.Errorf("Expected server deactivated, got %+v", srv)
	}

	session, err := svc.Authenticate(ctx, "srv9", "admin", "pw")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if session.Token != "tok" || creds["username"] != "admin" || creds["password"] != "pw" {
		t.Errorf("Unexpected auth exchange: creds %v session %+v", creds, session)
	}

	if err := svc.Logout(ctx, "srv9"); err != nil || !loggedOut {
		t.Errorf("Logout: called=%v err=%v", loggedOut, err)
	}
	if err := svc.DeleteServer(ctx, "srv9"); err != nil || !deleted {
		t.Errorf("DeleteServer: called=%v err=%v", deleted, err)
	}
}
