package camera

import (
	"errors"
	"testing"
)

func TestRegistryUpsertAndGet(t *testing.T) {
	r := NewRegistry()

	if err := r.Upsert(Camera{ID: "cam1", DisplayName: "Lobby"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := r.Upsert(Camera{DisplayName: "no id"}); err == nil {
		t.Error("Expected error for empty ID")
	}

	cam, ok := r.Get("cam1")
	if !ok {
		t.Fatal("Expected cam1 to exist")
	}
	if cam.DisplayName != "Lobby" {
		t.Errorf("Expected Lobby, got %s", cam.DisplayName)
	}
	if r.Len() != 1 {
		t.Errorf("Expected 1 camera, got %d", r.Len())
	}
}

func TestRegistryReturnsCopies(t *testing.T) {
	r := NewRegistry()
	r.Upsert(Camera{ID: "cam1", Protocols: []Protocol{{Type: "rtsp", Port: 554}}})

	cam, _ := r.Get("cam1")
	cam.Protocols[0].Port = 1

	again, _ := r.Get("cam1")
	if again.Protocols[0].Port != 554 {
		t.Errorf("Stored camera mutated through returned copy: port %d", again.Protocols[0].Port)
	}
}

func TestRegistryUpdate(t *testing.T) {
	r := NewRegistry()
	r.Upsert(Camera{ID: "cam1", Brand: "Axis"})

	err := r.Update("cam1", func(c *Camera) error {
		c.Brand = "Dahua"
		return nil
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	cam, _ := r.Get("cam1")
	if cam.Brand != "Dahua" {
		t.Errorf("Expected Dahua, got %s", cam.Brand)
	}

	if err := r.Update("missing", func(*Camera) error { return nil }); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	failing := errors.New("nope")
	err = r.Update("cam1", func(c *Camera) error {
		c.Brand = "Hikvision"
		return failing
	})
	if !errors.Is(err, failing) {
		t.Errorf("Expected update func error, got %v", err)
	}
	cam, _ = r.Get("cam1")
	if cam.Brand != "Dahua" {
		t.Errorf("Failed update must not be stored, got %s", cam.Brand)
	}
}

func TestRegistryReplaceAndDelete(t *testing.T) {
	r := NewRegistry()
	r.Upsert(Camera{ID: "old"})

	if err := r.Replace([]Camera{{ID: "a"}, {ID: "b"}}); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if _, ok := r.Get("old"); ok {
		t.Error("Replace must drop cameras not in the new set")
	}
	if len(r.List()) != 2 {
		t.Errorf("Expected 2 cameras, got %d", len(r.List()))
	}

	if !r.Delete("a") {
		t.Error("Expected delete of existing camera to report true")
	}
	if r.Delete("a") {
		t.Error("Expected second delete to report false")
	}
}

func TestPatchApplyClearsStreamingWhenDisconnected(t *testing.T) {
	cam := Camera{ID: "cam1"}
	cam.MarkConnected()

	off := false
	Patch{IsConnected: &off}.Apply(&cam)

	if cam.IsStreaming {
		t.Error("is_connected=false must imply is_streaming=false")
	}
}

func TestBestEndpointPrefersVerified(t *testing.T) {
	cam := Camera{Endpoints: []Endpoint{
		{URL: "rtsp://a", Priority: 1},
		{URL: "rtsp://b", Priority: 3, IsVerified: true},
		{URL: "rtsp://c", Priority: 2, IsVerified: true},
	}}

	ep, ok := cam.BestEndpoint()
	if !ok {
		t.Fatal("Expected an endpoint")
	}
	if ep.URL != "rtsp://c" {
		t.Errorf("Expected rtsp://c, got %s", ep.URL)
	}
}
