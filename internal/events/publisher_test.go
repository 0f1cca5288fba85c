package events

import (
	"encoding/json"
	"errors"
	"testing"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return f.err
}

func (f *fakeConn) Drain() error { return nil }

func TestPublishSubjectAndPayload(t *testing.T) {
	fc := &fakeConn{}
	p := &NATSPublisher{nc: fc, prefix: "cameras"}

	p.Publish(Event{Type: CameraConnected, CameraID: "cam1"})
	p.Publish(Event{Type: CamerasLoaded, Message: "3 cameras"})

	if len(fc.subjects) != 2 {
		t.Fatalf("Expected 2 publishes, got %d", len(fc.subjects))
	}
	if fc.subjects[0] != "cameras.cam1.connected" {
		t.Errorf("Unexpected subject %s", fc.subjects[0])
	}
	if fc.subjects[1] != "cameras.loaded" {
		t.Errorf("Unexpected subject %s", fc.subjects[1])
	}

	var evt Event
	if err := json.Unmarshal(fc.payloads[0], &evt); err != nil {
		t.Fatalf("Invalid payload: %v", err)
	}
	if evt.Timestamp.IsZero() {
		t.Error("Expected timestamp to be filled in")
	}
}

func TestPublishSwallowsErrors(t *testing.T) {
	p := &NATSPublisher{nc: &fakeConn{err: errors.New("disconnected")}, prefix: "cameras"}
	p.Publish(Event{Type: CameraDeleted, CameraID: "cam1"})
}
