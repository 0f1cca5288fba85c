// Package events publishes camera lifecycle transitions to NATS so other
// services can follow connection state without polling the dashboard.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type Type string

const (
	CameraCreated      Type = "created"
	CameraDeleted      Type = "deleted"
	CameraConnected    Type = "connected"
	CameraDisconnected Type = "disconnected"
	CameraConnectFail  Type = "connect_failed"
	StreamFailed       Type = "stream_failed"
	CamerasLoaded      Type = "loaded"
)

type Event struct {
	Type      Type      `json:"type"`
	CameraID  string    `json:"camera_id,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher is what the store depends on.
type Publisher interface {
	Publish(evt Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(Event) {}

type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

type NATSPublisher struct {
	nc     conn
	prefix string
}

func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("camera-dashboard"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSPublisher{nc: nc, prefix: prefix}, nil
}

// Subject is <prefix>.<camera_id>.<type>, or <prefix>.<type> for fleet events.
func (p *NATSPublisher) Subject(evt Event) string {
	if evt.CameraID == "" {
		return fmt.Sprintf("%s.%s", p.prefix, evt.Type)
	}
	return fmt.Sprintf("%s.%s.%s", p.prefix, evt.CameraID, evt.Type)
}

func (p *NATSPublisher) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		log.Errorf("Failed to marshal camera event: %v", err)
		return
	}

	if err := p.nc.Publish(p.Subject(evt), payload); err != nil {
		log.WithFields(log.Fields{
			"camera_id": evt.CameraID,
			"type":      evt.Type,
		}).Warnf("Failed to publish camera event: %v", err)
	}
}

func (p *NATSPublisher) Close() error {
	return p.nc.Drain()
}
