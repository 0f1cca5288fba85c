// Package notify holds the transient notifications shown for single-operation
// outcomes and forwards them to external sinks.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notification struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Notifier is what the store depends on.
type Notifier interface {
	Notify(level Level, title, message string) Notification
}

// Sink receives every notification after it is recorded. Deliver runs on its
// own goroutine and must not block for long.
type Sink interface {
	Deliver(n Notification) error
}

type SinkFunc func(Notification) error

func (f SinkFunc) Deliver(n Notification) error { return f(n) }

type Center struct {
	mu         sync.RWMutex
	maxHistory int
	history    []Notification
	sinks      []Sink

	// sink deliveries still running, and the channel Flush waits on
	pending int
	drained chan struct{}
}

var _ Notifier = (*Center)(nil)

func NewCenter(maxHistory int, sinks ...Sink) *Center {
	if maxHistory <= 0 {
		maxHistory = 50
	}
	return &Center{
		maxHistory: maxHistory,
		sinks:      sinks,
	}
}

func (c *Center) AddSink(s Sink) {
	c.mu.Lock()
	c.sinks = append(c.sinks, s)
	c.mu.Unlock()
}

func (c *Center) Notify(level Level, title, message string) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Level:     level,
		Title:     title,
		Message:   message,
		CreatedAt: time.Now(),
	}

	c.mu.Lock()
	c.history = append(c.history, n)
	if over := len(c.history) - c.maxHistory; over > 0 {
		c.history = append([]Notification(nil), c.history[over:]...)
	}
	sinks := c.sinks
	c.pending += len(sinks)
	c.mu.Unlock()

	entry := log.WithFields(log.Fields{
		"notification_id": n.ID,
		"level":           level,
		"title":           title,
	})
	switch level {
	case LevelError:
		entry.Error(message)
	case LevelWarning:
		entry.Warn(message)
	default:
		entry.Info(message)
	}

	for _, s := range sinks {
		go func(s Sink) {
			defer c.delivered()
			if err := s.Deliver(n); err != nil {
				log.Warnf("Failed to deliver notification %s: %v", n.ID, err)
			}
		}(s)
	}

	return n
}

func (c *Center) delivered() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending--
	if c.pending == 0 && c.drained != nil {
		close(c.drained)
		c.drained = nil
	}
}

// Flush waits until every sink delivery started so far has returned, or ctx
// ends.
func (c *Center) Flush(ctx context.Context) error {
	c.mu.Lock()
	if c.pending == 0 {
		c.mu.Unlock()
		return nil
	}
	if c.drained == nil {
		c.drained = make(chan struct{})
	}
	drained := c.drained
	c.mu.Unlock()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recent returns the retained notifications, newest first.
func (c *Center) Recent() []Notification {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Notification, len(c.history))
	for i, n := range c.history {
		out[len(c.history)-1-i] = n
	}
	return out
}

func (c *Center) Dismiss(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, n := range c.history {
		if n.ID == id {
			c.history = append(c.history[:i:i], c.history[i+1:]...)
			return true
		}
	}
	return false
}

func (c *Center) Clear() {
	c.mu.Lock()
	c.history = nil
	c.mu.Unlock()
}
