package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yourorg/camera-dashboard/internal/camera"
	"github.com/yourorg/camera-dashboard/internal/notify"
	"github.com/yourorg/camera-dashboard/internal/store"
)

// HealthMonitor raises throttled notifications for unhealthy cameras and for
// an unreachable backend.
type HealthMonitor struct {
	notifier notify.Notifier
	throttle time.Duration
	now      func() time.Time

	mu         sync.Mutex
	lastAlert  map[string]time.Time
	lastFailed map[string]int
}

func NewHealthMonitor(notifier notify.Notifier, throttle time.Duration) *HealthMonitor {
	if throttle <= 0 {
		throttle = 5 * time.Minute
	}
	return &HealthMonitor{
		notifier:   notifier,
		throttle:   throttle,
		now:        time.Now,
		lastAlert:  make(map[string]time.Time),
		lastFailed: make(map[string]int),
	}
}

func (h *HealthMonitor) Start(ctx context.Context, st *store.Store, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Check(st.Snapshot())
		}
	}
}

func (h *HealthMonitor) Check(snap store.Snapshot) {
	if snap.ConnectionError.HasError {
		h.sendAlertThrottled(
			"backend-unreachable",
			notify.LevelError,
			"Camera Service Unreachable",
			snap.ConnectionError.ErrorMessage,
		)
	}

	for _, cam := range snap.Cameras {
		h.checkCamera(cam, snap.Errors[cam.ID])
	}
}

func (h *HealthMonitor) checkCamera(cam camera.Camera, lastErr string) {
	name := cam.DisplayName
	if name == "" {
		name = cam.ID
	}

	if cam.Status == camera.StatusError {
		h.sendAlertThrottled(
			cam.ID+"-error",
			notify.LevelError,
			"Camera Error",
			fmt.Sprintf("Camera %s (%s) is in error state", name, cam.ID),
		)
	}

	h.mu.Lock()
	prev, seen := h.lastFailed[cam.ID]
	h.lastFailed[cam.ID] = cam.Statistics.FailedConnections
	h.mu.Unlock()

	if seen && cam.Statistics.FailedConnections > prev {
		msg := fmt.Sprintf("Camera %s failed to connect %d times", name, cam.Statistics.FailedConnections)
		if lastErr != "" {
			msg += ": " + lastErr
		}
		h.sendAlertThrottled(cam.ID+"-failures", notify.LevelWarning, "Connection Failures", msg)
	}
}

func (h *HealthMonitor) sendAlertThrottled(key string, level notify.Level, title, message string) {
	if h.notifier == nil {
		return
	}

	h.mu.Lock()
	now := h.now()
	if lastTime, exists := h.lastAlert[key]; exists && now.Sub(lastTime) < h.throttle {
		h.mu.Unlock()
		return
	}
	h.lastAlert[key] = now
	h.mu.Unlock()

	h.notifier.Notify(level, title, message)
}
