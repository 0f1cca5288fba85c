package store

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/yourorg/camera-dashboard/internal/backend"
	"github.com/yourorg/camera-dashboard/internal/camera"
	"github.com/yourorg/camera-dashboard/internal/events"
	"github.com/yourorg/camera-dashboard/internal/metrics"
	"github.com/yourorg/camera-dashboard/internal/notify"
)

// LoadCameras replaces the local table with the backend's list. A call made
// while another load is running is skipped once the table has data.
//
// Loaded cameras always start disconnected: connections are re-established
// explicitly by the client, whatever the backend reports. Use it for the first
// load and for retries; periodic refreshes go through SyncCameras.
func (s *Store) LoadCameras(ctx context.Context) error {
	if !s.beginLoad() {
		log.Debug("Camera load already in flight, skipping")
		return nil
	}
	s.publish()

	cams, err := s.cameras.ListCameras(ctx, false)
	if err != nil {
		return s.loadFailed("load", err)
	}

	now := s.now()
	for i := range cams {
		cams[i].MarkDisconnected()
		if cams[i].UpdatedAt.IsZero() {
			cams[i].UpdatedAt = now
		}
	}

	if err := s.repo.Replace(cams); err != nil {
		s.endLoad()
		return fmt.Errorf("load cameras: %w", err)
	}

	s.mu.Lock()
	s.loading = false
	s.lastLoadedAt = now
	s.connErr = ConnectionError{}
	s.errors = make(map[string]string)
	s.sessions = make(map[string]backend.StreamSession)
	for id := range s.selected {
		if _, ok := s.repo.Get(id); !ok {
			delete(s.selected, id)
		}
	}
	s.mu.Unlock()

	metrics.CameraOperations.WithLabelValues("load", "success").Inc()
	log.Infof("Loaded %d cameras", len(cams))
	s.emit(events.CamerasLoaded, "", fmt.Sprintf("%d cameras", len(cams)))
	s.publish()
	return nil
}

// SyncCameras reconciles the local table with the backend's list without
// touching connection state. Known cameras take the backend's descriptive
// fields, new ids are added disconnected, and ids the backend dropped are
// removed. Stream sessions and per-camera errors of kept cameras survive.
// An empty table falls back to a full LoadCameras.
func (s *Store) SyncCameras(ctx context.Context) error {
	if s.repo.Len() == 0 {
		return s.LoadCameras(ctx)
	}
	if !s.beginLoad() {
		log.Debug("Camera load already in flight, skipping sync")
		return nil
	}
	s.publish()

	cams, err := s.cameras.ListCameras(ctx, false)
	if err != nil {
		return s.loadFailed("sync", err)
	}

	now := s.now()
	seen := make(map[string]struct{}, len(cams))
	var added, merged int
	for _, remote := range cams {
		seen[remote.ID] = struct{}{}
		err := s.repo.Update(remote.ID, func(c *camera.Camera) error {
			keepConnection(c, remote.ID, remote)
			if c.UpdatedAt.IsZero() {
				c.UpdatedAt = now
			}
			return nil
		})
		if err == nil {
			merged++
			continue
		}

		remote.MarkDisconnected()
		if remote.UpdatedAt.IsZero() {
			remote.UpdatedAt = now
		}
		if err := s.repo.Upsert(remote); err != nil {
			log.WithField("camera_id", remote.ID).Warnf("Skipping camera from sync: %v", err)
			continue
		}
		added++
	}

	var gone []string
	for _, c := range s.repo.List() {
		if _, ok := seen[c.ID]; !ok {
			gone = append(gone, c.ID)
		}
	}
	for _, id := range gone {
		s.RemoveCamera(id)
	}

	s.mu.Lock()
	s.loading = false
	s.lastLoadedAt = now
	s.connErr = ConnectionError{}
	s.mu.Unlock()

	metrics.CameraOperations.WithLabelValues("sync", "success").Inc()
	log.WithFields(log.Fields{
		"merged":  merged,
		"added":   added,
		"removed": len(gone),
	}).Debug("Synced cameras")
	s.emit(events.CamerasLoaded, "", fmt.Sprintf("%d cameras", len(cams)))
	s.publish()
	return nil
}

// beginLoad marks a load in flight. It refuses when one is already running
// and the table has data.
func (s *Store) beginLoad() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loading && s.repo.Len() > 0 {
		return false
	}
	s.loading = true
	return true
}

func (s *Store) endLoad() {
	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	s.publish()
}

// loadFailed settles a failed list call. Connection errors raise the banner,
// cancellations are only logged, anything else becomes an error toast.
func (s *Store) loadFailed(op string, err error) error {
	kind := Classify(err)
	metrics.CameraOperations.WithLabelValues(op, "failure").Inc()

	if kind == KindCanceled {
		log.WithField("operation", op).Debugf("Camera list request abandoned: %v", err)
		s.endLoad()
		return fmt.Errorf("%s cameras: %w", op, err)
	}
	metrics.BackendErrors.WithLabelValues(string(kind)).Inc()

	s.mu.Lock()
	s.loading = false
	if kind == KindConnection {
		s.connErr = ConnectionError{
			HasError:     true,
			ErrorType:    KindConnection,
			ErrorMessage: "Unable to reach the camera service",
			ErrorDetails: err.Error(),
		}
	}
	s.mu.Unlock()

	log.WithField("kind", kind).Errorf("Failed to %s cameras: %v", op, err)
	if kind != KindConnection {
		s.notify(notify.LevelError, "Failed to load cameras", err.Error())
	}
	s.publish()
	return fmt.Errorf("%s cameras: %w", op, err)
}

func (s *Store) CreateCamera(ctx context.Context, req camera.CreateRequest) (camera.Camera, error) {
	cam, err := s.cameras.CreateCamera(ctx, req)
	if err != nil {
		s.reportFailure("create", "Failed to create camera", req.DisplayName, err)
		return camera.Camera{}, fmt.Errorf("create camera: %w", err)
	}

	cam.MarkDisconnected()
	if cam.CreatedAt.IsZero() {
		cam.CreatedAt = s.now()
	}
	cam.UpdatedAt = s.now()
	if err := s.repo.Upsert(cam); err != nil {
		return camera.Camera{}, fmt.Errorf("create camera: %w", err)
	}

	metrics.CameraOperations.WithLabelValues("create", "success").Inc()
	log.WithFields(log.Fields{
		"camera_id": cam.ID,
		"name":      cam.DisplayName,
	}).Info("Camera created")
	s.notify(notify.LevelSuccess, "Camera added", fmt.Sprintf("%s was registered", displayName(cam)))
	s.emit(events.CameraCreated, cam.ID, "")
	s.publish()
	return cam, nil
}

// DeleteCamera disconnects a live camera before deleting it. The local entry
// is removed only after the backend accepts the delete; on a backend failure
// the camera stays in the table and the error is returned.
func (s *Store) DeleteCamera(ctx context.Context, id string) error {
	release, err := s.acquire(id, "delete")
	if err != nil {
		return err
	}
	defer release()

	cam, ok := s.repo.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	if cam.IsConnected {
		s.disconnect(ctx, cam)
	}

	if err := s.cameras.DeleteCamera(ctx, id); err != nil {
		s.reportFailure("delete", "Failed to delete camera", displayName(cam), err)
		return fmt.Errorf("delete camera %s: %w", id, err)
	}

	s.RemoveCamera(id)
	metrics.CameraOperations.WithLabelValues("delete", "success").Inc()
	log.WithField("camera_id", id).Info("Camera deleted")
	s.notify(notify.LevelSuccess, "Camera deleted", fmt.Sprintf("%s was removed", displayName(cam)))
	s.emit(events.CameraDeleted, id, "")
	return nil
}

// RefreshCamera re-reads one camera from the backend, keeping the local
// connection state. A camera the backend no longer knows is dropped.
func (s *Store) RefreshCamera(ctx context.Context, id string) error {
	remote, err := s.cameras.GetCamera(ctx, id)
	if err != nil {
		if backend.IsNotFound(err) {
			s.RemoveCamera(id)
			s.notify(notify.LevelWarning, "Camera removed", fmt.Sprintf("%s no longer exists on the server", id))
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		s.reportFailure("refresh", "Failed to refresh camera", id, err)
		return fmt.Errorf("refresh camera %s: %w", id, err)
	}

	if !s.mergeRemote(id, remote) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.publish()
	return nil
}

// SaveCamera sends an edit to the backend and merges the result.
func (s *Store) SaveCamera(ctx context.Context, id string, patch camera.Patch) (camera.Camera, error) {
	if _, ok := s.repo.Get(id); !ok {
		return camera.Camera{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.setFlag(s.saving, id, true)
	defer s.setFlag(s.saving, id, false)

	remote, err := s.cameras.UpdateCamera(ctx, id, patch)
	if err != nil {
		s.reportFailure("save", "Failed to save camera", id, err)
		return camera.Camera{}, fmt.Errorf("save camera %s: %w", id, err)
	}

	s.mergeRemote(id, remote)
	metrics.CameraOperations.WithLabelValues("save", "success").Inc()
	s.notify(notify.LevelSuccess, "Camera saved", fmt.Sprintf("%s was updated", displayName(remote)))

	cam, _ := s.repo.Get(id)
	return cam, nil
}

func (s *Store) UpdateCredentials(ctx context.Context, id, username, password string) error {
	cam, ok := s.repo.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.setFlag(s.saving, id, true)
	defer s.setFlag(s.saving, id, false)

	if err := s.cameras.UpdateCredentials(ctx, id, username, password); err != nil {
		s.reportFailure("credentials", "Failed to update credentials", displayName(cam), err)
		return fmt.Errorf("update credentials %s: %w", id, err)
	}

	s.touch(id, func(c *camera.Camera) {
		authType := "basic"
		if c.Credentials != nil && c.Credentials.AuthType != "" {
			authType = c.Credentials.AuthType
		}
		c.Credentials = &camera.Credentials{Username: username, AuthType: authType}
	})

	metrics.CameraOperations.WithLabelValues("credentials", "success").Inc()
	s.notify(notify.LevelSuccess, "Credentials updated", fmt.Sprintf("Credentials for %s were saved", displayName(cam)))
	s.publish()
	return nil
}

func (s *Store) AddEndpoint(ctx context.Context, id string, ep camera.Endpoint) error {
	cam, ok := s.repo.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.setFlag(s.saving, id, true)
	defer s.setFlag(s.saving, id, false)

	remote, err := s.cameras.AddCameraEndpoint(ctx, id, ep)
	if err != nil {
		s.reportFailure("endpoint", "Failed to save endpoint", displayName(cam), err)
		return fmt.Errorf("add endpoint %s: %w", id, err)
	}

	s.touch(id, func(c *camera.Camera) {
		if len(remote.Endpoints) > 0 {
			c.Endpoints = remote.Endpoints
		} else {
			c.Endpoints = append(c.Endpoints, ep)
		}
	})

	metrics.CameraOperations.WithLabelValues("endpoint", "success").Inc()
	s.notify(notify.LevelSuccess, "Endpoint saved", fmt.Sprintf("%s endpoint added to %s", ep.Type, displayName(cam)))
	s.publish()
	return nil
}

// mergeRemote overwrites descriptive fields with the backend's copy while
// keeping connection state, which only this client drives.
func (s *Store) mergeRemote(id string, remote camera.Camera) bool {
	return s.touch(id, func(c *camera.Camera) {
		keepConnection(c, id, remote)
	})
}

// keepConnection replaces c with remote except for the connection state and
// counters.
func keepConnection(c *camera.Camera, id string, remote camera.Camera) {
	status, connected, streaming := c.Status, c.IsConnected, c.IsStreaming
	stats := c.Statistics
	*c = remote.Clone()
	c.ID = id
	c.Status, c.IsConnected, c.IsStreaming = status, connected, streaming
	c.Statistics.TotalConnections = stats.TotalConnections
	c.Statistics.SuccessfulConnections = stats.SuccessfulConnections
	c.Statistics.FailedConnections = stats.FailedConnections
}

// reportFailure logs an action-boundary failure and turns it into a toast.
func (s *Store) reportFailure(op, title, subject string, err error) {
	kind := Classify(err)
	metrics.CameraOperations.WithLabelValues(op, "failure").Inc()
	if kind == KindCanceled {
		log.WithFields(log.Fields{
			"operation": op,
			"subject":   subject,
		}).Debugf("%s: %v", title, err)
		return
	}
	metrics.BackendErrors.WithLabelValues(string(kind)).Inc()

	log.WithFields(log.Fields{
		"operation": op,
		"subject":   subject,
		"kind":      kind,
	}).Errorf("%s: %v", title, err)

	msg := err.Error()
	if kind == KindConnection {
		msg = "The camera service is unreachable"
	}
	s.notify(notify.LevelError, title, msg)
}
