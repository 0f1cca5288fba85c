package store

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/yourorg/camera-dashboard/internal/camera"
	"github.com/yourorg/camera-dashboard/internal/events"
	"github.com/yourorg/camera-dashboard/internal/metrics"
	"github.com/yourorg/camera-dashboard/internal/notify"
)

// ConnectCamera connects one camera and opens its stream. It returns ErrBusy
// while another operation holds the camera.
func (s *Store) ConnectCamera(ctx context.Context, id string) error {
	release, err := s.acquire(id, "connect")
	if err != nil {
		return err
	}
	defer release()

	cam, ok := s.repo.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.connect(ctx, cam)
}

// DisconnectCamera always leaves the camera disconnected locally. Remote
// failures are reported but not returned.
func (s *Store) DisconnectCamera(ctx context.Context, id string) error {
	release, err := s.acquire(id, "disconnect")
	if err != nil {
		return err
	}
	defer release()

	cam, ok := s.repo.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.disconnect(ctx, cam)
	return nil
}

// connect runs the remote connect and, once that succeeds, starts the stream.
// A stream failure is reported as a warning and the camera stays connected.
// A connect failure leaves status as it was.
func (s *Store) connect(ctx context.Context, cam camera.Camera) error {
	id := cam.ID
	logger := log.WithFields(log.Fields{
		"camera_id": id,
		"name":      cam.DisplayName,
	})

	s.setFlag(s.connecting, id, true)
	defer s.setFlag(s.connecting, id, false)

	s.touch(id, func(c *camera.Camera) { c.Statistics.TotalConnections++ })

	if err := s.cameras.ConnectCamera(ctx, id); err != nil {
		kind := Classify(err)
		metrics.CameraOperations.WithLabelValues("connect", "failure").Inc()
		metrics.BackendErrors.WithLabelValues(string(kind)).Inc()

		at := s.now()
		s.touch(id, func(c *camera.Camera) {
			c.Statistics.FailedConnections++
			c.RecordError(err.Error(), at)
		})
		s.mu.Lock()
		s.errors[id] = err.Error()
		s.mu.Unlock()

		logger.WithField("kind", kind).Errorf("Failed to connect camera: %v", err)
		s.notify(notify.LevelError, "Connection failed", fmt.Sprintf("Could not connect to %s: %v", displayName(cam), err))
		s.emit(events.CameraConnectFail, id, err.Error())
		s.publish()
		return fmt.Errorf("connect camera %s: %w", id, err)
	}

	s.touch(id, func(c *camera.Camera) {
		c.MarkConnected()
		c.Statistics.SuccessfulConnections++
	})
	s.mu.Lock()
	delete(s.errors, id)
	s.mu.Unlock()

	metrics.CameraOperations.WithLabelValues("connect", "success").Inc()
	logger.Info("Camera connected")
	s.notify(notify.LevelSuccess, "Camera connected", fmt.Sprintf("%s is online", displayName(cam)))
	s.emit(events.CameraConnected, id, "")
	s.publish()

	if s.streaming == nil {
		return nil
	}

	session, err := s.streaming.StartStream(ctx, id, s.opts.Stream)
	if err != nil {
		metrics.StreamStartFailures.Inc()
		logger.Warnf("Failed to start stream: %v", err)
		s.notify(notify.LevelWarning, "Stream unavailable", fmt.Sprintf("%s is connected but its stream did not start: %v", displayName(cam), err))
		s.emit(events.StreamFailed, id, err.Error())
		return nil
	}

	s.mu.Lock()
	s.sessions[id] = session
	s.mu.Unlock()
	logger.WithField("stream_url", session.StreamURL).Debug("Stream started")
	s.publish()
	return nil
}

// disconnect stops the stream, asks the backend to disconnect and then forces
// the local state to disconnected whatever the backend answered.
func (s *Store) disconnect(ctx context.Context, cam camera.Camera) {
	id := cam.ID
	logger := log.WithFields(log.Fields{
		"camera_id": id,
		"name":      cam.DisplayName,
	})

	if s.streaming != nil {
		if err := s.streaming.StopStream(ctx, id); err != nil {
			logger.Debugf("Stop stream before disconnect: %v", err)
		}
	}

	remoteErr := s.cameras.DisconnectCamera(ctx, id)

	s.touch(id, func(c *camera.Camera) { c.MarkDisconnected() })
	s.mu.Lock()
	delete(s.sessions, id)
	delete(s.errors, id)
	s.mu.Unlock()

	if remoteErr != nil {
		kind := Classify(remoteErr)
		metrics.CameraOperations.WithLabelValues("disconnect", "failure").Inc()
		metrics.BackendErrors.WithLabelValues(string(kind)).Inc()
		logger.WithField("kind", kind).Warnf("Backend disconnect failed, camera marked disconnected locally: %v", remoteErr)
		s.notify(notify.LevelWarning, "Disconnect incomplete", fmt.Sprintf("%s was disconnected locally but the server reported: %v", displayName(cam), remoteErr))
	} else {
		metrics.CameraOperations.WithLabelValues("disconnect", "success").Inc()
		logger.Info("Camera disconnected")
		s.notify(notify.LevelInfo, "Camera disconnected", fmt.Sprintf("%s is offline", displayName(cam)))
	}

	s.emit(events.CameraDisconnected, id, "")
	s.publish()
}
