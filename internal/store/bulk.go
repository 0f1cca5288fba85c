package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/yourorg/camera-dashboard/internal/camera"
	"github.com/yourorg/camera-dashboard/internal/metrics"
	"github.com/yourorg/camera-dashboard/internal/notify"
)

// BulkResult summarises a multi-camera action. Every target ends up in either
// Succeeded or Errors.
type BulkResult struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// ConnectAllCameras connects every active camera that is not connected yet,
// in batches.
func (s *Store) ConnectAllCameras(ctx context.Context) (BulkResult, error) {
	ids := s.targets(func(c camera.Camera) bool {
		return c.IsActive && !c.IsConnected
	})
	return s.bulkConnect(ctx, "connect_all", "Connect all", ids)
}

// ConnectCamerasByLocation connects the active, disconnected cameras at one
// location.
func (s *Store) ConnectCamerasByLocation(ctx context.Context, location string) (BulkResult, error) {
	ids := s.targets(func(c camera.Camera) bool {
		return c.IsActive && !c.IsConnected && c.Location == location
	})
	return s.bulkConnect(ctx, "connect_location", fmt.Sprintf("Connect %s", location), ids)
}

// DisconnectAllCameras disconnects every connected camera in a single
// parallel round.
func (s *Store) DisconnectAllCameras(ctx context.Context) (BulkResult, error) {
	return s.DisconnectCameras(ctx, s.targets(func(c camera.Camera) bool { return c.IsConnected }))
}

// DisconnectCameras disconnects the given cameras whatever their local state,
// in a single parallel round.
func (s *Store) DisconnectCameras(ctx context.Context, ids []string) (BulkResult, error) {
	res, err := s.runBatched(ctx, ids, len(ids), 0, "disconnect_all", func(ctx context.Context, id string) error {
		return s.DisconnectCamera(ctx, id)
	})
	s.summarise("Disconnect all", "disconnected", res)
	return res, err
}

func (s *Store) bulkConnect(ctx context.Context, action, title string, ids []string) (BulkResult, error) {
	res, err := s.runBatched(ctx, ids, s.opts.BatchSize, s.opts.BatchDelay, action, func(ctx context.Context, id string) error {
		return s.ConnectCamera(ctx, id)
	})
	s.summarise(title, "connected", res)
	return res, err
}

func (s *Store) targets(keep func(camera.Camera) bool) []string {
	var ids []string
	for _, c := range s.repo.List() {
		if keep(c) {
			ids = append(ids, c.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// runBatched calls fn for every id, size at a time. A batch always runs to
// completion; one failure does not cancel its siblings. The pause is taken
// between batches only. If ctx ends during a pause the remaining ids are
// reported as failed.
func (s *Store) runBatched(ctx context.Context, ids []string, size int, delay time.Duration, action string, fn func(context.Context, string) error) (BulkResult, error) {
	res := BulkResult{Total: len(ids), Errors: make(map[string]string)}
	if len(ids) == 0 {
		return res, nil
	}
	if size <= 0 {
		size = len(ids)
	}

	var mu sync.Mutex
	for start := 0; start < len(ids); start += size {
		if start > 0 {
			if err := s.sleep(ctx, delay); err != nil {
				for _, id := range ids[start:] {
					res.Errors[id] = err.Error()
				}
				res.Failed += len(ids) - start
				log.WithField("action", action).Warnf("Bulk action interrupted: %v", err)
				return res, err
			}
		}

		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batch := ids[start:end]
		metrics.BulkBatches.WithLabelValues(action).Inc()
		log.WithFields(log.Fields{
			"action": action,
			"batch":  start/size + 1,
			"size":   len(batch),
		}).Debug("Running bulk batch")

		var wg sync.WaitGroup
		for _, id := range batch {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				err := fn(ctx, id)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					res.Failed++
					res.Errors[id] = err.Error()
					return
				}
				res.Succeeded++
			}(id)
		}
		wg.Wait()
	}
	return res, nil
}

func (s *Store) summarise(title, verb string, res BulkResult) {
	log.WithFields(log.Fields{
		"total":     res.Total,
		"succeeded": res.Succeeded,
		"failed":    res.Failed,
	}).Info(title)

	switch {
	case res.Total == 0:
		s.notify(notify.LevelInfo, title, "No cameras to process")
	case res.Failed == 0:
		s.notify(notify.LevelSuccess, title, fmt.Sprintf("%d cameras %s", res.Succeeded, verb))
	case res.Succeeded == 0:
		s.notify(notify.LevelError, title, fmt.Sprintf("All %d cameras failed", res.Failed))
	default:
		s.notify(notify.LevelWarning, title, fmt.Sprintf("%d of %d cameras %s, %d failed", res.Succeeded, res.Total, verb, res.Failed))
	}
}
