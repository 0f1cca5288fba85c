package camera

import (
	"errors"
	"fmt"
	"sync"
)

var ErrNotFound = errors.New("camera not found")

// Repository is the authoritative client-side table of cameras.
type Repository interface {
	Get(id string) (Camera, bool)
	List() []Camera
	Upsert(cam Camera) error
	Update(id string, updateFunc func(*Camera) error) error
	Delete(id string) bool
	Replace(cams []Camera) error
	Len() int
}

type Registry struct {
	mu      sync.RWMutex
	cameras map[string]Camera
}

var _ Repository = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		cameras: make(map[string]Camera),
	}
}

func (r *Registry) Upsert(cam Camera) error {
	if cam.ID == "" {
		return fmt.Errorf("camera ID is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.cameras[cam.ID] = cam.Clone()
	return nil
}

func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.cameras[id]; !exists {
		return false
	}
	delete(r.cameras, id)
	return true
}

func (r *Registry) Get(id string) (Camera, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cam, exists := r.cameras[id]
	if !exists {
		return Camera{}, false
	}
	return cam.Clone(), true
}

// Update applies updateFunc to a copy and stores it only when the func
// succeeds. A missing id yields ErrNotFound.
func (r *Registry) Update(id string, updateFunc func(*Camera) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cam, exists := r.cameras[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	cam = cam.Clone()
	if err := updateFunc(&cam); err != nil {
		return err
	}
	cam.ID = id

	r.cameras[id] = cam
	return nil
}

func (r *Registry) List() []Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cameras := make([]Camera, 0, len(r.cameras))
	for _, cam := range r.cameras {
		cameras = append(cameras, cam.Clone())
	}
	return cameras
}

// Replace swaps the whole table, as done after a full reload.
func (r *Registry) Replace(cams []Camera) error {
	next := make(map[string]Camera, len(cams))
	for _, cam := range cams {
		if cam.ID == "" {
			return fmt.Errorf("camera ID is required")
		}
		next[cam.ID] = cam.Clone()
	}

	r.mu.Lock()
	r.cameras = next
	r.mu.Unlock()
	return nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cameras)
}
