// Package store is the client-side source of truth for camera state: the
// entity table, what the dashboard is currently showing, and the connect,
// disconnect and bulk actions that keep it in step with the backend.
package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/yourorg/camera-dashboard/internal/backend"
	"github.com/yourorg/camera-dashboard/internal/camera"
	"github.com/yourorg/camera-dashboard/internal/events"
	"github.com/yourorg/camera-dashboard/internal/metrics"
	"github.com/yourorg/camera-dashboard/internal/notify"
)

type CameraService interface {
	ListCameras(ctx context.Context, activeOnly bool) ([]camera.Camera, error)
	GetCamera(ctx context.Context, id string) (camera.Camera, error)
	CreateCamera(ctx context.Context, req camera.CreateRequest) (camera.Camera, error)
	UpdateCamera(ctx context.Context, id string, patch camera.Patch) (camera.Camera, error)
	DeleteCamera(ctx context.Context, id string) error
	ConnectCamera(ctx context.Context, id string) error
	DisconnectCamera(ctx context.Context, id string) error
	UpdateCredentials(ctx context.Context, id, username, password string) error
	AddCameraEndpoint(ctx context.Context, id string, ep camera.Endpoint) (camera.Camera, error)
}

type StreamingService interface {
	StartStream(ctx context.Context, id string, opts backend.StreamOptions) (backend.StreamSession, error)
	StopStream(ctx context.Context, id string) error
}

type Deps struct {
	Repo      camera.Repository
	Cameras   CameraService
	Streaming StreamingService
	Notifier  notify.Notifier
	Events    events.Publisher
}

type Options struct {
	BatchSize  int
	BatchDelay time.Duration
	Stream     backend.StreamOptions
}

func DefaultOptions() Options {
	return Options{
		BatchSize:  5,
		BatchDelay: time.Second,
		Stream:     backend.StreamOptions{Quality: "medium", FPS: 15, Format: "jpeg"},
	}
}

type UIState struct {
	Query
	Selected []string `json:"selected"`
}

type Stats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Connected int `json:"connected"`
	Streaming int `json:"streaming"`
	Errors    int `json:"errors"`
}

// Snapshot is an immutable view of the store at one point in time. GridItems
// holds one item per camera, in the same order as Cameras; VisibleIDs is the
// filtered and sorted selection the current query shows.
type Snapshot struct {
	Version         uint64            `json:"version"`
	Cameras         []camera.Camera   `json:"cameras"`
	GridItems       []camera.GridItem `json:"grid_items"`
	VisibleIDs      []string          `json:"visible_ids"`
	UI              UIState           `json:"ui"`
	Loading         bool              `json:"loading"`
	Connecting      map[string]bool   `json:"connecting"`
	Saving          map[string]bool   `json:"saving"`
	Errors          map[string]string `json:"errors"`
	ConnectionError ConnectionError   `json:"connection_error"`
	Stats           Stats             `json:"stats"`
	LastLoadedAt    time.Time         `json:"last_loaded_at,omitempty"`
}

type Store struct {
	repo      camera.Repository
	cameras   CameraService
	streaming StreamingService
	notifier  notify.Notifier
	events    events.Publisher
	opts      Options

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu           sync.RWMutex
	query        Query
	selected     map[string]struct{}
	loading      bool
	lastLoadedAt time.Time
	connecting   map[string]bool
	saving       map[string]bool
	errors       map[string]string
	sessions     map[string]backend.StreamSession
	inflight     map[string]string
	connErr      ConnectionError

	subMu   sync.Mutex
	subs    map[int]chan Snapshot
	nextSub int
	version atomic.Uint64
}

func New(deps Deps, opts Options) *Store {
	if deps.Repo == nil {
		deps.Repo = camera.NewRegistry()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewCenter(0)
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 5
	}

	return &Store{
		repo:       deps.Repo,
		cameras:    deps.Cameras,
		streaming:  deps.Streaming,
		notifier:   deps.Notifier,
		events:     deps.Events,
		opts:       opts,
		now:        time.Now,
		sleep:      sleepContext,
		query:      DefaultQuery(),
		selected:   make(map[string]struct{}),
		connecting: make(map[string]bool),
		saving:     make(map[string]bool),
		errors:     make(map[string]string),
		sessions:   make(map[string]backend.StreamSession),
		inflight:   make(map[string]string),
		subs:       make(map[int]chan Snapshot),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// AddCamera inserts or replaces a camera locally.
func (s *Store) AddCamera(cam camera.Camera) error {
	if cam.UpdatedAt.IsZero() {
		cam.UpdatedAt = s.now()
	}
	if err := s.repo.Upsert(cam); err != nil {
		return err
	}
	s.publish()
	return nil
}

// UpdateCamera merges patch into the camera and stamps updated_at. A missing
// id is ignored; the camera may have been deleted while the caller was
// working on it.
func (s *Store) UpdateCamera(id string, patch camera.Patch) {
	err := s.repo.Update(id, func(c *camera.Camera) error {
		patch.Apply(c)
		c.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		log.WithField("camera_id", id).Debug("Ignoring update for unknown camera")
		return
	}
	s.publish()
}

func (s *Store) RemoveCamera(id string) bool {
	removed := s.repo.Delete(id)

	s.mu.Lock()
	delete(s.selected, id)
	delete(s.connecting, id)
	delete(s.saving, id)
	delete(s.errors, id)
	delete(s.sessions, id)
	s.mu.Unlock()

	if removed {
		s.publish()
	}
	return removed
}

// touch applies fn to a stored camera and stamps updated_at. Missing ids are
// reported as false.
func (s *Store) touch(id string, fn func(*camera.Camera)) bool {
	err := s.repo.Update(id, func(c *camera.Camera) error {
		fn(c)
		c.UpdatedAt = s.now()
		return nil
	})
	return err == nil
}

func (s *Store) GetCamera(id string) (camera.Camera, bool) {
	return s.repo.Get(id)
}

func (s *Store) Cameras() []camera.Camera {
	cams := s.repo.List()
	sort.Slice(cams, func(i, j int) bool { return cams[i].ID < cams[j].ID })
	return cams
}

func (s *Store) GetFilteredCameras() []camera.Camera {
	return Filter(s.repo.List(), s.Query())
}

func (s *Store) GetUniqueLocations() []string {
	return uniqueValues(s.repo.List(), func(c camera.Camera) string { return c.Location })
}

func (s *Store) GetUniqueBrands() []string {
	return uniqueValues(s.repo.List(), func(c camera.Camera) string { return c.Brand })
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statsLocked(s.repo.List())
}

func (s *Store) statsLocked(cams []camera.Camera) Stats {
	var st Stats
	for _, c := range cams {
		st.Total++
		if c.IsActive {
			st.Active++
		}
		if c.IsConnected {
			st.Connected++
		}
		if c.IsStreaming {
			st.Streaming++
		}
		if c.Status == camera.StatusError || s.errors[c.ID] != "" {
			st.Errors++
		}
	}
	return st
}

// UI state

func (s *Store) Query() Query {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

func (s *Store) SetQuery(q Query) {
	if !q.SortBy.Valid() {
		q.SortBy = SortByName
	}
	if q.SortOrder != Descending {
		q.SortOrder = Ascending
	}
	s.mu.Lock()
	s.query = q
	s.mu.Unlock()
	s.publish()
}

func (s *Store) SetFilters(f Filters) {
	s.mu.Lock()
	s.query.Filters = f
	s.mu.Unlock()
	s.publish()
}

func (s *Store) SetSort(by SortField, order SortOrder) {
	if !by.Valid() {
		by = SortByName
	}
	if order != Descending {
		order = Ascending
	}
	s.mu.Lock()
	s.query.SortBy = by
	s.query.SortOrder = order
	s.mu.Unlock()
	s.publish()
}

func (s *Store) SetSearch(term string) {
	s.mu.Lock()
	s.query.Search = term
	s.mu.Unlock()
	s.publish()
}

func (s *Store) SetShowInactive(show bool) {
	s.mu.Lock()
	s.query.ShowInactive = show
	s.mu.Unlock()
	s.publish()
}

func (s *Store) Select(ids ...string) {
	s.mu.Lock()
	for _, id := range ids {
		s.selected[id] = struct{}{}
	}
	s.mu.Unlock()
	s.publish()
}

func (s *Store) Deselect(ids ...string) {
	s.mu.Lock()
	for _, id := range ids {
		delete(s.selected, id)
	}
	s.mu.Unlock()
	s.publish()
}

func (s *Store) ToggleSelection(id string) {
	s.mu.Lock()
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
	} else {
		s.selected[id] = struct{}{}
	}
	s.mu.Unlock()
	s.publish()
}

// SelectAll selects every camera currently visible under the active query.
func (s *Store) SelectAll() {
	visible := s.GetFilteredCameras()
	s.mu.Lock()
	for _, c := range visible {
		s.selected[c.ID] = struct{}{}
	}
	s.mu.Unlock()
	s.publish()
}

func (s *Store) ClearSelection() {
	s.mu.Lock()
	s.selected = make(map[string]struct{})
	s.mu.Unlock()
	s.publish()
}

func (s *Store) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedLocked()
}

func (s *Store) selectedLocked() []string {
	out := make([]string, 0, len(s.selected))
	for id := range s.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s *Store) ConnectionError() ConnectionError {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connErr
}

func (s *Store) ClearConnectionError() {
	s.mu.Lock()
	s.connErr = ConnectionError{}
	s.mu.Unlock()
	s.publish()
}

// RetryConnection clears the banner and reloads.
func (s *Store) RetryConnection(ctx context.Context) error {
	s.ClearConnectionError()
	return s.LoadCameras(ctx)
}

func (s *Store) IsConnecting(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connecting[id]
}

func (s *Store) setFlag(flags map[string]bool, id string, on bool) {
	s.mu.Lock()
	if on {
		flags[id] = true
	} else {
		delete(flags, id)
	}
	s.mu.Unlock()
	s.publish()
}

// acquire takes the per-camera operation token.
func (s *Store) acquire(id, op string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.inflight[id]; ok {
		return nil, &busyError{id: id, op: current}
	}
	s.inflight[id] = op
	return func() {
		s.mu.Lock()
		delete(s.inflight, id)
		s.mu.Unlock()
	}, nil
}

type busyError struct {
	id string
	op string
}

func (e *busyError) Error() string {
	return e.op + " already in progress for camera " + e.id
}

func (e *busyError) Unwrap() error { return ErrBusy }

func (s *Store) Snapshot() Snapshot {
	cams := s.Cameras()

	s.mu.RLock()
	defer s.mu.RUnlock()

	grid := make([]camera.GridItem, 0, len(cams))
	for _, c := range cams {
		item := camera.NewGridItem(c, s.errors[c.ID])
		if sess, ok := s.sessions[c.ID]; ok && sess.StreamURL != "" && c.IsStreaming {
			item.StreamingURL = sess.StreamURL
		}
		grid = append(grid, item)
	}

	visible := Filter(cams, s.query)
	ids := make([]string, len(visible))
	for i, c := range visible {
		ids[i] = c.ID
	}

	return Snapshot{
		Version:         s.version.Load(),
		Cameras:         cams,
		GridItems:       grid,
		VisibleIDs:      ids,
		UI:              UIState{Query: s.query, Selected: s.selectedLocked()},
		Loading:         s.loading,
		Connecting:      copyFlags(s.connecting),
		Saving:          copyFlags(s.saving),
		Errors:          copyStrings(s.errors),
		ConnectionError: s.connErr,
		Stats:           s.statsLocked(cams),
		LastLoadedAt:    s.lastLoadedAt,
	}
}

func copyFlags(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Subscribe returns a channel receiving a snapshot after every change. A
// subscriber that falls behind misses snapshots rather than blocking the store.
func (s *Store) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			close(ch)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) publish() {
	s.version.Add(1)

	s.subMu.Lock()
	defer s.subMu.Unlock()
	if len(s.subs) == 0 {
		return
	}

	snap := s.Snapshot()
	for _, ch := range s.subs {
		select {
		case ch <- snap:
		default:
			metrics.SnapshotDrops.Inc()
		}
	}
}

func (s *Store) notify(level notify.Level, title, message string) {
	s.notifier.Notify(level, title, message)
}

func (s *Store) emit(t events.Type, id, msg string) {
	s.events.Publish(events.Event{Type: t, CameraID: id, Message: msg, Timestamp: s.now()})
}

func displayName(c camera.Camera) string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	return c.ID
}
