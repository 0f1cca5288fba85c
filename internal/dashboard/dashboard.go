package dashboard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/yourorg/camera-dashboard/internal/alert"
	"github.com/yourorg/camera-dashboard/internal/backend"
	"github.com/yourorg/camera-dashboard/internal/camera"
	"github.com/yourorg/camera-dashboard/internal/config"
	"github.com/yourorg/camera-dashboard/internal/events"
	"github.com/yourorg/camera-dashboard/internal/metrics"
	"github.com/yourorg/camera-dashboard/internal/notify"
	"github.com/yourorg/camera-dashboard/internal/onboarding"
	"github.com/yourorg/camera-dashboard/internal/store"

	log "github.com/sirupsen/logrus"
)

type Dashboard struct {
	cfg *config.Config

	client     *backend.Client
	servers    *backend.MediaMTXService
	streaming  *backend.StreamingService
	store      *store.Store
	center     *notify.Center
	onboarding *onboarding.Store
	publisher  events.Publisher
	alerter    *alert.TelegramAlerter

	healthMonitor *HealthMonitor
	startTime     time.Time

	mu      sync.RWMutex
	running bool
	closed  bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfg *config.Config) (*Dashboard, error) {
	client := backend.New(cfg.Backend)

	center := notify.NewCenter(cfg.Notifications.MaxHistory, metrics.NotificationSink)

	var alerter *alert.TelegramAlerter
	if cfg.Telegram.Enabled {
		a, err := alert.NewTelegramAlerter(cfg.Telegram)
		if err != nil {
			log.Warnf("Failed to initialize Telegram alerter: %v", err)
		} else {
			alerter = a
			center.AddSink(alerter)
			log.Info("Telegram alerter initialized")
		}
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.NATS.Enabled {
		p, err := events.NewNATSPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			log.Warnf("Failed to connect camera event publisher: %v", err)
		} else {
			publisher = p
			log.Infof("Publishing camera events to %s", cfg.NATS.URL)
		}
	}

	flags, err := onboarding.Load(cfg.Onboarding.StatePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load onboarding state: %w", err)
	}

	streaming := backend.NewStreamingService(client)
	st := store.New(store.Deps{
		Repo:      camera.NewRegistry(),
		Cameras:   backend.NewCameraService(client),
		Streaming: streaming,
		Notifier:  center,
		Events:    publisher,
	}, store.Options{
		BatchSize:  cfg.Bulk.BatchSize,
		BatchDelay: cfg.Bulk.BatchDelay,
		Stream: backend.StreamOptions{
			Quality: cfg.Streaming.Quality,
			FPS:     cfg.Streaming.FPS,
			Format:  cfg.Streaming.Format,
		},
	})

	return &Dashboard{
		cfg:           cfg,
		client:        client,
		servers:       backend.NewMediaMTXService(client),
		streaming:     streaming,
		store:         st,
		center:        center,
		onboarding:    flags,
		publisher:     publisher,
		alerter:       alerter,
		healthMonitor: NewHealthMonitor(center, cfg.Dashboard.AlertThrottle),
		startTime:     time.Now(),
	}, nil
}

// Start loads the camera list and runs the background loops. A failed first
// load is not fatal: the banner stays up until a retry succeeds.
func (d *Dashboard) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("dashboard already running")
	}

	ctx, d.cancel = context.WithCancel(ctx)
	d.running = true

	log.Info("Starting camera dashboard")

	if err := d.store.LoadCameras(ctx); err != nil {
		log.Warnf("Initial camera load failed: %v", err)
	}

	snaps, unsubscribe := d.store.Subscribe(16)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer unsubscribe()
		d.trackGauges(ctx, snaps)
	}()

	if d.cfg.Dashboard.HealthInterval > 0 {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.healthMonitor.Start(ctx, d.store, d.cfg.Dashboard.HealthInterval)
		}()
	}

	if d.cfg.Dashboard.RefreshInterval > 0 {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.runPeriodicRefresh(ctx, d.cfg.Dashboard.RefreshInterval)
		}()
	}

	updateGauges(d.store.Stats())
	log.Info("Camera dashboard started")
	return nil
}

// Stop ends the background loops if they run, waits for pending alert
// deliveries and drains the event publisher. It is safe to call without Start
// and more than once.
func (d *Dashboard) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		log.Info("Stopping camera dashboard")

		if d.cancel != nil {
			d.cancel()
		}

		done := make(chan struct{})
		go func() {
			d.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			log.Warn("Timed out waiting for dashboard loops to exit")
		}
		d.running = false
	}

	if err := d.center.Flush(ctx); err != nil {
		log.Warnf("Notification deliveries still pending: %v", err)
	}

	if !d.closed {
		if p, ok := d.publisher.(*events.NATSPublisher); ok {
			if err := p.Close(); err != nil {
				log.Errorf("Error draining event publisher: %v", err)
			}
		}
		d.closed = true
	}

	log.Info("Camera dashboard stopped")
	return nil
}

func (d *Dashboard) Store() *store.Store { return d.store }

func (d *Dashboard) Notifications() *notify.Center { return d.center }

func (d *Dashboard) Onboarding() *onboarding.Store { return d.onboarding }

func (d *Dashboard) Servers() *backend.MediaMTXService { return d.servers }

func (d *Dashboard) Streaming() *backend.StreamingService { return d.streaming }

func (d *Dashboard) Alerter() *alert.TelegramAlerter { return d.alerter }

// Ready reports whether the camera service is reachable, as last observed.
func (d *Dashboard) Ready() error {
	if ce := d.store.ConnectionError(); ce.HasError {
		return fmt.Errorf("%s", ce.ErrorMessage)
	}
	return nil
}

func (d *Dashboard) GetDiagnostics() map[string]interface{} {
	stats := d.store.Stats()
	banner := d.store.ConnectionError()

	return map[string]interface{}{
		"backend_url":       d.cfg.Backend.BaseURL,
		"total_cameras":     stats.Total,
		"active_cameras":    stats.Active,
		"connected_cameras": stats.Connected,
		"streaming_cameras": stats.Streaming,
		"camera_errors":     stats.Errors,
		"backend_reachable": !banner.HasError,
		"connection_error":  banner.ErrorMessage,
		"uptime":            time.Since(d.startTime).String(),
		"telegram_enabled":  d.alerter != nil,
		"nats_enabled":      d.cfg.NATS.Enabled,
	}
}

func (d *Dashboard) runPeriodicRefresh(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.store.SyncCameras(ctx); err != nil {
				log.Debugf("Periodic refresh failed: %v", err)
			}
		}
	}
}

func (d *Dashboard) trackGauges(ctx context.Context, snaps <-chan store.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			updateGauges(snap.Stats)
		}
	}
}

func updateGauges(st store.Stats) {
	metrics.CamerasTotal.Set(float64(st.Total))
	metrics.CamerasConnected.Set(float64(st.Connected))
	metrics.CamerasStreaming.Set(float64(st.Streaming))
}
