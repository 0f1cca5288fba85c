package metrics

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/yourorg/camera-dashboard/internal/notify"
)

var (
	CamerasTotal = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "camera_dashboard_cameras",
		Help: "Number of cameras in the store",
	})

	CamerasConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "camera_dashboard_cameras_connected",
		Help: "Number of connected cameras",
	})

	CamerasStreaming = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "camera_dashboard_cameras_streaming",
		Help: "Number of streaming cameras",
	})

	CameraOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camera_dashboard_camera_operations_total",
			Help: "Camera operations by kind and result",
		},
		[]string{"operation", "result"},
	)

	StreamStartFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camera_dashboard_stream_start_failures_total",
		Help: "Streaming sessions that failed to start after a successful connect",
	})

	BulkBatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camera_dashboard_bulk_batches_total",
			Help: "Bulk action batches issued",
		},
		[]string{"action"},
	)

	BackendErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camera_dashboard_backend_errors_total",
			Help: "Backend failures by classification",
		},
		[]string{"kind"},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camera_dashboard_notifications_total",
			Help: "Notifications emitted by level",
		},
		[]string{"level"},
	)

	SnapshotDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "camera_dashboard_snapshot_drops_total",
		Help: "Snapshots dropped because a subscriber was not keeping up",
	})

	WebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "camera_dashboard_websocket_clients",
		Help: "Connected WebSocket clients",
	})

	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "camera_dashboard_api_request_duration_seconds",
			Help:    "API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	Uptime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "camera_dashboard_uptime_seconds",
		Help: "Process uptime in seconds",
	})
)

func init() {
	prometheus.MustRegister(CamerasTotal)
	prometheus.MustRegister(CamerasConnected)
	prometheus.MustRegister(CamerasStreaming)
	prometheus.MustRegister(CameraOperations)
	prometheus.MustRegister(StreamStartFailures)
	prometheus.MustRegister(BulkBatches)
	prometheus.MustRegister(BackendErrors)
	prometheus.MustRegister(Notifications)
	prometheus.MustRegister(SnapshotDrops)
	prometheus.MustRegister(WebSocketClients)
	prometheus.MustRegister(APIRequestDuration)
	prometheus.MustRegister(Uptime)
}

// NotificationSink counts notifications by level.
var NotificationSink notify.Sink = notify.SinkFunc(func(n notify.Notification) error {
	Notifications.WithLabelValues(string(n.Level)).Inc()
	return nil
})

type Server struct {
	port      int
	ready     func() error
	server    *http.Server
	startTime time.Time
}

// NewServer serves /metrics, /health and /ready. ready reports whether the
// backend is reachable; nil means always ready.
func NewServer(port int, ready func() error) *Server {
	return &Server{
		port:      port,
		ready:     ready,
		startTime: time.Now(),
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.Handle("/metrics", promhttp.Handler())
	router.HandleFunc("/health", s.healthHandler).Methods("GET")
	router.HandleFunc("/ready", s.readinessHandler).Methods("GET")
	return router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Infof("Metrics server listening on port %d", s.port)

	go s.updateUptime()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	log.Info("Stopping metrics server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown metrics server: %w", err)
	}

	log.Info("Metrics server stopped")
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": err.Error(),
			})
			return
		}
	}
	writeStatus(w, http.StatusOK, map[string]string{"status": "ready"})
}

func writeStatus(w http.ResponseWriter, code int, body map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		Uptime.Set(time.Since(s.startTime).Seconds())
	}
}
