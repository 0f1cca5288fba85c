// Package api exposes the camera store to browser clients: a REST surface
// for actions and queries, and a WebSocket stream of store snapshots.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/yourorg/camera-dashboard/internal/notify"
	"github.com/yourorg/camera-dashboard/internal/onboarding"
	"github.com/yourorg/camera-dashboard/internal/store"
)

type Deps struct {
	Store         *store.Store
	Notifications *notify.Center
	Onboarding    *onboarding.Store
}

type Server struct {
	port   int
	deps   Deps
	hub    *Hub
	server *http.Server
	cancel context.CancelFunc
}

func NewServer(port int, deps Deps) *Server {
	return &Server{
		port: port,
		deps: deps,
		hub:  NewHub(deps.Store.Snapshot),
	}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(loggingMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	h := &handlers{deps: s.deps}

	api.HandleFunc("/cameras/actions/connect-all", h.connectAll).Methods("POST")
	api.HandleFunc("/cameras/actions/disconnect-all", h.disconnectAll).Methods("POST")
	api.HandleFunc("/cameras/actions/connect-location", h.connectLocation).Methods("POST")

	api.HandleFunc("/cameras", h.listCameras).Methods("GET")
	api.HandleFunc("/cameras", h.createCamera).Methods("POST")
	api.HandleFunc("/cameras/{id}", h.getCamera).Methods("GET")
	api.HandleFunc("/cameras/{id}", h.updateCamera).Methods("PATCH")
	api.HandleFunc("/cameras/{id}", h.deleteCamera).Methods("DELETE")
	api.HandleFunc("/cameras/{id}/connect", h.connectCamera).Methods("POST")
	api.HandleFunc("/cameras/{id}/disconnect", h.disconnectCamera).Methods("POST")
	api.HandleFunc("/cameras/{id}/refresh", h.refreshCamera).Methods("POST")
	api.HandleFunc("/cameras/{id}/credentials", h.updateCredentials).Methods("POST")
	api.HandleFunc("/cameras/{id}/endpoints", h.addEndpoint).Methods("POST")

	api.HandleFunc("/locations", h.locations).Methods("GET")
	api.HandleFunc("/brands", h.brands).Methods("GET")
	api.HandleFunc("/stats", h.stats).Methods("GET")
	api.HandleFunc("/ui-state", h.getUIState).Methods("GET")
	api.HandleFunc("/ui-state", h.putUIState).Methods("PUT")

	api.HandleFunc("/notifications", h.listNotifications).Methods("GET")
	api.HandleFunc("/notifications/{id}", h.dismissNotification).Methods("DELETE")

	api.HandleFunc("/connection-error", h.connectionError).Methods("GET")
	api.HandleFunc("/connection-error/retry", h.retryConnection).Methods("POST")

	api.HandleFunc("/onboarding", h.onboardingState).Methods("GET")
	api.HandleFunc("/onboarding/complete", h.completeOnboarding).Methods("POST")
	api.HandleFunc("/onboarding/skip", h.skipOnboarding).Methods("POST")

	api.HandleFunc("/ws", s.hub.HandleWS).Methods("GET")

	return router
}

// StartHub subscribes the WebSocket hub to store changes. It returns once the
// subscription exists; delivery runs until ctx ends.
func (s *Server) StartHub(ctx context.Context) {
	snaps, unsubscribe := s.deps.Store.Subscribe(32)
	go func() {
		defer unsubscribe()
		s.hub.Run(ctx, snaps)
	}()
}

func (s *Server) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)
	s.StartHub(ctx)

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", s.port),
		Handler:     s.Router(),
		ReadTimeout: 10 * time.Second,
	}

	log.Infof("API server listening on port %d", s.port)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}
	log.Info("Stopping API server")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown API server: %w", err)
	}

	log.Info("API server stopped")
	return nil
}
