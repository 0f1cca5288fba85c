package grpc

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"

	"github.com/yourorg/camera-dashboard/internal/config"
	"github.com/yourorg/camera-dashboard/internal/store"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reporting camera service reachability.
const ServiceName = "camdash.CameraDashboard"

// Server exposes the standard gRPC health protocol. The overall status and
// ServiceName follow the store's connection banner.
type Server struct {
	cfg     *config.GRPCConfig
	health  *health.Server
	server  *grpc.Server
	address string
}

func NewServer(cfg config.GRPCConfig) (*Server, error) {
	var opts []grpc.ServerOption

	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		creds, err := loadTLSCredentials(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS credentials: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
		log.Info("gRPC server using mutual TLS")
	}

	s := &Server{
		cfg:     &cfg,
		health:  health.NewServer(),
		server:  grpc.NewServer(opts...),
		address: fmt.Sprintf("0.0.0.0:%d", cfg.Port),
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	s.SetReachable(true)
	return s, nil
}

func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.address, err)
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	log.Infof("gRPC health server listening on %s", lis.Addr())

	if err := s.server.Serve(lis); err != nil && err != grpc.ErrServerStopped {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	log.Info("Stopping gRPC server")
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		log.Info("gRPC server stopped gracefully")
		return nil
	case <-ctx.Done():
		log.Warn("gRPC server stop timeout, forcing shutdown")
		s.server.Stop()
		return ctx.Err()
	}
}

func (s *Server) SetReachable(ok bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !ok {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Track mirrors the connection banner into the health status until ctx ends.
func (s *Server) Track(ctx context.Context, st *store.Store) {
	snaps, unsubscribe := st.Subscribe(8)
	defer unsubscribe()

	last := !st.ConnectionError().HasError
	s.SetReachable(last)

	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			reachable := !snap.ConnectionError.HasError
			if reachable != last {
				log.WithField("reachable", reachable).Info("Camera service reachability changed")
				s.SetReachable(reachable)
				last = reachable
			}
		}
	}
}

func loadTLSCredentials(cfg config.GRPCConfig) (credentials.TransportCredentials, error) {
	serverCert, err := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load server certificate: %w", err)
	}

	certPool := x509.NewCertPool()
	if cfg.TLSCA != "" {
		ca, err := os.ReadFile(cfg.TLSCA)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA certificate: %w", err)
		}

		if ok := certPool.AppendCertsFromPEM(ca); !ok {
			return nil, fmt.Errorf("failed to append CA certificate")
		}
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{serverCert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    certPool,
		MinVersion:   tls.VersionTLS12,
	}

	return credentials.NewTLS(tlsConfig), nil
}
