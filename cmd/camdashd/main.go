package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourorg/camera-dashboard/internal/alert"
	"github.com/yourorg/camera-dashboard/internal/api"
	"github.com/yourorg/camera-dashboard/internal/config"
	"github.com/yourorg/camera-dashboard/internal/dashboard"
	"github.com/yourorg/camera-dashboard/internal/grpc"
	"github.com/yourorg/camera-dashboard/internal/logging"
	"github.com/yourorg/camera-dashboard/internal/metrics"

	log "github.com/sirupsen/logrus"
)

var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (defaults and CAMDASH_* env when empty)")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Camera Dashboard\nVersion: %s\nBuild Time: %s\nGit Commit: %s\n", version, buildTime, gitCommit)
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logging.Setup(cfg.Logging); err != nil {
		log.Warnf("Logging setup: %v", err)
	}

	log.WithFields(log.Fields{
		"version":    version,
		"build_time": buildTime,
		"git_commit": gitCommit,
		"backend":    cfg.Backend.BaseURL,
	}).Info("Starting Camera Dashboard")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dash, err := dashboard.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize dashboard: %v", err)
	}

	if alerter := dash.Alerter(); alerter != nil {
		alerter.SendAlert(alert.AlertInfo, "Camera Dashboard Started",
			fmt.Sprintf("Dashboard for %s has started", cfg.Backend.BaseURL))
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, dash.Ready)
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.Errorf("Metrics server error: %v", err)
			}
		}()
		log.Infof("Metrics server started on port %d", cfg.Metrics.Port)
	}

	var grpcServer *grpc.Server
	if cfg.GRPC.Enabled {
		grpcServer, err = grpc.NewServer(cfg.GRPC)
		if err != nil {
			log.Fatalf("Failed to initialize gRPC server: %v", err)
		}
		go grpcServer.Track(ctx, dash.Store())
		go func() {
			if err := grpcServer.Start(); err != nil {
				log.Errorf("gRPC server error: %v", err)
			}
		}()
		log.Infof("gRPC health service started on port %d", cfg.GRPC.Port)
	}

	if err := dash.Start(ctx); err != nil {
		log.Fatalf("Failed to start dashboard: %v", err)
	}

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer = api.NewServer(cfg.API.Port, api.Deps{
			Store:         dash.Store(),
			Notifications: dash.Notifications(),
			Onboarding:    dash.Onboarding(),
		})
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				log.Errorf("API server error: %v", err)
			}
		}()
		log.Infof("API server started on port %d", cfg.API.Port)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	log.Info("Shutdown signal received, gracefully stopping...")

	if alerter := dash.Alerter(); alerter != nil {
		alerter.SendAlert(alert.AlertWarning, "Camera Dashboard Stopping",
			fmt.Sprintf("Dashboard for %s is shutting down", cfg.Backend.BaseURL))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if apiServer != nil {
		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Errorf("Error stopping API server: %v", err)
		}
	}

	if err := dash.Stop(shutdownCtx); err != nil {
		log.Errorf("Error stopping dashboard: %v", err)
	}

	if grpcServer != nil {
		if err := grpcServer.Stop(shutdownCtx); err != nil {
			log.Errorf("Error stopping gRPC server: %v", err)
		}
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(shutdownCtx); err != nil {
			log.Errorf("Error stopping metrics server: %v", err)
		}
	}

	log.Info("Camera Dashboard stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}
