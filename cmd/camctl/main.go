package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	log "github.com/sirupsen/logrus"

	"github.com/yourorg/camera-dashboard/internal/config"
	"github.com/yourorg/camera-dashboard/internal/dashboard"
	"github.com/yourorg/camera-dashboard/internal/logging"
)

var (
	cfgFile    string
	jsonOutput bool
	verbose    bool

	dash *dashboard.Dashboard
)

var rootCmd = &cobra.Command{
	Use:   "camctl",
	Short: "Operate cameras through the camera service",
	Long: `camctl loads the camera list from the camera service and runs the
same connect, disconnect and bulk actions as the dashboard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cfgFile)
		if err != nil {
			return err
		}
		if !verbose {
			cfg.Logging.Level = "warn"
		}
		if err := logging.Setup(cfg.Logging); err != nil {
			log.Warn(err)
		}

		dash, err = dashboard.New(cfg)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return stopDashboard()
	},
}

// stopDashboard lets pending alerts and events go out before the process
// exits. Failed commands skip the post-run hook, so main calls it as well.
func stopDashboard() error {
	if dash == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return dash.Stop(ctx)
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults and CAMDASH_* env when empty)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log at the configured level instead of warn")
}

// commandContext is cancelled on SIGINT/SIGTERM so a bulk run stops between
// batches.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// loadCameras fills the store. Every command needs the list first.
func loadCameras(ctx context.Context) error {
	if err := dash.Store().LoadCameras(ctx); err != nil {
		if ce := dash.Store().ConnectionError(); ce.HasError {
			return fmt.Errorf("%s: %s", ce.ErrorMessage, ce.ErrorDetails)
		}
		return err
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	err := rootCmd.Execute()
	stopDashboard()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
