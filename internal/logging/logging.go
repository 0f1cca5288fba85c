// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/yourorg/camera-dashboard/internal/config"
)

// Setup applies level, format and output. An unknown level falls back to info
// and an unopenable output file leaves logs on stderr; both are reported in
// the returned error without aborting.
func Setup(cfg config.LoggingConfig) error {
	var problems []error

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		problems = append(problems, fmt.Errorf("invalid log level %q, using info", cfg.Level))
		level = log.InfoLevel
	}
	log.SetLevel(level)
	log.SetFormatter(Formatter(cfg.Format))

	if cfg.Output != "" && cfg.Output != "stdout" {
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			problems = append(problems, fmt.Errorf("failed to open log file %s: %w", cfg.Output, err))
		} else {
			log.SetOutput(file)
		}
	} else {
		log.SetOutput(os.Stdout)
	}

	if len(problems) > 0 {
		return problems[0]
	}
	return nil
}

func Formatter(format string) log.Formatter {
	if format == "json" {
		return &log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: log.FieldMap{
				log.FieldKeyTime:  "timestamp",
				log.FieldKeyLevel: "level",
				log.FieldKeyMsg:   "message",
			},
		}
	}
	return &log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	}
}
