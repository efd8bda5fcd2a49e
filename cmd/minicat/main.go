// Command minicat runs the applications described by one or more deployment
// descriptors.
//
// Configuration comes from the environment (optionally a .env file):
//
//	MINICAT_DESCRIPTORS=deploy/shop.yaml,deploy/admin.yaml
//	MINICAT_ADDRESS=:8080
//	MINICAT_SHUTDOWN_TIMEOUT=30s
//	LOG_LEVEL=info
//	SENTRY_DSN=https://...
//	SENTRY_TAGS=region:eu,tier:web
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/dmitrymomot/minicat"
	"github.com/dmitrymomot/minicat/middlewares"
	"github.com/dmitrymomot/minicat/pkg/descriptor"
	"github.com/dmitrymomot/minicat/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "minicat:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cfg.Log.Release = fmt.Sprintf("%s@%d.%d", minicat.ServerName, minicat.MajorVersion, minicat.MinorVersion)
	log := logger.NewWithSentry(cfg.Log, middlewares.RequestIDExtractor())
	defer sentry.Flush(2 * time.Second)

	apps, err := buildApps(cfg.Descriptors, log)
	if err != nil {
		return err
	}

	return minicat.Run(
		minicat.Mount(apps...),
		minicat.Address(cfg.Address),
		minicat.Logger(log),
		minicat.ShutdownTimeout(cfg.ShutdownTimeout),
		minicat.RequestTimeout(cfg.RequestTimeout),
		minicat.HealthPaths(cfg.LivenessPath, cfg.ReadinessPath),
	)
}

// buildApps creates one application per descriptor file.
func buildApps(paths []string, log *slog.Logger) ([]*minicat.App, error) {
	apps := make([]*minicat.App, 0, len(paths))
	for _, p := range paths {
		d, err := descriptor.Load(p)
		if err != nil {
			return nil, err
		}
		opts, err := minicat.FromDescriptor(d)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		name := d.DisplayName
		if name == "" {
			name = d.ContextPath
		}
		opts = append(opts, minicat.WithCustomLogger(log.With(slog.String("app", name))))
		apps = append(apps, minicat.New(opts...))
	}
	return apps, nil
}
