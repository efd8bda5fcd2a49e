package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/minicat/pkg/logger"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("MINICAT_DESCRIPTORS", "a.yaml,b.yaml")
	t.Setenv("MINICAT_SHUTDOWN_TIMEOUT", "5s")
	t.Setenv("SENTRY_DSN", "")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SENTRY_TAGS", "region:eu,tier:web")

	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	require.Equal(t, []string{"a.yaml", "b.yaml"}, cfg.Descriptors)
	require.Equal(t, ":8080", cfg.Address)
	require.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, "/health/ready", cfg.ReadinessPath)
	require.Equal(t, "production", cfg.Log.SentryEnvironment)
	require.Equal(t, slog.LevelDebug, cfg.Log.Level)
	require.Equal(t, slog.LevelWarn, cfg.Log.SentryLevel)
	require.Equal(t, map[string]string{"region": "eu", "tier": "web"}, cfg.Log.SentryTags)
}

func TestLoadConfigEnvFile(t *testing.T) {
	t.Setenv("MINICAT_ADDRESS", "")
	os.Unsetenv("MINICAT_ADDRESS")
	t.Setenv("MINICAT_DESCRIPTORS", "x.yaml")

	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("MINICAT_ADDRESS=:9090\n"), 0o600))

	cfg, err := loadConfig(file)
	require.NoError(t, err)
	require.Equal(t, ":9090", cfg.Address)
}

func TestBuildApps(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
context_path: /site
servlets:
  - name: files
    kind: static
    patterns: ["/"]
`), 0o600))

	apps, err := buildApps([]string{path}, logger.NewNope())
	require.NoError(t, err)
	require.Len(t, apps, 1)
	require.Equal(t, "/site", apps[0].ContextPath())
	require.NoError(t, apps[0].Start(context.Background()))
	require.NoError(t, apps[0].Stop(time.Second))

	_, err = buildApps([]string{filepath.Join(dir, "missing.yaml")}, logger.NewNope())
	require.Error(t, err)
}
