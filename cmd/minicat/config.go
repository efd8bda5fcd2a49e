package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/minicat/pkg/logger"
)

// config is the host process configuration, read from the environment.
type config struct {
	Address         string        `env:"MINICAT_ADDRESS" envDefault:":8080"`
	Descriptors     []string      `env:"MINICAT_DESCRIPTORS,required" envSeparator:","`
	LivenessPath    string        `env:"MINICAT_LIVENESS_PATH" envDefault:"/health/live"`
	ReadinessPath   string        `env:"MINICAT_READINESS_PATH" envDefault:"/health/ready"`
	ShutdownTimeout time.Duration `env:"MINICAT_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"MINICAT_REQUEST_TIMEOUT" envDefault:"0s"`
	Log             logger.Config
}

// loadConfig reads an optional .env file, then the environment.
func loadConfig(files ...string) (config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return config{}, fmt.Errorf("loading env file: %w", err)
	}
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}
