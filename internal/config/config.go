package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-envconfig"
)

// WorkerConfig drives the dispatch process.
type WorkerConfig struct {
	WorkerID            string        `env:"WORKER_ID"`
	DispatchInterval    time.Duration `env:"DISPATCH_INTERVAL,default=5s"`
	BatchSize           int           `env:"DISPATCH_BATCH_SIZE,default=50"`
	MaxWorkers          int           `env:"MAX_WORKERS,default=10"`
	StaleLockTimeout    time.Duration `env:"STALE_LOCK_TIMEOUT,default=5m"`
	ReclaimInterval     time.Duration `env:"RECLAIM_INTERVAL,default=1m"`
	RetryBaseDelay      time.Duration `env:"RETRY_BASE_DELAY,default=30s"`
	RetryMaxDelay       time.Duration `env:"RETRY_MAX_DELAY,default=30m"`
	QueueTypes          []string      `env:"WORKER_QUEUE_TYPES"`
	AggregationSchedule string        `env:"AGGREGATION_SCHEDULE,default=0 * * * *"`
	LogLevel            string        `env:"LOG_LEVEL,default=info"`
}

// APIConfig drives the enqueue/admin HTTP process.
type APIConfig struct {
	HTTPAddr        string        `env:"HTTP_ADDR,default=:8080"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT,default=5s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
	LogLevel        string        `env:"LOG_LEVEL,default=info"`
}

// to help with testing
var envProcess = envconfig.Process

func LoadWorkerConfig(ctx context.Context) (*WorkerConfig, error) {
	var cfg WorkerConfig
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validateWorkerConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func LoadAPIConfig(ctx context.Context) (*APIConfig, error) {
	var cfg APIConfig
	if err := envProcess(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := validateAPIConfig(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func validateWorkerConfig(cfg *WorkerConfig) error {
	var errors []string

	if cfg.DispatchInterval <= 0 {
		errors = append(errors, "DISPATCH_INTERVAL must be positive")
	}
	if cfg.BatchSize < 1 {
		errors = append(errors, "DISPATCH_BATCH_SIZE must be at least 1")
	}
	if cfg.MaxWorkers < 1 {
		errors = append(errors, "MAX_WORKERS must be at least 1")
	}
	if cfg.StaleLockTimeout <= 0 {
		errors = append(errors, "STALE_LOCK_TIMEOUT must be positive")
	}
	if cfg.ReclaimInterval < 0 {
		errors = append(errors, "RECLAIM_INTERVAL must be non-negative")
	}
	if cfg.RetryBaseDelay <= 0 {
		errors = append(errors, "RETRY_BASE_DELAY must be positive")
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		errors = append(errors, "RETRY_MAX_DELAY must not be less than RETRY_BASE_DELAY")
	}

	// An empty schedule disables the periodic aggregation enqueue.
	if strings.TrimSpace(cfg.AggregationSchedule) != "" {
		if _, err := cron.ParseStandard(cfg.AggregationSchedule); err != nil {
			errors = append(errors, "AGGREGATION_SCHEDULE must be a valid cron expression")
		}
	}

	if _, ok := parseLevel(cfg.LogLevel); !ok {
		errors = append(errors, "LOG_LEVEL must be one of debug, info, warn, error")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}

func validateAPIConfig(cfg *APIConfig) error {
	var errors []string

	if strings.TrimSpace(cfg.HTTPAddr) == "" {
		errors = append(errors, "HTTP_ADDR is required")
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, "REQUEST_TIMEOUT must be positive")
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, "SHUTDOWN_TIMEOUT must be positive")
	}
	if _, ok := parseLevel(cfg.LogLevel); !ok {
		errors = append(errors, "LOG_LEVEL must be one of debug, info, warn, error")
	}

	if len(errors) > 0 {
		return fmt.Errorf("%s", strings.Join(errors, "; "))
	}
	return nil
}
