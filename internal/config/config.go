// Package config loads server settings from TRACKNOW_* environment variables.
package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"TRACKNOW_DATABASE_URL,notEmpty"`
	HTTPAddr    string `env:"TRACKNOW_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr    string `env:"TRACKNOW_GRPC_ADDR" envDefault:":9090"` // empty disables gRPC
	NATSURL     string `env:"TRACKNOW_NATS_URL"`                     // empty = no message bus
	AuthToken   string `env:"TRACKNOW_AUTH_TOKEN"`                   // empty = auth disabled

	// Real-time delivery
	DeliveryTimeout time.Duration `env:"TRACKNOW_DELIVERY_TIMEOUT" envDefault:"5s"`
	MemberQueue     int           `env:"TRACKNOW_MEMBER_QUEUE" envDefault:"64"`
	IdleTimeout     time.Duration `env:"TRACKNOW_IDLE_TIMEOUT" envDefault:"15m"` // 0 disables the reaper
	PublishQueue    int           `env:"TRACKNOW_PUBLISH_QUEUE" envDefault:"256"`

	// Sync settings
	SyncInterval   time.Duration `env:"TRACKNOW_SYNC_INTERVAL" envDefault:"0"` // 0 = disabled
	SyncS3Bucket   string        `env:"TRACKNOW_SYNC_S3_BUCKET"`
	SyncS3Endpoint string        `env:"TRACKNOW_SYNC_S3_ENDPOINT"` // custom endpoint for MinIO
	SyncS3Region   string        `env:"TRACKNOW_SYNC_S3_REGION" envDefault:"us-east-1"`
	SyncS3Key      string        `env:"TRACKNOW_SYNC_S3_KEY" envDefault:"fences/active.jsonl"`
	SyncFile       string        `env:"TRACKNOW_SYNC_FILE"` // local snapshot path

	OTelEndpoint string     `env:"TRACKNOW_OTEL_ENDPOINT"`
	LogLevel     slog.Level `env:"TRACKNOW_LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if c.MemberQueue <= 0 {
		return nil, fmt.Errorf("TRACKNOW_MEMBER_QUEUE must be positive, got %d", c.MemberQueue)
	}
	if c.PublishQueue <= 0 {
		return nil, fmt.Errorf("TRACKNOW_PUBLISH_QUEUE must be positive, got %d", c.PublishQueue)
	}
	if c.DeliveryTimeout <= 0 {
		return nil, fmt.Errorf("TRACKNOW_DELIVERY_TIMEOUT must be positive, got %s", c.DeliveryTimeout)
	}
	if c.SyncInterval < 0 || c.IdleTimeout < 0 {
		return nil, fmt.Errorf("durations must not be negative")
	}
	return &c, nil
}

// SyncEnabled reports whether periodic fence export is configured.
func (c *Config) SyncEnabled() bool {
	return c.SyncInterval > 0 && (c.SyncS3Bucket != "" || c.SyncFile != "")
}
