// Package config loads environment configuration for the orchestrator.
package config

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv string `env:"APP_ENV" default:"development"`

	// Identity provider (UAuth-style OIDC)
	AuthClientID    string `env:"AUTH_CLIENT_ID"`
	AuthRedirectURI string `env:"AUTH_REDIRECT_URI" default:"http://localhost:3000/callback"`
	AuthScope       string `env:"AUTH_SCOPE" default:"openid wallet profile:optional social:optional"`
	AuthBaseURL     string `env:"AUTH_BASE_URL" default:"https://auth.unstoppabledomains.com"`

	// Streaming provider
	LivepeerAPIKey  string `env:"LIVEPEER_API_KEY"`
	LivepeerBaseURL string `env:"LIVEPEER_BASE_URL" default:"https://livepeer.studio/api"`

	// Notification provider. The channel key is a channel-level credential,
	// never the creator's own identity.
	PushBaseURL    string `env:"PUSH_BASE_URL" default:"https://backend-staging.epns.io"`
	PushChannelKey string `env:"PUSH_CHANNEL_KEY"`
	PushChannel    string `env:"PUSH_CHANNEL"`
	PushRecipient  string `env:"PUSH_RECIPIENT"`

	// Session persistence. RedisURL, when set, selects the redis-backed
	// snapshot store instead of the local file.
	SessionFile        string `env:"SESSION_FILE"`
	RedisURL           string `env:"REDIS_URL"`
	TokenEncryptionKey string `env:"TOKEN_ENCRYPTION_KEY"`

	// Chat widget support address (consumed by the viewer surface only).
	SupportAddress string `env:"SUPPORT_ADDRESS"`

	MetricsAddr string `env:"METRICS_ADDR"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if cfg.SessionFile == "" {
		cfg.SessionFile = defaultSessionFile()
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"AUTH_CLIENT_ID":   cfg.AuthClientID,
		"LIVEPEER_API_KEY": cfg.LivepeerAPIKey,
		"PUSH_CHANNEL_KEY": cfg.PushChannelKey,
		"PUSH_CHANNEL":     cfg.PushChannel,
		"PUSH_RECIPIENT":   cfg.PushRecipient,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	u, err := url.Parse(cfg.AuthRedirectURI)
	if err != nil || u.Host == "" {
		return fmt.Errorf("AUTH_REDIRECT_URI must be an absolute URL, got %q", cfg.AuthRedirectURI)
	}

	if _, err := hex.DecodeString(cfg.PushChannelKey); err != nil {
		return fmt.Errorf("PUSH_CHANNEL_KEY must be valid hex: %w", err)
	}

	if cfg.TokenEncryptionKey != "" {
		keyBytes, err := hex.DecodeString(cfg.TokenEncryptionKey)
		if err != nil {
			return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be exactly 64 hex characters (32 bytes), got %d bytes", len(keyBytes))
		}
	}

	return nil
}

func defaultSessionFile() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "bubblestreamr", "session.json")
}
