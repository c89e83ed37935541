package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv        string `env:"APP_ENV" default:"development"`
	Port          string `env:"PORT" default:"8080"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisURL      string `env:"REDIS_URL"`
	SessionSecret string `env:"SESSION_SECRET"`
	LogLevel      string `env:"LOG_LEVEL" default:"info"`
	LogFormat     string `env:"LOG_FORMAT" default:"text"`

	// Origins allowed to open WebSockets, comma separated. Empty means same host only.
	AllowedOrigins string `env:"ALLOWED_ORIGINS"`

	HeartbeatInterval time.Duration `env:"HEARTBEAT_INTERVAL" default:"5s"`
	ClientTimeout     time.Duration `env:"CLIENT_TIMEOUT" default:"10s"`
	SendBufferSize    int           `env:"SEND_BUFFER_SIZE" default:"16"`

	PresenceCacheTTL      time.Duration `env:"PRESENCE_CACHE_TTL" default:"24h"`
	PresenceCacheDisabled bool          `env:"PRESENCE_CACHE_DISABLED" default:"false"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"20"`
	ConnectionRate          float64 `env:"CONNECTION_RATE" default:"5"`
	ConnectionBurst         int     `env:"CONNECTION_BURST" default:"10"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Origins splits AllowedOrigins into its trimmed, non-empty entries.
func (c *Config) Origins() []string {
	var origins []string
	for o := range strings.SplitSeq(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if cfg.SessionSecret == "" {
		return errors.New("SESSION_SECRET is required")
	}
	if cfg.RedisURL == "" && !cfg.PresenceCacheDisabled {
		return errors.New("REDIS_URL is required unless PRESENCE_CACHE_DISABLED is set")
	}

	if cfg.HeartbeatInterval <= 0 {
		return errors.New("HEARTBEAT_INTERVAL must be positive")
	}
	if cfg.ClientTimeout <= cfg.HeartbeatInterval {
		return fmt.Errorf("CLIENT_TIMEOUT (%s) must be longer than HEARTBEAT_INTERVAL (%s)", cfg.ClientTimeout, cfg.HeartbeatInterval)
	}
	if cfg.SendBufferSize < 1 {
		return errors.New("SEND_BUFFER_SIZE must be at least 1")
	}
	if cfg.MaxWebSocketConnections < 1 || cfg.MaxConnectionsPerIP < 1 {
		return errors.New("MAX_WEBSOCKET_CONNECTIONS and MAX_CONNECTIONS_PER_IP must be at least 1")
	}
	if cfg.ConnectionRate <= 0 || cfg.ConnectionBurst < 1 {
		return errors.New("CONNECTION_RATE must be positive and CONNECTION_BURST at least 1")
	}

	if cfg.IsProduction() {
		if mode := sslMode(cfg.DatabaseURL); mode == "disable" || mode == "allow" {
			return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
		}
	}

	return nil
}

func sslMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Query().Get("sslmode"))
}
