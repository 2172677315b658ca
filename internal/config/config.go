package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName               string
	AppEnv                string
	AppPort               string
	DatabaseURL           string
	RedisURL              string
	NATSURL               string
	RealtimeChannel       string
	JWTSecret             string
	NotificationKeepAlive time.Duration
	ChatReconcileInterval time.Duration
	MatchSweepInterval    time.Duration
	SubmitRateLimit       int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("LOSTFOUND")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Lost & Found API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("realtime.channel", "lostfound")
	v.SetDefault("notification.keepalive", "30s")
	v.SetDefault("chat.reconcile_interval", "30s")
	v.SetDefault("match.sweep_interval", "5m")
	v.SetDefault("submit.rate_limit", 10)

	keepAlive, err := parseDuration(v, "notification.keepalive")
	if err != nil {
		return Config{}, err
	}
	reconcile, err := parseDuration(v, "chat.reconcile_interval")
	if err != nil {
		return Config{}, err
	}
	sweep, err := parseDuration(v, "match.sweep_interval")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:               v.GetString("app.name"),
		AppEnv:                v.GetString("app.env"),
		AppPort:               v.GetString("app.port"),
		DatabaseURL:           v.GetString("database.url"),
		RedisURL:              v.GetString("redis.url"),
		NATSURL:               v.GetString("nats.url"),
		RealtimeChannel:       v.GetString("realtime.channel"),
		JWTSecret:             v.GetString("jwt.secret"),
		NotificationKeepAlive: keepAlive,
		ChatReconcileInterval: reconcile,
		MatchSweepInterval:    sweep,
		SubmitRateLimit:       v.GetInt("submit.rate_limit"),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	if cfg.SubmitRateLimit <= 0 {
		cfg.SubmitRateLimit = 10
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
