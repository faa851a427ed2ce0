package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/lojasmm/chatwidget/internal/store"
	"github.com/lojasmm/chatwidget/internal/widget"
)

type Config struct {
	Port    string
	BaseURL string
	DataDir string

	WebhookURL     string
	SessionIDField string
	CORSOrigins    []string

	Storage    string
	RedisURL   string
	SessionTTL time.Duration

	LogLevel string

	Widget widget.Config
}

func Load() (*Config, error) {
	// .env is optional, env vars may already be set (e.g. in production)
	_ = godotenv.Load()

	cfg := &Config{
		Port:           os.Getenv("PORT"),
		BaseURL:        os.Getenv("BASE_URL"),
		DataDir:        os.Getenv("DATA_DIR"),
		WebhookURL:     firstEnv("WEBHOOK_URL", "N8N_WEBHOOK_MRWOO"),
		SessionIDField: os.Getenv("SESSION_ID_FIELD"),
		CORSOrigins:    splitList(os.Getenv("CORS_ORIGINS")),
		Storage:        strings.ToLower(os.Getenv("STORAGE")),
		RedisURL:       os.Getenv("REDIS_URL"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		Widget: widget.Config{
			PrimaryColor:   os.Getenv("WIDGET_PRIMARY_COLOR"),
			CompanyName:    os.Getenv("WIDGET_COMPANY_NAME"),
			LogoURL:        os.Getenv("WIDGET_LOGO_URL"),
			WelcomeMessage: os.Getenv("WIDGET_WELCOME_MESSAGE"),
			APIURL:         os.Getenv("WIDGET_API_URL"),
			Container:      os.Getenv("WIDGET_CONTAINER"),
		},
	}

	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	if cfg.DataDir == "" {
		cfg.DataDir = "."
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%s", cfg.Port)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	if cfg.Storage == "" {
		cfg.Storage = store.KindMemory
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.SessionTTL = time.Hour
	if v := os.Getenv("SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("parsing SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}

	// the widget talks to this server's own proxy unless told otherwise
	if cfg.Widget.APIURL == "" {
		cfg.Widget.APIURL = cfg.BaseURL + "/api/chat"
	}
	cfg.Widget = cfg.Widget.Merge()

	switch cfg.Storage {
	case store.KindMemory, store.KindBolt:
	case store.KindRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("required env var REDIS_URL is not set (STORAGE=redis)")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE %q", cfg.Storage)
	}

	return cfg, nil
}

// StoreOptions selects the tab storage backend.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Kind:     c.Storage,
		BoltPath: c.DataDir + "/chatwidget.db",
		RedisURL: c.RedisURL,
		TTL:      c.SessionTTL,
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
