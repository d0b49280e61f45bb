package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

const ModeProduction = "production"

type Config struct {
	AppEnv string `env:"APP_ENV" default:"development"`
	Port   string `env:"PORT" default:"3001"`
	Host   string `env:"HOST" default:"0.0.0.0"`

	SessionSecret          string        `env:"SESSION_SECRET"`
	SessionMaxAge          time.Duration `env:"SESSION_MAX_AGE" default:"168h"` // 7 days
	SessionCleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" default:"150m"`

	OGTitle       string `env:"OG_TITLE" default:"Skyport Panel"`
	OGDescription string `env:"OG_DESCRIPTION" default:"The modern game server panel."`

	DatabasePath string `env:"DATABASE_PATH" default:"skyport.db"`
	ViewsDir     string `env:"VIEWS_DIR" default:"views"`
	PublicDir    string `env:"PUBLIC_DIR" default:"public"`
	LangDir      string `env:"LANG_DIR" default:"lang"`
	PluginsDir   string `env:"PLUGINS_DIR" default:"plugins"`
	ThemePath    string `env:"THEME_PATH" default:"storage/theme.json"`

	// Empty keeps POST rate-limit counters in process memory.
	RedisURL string `env:"REDIS_URL"`

	PostRateLimit  int           `env:"POST_RATE_LIMIT" default:"30"`
	PostRateWindow time.Duration `env:"POST_RATE_WINDOW" default:"60s"`

	LoginRatePerSecond float64 `env:"LOGIN_RATE_PER_SECOND" default:"0.2"`
	LoginRateBurst     int     `env:"LOGIN_RATE_BURST" default:"5"`

	AdminUsername string `env:"ADMIN_USERNAME"`
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`

	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`
	LogFile   string `env:"LOG_FILE"`
}

// IsProduction reports whether the panel runs in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == ModeProduction
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
	required := map[string]string{
		"SESSION_SECRET": cfg.SessionSecret,
		"DATABASE_PATH":  cfg.DatabasePath,
		"PORT":           cfg.Port,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if len(cfg.SessionSecret) < 16 {
		return errors.New("SESSION_SECRET must be at least 16 characters")
	}

	if cfg.PostRateLimit <= 0 {
		return errors.New("POST_RATE_LIMIT must be positive")
	}
	if cfg.PostRateWindow <= 0 {
		return errors.New("POST_RATE_WINDOW must be positive")
	}
	if cfg.SessionCleanupInterval <= 0 {
		return errors.New("SESSION_CLEANUP_INTERVAL must be positive")
	}

	if (cfg.AdminUsername == "") != (cfg.AdminPassword == "") {
		return errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}

	return nil
}
