// ABOUTME: Runtime configuration loaded from environment and optional .env file
// ABOUTME: Resolves OAuth client settings, storage paths at XDG locations, and retry tuning
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the application.
type Config struct {
	DBPath string `env:"STUDYPILOT_DB_PATH"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	RedirectURL        string `env:"STUDYPILOT_REDIRECT_URL" envDefault:"http://localhost:8080/oauth/callback"`

	CalendarID string `env:"STUDYPILOT_CALENDAR_ID" envDefault:"primary"`
	// CalendarEndpoint overrides the Google Calendar base URL (used against fakes).
	CalendarEndpoint string `env:"STUDYPILOT_CALENDAR_ENDPOINT"`

	ReminderMinutes int `env:"STUDYPILOT_REMINDER_MINUTES" envDefault:"10"`

	RetryMaxAttempts int           `env:"STUDYPILOT_RETRY_MAX_ATTEMPTS" envDefault:"4"`
	RetryBaseDelay   time.Duration `env:"STUDYPILOT_RETRY_BASE_DELAY" envDefault:"500ms"`
	RetryMaxDelay    time.Duration `env:"STUDYPILOT_RETRY_MAX_DELAY" envDefault:"8s"`

	ReconcilePastMonths   int `env:"STUDYPILOT_RECONCILE_PAST_MONTHS" envDefault:"3"`
	ReconcileFutureMonths int `env:"STUDYPILOT_RECONCILE_FUTURE_MONTHS" envDefault:"6"`

	HTTPPort  int    `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"auto"`
}

// Load reads .env (when present) then parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings that would break the calendar pipeline.
func (c *Config) Validate() error {
	if c.RetryMaxAttempts < 1 {
		return fmt.Errorf("retry max attempts must be at least 1, got %d", c.RetryMaxAttempts)
	}
	if c.RetryBaseDelay <= 0 || c.RetryMaxDelay < c.RetryBaseDelay {
		return fmt.Errorf("invalid retry delays: base %s, max %s", c.RetryBaseDelay, c.RetryMaxDelay)
	}
	if c.ReconcilePastMonths < 0 || c.ReconcileFutureMonths < 0 {
		return fmt.Errorf("reconcile window months cannot be negative")
	}
	if c.ReminderMinutes < 0 {
		return fmt.Errorf("reminder minutes cannot be negative")
	}
	return nil
}

// OAuthConfigured reports whether Google OAuth client credentials are set.
func (c *Config) OAuthConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// DefaultDBPath returns the XDG data path for the SQLite database.
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, "studypilot", "studypilot.db")
}
