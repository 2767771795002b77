// Package config loads, normalizes, and validates showcheck configuration.
//
// Settings come from an optional TOML file, then an optional .env file, then
// the process environment. Secrets are only read from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Portal holds per-source settings. Credentials come from the environment.
type Portal struct {
	BaseURL  string `toml:"base_url"`
	Email    string `toml:"-"`
	Password string `toml:"-"`
	Enabled  bool   `toml:"enabled"`
}

// Sources holds the portal settings.
type Sources struct {
	HouseSeats Portal `toml:"houseseats"`
	FirstTix   Portal `toml:"firsttix"`
}

// Storage selects and configures the state backend.
type Storage struct {
	Backend       string `toml:"backend"` // local, gcs, sqlite or redis
	Dir           string `toml:"dir"`
	Bucket        string `toml:"bucket"`
	SQLitePath    string `toml:"sqlite_path"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPrefix   string `toml:"redis_prefix"`
	RedisPassword string `toml:"-"`
	RedisDB       int    `toml:"redis_db"`
}

// History tunes appearance tracking and rarity.
type History struct {
	WindowDays    int `toml:"window_days"`
	RetentionDays int `toml:"retention_days"`
	RareThreshold int `toml:"rare_threshold"`
}

// Denylist locates the remote and local denylist copies.
type Denylist struct {
	URL       string `toml:"url"`
	LocalPath string `toml:"local_path"`
	EditURL   string `toml:"edit_url"`
}

// Email configures the primary alert channel.
type Email struct {
	Provider        string `toml:"provider"` // gmail, brevo or mock
	To              string `toml:"to"`
	From            string `toml:"from"`
	FromName        string `toml:"from_name"`
	AllShowsURL     string `toml:"all_shows_url"`
	BrevoAPIKey     string `toml:"-"`
	GoogleCredsJSON string `toml:"-"`
}

// Ntfy configures push notifications.
type Ntfy struct {
	Topic          string `toml:"topic"` // Full topic URL
	RequestTimeout int    `toml:"request_timeout"`
}

// Telegram configures the Telegram channel.
type Telegram struct {
	Token  string `toml:"-"`
	ChatID int64  `toml:"chat_id"`
}

// AMQP configures event publishing to a broker.
type AMQP struct {
	URL   string `toml:"url"`
	Queue string `toml:"queue"`
}

// Run tunes a single check.
type Run struct {
	Timezone             string         `toml:"timezone"`
	LockPath             string         `toml:"lock_path"`
	Location             *time.Location `toml:"-"`
	SourceTimeoutSeconds int            `toml:"source_timeout_seconds"`
	Fast                 bool           `toml:"fast"`
}

// Server configures the HTTP surface.
type Server struct {
	Port string `toml:"port"`
}

// Logging configures the slog handler.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // auto, json or text
}

// Config is every knob the CLI and server need.
type Config struct {
	Sources  Sources  `toml:"sources"`
	Storage  Storage  `toml:"storage"`
	History  History  `toml:"history"`
	Denylist Denylist `toml:"denylist"`
	Email    Email    `toml:"email"`
	Ntfy     Ntfy     `toml:"ntfy"`
	Telegram Telegram `toml:"telegram"`
	AMQP     AMQP     `toml:"amqp"`
	Run      Run      `toml:"run"`
	Server   Server   `toml:"server"`
	Logging  Logging  `toml:"logging"`
}

// Load reads the TOML file at path (a missing file is not an error), the
// optional .env file at envPath, applies environment overrides, normalizes
// and validates. It reports whether the TOML file existed.
func Load(path, envPath string) (*Config, bool, error) {
	cfg := Default()

	exists := false
	if path != "" {
		file, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, false, fmt.Errorf("open config: %w", err)
		default:
			exists = true
			defer file.Close() //nolint:errcheck // read-only
			if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(&cfg); err != nil {
				return nil, false, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if envPath != "" {
		// Existing environment variables win over the file.
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, exists, fmt.Errorf("load env file: %w", err)
		}
	}
	cfg.applyEnv(os.Getenv)

	if err := cfg.normalize(); err != nil {
		return nil, exists, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, exists, err
	}
	return &cfg, exists, nil
}

// SourceTimeout is the per-source fetch deadline.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.Run.SourceTimeoutSeconds) * time.Second
}
