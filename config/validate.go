package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateHistory(); err != nil {
		return err
	}
	if err := c.validateEmail(); err != nil {
		return err
	}
	if err := c.validateRun(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case "local":
		if c.Storage.Dir == "" {
			return errors.New("storage.dir must be set for the local backend")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket must be set for the gcs backend")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return errors.New("storage.sqlite_path must be set for the sqlite backend")
		}
	case "redis":
		if c.Storage.RedisAddr == "" {
			return errors.New("storage.redis_addr must be set for the redis backend")
		}
	default:
		return fmt.Errorf("storage.backend %q is not one of local, gcs, sqlite, redis", c.Storage.Backend)
	}
	return nil
}

func (c *Config) validateHistory() error {
	h := c.History
	if h.WindowDays <= 0 || h.RetentionDays <= 0 || h.RareThreshold <= 0 {
		return errors.New("history.window_days, retention_days and rare_threshold must be positive")
	}
	if h.RetentionDays < h.WindowDays {
		return fmt.Errorf("history.retention_days (%d) must cover window_days (%d)", h.RetentionDays, h.WindowDays)
	}
	return nil
}

func (c *Config) validateEmail() error {
	switch c.Email.Provider {
	case "mock", "":
		return nil
	case "gmail":
	case "brevo":
		if c.Email.BrevoAPIKey == "" {
			return errors.New("BREVO_API_KEY must be set for the brevo provider")
		}
		if c.Email.From == "" {
			return errors.New("email.from must be set for the brevo provider")
		}
	default:
		return fmt.Errorf("email.provider %q is not one of gmail, brevo, mock", c.Email.Provider)
	}
	if c.Email.To == "" {
		return errors.New("NOTIFICATION_EMAIL (or email.to) must be set")
	}
	return nil
}

func (c *Config) validateRun() error {
	if c.Run.SourceTimeoutSeconds <= 0 {
		return errors.New("run.source_timeout_seconds must be positive")
	}
	if c.Run.LockPath == "" {
		return errors.New("run.lock_path must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "auto", "json", "text":
	default:
		return fmt.Errorf("logging.format %q is not one of auto, json, text", c.Logging.Format)
	}
	return nil
}
