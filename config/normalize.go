package config

import (
	"fmt"
	"strings"
	"time"
)

func (c *Config) normalize() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	c.Email.Provider = strings.ToLower(strings.TrimSpace(c.Email.Provider))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Sources.HouseSeats.BaseURL = strings.TrimRight(strings.TrimSpace(c.Sources.HouseSeats.BaseURL), "/")
	c.Sources.FirstTix.BaseURL = strings.TrimRight(strings.TrimSpace(c.Sources.FirstTix.BaseURL), "/")
	c.Ntfy.Topic = strings.TrimSpace(c.Ntfy.Topic)

	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Ntfy.RequestTimeout <= 0 {
		c.Ntfy.RequestTimeout = defaultNtfyTimeout
	}

	tz := strings.TrimSpace(c.Run.Timezone)
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", tz, err)
	}
	c.Run.Timezone = tz
	c.Run.Location = loc
	return nil
}
