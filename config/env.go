package config

import (
	"strconv"
	"strings"
)

// applyEnv overlays environment variables. Secrets are only ever set here.
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}

	set(&c.Sources.HouseSeats.Email, "HOUSESEATS_EMAIL")
	set(&c.Sources.HouseSeats.Password, "HOUSESEATS_PASSWORD")
	set(&c.Sources.FirstTix.Email, "FIRSTTIX_EMAIL")
	set(&c.Sources.FirstTix.Password, "FIRSTTIX_PASSWORD")

	set(&c.Email.To, "NOTIFICATION_EMAIL")
	set(&c.Email.BrevoAPIKey, "BREVO_API_KEY")
	set(&c.Email.GoogleCredsJSON, "GOOGLE_CREDENTIALS_JSON")
	set(&c.Email.Provider, "EMAIL_PROVIDER")

	set(&c.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	if v := strings.TrimSpace(getenv("TELEGRAM_CHAT_ID")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Telegram.ChatID = id
		}
	}
	set(&c.Ntfy.Topic, "NTFY_TOPIC")
	set(&c.AMQP.URL, "RABBITMQ_URL")

	set(&c.Storage.RedisAddr, "REDIS_ADDR")
	set(&c.Storage.RedisPassword, "REDIS_PASSWORD")
	if v := strings.TrimSpace(getenv("STORAGE_BUCKET")); v != "" {
		c.Storage.Bucket = v
		c.Storage.Backend = "gcs"
	}
	if v := strings.TrimSpace(getenv("LOCAL_STORAGE")); v != "" {
		c.Storage.Dir = v
		c.Storage.Backend = "local"
	}
	set(&c.Storage.Backend, "STORAGE_BACKEND")

	set(&c.Server.Port, "PORT")
	set(&c.Logging.Level, "LOG_LEVEL")
}
