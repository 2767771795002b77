package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"showcheck/config"
	"showcheck/denylist"
	"showcheck/dispatch"
	"showcheck/email"
	"showcheck/poll"
	"showcheck/scraper"
	"showcheck/storage"
)

// app holds the long-lived pieces every command needs.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	state   *storage.State
	closers []func() error
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	backend, closer, err := openBackend(ctx, cfg.Storage, logger)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:    cfg,
		logger: logger,
		state:  storage.NewState(backend, logger.With("component", "state")),
	}
	if closer != nil {
		a.closers = append(a.closers, closer)
	}
	return a, nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.logger.Warn("Failed to close resource", "error", err)
		}
	}
}

func openBackend(ctx context.Context, cfg config.Storage, logger *slog.Logger) (storage.Backend, func() error, error) {
	switch cfg.Backend {
	case "gcs":
		client, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("initialize storage client: %w", err)
		}
		logger.Info("Using Cloud Storage", "bucket", cfg.Bucket)
		return storage.NewGCS(client, cfg.Bucket, logger.With("component", "gcs")), client.Close, nil
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, nil, fmt.Errorf("create sqlite directory: %w", err)
		}
		db, err := storage.NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using SQLite storage", "path", cfg.SQLitePath)
		return db, db.Close, nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close() //nolint:errcheck // already failing
			return nil, nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Info("Using Redis storage", "addr", cfg.RedisAddr, "prefix", cfg.RedisPrefix)
		return storage.NewRedis(client, cfg.RedisPrefix), client.Close, nil
	default:
		local, err := storage.NewLocal(cfg.Dir, logger.With("component", "local"))
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using local storage", "storage_path", cfg.Dir)
		return local, nil, nil
	}
}

// monitor wires the scrapers, denylist and notification channels into a poll.Monitor.
func (a *app) monitor(ctx context.Context) (*poll.Monitor, error) {
	cfg := a.cfg
	scrapers, err := newScrapers(cfg, a.logger)
	if err != nil {
		return nil, err
	}
	if len(scrapers) == 0 {
		return nil, errors.New("no sources enabled")
	}

	dispatcher, err := a.dispatcher(ctx)
	if err != nil {
		return nil, err
	}

	deny := denylist.NewProvider(&http.Client{Timeout: 15 * time.Second}, cfg.Denylist.URL, cfg.Denylist.LocalPath,
		a.logger.With("component", "denylist"))

	if err := os.MkdirAll(filepath.Dir(cfg.Run.LockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	return poll.New(scrapers, a.state, deny, dispatcher, poll.Options{
		Location:      cfg.Run.Location,
		LockPath:      cfg.Run.LockPath,
		SourceTimeout: cfg.SourceTimeout(),
		WindowDays:    cfg.History.WindowDays,
		RetentionDays: cfg.History.RetentionDays,
		RareThreshold: cfg.History.RareThreshold,
	}, a.logger.With("component", "poll")), nil
}

func newScrapers(cfg *config.Config, logger *slog.Logger) ([]scraper.Scraper, error) {
	var out []scraper.Scraper
	if p := cfg.Sources.HouseSeats; p.Enabled {
		hs, err := scraper.NewHouseSeats(scraper.Options{
			Logger:   logger.With("component", "houseseats"),
			BaseURL:  p.BaseURL,
			Email:    p.Email,
			Password: p.Password,
			Fast:     cfg.Run.Fast,
		})
		if err != nil {
			return nil, fmt.Errorf("houseseats scraper: %w", err)
		}
		out = append(out, hs)
	}
	if p := cfg.Sources.FirstTix; p.Enabled {
		ft, err := scraper.NewFirstTix(scraper.Options{
			Logger:   logger.With("component", "firsttix"),
			BaseURL:  p.BaseURL,
			Email:    p.Email,
			Password: p.Password,
			Fast:     cfg.Run.Fast,
		})
		if err != nil {
			return nil, fmt.Errorf("1sttix scraper: %w", err)
		}
		out = append(out, ft)
	}
	return out, nil
}

// dispatcher builds the email primary channel plus any configured secondary
// channels. The mock provider stands in for email only when no other channel
// is configured.
func (a *app) dispatcher(ctx context.Context) (*dispatch.Fanout, error) {
	cfg := a.cfg

	var secondary []dispatch.Dispatcher
	if cfg.Ntfy.Topic != "" {
		secondary = append(secondary, dispatch.NewNtfy(cfg.Ntfy.Topic, time.Duration(cfg.Ntfy.RequestTimeout)*time.Second))
	}
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		tg, err := dispatch.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err != nil {
			a.logger.Warn("Telegram disabled", "error", err)
		} else {
			secondary = append(secondary, tg)
		}
	}
	if cfg.AMQP.URL != "" {
		secondary = append(secondary, dispatch.NewAMQP(cfg.AMQP.URL, cfg.AMQP.Queue))
	}

	var primary dispatch.Dispatcher
	if isMockEmail(cfg.Email.Provider) && len(secondary) > 0 {
		a.logger.Info("Mock email skipped, secondary channels decide delivery")
	} else {
		provider, err := a.emailProvider(ctx)
		if err != nil {
			return nil, err
		}
		primary = email.New(provider, cfg.Email.To, email.Links{
			AllShows:     cfg.Email.AllShowsURL,
			EditDenylist: cfg.Denylist.EditURL,
		}, a.logger.With("component", "email"))
	}

	fan := dispatch.NewFanout(primary, a.logger.With("component", "dispatch"), secondary...)
	a.logger.Info("Notification channels ready", "channels", fan.Name())
	return fan, nil
}

func isMockEmail(provider string) bool {
	return provider == "" || provider == "mock"
}

func (a *app) emailProvider(ctx context.Context) (email.Provider, error) {
	cfg := a.cfg.Email
	logger := a.logger.With("component", "email")
	switch cfg.Provider {
	case "gmail":
		svc, err := initGmailService(ctx, cfg.GoogleCredsJSON)
		if err != nil {
			return nil, fmt.Errorf("initialize gmail: %w", err)
		}
		return email.NewGmailProvider(svc, logger), nil
	case "brevo":
		return email.NewBrevoProvider(cfg.BrevoAPIKey, cfg.From, cfg.FromName, logger), nil
	default:
		logger.Info("Mock email mode enabled")
		return email.NewMockProvider(logger), nil
	}
}

// isCloudRun checks if we're running in a GCP environment by querying the metadata server.
func isCloudRun(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://metadata.google.internal/computeMetadata/v1/project/project-id", http.NoBody)
	if err != nil {
		return false
	}
	req.Header.Set("Metadata-Flavor", "Google")

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() {
		_ = resp.Body.Close() //nolint:errcheck // probe only
	}()

	return resp.StatusCode == http.StatusOK
}

func initGmailService(ctx context.Context, credsJSON string) (*gmail.Service, error) {
	// Explicit credentials first (local runs, GitHub Actions)
	if credsJSON != "" {
		return gmail.NewService(ctx, option.WithCredentialsJSON([]byte(credsJSON)))
	}

	// On Cloud Run the service account needs the gmail.send scope.
	if isCloudRun(ctx) {
		return gmail.NewService(ctx)
	}

	return nil, errors.New("GOOGLE_CREDENTIALS_JSON required when not running in Cloud Run")
}
