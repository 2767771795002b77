package config

import (
	"showcheck/dispatch"
	"showcheck/history"
	"showcheck/rarity"
	"showcheck/scraper"
)

const (
	defaultStorageDir           = "data"
	defaultSQLitePath           = "data/showcheck.db"
	defaultRedisAddr            = "localhost:6379"
	defaultRedisPrefix          = "showcheck:"
	defaultDenylistURL          = "https://gist.githubusercontent.com/suacide24/f1bf569e229cf1319137a4230d7db1b6/raw/denylist.txt"
	defaultDenylistEditURL      = "https://gist.github.com/suacide24/f1bf569e229cf1319137a4230d7db1b6"
	defaultDenylistPath         = "denylist.txt"
	defaultAllShowsURL          = "https://suacide24.github.io/houseseats-checker/"
	defaultTimezone             = "America/Los_Angeles"
	defaultLockPath             = "data/showcheck.lock"
	defaultSourceTimeoutSeconds = 120
	defaultNtfyTimeout          = 10
	defaultPort                 = "8080"
	defaultLogLevel             = "info"
	defaultLogFormat            = "auto"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Sources: Sources{
			HouseSeats: Portal{BaseURL: scraper.DefaultHouseSeatsURL, Enabled: true},
			FirstTix:   Portal{BaseURL: scraper.DefaultFirstTixURL, Enabled: true},
		},
		Storage: Storage{
			Backend:     "local",
			Dir:         defaultStorageDir,
			SQLitePath:  defaultSQLitePath,
			RedisAddr:   defaultRedisAddr,
			RedisPrefix: defaultRedisPrefix,
		},
		History: History{
			WindowDays:    history.DefaultWindowDays,
			RetentionDays: history.DefaultRetentionDays,
			RareThreshold: rarity.DefaultThreshold,
		},
		Denylist: Denylist{
			URL:       defaultDenylistURL,
			LocalPath: defaultDenylistPath,
			EditURL:   defaultDenylistEditURL,
		},
		Email: Email{
			Provider:    "mock",
			FromName:    "Shows Checker",
			AllShowsURL: defaultAllShowsURL,
		},
		Ntfy:    Ntfy{RequestTimeout: defaultNtfyTimeout},
		AMQP:    AMQP{Queue: dispatch.DefaultQueue},
		Run:     Run{Timezone: defaultTimezone, LockPath: defaultLockPath, SourceTimeoutSeconds: defaultSourceTimeoutSeconds},
		Server:  Server{Port: defaultPort},
		Logging: Logging{Level: defaultLogLevel, Format: defaultLogFormat},
	}
}
