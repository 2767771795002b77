package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"showcheck/group"
	"showcheck/history"
	"showcheck/notify"
	"showcheck/pkg/shows"
)

// Keys of the documents kept by State.
const (
	CatalogKey   = "catalog.json"
	HistoryKey   = "history.json"
	NotifiedKey  = "notified_shows.json"
	PublishedKey = "available_shows.json"
)

// PublishedVersion is the schema version of the published artifact.
const PublishedVersion = 1

// Published is the read-only artifact consumed by the rendering page.
type Published struct {
	LastUpdated time.Time                     `json:"last_updated"`
	Sources     map[shows.Source][]shows.Show `json:"sources"`
	Cards       []group.Card                  `json:"cards"`
	Version     int                           `json:"version"`
	Count       int                           `json:"count"`
}

// NewPublished builds the artifact for a catalog and its cards.
func NewPublished(c shows.Catalog, cards []group.Card, now time.Time) Published {
	sources := c.Clone().Sources
	if cards == nil {
		cards = []group.Card{}
	}
	return Published{
		Version:     PublishedVersion,
		LastUpdated: now.UTC().Truncate(time.Second),
		Count:       c.Count(),
		Sources:     sources,
		Cards:       cards,
	}
}

// State reads and writes the typed run state on top of a Backend.
// Absent documents load as empty values so a first run starts clean.
type State struct {
	backend Backend
	logger  *slog.Logger
}

// NewState creates a typed state store.
func NewState(backend Backend, logger *slog.Logger) *State {
	return &State{backend: backend, logger: logger}
}

// LoadCatalog loads the last merged catalog.
func (s *State) LoadCatalog(ctx context.Context) (shows.Catalog, error) {
	c := shows.NewCatalog()
	found, err := s.load(ctx, CatalogKey, &c)
	if err != nil {
		return shows.Catalog{}, err
	}
	if !found || c.Sources == nil {
		c = shows.NewCatalog()
	}
	return c, nil
}

// SaveCatalog stores the merged catalog.
func (s *State) SaveCatalog(ctx context.Context, c shows.Catalog) error {
	return s.save(ctx, CatalogKey, c)
}

// LoadHistory loads the appearance history.
func (s *State) LoadHistory(ctx context.Context) (*history.History, error) {
	h := history.New()
	if _, err := s.load(ctx, HistoryKey, h); err != nil {
		return nil, err
	}
	if h.Names == nil {
		h = history.New()
	}
	return h, nil
}

// SaveHistory stores the appearance history.
func (s *State) SaveHistory(ctx context.Context, h *history.History) error {
	return s.save(ctx, HistoryKey, h)
}

// LoadNotified loads the set of shows already announced.
func (s *State) LoadNotified(ctx context.Context) (notify.Set, error) {
	set := notify.NewSet()
	if _, err := s.load(ctx, NotifiedKey, &set); err != nil {
		return notify.Set{}, err
	}
	return set, nil
}

// SaveNotified stores the set of shows already announced.
func (s *State) SaveNotified(ctx context.Context, set notify.Set) error {
	return s.save(ctx, NotifiedKey, set)
}

// Publish stores the artifact for the rendering page.
func (s *State) Publish(ctx context.Context, p Published) error {
	return s.save(ctx, PublishedKey, p)
}

// LoadPublished loads the last published artifact. It returns ErrNotFound
// before the first successful run.
func (s *State) LoadPublished(ctx context.Context) (*Published, error) {
	var p Published
	found, err := s.load(ctx, PublishedKey, &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *State) load(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.backend.Load(ctx, key)
	if IsNotFound(err) {
		s.logger.Debug("No stored document, starting empty", "key", key)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: load %s: %w", ErrPersistence, key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: decode %s: %w", ErrPersistence, key, err)
	}
	return true, nil
}

func (s *State) save(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrPersistence, key, err)
	}
	if err := s.backend.Save(ctx, key, data); err != nil {
		return fmt.Errorf("%w: save %s: %w", ErrPersistence, key, err)
	}
	s.logger.Info("State saved", "key", key, "bytes", len(data))
	return nil
}
