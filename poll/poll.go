// Package poll runs one check: fetch every portal, merge, track history, and announce new shows.
package poll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"showcheck/denylist"
	"showcheck/dispatch"
	"showcheck/group"
	"showcheck/history"
	"showcheck/merge"
	"showcheck/notify"
	"showcheck/pkg/shows"
	"showcheck/rarity"
	"showcheck/scraper"
	"showcheck/storage"
)

var (
	// ErrRunInProgress is returned when another check holds the run lock.
	ErrRunInProgress = errors.New("a check is already running")
	// ErrNoSourceSucceeded is returned when every portal failed; nothing is written.
	ErrNoSourceSucceeded = errors.New("no source succeeded")
)

// Store interface for run state persistence.
type Store interface {
	LoadCatalog(ctx context.Context) (shows.Catalog, error)
	SaveCatalog(ctx context.Context, c shows.Catalog) error
	LoadHistory(ctx context.Context) (*history.History, error)
	SaveHistory(ctx context.Context, h *history.History) error
	LoadNotified(ctx context.Context) (notify.Set, error)
	SaveNotified(ctx context.Context, set notify.Set) error
	Publish(ctx context.Context, p storage.Published) error
}

// Denylist interface for loading the current patterns.
type Denylist interface {
	Load(ctx context.Context) denylist.List
}

// Options tunes a Monitor. Zero values fall back to the package defaults.
type Options struct {
	Location      *time.Location
	Now           func() time.Time
	LockPath      string // Empty disables the cross-process lock
	SourceTimeout time.Duration
	WindowDays    int
	RetentionDays int
	RareThreshold int
}

// Report describes the outcome of one check.
type Report struct {
	Started     time.Time
	Finished    time.Time
	DispatchErr error // Set when new shows could not be announced
	Today       civil.Date
	RunID       string
	Catalog     shows.Catalog
	Statuses    []merge.Status
	Fresh       []shows.Show // Shows announced (or attempted) this run
	FreshCards  []group.Card
	Cards       []group.Card // Every card of the merged catalog
	Notified    notify.Set   // Notified set as it stands after the run
	Total       int
}

// Delivered reports whether the fresh shows reached the user.
func (r *Report) Delivered() bool {
	return len(r.Fresh) > 0 && r.DispatchErr == nil
}

// Monitor handles one check at a time.
type Monitor struct {
	store      Store
	deny       Denylist
	dispatcher dispatch.Dispatcher
	logger     *slog.Logger
	lock       *flock.Flock
	scrapers   []scraper.Scraper
	opts       Options
	running    sync.Mutex
}

// New creates a new poll monitor.
func New(scrapers []scraper.Scraper, store Store, deny Denylist, dispatcher dispatch.Dispatcher, opts Options, logger *slog.Logger) *Monitor {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = 3 * time.Minute
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = history.DefaultWindowDays
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = history.DefaultRetentionDays
	}
	if opts.RareThreshold <= 0 {
		opts.RareThreshold = rarity.DefaultThreshold
	}
	m := &Monitor{
		scrapers:   scrapers,
		store:      store,
		deny:       deny,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger,
	}
	if opts.LockPath != "" {
		m.lock = flock.New(opts.LockPath)
	}
	return m
}

// CheckAll runs one full check. Persistence failures abort the run before any
// further state is written. A dispatch failure is not an error: it is reported
// in Report.DispatchErr and the notified set is left unchanged so the next run
// tries again.
func (m *Monitor) CheckAll(ctx context.Context) (*Report, error) {
	unlock, err := m.acquire()
	if err != nil {
		return nil, err
	}
	defer unlock()

	started := m.opts.Now()
	report := &Report{
		RunID:   uuid.NewString(),
		Started: started,
		Today:   civil.DateOf(started.In(m.opts.Location)),
	}
	logger := m.logger.With("run_id", report.RunID)
	logger.Info("Starting check", "sources", len(m.scrapers), "today", report.Today.String())

	prev, err := m.store.LoadCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	hist, err := m.store.LoadHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	notified, err := m.store.LoadNotified(ctx)
	if err != nil {
		return nil, fmt.Errorf("load notified set: %w", err)
	}
	deny := m.deny.Load(ctx)
	logger.Info("Loaded state", "catalog", prev.Count(), "history_names", hist.Len(), "notified", notified.Len(), "denylist", len(deny))

	results, err := m.fetchAll(ctx, report.Today, logger)
	if err != nil {
		return nil, err
	}

	catalog, statuses := merge.Merge(prev, results, deny, logger)
	report.Statuses = statuses
	if !merge.Healthy(statuses) {
		logger.Error("Every source failed, leaving state untouched")
		return report, ErrNoSourceSucceeded
	}

	if err := m.store.SaveCatalog(ctx, catalog); err != nil {
		return nil, fmt.Errorf("save catalog: %w", err)
	}
	report.Catalog = catalog
	report.Total = catalog.Count()

	pruned := hist.Prune(report.Today, m.opts.RetentionDays)
	var observed []string
	for _, src := range merge.Succeeded(statuses) {
		for _, s := range catalog.Partition(src) {
			observed = append(observed, s.Name)
		}
	}
	hist.Record(report.Today, observed...)
	if err := m.store.SaveHistory(ctx, hist); err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}
	logger.Info("History updated", "observed", len(observed), "pruned", pruned, "names", hist.Len())

	classifier := rarity.New(hist, report.Today, m.opts.WindowDays, m.opts.RareThreshold)
	report.Cards = group.Cards(catalog.All(), classifier.IsRare)
	if err := m.store.Publish(ctx, storage.NewPublished(catalog, report.Cards, started)); err != nil {
		return nil, fmt.Errorf("publish catalog: %w", err)
	}

	fresh, updated := notify.SelectNew(catalog, notified)
	report.Fresh = fresh
	report.Notified = notified
	if len(fresh) == 0 {
		logger.Info("No new shows")
		report.Finished = m.opts.Now()
		return report, nil
	}

	report.FreshCards = group.Cards(fresh, classifier.IsRare)
	logger.Info("Sending notification", "channel", m.dispatcher.Name(), "shows", len(fresh), "cards", len(report.FreshCards))
	if err := m.dispatcher.Send(ctx, report.FreshCards); err != nil {
		logger.Error("Notification failed, will retry next run", "shows", len(fresh), "error", err)
		report.DispatchErr = err
		report.Finished = m.opts.Now()
		return report, nil
	}

	if err := m.store.SaveNotified(ctx, updated); err != nil {
		return nil, fmt.Errorf("save notified set: %w", err)
	}
	report.Notified = updated
	report.Finished = m.opts.Now()
	logger.Info("Check complete",
		"shows", report.Total,
		"new", len(fresh),
		"duration_ms", report.Finished.Sub(started).Milliseconds())
	return report, nil
}

// acquire takes the in-process guard and, when configured, the file lock shared
// with other processes.
func (m *Monitor) acquire() (func(), error) {
	if !m.running.TryLock() {
		return nil, ErrRunInProgress
	}
	if m.lock == nil {
		return m.running.Unlock, nil
	}
	ok, err := m.lock.TryLock()
	if err != nil {
		m.running.Unlock()
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		m.running.Unlock()
		return nil, ErrRunInProgress
	}
	return func() {
		if err := m.lock.Unlock(); err != nil {
			m.logger.Warn("Failed to release run lock", "path", m.opts.LockPath, "error", err)
		}
		m.running.Unlock()
	}, nil
}

// fetchAll scrapes every portal concurrently. A failing portal yields a
// failure result instead of cancelling the others; only cancellation of ctx
// itself is returned as an error.
func (m *Monitor) fetchAll(ctx context.Context, today civil.Date, logger *slog.Logger) ([]merge.Result, error) {
	results := make([]merge.Result, len(m.scrapers))
	var g errgroup.Group
	for i, s := range m.scrapers {
		g.Go(func() error {
			results[i] = m.fetchOne(ctx, s, today, logger)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines report through results
	if err := ctx.Err(); err != nil {
		logger.Info("Context cancelled, stopping check", "error", err)
		return nil, err
	}
	return results, nil
}

func (m *Monitor) fetchOne(ctx context.Context, s scraper.Scraper, today civil.Date, logger *slog.Logger) merge.Result {
	src := s.Source()
	ctx, cancel := context.WithTimeout(ctx, m.opts.SourceTimeout)
	defer cancel()

	start := time.Now()
	raws, err := s.Fetch(ctx)
	if err != nil {
		logger.Warn("Source fetch failed", "source", src, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return merge.Failure(src, err)
	}
	list := shows.NormalizeBatch(raws, src, today, logger)
	logger.Info("Source fetched", "source", src, "raw", len(raws), "shows", len(list), "duration_ms", time.Since(start).Milliseconds())
	return merge.Success(src, list)
}
