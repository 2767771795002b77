package poll

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"showcheck/denylist"
	"showcheck/group"
	"showcheck/pkg/shows"
	"showcheck/scraper"
	"showcheck/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScraper struct {
	err     error
	started chan struct{} // Closed when a blocking Fetch begins
	release chan struct{} // When set, Fetch blocks until closed or ctx is done
	source  shows.Source
	items   []shows.RawItem
}

func (f *fakeScraper) Source() shows.Source { return f.source }

func (f *fakeScraper) Fetch(ctx context.Context) ([]shows.RawItem, error) {
	if f.release != nil {
		if f.started != nil {
			close(f.started)
		}
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type memBackend struct {
	saveErr error
	docs    map[string][]byte
	mu      sync.Mutex
	saves   int
}

func newMemBackend() *memBackend {
	return &memBackend{docs: make(map[string][]byte)}
}

func (b *memBackend) Load(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.docs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (b *memBackend) Save(_ context.Context, key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.saveErr != nil {
		return b.saveErr
	}
	b.saves++
	b.docs[key] = data
	return nil
}

func (b *memBackend) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.docs[key]
	return ok
}

type staticDeny denylist.List

func (d staticDeny) Load(context.Context) denylist.List { return denylist.List(d) }

type fakeDispatcher struct {
	err   error
	mu    sync.Mutex
	sends [][]group.Card
}

func (*fakeDispatcher) Name() string { return "fake" }

func (f *fakeDispatcher) Send(_ context.Context, cards []group.Card) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sends = append(f.sends, cards)
	return f.err
}

func (f *fakeDispatcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sends)
}

type fixture struct {
	backend    *memBackend
	state      *storage.State
	dispatcher *fakeDispatcher
	now        time.Time
}

func newFixture() *fixture {
	backend := newMemBackend()
	return &fixture{
		backend:    backend,
		state:      storage.NewState(backend, discardLogger()),
		dispatcher: &fakeDispatcher{},
		now:        time.Date(2026, 3, 20, 18, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) monitor(scrapers ...*fakeScraper) *Monitor {
	list := make([]scraper.Scraper, 0, len(scrapers))
	for _, s := range scrapers {
		list = append(list, s)
	}
	return New(list, f.state, staticDeny{"karaoke"}, f.dispatcher, Options{
		Now:           func() time.Time { return f.now },
		SourceTimeout: time.Second,
	}, discardLogger())
}

func magicShow() shows.RawItem {
	return shows.RawItem{Name: "Magic  Show", Date: "2026-04-01", Link: "https://lv.houseseats.com/member/tickets/view/?showid=1"}
}

// Run 1: one source up, the other down. Run 2 the same day: the failed source
// recovers with zero shows and nothing new is announced.
func TestCheckAllPartialFailureThenRecovery(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	hs := &fakeScraper{source: shows.HouseSeats, items: []shows.RawItem{magicShow()}}
	ft := &fakeScraper{source: shows.FirstTix, err: errors.New("login failed")}
	m := f.monitor(hs, ft)

	report, err := m.CheckAll(ctx)
	if err != nil {
		t.Fatalf("run 1: CheckAll() error = %v", err)
	}
	if len(report.Fresh) != 1 || report.Fresh[0].Name != "Magic Show" {
		t.Fatalf("run 1: fresh = %+v, want Magic Show", report.Fresh)
	}
	if f.dispatcher.count() != 1 {
		t.Fatalf("run 1: dispatched %d times, want 1", f.dispatcher.count())
	}
	sent := f.dispatcher.sends[0]
	if len(sent) != 1 || !sent[0].Rare {
		t.Errorf("run 1: sent cards = %+v, want one rare card", sent)
	}

	catalog, err := f.state.LoadCatalog(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(catalog.Partition(shows.HouseSeats)); got != 1 {
		t.Errorf("run 1: HouseSeats partition has %d shows, want 1", got)
	}
	if got := len(catalog.Partition(shows.FirstTix)); got != 0 {
		t.Errorf("run 1: 1stTix partition has %d shows, want 0", got)
	}
	notified, err := f.state.LoadNotified(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !notified.Has(report.Fresh[0].Key()) {
		t.Errorf("run 1: notified set %v lacks %s", notified.Keys(), report.Fresh[0].Key())
	}

	ft.err = nil
	report, err = m.CheckAll(ctx)
	if err != nil {
		t.Fatalf("run 2: CheckAll() error = %v", err)
	}
	if len(report.Fresh) != 0 {
		t.Errorf("run 2: fresh = %+v, want none", report.Fresh)
	}
	if f.dispatcher.count() != 1 {
		t.Errorf("run 2: dispatched again, total %d", f.dispatcher.count())
	}
	catalog, err = f.state.LoadCatalog(ctx)
	if err != nil {
		t.Fatal(err)
	}
	part, ok := catalog.Sources[shows.FirstTix]
	if !ok || len(part) != 0 {
		t.Errorf("run 2: 1stTix partition = %v (present %v), want explicit empty", part, ok)
	}

	// Same day: history still counts a single day.
	hist, err := f.state.LoadHistory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := hist.CountRecent("magic show", report.Today, 30); got != 1 {
		t.Errorf("CountRecent() = %d, want 1", got)
	}
}

func TestCheckAllKeepsFailedPartition(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	hs := &fakeScraper{source: shows.HouseSeats, items: []shows.RawItem{magicShow()}}
	ft := &fakeScraper{source: shows.FirstTix, items: []shows.RawItem{
		{Name: "Jazz Evening", Date: "Wed, 1 Apr '26 7:30 PM", Link: "https://www.1sttix.org/e/1"},
	}}
	m := f.monitor(hs, ft)
	if _, err := m.CheckAll(ctx); err != nil {
		t.Fatal(err)
	}
	before, err := f.state.LoadCatalog(ctx)
	if err != nil {
		t.Fatal(err)
	}

	ft.err = errors.New("timeout")
	hs.items = nil
	report, err := m.CheckAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	after, err := f.state.LoadCatalog(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(before.Partition(shows.FirstTix), after.Partition(shows.FirstTix)); diff != "" {
		t.Errorf("failed source partition changed (-want +got):\n%s", diff)
	}
	if got := len(after.Partition(shows.HouseSeats)); got != 0 {
		t.Errorf("HouseSeats partition has %d shows, want 0 after empty success", got)
	}
	var okCount int
	for _, s := range report.Statuses {
		if s.OK {
			okCount++
		}
	}
	if okCount != 1 {
		t.Errorf("statuses = %+v, want exactly one success", report.Statuses)
	}
}

func TestCheckAllNoSourceSucceeded(t *testing.T) {
	f := newFixture()
	m := f.monitor(
		&fakeScraper{source: shows.HouseSeats, err: errors.New("down")},
		&fakeScraper{source: shows.FirstTix, err: errors.New("down")},
	)

	_, err := m.CheckAll(context.Background())
	if !errors.Is(err, ErrNoSourceSucceeded) {
		t.Fatalf("CheckAll() error = %v, want ErrNoSourceSucceeded", err)
	}
	if f.backend.saves != 0 {
		t.Errorf("backend saved %d documents, want none", f.backend.saves)
	}
	if f.dispatcher.count() != 0 {
		t.Error("dispatcher should not be called")
	}
}

func TestCheckAllDispatchFailureRetriesNextRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.dispatcher.err = errors.New("smtp down")
	m := f.monitor(&fakeScraper{source: shows.HouseSeats, items: []shows.RawItem{magicShow()}})

	report, err := m.CheckAll(ctx)
	if err != nil {
		t.Fatalf("CheckAll() error = %v", err)
	}
	if report.DispatchErr == nil || report.Delivered() {
		t.Fatalf("DispatchErr = %v, want failure", report.DispatchErr)
	}
	if f.backend.has(storage.NotifiedKey) {
		t.Error("notified set must not be saved after a failed dispatch")
	}
	if !f.backend.has(storage.CatalogKey) || !f.backend.has(storage.PublishedKey) {
		t.Error("catalog and published artifact should still be saved")
	}

	f.dispatcher.err = nil
	report, err = m.CheckAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !report.Delivered() || len(report.Fresh) != 1 {
		t.Errorf("retry: fresh = %d delivered = %v, want 1 delivered", len(report.Fresh), report.Delivered())
	}
	if f.dispatcher.count() != 2 {
		t.Errorf("dispatched %d times, want 2", f.dispatcher.count())
	}
}

func TestCheckAllRarityAcrossDays(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	hs := &fakeScraper{source: shows.HouseSeats, items: []shows.RawItem{magicShow()}}
	m := f.monitor(hs)

	var report *Report
	for day := range 3 {
		f.now = time.Date(2026, 3, 20+day, 18, 0, 0, 0, time.UTC)
		var err error
		report, err = m.CheckAll(ctx)
		if err != nil {
			t.Fatalf("day %d: %v", day, err)
		}
		wantRare := day < 2
		if len(report.Cards) != 1 || report.Cards[0].Rare != wantRare {
			t.Errorf("day %d: cards = %+v, want rare=%v", day, report.Cards, wantRare)
		}
	}

	published, err := f.state.LoadPublished(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if published.Count != 1 || published.Version != storage.PublishedVersion {
		t.Errorf("published = %+v", published)
	}
	if !published.LastUpdated.Equal(f.now) {
		t.Errorf("LastUpdated = %v, want %v", published.LastUpdated, f.now)
	}
}

func TestCheckAllDenylist(t *testing.T) {
	f := newFixture()
	m := f.monitor(&fakeScraper{source: shows.HouseSeats, items: []shows.RawItem{
		magicShow(),
		{Name: "Karaoke Night", Date: "2026-04-02"},
		{Name: "", Date: "2026-04-02"},
		{Name: "Broken Date", Date: "someday"},
	}})

	report, err := m.CheckAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Total != 1 {
		t.Errorf("Total = %d, want 1", report.Total)
	}
	for _, s := range report.Fresh {
		if s.Name == "Karaoke Night" {
			t.Error("denylisted show announced")
		}
	}
}

func TestCheckAllPersistenceFailure(t *testing.T) {
	f := newFixture()
	f.backend.saveErr = errors.New("disk full")
	m := f.monitor(&fakeScraper{source: shows.HouseSeats, items: []shows.RawItem{magicShow()}})

	_, err := m.CheckAll(context.Background())
	if !errors.Is(err, storage.ErrPersistence) {
		t.Fatalf("CheckAll() error = %v, want ErrPersistence", err)
	}
	if f.dispatcher.count() != 0 {
		t.Error("dispatcher should not run after a persistence failure")
	}
}

func TestCheckAllRunInProgress(t *testing.T) {
	f := newFixture()
	started, release := make(chan struct{}), make(chan struct{})
	hs := &fakeScraper{source: shows.HouseSeats, items: []shows.RawItem{magicShow()}, started: started, release: release}
	m := New([]scraper.Scraper{hs}, f.state, staticDeny{}, f.dispatcher, Options{
		Now:           func() time.Time { return f.now },
		SourceTimeout: 5 * time.Second,
	}, discardLogger())

	done := make(chan error, 1)
	go func() {
		_, err := m.CheckAll(context.Background())
		done <- err
	}()

	<-started

	if _, err := m.CheckAll(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("second CheckAll() error = %v, want ErrRunInProgress", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("first CheckAll() error = %v", err)
	}
}

func TestCheckAllFileLock(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "showcheck.lock")
	f := newFixture()
	hs := &fakeScraper{source: shows.HouseSeats, items: []shows.RawItem{magicShow()}}
	opts := Options{Now: func() time.Time { return f.now }, LockPath: lockPath}
	first := New([]scraper.Scraper{hs}, f.state, staticDeny{}, f.dispatcher, opts, discardLogger())
	second := New([]scraper.Scraper{hs}, f.state, staticDeny{}, f.dispatcher, opts, discardLogger())

	unlock, err := first.acquire()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := second.CheckAll(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("CheckAll() error = %v, want ErrRunInProgress", err)
	}
	unlock()
	if _, err := second.CheckAll(context.Background()); err != nil {
		t.Errorf("CheckAll() after unlock error = %v", err)
	}
}

func TestCheckAllSourceTimeout(t *testing.T) {
	f := newFixture()
	stuck := &fakeScraper{source: shows.FirstTix, release: make(chan struct{})}
	m := New([]scraper.Scraper{
		&fakeScraper{source: shows.HouseSeats, items: []shows.RawItem{magicShow()}},
		stuck,
	}, f.state, staticDeny{}, f.dispatcher, Options{
		Now:           func() time.Time { return f.now },
		SourceTimeout: 20 * time.Millisecond,
	}, discardLogger())

	report, err := m.CheckAll(context.Background())
	if err != nil {
		t.Fatalf("CheckAll() error = %v", err)
	}
	for _, s := range report.Statuses {
		if s.Source == shows.FirstTix && (s.OK || !errors.Is(s.Err, context.DeadlineExceeded)) {
			t.Errorf("1stTix status = %+v, want deadline failure", s)
		}
	}
}
