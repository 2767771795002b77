package merge

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/google/go-cmp/cmp"

	"showcheck/denylist"
	"showcheck/pkg/shows"
)

var (
	logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	day1   = civil.Date{Year: 2026, Month: 3, Day: 1}
	day2   = civil.Date{Year: 2026, Month: 3, Day: 2}
)

func show(name string, d civil.Date, src shows.Source) shows.Show {
	return shows.Show{Name: name, Date: d, Source: src}
}

func TestMergeKeepsFailedPartition(t *testing.T) {
	prev := shows.NewCatalog()
	prev.Sources[shows.HouseSeats] = []shows.Show{show("Old HS", day1, shows.HouseSeats)}
	prev.Sources[shows.FirstTix] = []shows.Show{show("Old FT", day1, shows.FirstTix)}

	results := []Result{
		Success(shows.HouseSeats, []shows.Show{show("New HS", day2, shows.HouseSeats)}),
		Failure(shows.FirstTix, errors.New("login failed")),
	}

	got, statuses := Merge(prev, results, nil, logger)

	want := shows.NewCatalog()
	want.Sources[shows.HouseSeats] = []shows.Show{show("New HS", day2, shows.HouseSeats)}
	want.Sources[shows.FirstTix] = []shows.Show{show("Old FT", day1, shows.FirstTix)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}

	if !Healthy(statuses) {
		t.Error("Healthy() = false with one successful source")
	}
	if diff := cmp.Diff([]shows.Source{shows.HouseSeats}, Succeeded(statuses)); diff != "" {
		t.Errorf("Succeeded() mismatch (-want +got):\n%s", diff)
	}
	if prev.Sources[shows.HouseSeats][0].Name != "Old HS" {
		t.Error("Merge() modified prev")
	}
}

func TestMergeEmptySuccessClearsPartition(t *testing.T) {
	prev := shows.NewCatalog()
	prev.Sources[shows.HouseSeats] = []shows.Show{show("Gone", day1, shows.HouseSeats)}

	got, statuses := Merge(prev, []Result{Success(shows.HouseSeats, nil)}, nil, logger)

	if n := len(got.Partition(shows.HouseSeats)); n != 0 {
		t.Errorf("partition has %d shows, want 0", n)
	}
	if _, ok := got.Sources[shows.HouseSeats]; !ok {
		t.Error("successful empty source should keep an empty partition")
	}
	if !Healthy(statuses) {
		t.Error("success with zero shows should count as healthy")
	}
}

func TestMergeAllFailed(t *testing.T) {
	prev := shows.NewCatalog()
	prev.Sources[shows.HouseSeats] = []shows.Show{show("Kept", day1, shows.HouseSeats)}

	got, statuses := Merge(prev, []Result{
		Failure(shows.HouseSeats, errors.New("timeout")),
		Failure(shows.FirstTix, errors.New("timeout")),
	}, nil, logger)

	if Healthy(statuses) {
		t.Error("Healthy() = true with every source failed")
	}
	if diff := cmp.Diff(prev, got); diff != "" {
		t.Errorf("catalog changed (-want +got):\n%s", diff)
	}
	if _, ok := got.Sources[shows.FirstTix]; ok {
		t.Error("a failed source with no previous partition should not gain one")
	}
}

func TestMergeCarriesSourcesWithoutResult(t *testing.T) {
	prev := shows.NewCatalog()
	prev.Sources["Retired"] = []shows.Show{show("Legacy", day1, "Retired")}

	got, _ := Merge(prev, []Result{Success(shows.HouseSeats, nil)}, nil, logger)
	if len(got.Partition("Retired")) != 1 {
		t.Error("partition of a source not fetched this run should be carried forward")
	}
}

func TestMergeFiltersAndDedupes(t *testing.T) {
	in := []shows.Show{
		show("Magic Show", day2, shows.HouseSeats),
		show("magic  show", day2, shows.HouseSeats),
		show("Elvis Tribute", day1, shows.HouseSeats),
		show("Comedy Night", day1, shows.HouseSeats),
	}
	got, statuses := Merge(shows.NewCatalog(), []Result{Success(shows.HouseSeats, in)}, denylist.List{"tribute"}, logger)

	want := []shows.Show{
		show("Comedy Night", day1, shows.HouseSeats),
		show("Magic Show", day2, shows.HouseSeats),
	}
	if diff := cmp.Diff(want, got.Partition(shows.HouseSeats)); diff != "" {
		t.Errorf("partition mismatch (-want +got):\n%s", diff)
	}
	if statuses[0].Filtered != 1 || statuses[0].Count != 2 {
		t.Errorf("status = %+v, want Filtered=1 Count=2", statuses[0])
	}
}
