// Package merge folds per-source fetch results into the catalog.
package merge

import (
	"log/slog"
	"sort"

	"showcheck/denylist"
	"showcheck/pkg/shows"
)

// Result is the outcome of fetching one source. Exactly one of Shows or Err
// is meaningful: a nil Err means the source succeeded, possibly with zero shows.
type Result struct {
	Err    error
	Source shows.Source
	Shows  []shows.Show
}

// Success builds a successful result.
func Success(source shows.Source, list []shows.Show) Result {
	if list == nil {
		list = []shows.Show{}
	}
	return Result{Source: source, Shows: list}
}

// Failure builds a failed result.
func Failure(source shows.Source, err error) Result {
	return Result{Source: source, Err: err}
}

// OK reports whether the source succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Status summarizes what happened to one source during a merge.
type Status struct {
	Err      error
	Source   shows.Source
	Count    int // Shows kept in the partition
	Filtered int // Shows removed by the denylist
	OK       bool
}

// Merge returns a new catalog in which every successful source's partition
// is replaced by its deduplicated, denylist-filtered shows, and every other
// partition of prev is carried forward unchanged. prev is not modified.
func Merge(prev shows.Catalog, results []Result, deny denylist.List, logger *slog.Logger) (shows.Catalog, []Status) {
	next := prev.Clone()
	statuses := make([]Status, 0, len(results))

	for _, r := range results {
		if !r.OK() {
			carried := len(next.Sources[r.Source])
			logger.Warn("Source failed, keeping previous shows", "source", r.Source, "kept", carried, "error", r.Err)
			statuses = append(statuses, Status{Source: r.Source, Err: r.Err, Count: carried})
			continue
		}

		kept, filtered := deny.Filter(dedupe(r.Shows))
		shows.SortShows(kept)
		next.Sources[r.Source] = kept
		logger.Info("Source merged", "source", r.Source, "shows", len(kept), "denylisted", filtered)
		statuses = append(statuses, Status{Source: r.Source, OK: true, Count: len(kept), Filtered: filtered})
	}

	sort.SliceStable(statuses, func(i, j int) bool { return statuses[i].Source < statuses[j].Source })
	return next, statuses
}

// Healthy reports whether at least one source succeeded.
func Healthy(statuses []Status) bool {
	for _, s := range statuses {
		if s.OK {
			return true
		}
	}
	return false
}

// Succeeded returns the sources that succeeded.
func Succeeded(statuses []Status) []shows.Source {
	var out []shows.Source
	for _, s := range statuses {
		if s.OK {
			out = append(out, s.Source)
		}
	}
	return out
}

func dedupe(list []shows.Show) []shows.Show {
	seen := make(map[shows.Key]struct{}, len(list))
	out := make([]shows.Show, 0, len(list))
	for _, s := range list {
		k := s.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}
