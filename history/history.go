// Package history records on which calendar days each show was seen available.
package history

import (
	"sort"

	"cloud.google.com/go/civil"

	"showcheck/pkg/shows"
)

const (
	// DefaultWindowDays is the trailing window used for recency counts.
	DefaultWindowDays = 30
	// DefaultRetentionDays is how long observation days are kept.
	DefaultRetentionDays = 90
)

// History maps a normalized show name to the sorted, distinct days on which
// it was observed.
type History struct {
	Names map[string][]civil.Date `json:"names"`
}

// New returns an empty history.
func New() *History {
	return &History{Names: make(map[string][]civil.Date)}
}

// Record adds today to the observation days of each name. Recording the same
// name twice on one day has no further effect.
func (h *History) Record(today civil.Date, names ...string) {
	if h.Names == nil {
		h.Names = make(map[string][]civil.Date)
	}
	for _, name := range names {
		key := shows.NormalizeName(name)
		if key == "" {
			continue
		}
		h.Names[key] = insertDay(h.Names[key], today)
	}
}

// CountRecent returns the number of distinct days within the last windowDays,
// today included, on which name was observed.
func (h *History) CountRecent(name string, today civil.Date, windowDays int) int {
	n := 0
	for _, d := range h.Names[shows.NormalizeName(name)] {
		age := today.DaysSince(d)
		if age >= 0 && age < windowDays {
			n++
		}
	}
	return n
}

// Days returns the observation days of name, oldest first.
func (h *History) Days(name string) []civil.Date {
	days := h.Names[shows.NormalizeName(name)]
	out := make([]civil.Date, len(days))
	copy(out, days)
	return out
}

// Prune drops observation days older than maxAgeDays and removes names left
// with no days. It returns the number of days removed.
func (h *History) Prune(today civil.Date, maxAgeDays int) int {
	removed := 0
	for name, days := range h.Names {
		kept := days[:0:0]
		for _, d := range days {
			if today.DaysSince(d) > maxAgeDays {
				removed++
				continue
			}
			kept = append(kept, d)
		}
		if len(kept) == 0 {
			delete(h.Names, name)
			continue
		}
		h.Names[name] = kept
	}
	return removed
}

// Len returns the number of tracked names.
func (h *History) Len() int {
	return len(h.Names)
}

func insertDay(days []civil.Date, day civil.Date) []civil.Date {
	i := sort.Search(len(days), func(i int) bool { return !days[i].Before(day) })
	if i < len(days) && days[i] == day {
		return days
	}
	days = append(days, civil.Date{})
	copy(days[i+1:], days[i:])
	days[i] = day
	return days
}
