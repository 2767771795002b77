package shows

import (
	"sort"
)

// Catalog is the current set of known available shows, partitioned by source.
type Catalog struct {
	Sources map[Source][]Show `json:"sources"`
}

// NewCatalog returns an empty catalog.
func NewCatalog() Catalog {
	return Catalog{Sources: make(map[Source][]Show)}
}

// Partition returns the shows of one source. The slice must not be modified.
func (c Catalog) Partition(src Source) []Show {
	return c.Sources[src]
}

// SourceNames returns the sources present in the catalog, sorted.
func (c Catalog) SourceNames() []Source {
	names := make([]Source, 0, len(c.Sources))
	for src := range c.Sources {
		names = append(names, src)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// All returns every show across partitions in deterministic order.
func (c Catalog) All() []Show {
	var all []Show
	for _, src := range c.SourceNames() {
		all = append(all, c.Sources[src]...)
	}
	SortShows(all)
	return all
}

// Count returns the number of shows across all partitions.
func (c Catalog) Count() int {
	n := 0
	for _, part := range c.Sources {
		n += len(part)
	}
	return n
}

// Clone returns a deep copy of the catalog.
func (c Catalog) Clone() Catalog {
	out := NewCatalog()
	for src, part := range c.Sources {
		cp := make([]Show, len(part))
		copy(cp, part)
		out.Sources[src] = cp
	}
	return out
}

// SortShows orders shows by date, normalized name, source, time and link.
func SortShows(list []Show) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if na, nb := NormalizeName(a.Name), NormalizeName(b.Name); na != nb {
			return na < nb
		}
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Time != b.Time {
			return a.Time < b.Time
		}
		return a.Link < b.Link
	})
}
