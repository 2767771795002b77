// Package shows contains the core domain types for the show checker.
package shows

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"golang.org/x/text/cases"
)

// Source identifies the portal a show was scraped from.
type Source string

const (
	HouseSeats Source = "HouseSeats"
	FirstTix   Source = "1stTix"
)

// Sources returns the portals checked by default, in run order.
func Sources() []Source {
	return []Source{HouseSeats, FirstTix}
}

// RawItem is one row as delivered by a scraper, before normalization.
type RawItem struct {
	Name  string `json:"name"`
	Date  string `json:"date"`
	Link  string `json:"link,omitempty"`
	Image string `json:"image,omitempty"`
}

// Show is one offering on one date from one source.
type Show struct {
	Date   civil.Date `json:"date"`
	Name   string     `json:"name"`            // Display name, original casing
	Time   string     `json:"time,omitempty"`  // Display only, e.g. "7:30 PM"
	Source Source     `json:"source"`          // Portal tag
	Link   string     `json:"link,omitempty"`  // Ticket page
	Image  string     `json:"image,omitempty"` // Poster URL
}

// Key is the identity of a show within a catalog snapshot.
type Key struct {
	Date   civil.Date
	Name   string // Normalized name
	Source Source
}

// String renders the key as "source|name|date", the persisted form.
func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Source, k.Name, k.Date)
}

// Key returns the identity key of the show.
func (s Show) Key() Key {
	return Key{Name: NormalizeName(s.Name), Date: s.Date, Source: s.Source}
}

// CleanName trims and collapses internal whitespace, keeping the original casing.
func CleanName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// NormalizeName returns the case-folded, whitespace-collapsed form of a name
// used for identity and grouping comparisons.
func NormalizeName(name string) string {
	return cases.Fold().String(CleanName(name))
}
