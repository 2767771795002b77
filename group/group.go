// Package group folds individual show dates into one card per show.
package group

import (
	"sort"

	"cloud.google.com/go/civil"

	"showcheck/pkg/shows"
)

// Slot is one bookable date of a card.
type Slot struct {
	Date civil.Date `json:"date"`
	Time string     `json:"time,omitempty"`
	Link string     `json:"link,omitempty"`
}

// Card is everything a user sees about one show from one source.
type Card struct {
	Name   string       `json:"name"`
	Source shows.Source `json:"source"`
	Rare   bool         `json:"rare"`
	Image  string       `json:"image,omitempty"`
	Slots  []Slot       `json:"slots"`
}

type cardKey struct {
	name   string
	source shows.Source
}

// Cards groups shows by normalized name and source. isRare is consulted
// once per distinct name; a nil isRare marks nothing as rare.
func Cards(list []shows.Show, isRare func(name string) bool) []Card {
	sorted := make([]shows.Show, len(list))
	copy(sorted, list)
	shows.SortShows(sorted)

	index := make(map[cardKey]int)
	rare := make(map[string]bool)
	var cards []Card
	for _, s := range sorted {
		norm := shows.NormalizeName(s.Name)
		k := cardKey{name: norm, source: s.Source}
		i, ok := index[k]
		if !ok {
			r, seen := rare[norm]
			if !seen && isRare != nil {
				r = isRare(s.Name)
				rare[norm] = r
			}
			cards = append(cards, Card{Name: s.Name, Source: s.Source, Rare: r, Image: s.Image})
			i = len(cards) - 1
			index[k] = i
		}
		if cards[i].Image == "" {
			cards[i].Image = s.Image
		}
		cards[i].Slots = append(cards[i].Slots, Slot{Date: s.Date, Time: s.Time, Link: s.Link})
	}

	for i := range cards {
		slots := cards[i].Slots
		sort.SliceStable(slots, func(a, b int) bool {
			if slots[a].Date != slots[b].Date {
				return slots[a].Date.Before(slots[b].Date)
			}
			if slots[a].Time != slots[b].Time {
				return slots[a].Time < slots[b].Time
			}
			return slots[a].Link < slots[b].Link
		})
	}

	sort.SliceStable(cards, func(a, b int) bool {
		da, db := cards[a].Earliest(), cards[b].Earliest()
		if da != db {
			return da.Before(db)
		}
		na, nb := shows.NormalizeName(cards[a].Name), shows.NormalizeName(cards[b].Name)
		if na != nb {
			return na < nb
		}
		return cards[a].Source < cards[b].Source
	})
	return cards
}

// Earliest returns the first slot date of the card.
func (c Card) Earliest() civil.Date {
	if len(c.Slots) == 0 {
		return civil.Date{}
	}
	return c.Slots[0].Date
}
