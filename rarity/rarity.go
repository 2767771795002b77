// Package rarity classifies shows as rare from their recent appearance history.
package rarity

import (
	"cloud.google.com/go/civil"

	"showcheck/history"
)

// DefaultThreshold is the distinct-day count below which a show is rare.
const DefaultThreshold = 3

// Classifier answers rarity queries against a history snapshot. It must be
// built after the current run's observations were recorded so that a show's
// own appearance today counts toward its total.
type Classifier struct {
	history    *history.History
	today      civil.Date
	windowDays int
	threshold  int
}

// New creates a classifier. Non-positive window or threshold fall back to the defaults.
func New(h *history.History, today civil.Date, windowDays, threshold int) *Classifier {
	if windowDays <= 0 {
		windowDays = history.DefaultWindowDays
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if h == nil {
		h = history.New()
	}
	return &Classifier{history: h, today: today, windowDays: windowDays, threshold: threshold}
}

// IsRare reports whether name was seen on fewer than threshold distinct days
// within the window.
func (c *Classifier) IsRare(name string) bool {
	return c.history.CountRecent(name, c.today, c.windowDays) < c.threshold
}

// Count exposes the distinct-day count behind IsRare.
func (c *Classifier) Count(name string) int {
	return c.history.CountRecent(name, c.today, c.windowDays)
}
