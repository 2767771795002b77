// Package email sends show alerts via multiple providers.
package email

import (
	"context"
	"fmt"
	"log/slog"

	"showcheck/group"
)

// Provider defines the interface for email sending implementations.
type Provider interface {
	// Send sends an email with the given parameters.
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// Links are the fixed destinations shown at the bottom of every alert.
type Links struct {
	AllShows     string // Rendering page for the published catalog
	EditDenylist string // Where the user edits the denylist
}

// Sender sends show alerts using a pluggable provider.
type Sender struct {
	provider Provider
	logger   *slog.Logger
	to       string
	links    Links
}

// New creates a new email sender with the given provider.
func New(provider Provider, to string, links Links, logger *slog.Logger) *Sender {
	return &Sender{
		provider: provider,
		logger:   logger,
		to:       to,
		links:    links,
	}
}

// Name identifies the channel in logs.
func (*Sender) Name() string {
	return "email"
}

// Send emails one alert listing every card. Nothing is sent for no cards.
func (s *Sender) Send(ctx context.Context, cards []group.Card) error {
	if len(cards) == 0 {
		return nil
	}

	subject := Subject(slotCount(cards))
	body := formatAlertBody(cards, s.links)

	s.logger.Info("Sending show alert email",
		"to", s.to,
		"subject", subject,
		"card_count", len(cards))

	if err := s.provider.Send(ctx, s.to, subject, body); err != nil {
		return fmt.Errorf("send alert email: %w", err)
	}
	return nil
}

// Subject returns the alert subject for n new show dates.
func Subject(n int) string {
	plural := ""
	if n != 1 {
		plural = "s"
	}
	return fmt.Sprintf("Shows Alert: %d New Show%s Available!", n, plural)
}

func slotCount(cards []group.Card) int {
	n := 0
	for _, c := range cards {
		n += len(c.Slots)
	}
	return n
}
