// Package dispatch delivers new-show cards over one or more channels.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"showcheck/group"
)

// ErrNoChannels is returned when a fan-out has nothing to deliver through.
var ErrNoChannels = errors.New("no notification channels configured")

// Dispatcher delivers a batch of cards. Delivery of an empty batch is a no-op.
type Dispatcher interface {
	Name() string
	Send(ctx context.Context, cards []group.Card) error
}

// Fanout sends to a primary channel and any number of secondary channels.
// The primary channel decides the outcome; secondary failures are logged.
// Without a primary, the batch counts as delivered when any channel succeeds.
type Fanout struct {
	primary   Dispatcher
	logger    *slog.Logger
	secondary []Dispatcher
}

// NewFanout creates a fan-out. primary may be nil.
func NewFanout(primary Dispatcher, logger *slog.Logger, secondary ...Dispatcher) *Fanout {
	return &Fanout{primary: primary, secondary: secondary, logger: logger}
}

// Name identifies the channel in logs.
func (f *Fanout) Name() string {
	var names []string
	if f.primary != nil {
		names = append(names, f.primary.Name())
	}
	for _, d := range f.secondary {
		names = append(names, d.Name())
	}
	return "fanout(" + strings.Join(names, ",") + ")"
}

// Send delivers cards to every channel.
func (f *Fanout) Send(ctx context.Context, cards []group.Card) error {
	if len(cards) == 0 {
		return nil
	}
	if f.primary == nil && len(f.secondary) == 0 {
		return ErrNoChannels
	}

	var primaryErr error
	if f.primary != nil {
		primaryErr = f.primary.Send(ctx, cards)
		if primaryErr != nil {
			f.logger.Error("Primary channel failed", "channel", f.primary.Name(), "error", primaryErr)
		} else {
			f.logger.Info("Delivered via primary channel", "channel", f.primary.Name(), "cards", len(cards))
		}
	}

	delivered := 0
	var errs []error
	for _, d := range f.secondary {
		if err := d.Send(ctx, cards); err != nil {
			f.logger.Warn("Secondary channel failed", "channel", d.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			continue
		}
		delivered++
		f.logger.Info("Delivered via secondary channel", "channel", d.Name(), "cards", len(cards))
	}

	if f.primary != nil {
		if primaryErr != nil {
			return fmt.Errorf("%s: %w", f.primary.Name(), primaryErr)
		}
		return nil
	}
	if delivered == 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Summary is a one-line description of a batch, used by the push channels.
func Summary(cards []group.Card) string {
	const shown = 3
	names := make([]string, 0, shown)
	for i, c := range cards {
		if i == shown {
			break
		}
		name := c.Name
		if r := []rune(name); len(r) > 30 {
			name = string(r[:30])
		}
		names = append(names, name)
	}
	msg := fmt.Sprintf("%d new shows: %s", len(cards), strings.Join(names, ", "))
	if len(cards) > shown {
		msg += "..."
	}
	return msg
}
