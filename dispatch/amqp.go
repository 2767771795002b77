package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"showcheck/group"
)

// DefaultQueue is the durable queue new-show events are published to.
const DefaultQueue = "shows.new"

// Event is the message body published for each batch.
type Event struct {
	SentAt time.Time    `json:"sent_at"`
	Cards  []group.Card `json:"cards"`
	Count  int          `json:"count"`
}

// AMQP publishes each batch as a persistent JSON event to a durable queue.
type AMQP struct {
	now   func() time.Time
	url   string
	queue string
}

// NewAMQP creates an AMQP channel. A connection is opened per batch.
func NewAMQP(url, queue string) *AMQP {
	if queue == "" {
		queue = DefaultQueue
	}
	return &AMQP{url: url, queue: queue, now: time.Now}
}

// Name identifies the channel in logs.
func (*AMQP) Name() string {
	return "amqp"
}

// Send publishes one event for the batch.
func (a *AMQP) Send(ctx context.Context, cards []group.Card) error {
	if len(cards) == 0 {
		return nil
	}
	pub, err := a.publishing(cards)
	if err != nil {
		return err
	}

	conn, err := amqp.Dial(a.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }() //nolint:errcheck // connection teardown

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }() //nolint:errcheck // channel teardown

	if _, err := ch.QueueDeclare(a.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", a.queue, err)
	}
	if err := ch.PublishWithContext(ctx, "", a.queue, false, false, pub); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (a *AMQP) publishing(cards []group.Card) (amqp.Publishing, error) {
	now := a.now().UTC()
	body, err := json.Marshal(Event{SentAt: now, Count: len(cards), Cards: cards})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		Body:         body,
	}, nil
}
