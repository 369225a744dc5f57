package events

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gatehouselabs/gatehouse/internal/storage"
)

const (
	defaultRelayInterval = 5 * time.Second
	defaultRelayBatch    = 100
)

// Relay drains unpublished outbox events into a watermill publisher. One
// relay runs per process; the outbox mark is conditional so a crashed relay
// at worst re-publishes.
type Relay struct {
	outbox    storage.OutboxStore
	publisher message.Publisher
	interval  time.Duration
	batchSize int
	clock     func() time.Time
}

// NewRelay returns a relay draining outbox into publisher.
func NewRelay(outbox storage.OutboxStore, publisher message.Publisher) *Relay {
	return &Relay{
		outbox:    outbox,
		publisher: publisher,
		interval:  defaultRelayInterval,
		batchSize: defaultRelayBatch,
		clock:     time.Now,
	}
}

// Run drains on a fixed interval until ctx is cancelled. Drain failures are
// logged and retried on the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.DrainOnce(ctx); err != nil {
				log.Printf("drain outbox: %v", err)
			}
		}
	}
}

// DrainOnce publishes one batch of unpublished events and reports how many
// it published. An event that fails to publish stays unpublished and stops
// the batch, preserving publication order.
func (r *Relay) DrainOnce(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if r.outbox == nil || r.publisher == nil {
		return 0, fmt.Errorf("relay is not configured")
	}

	pending, err := r.outbox.ListUnpublishedOutboxEvents(ctx, r.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list unpublished events: %w", err)
	}
	published := 0
	for _, event := range pending {
		msg := message.NewMessage(event.ID, event.Payload)
		msg.SetContext(ctx)
		if err := r.publisher.Publish(event.Topic, msg); err != nil {
			return published, fmt.Errorf("publish %s: %w", event.Topic, err)
		}
		if err := r.outbox.MarkOutboxEventPublished(ctx, event.ID, r.clock().UTC()); err != nil {
			return published, fmt.Errorf("mark event published: %w", err)
		}
		published++
	}
	return published, nil
}
