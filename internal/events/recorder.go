package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gatehouselabs/gatehouse/internal/platform/id"
	"github.com/gatehouselabs/gatehouse/internal/storage"
)

// Recorder appends auth events to the durable outbox so a Relay can publish
// them after the surrounding operation commits.
type Recorder struct {
	outbox      storage.OutboxStore
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewRecorder returns a recorder appending to outbox.
func NewRecorder(outbox storage.OutboxStore) *Recorder {
	return &Recorder{
		outbox:      outbox,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// AccountCreated records TopicAccountCreated.
func (r *Recorder) AccountCreated(ctx context.Context, accountID, email string) error {
	return r.record(ctx, TopicAccountCreated, AccountCreatedEvent{
		AccountID: accountID,
		Email:     email,
		CreatedAt: r.clock().UTC(),
	})
}

// CredentialRegistered records TopicCredentialRegistered.
func (r *Recorder) CredentialRegistered(ctx context.Context, accountID, credentialID, label string) error {
	return r.record(ctx, TopicCredentialRegistered, CredentialRegisteredEvent{
		AccountID:    accountID,
		CredentialID: credentialID,
		Label:        label,
		CreatedAt:    r.clock().UTC(),
	})
}

// LoginSucceeded records TopicLoginSucceeded.
func (r *Recorder) LoginSucceeded(ctx context.Context, accountID, method string) error {
	return r.record(ctx, TopicLoginSucceeded, LoginSucceededEvent{
		AccountID: accountID,
		Method:    method,
		At:        r.clock().UTC(),
	})
}

func (r *Recorder) record(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.outbox == nil {
		return fmt.Errorf("outbox store is not configured")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	eventID, err := r.idGenerator()
	if err != nil {
		return fmt.Errorf("generate event id: %w", err)
	}
	record := storage.OutboxEvent{
		ID:        eventID,
		Topic:     topic,
		Payload:   payload,
		CreatedAt: r.clock().UTC(),
	}
	if err := r.outbox.AppendOutboxEvent(ctx, record); err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}
