// Package events publishes auth lifecycle events for downstream consumers.
// Payloads carry identifiers and timestamps, never credentials or token
// material.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/gatehouselabs/gatehouse/internal/platform/id"
)

// Topics drained by downstream consumers.
const (
	TopicAccountCreated       = "gatehouse.account.created"
	TopicCredentialRegistered = "gatehouse.credential.registered"
	TopicLoginSucceeded       = "gatehouse.login.succeeded"
)

// Login methods reported on TopicLoginSucceeded.
const (
	MethodPassword = "password"
	MethodPasskey  = "passkey"
)

// AccountCreatedEvent announces a new account.
type AccountCreatedEvent struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// CredentialRegisteredEvent announces a new passkey credential.
type CredentialRegisteredEvent struct {
	AccountID    string    `json:"account_id"`
	CredentialID string    `json:"credential_id"`
	Label        string    `json:"label,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// LoginSucceededEvent announces a completed authentication.
type LoginSucceededEvent struct {
	AccountID string    `json:"account_id"`
	Method    string    `json:"method"`
	At        time.Time `json:"at"`
}

// Publisher emits auth events through a watermill publisher.
type Publisher struct {
	publisher   message.Publisher
	clock       func() time.Time
	idGenerator func() (string, error)
}

// NewPublisher wraps a watermill publisher. A nil publisher yields a
// Publisher whose methods report an error; callers treat publish failures
// as non-fatal.
func NewPublisher(publisher message.Publisher) *Publisher {
	return &Publisher{
		publisher:   publisher,
		clock:       time.Now,
		idGenerator: id.NewID,
	}
}

// AccountCreated publishes TopicAccountCreated.
func (p *Publisher) AccountCreated(ctx context.Context, accountID, email string) error {
	return p.publish(ctx, TopicAccountCreated, AccountCreatedEvent{
		AccountID: accountID,
		Email:     email,
		CreatedAt: p.clock().UTC(),
	})
}

// CredentialRegistered publishes TopicCredentialRegistered.
func (p *Publisher) CredentialRegistered(ctx context.Context, accountID, credentialID, label string) error {
	return p.publish(ctx, TopicCredentialRegistered, CredentialRegisteredEvent{
		AccountID:    accountID,
		CredentialID: credentialID,
		Label:        label,
		CreatedAt:    p.clock().UTC(),
	})
}

// LoginSucceeded publishes TopicLoginSucceeded.
func (p *Publisher) LoginSucceeded(ctx context.Context, accountID, method string) error {
	return p.publish(ctx, TopicLoginSucceeded, LoginSucceededEvent{
		AccountID: accountID,
		Method:    method,
		At:        p.clock().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, topic string, event any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.publisher == nil {
		return fmt.Errorf("event publisher is not configured")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	msgID, err := p.idGenerator()
	if err != nil {
		return fmt.Errorf("generate event id: %w", err)
	}
	msg := message.NewMessage(msgID, payload)
	msg.SetContext(ctx)
	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}
