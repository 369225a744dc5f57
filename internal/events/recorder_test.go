package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/gatehouselabs/gatehouse/internal/storage"
)

type fakeOutboxStore struct {
	events    []storage.OutboxEvent
	appendErr error
	listErr   error
	markErr   error
}

func (f *fakeOutboxStore) AppendOutboxEvent(ctx context.Context, event storage.OutboxEvent) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeOutboxStore) ListUnpublishedOutboxEvents(ctx context.Context, limit int) ([]storage.OutboxEvent, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var pending []storage.OutboxEvent
	for _, event := range f.events {
		if event.PublishedAt == nil {
			pending = append(pending, event)
		}
		if limit > 0 && len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (f *fakeOutboxStore) MarkOutboxEventPublished(ctx context.Context, eventID string, publishedAt time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	for i := range f.events {
		if f.events[i].ID == eventID && f.events[i].PublishedAt == nil {
			at := publishedAt
			f.events[i].PublishedAt = &at
			return nil
		}
	}
	return storage.ErrNotFound
}

func newTestRecorder(outbox storage.OutboxStore) *Recorder {
	recorder := NewRecorder(outbox)
	recorder.clock = func() time.Time { return time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC) }
	next := 0
	recorder.idGenerator = func() (string, error) {
		next++
		return []string{"evt-1", "evt-2", "evt-3"}[next-1], nil
	}
	return recorder
}

func TestRecorderAppendsToOutbox(t *testing.T) {
	outbox := &fakeOutboxStore{}
	recorder := newTestRecorder(outbox)

	if err := recorder.AccountCreated(context.Background(), "acct-1", "user@example.com"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := recorder.LoginSucceeded(context.Background(), "acct-1", MethodPassword); err != nil {
		t.Fatalf("record: %v", err)
	}

	if len(outbox.events) != 2 {
		t.Fatalf("outbox has %d events, want 2", len(outbox.events))
	}
	first := outbox.events[0]
	if first.ID != "evt-1" || first.Topic != TopicAccountCreated {
		t.Fatalf("first event = %+v", first)
	}
	var payload AccountCreatedEvent
	if err := json.Unmarshal(first.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.AccountID != "acct-1" || payload.Email != "user@example.com" {
		t.Fatalf("payload = %+v", payload)
	}
	if first.PublishedAt != nil {
		t.Fatal("new events must be unpublished")
	}
}

func TestRecorderCredentialRegistered(t *testing.T) {
	outbox := &fakeOutboxStore{}
	recorder := newTestRecorder(outbox)

	if err := recorder.CredentialRegistered(context.Background(), "acct-1", "cred-1", "YubiKey"); err != nil {
		t.Fatalf("record: %v", err)
	}

	var payload CredentialRegisteredEvent
	if err := json.Unmarshal(outbox.events[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.CredentialID != "cred-1" || payload.Label != "YubiKey" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestRecorderAppendFailure(t *testing.T) {
	outbox := &fakeOutboxStore{appendErr: errors.New("disk full")}
	recorder := newTestRecorder(outbox)

	if err := recorder.AccountCreated(context.Background(), "acct-1", "user@example.com"); err == nil {
		t.Fatal("expected error when append fails")
	}
}

func TestRecorderWithoutOutbox(t *testing.T) {
	recorder := NewRecorder(nil)
	if err := recorder.LoginSucceeded(context.Background(), "acct-1", MethodPasskey); err == nil {
		t.Fatal("expected error when outbox is not configured")
	}
}
