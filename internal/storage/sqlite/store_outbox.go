package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gatehouselabs/gatehouse/internal/storage"
)

func (s *Store) AppendOutboxEvent(ctx context.Context, event storage.OutboxEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(event.ID) == "" {
		return fmt.Errorf("event id is required")
	}
	if strings.TrimSpace(event.Topic) == "" {
		return fmt.Errorf("event topic is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO outbox_events (id, topic, payload, created_at, published_at)
VALUES (?, ?, ?, ?, ?)`,
		event.ID,
		event.Topic,
		event.Payload,
		toMillis(event.CreatedAt),
		nullableMillis(event.PublishedAt),
	)
	if err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}

// ListUnpublishedOutboxEvents returns pending events, oldest first.
func (s *Store) ListUnpublishedOutboxEvents(ctx context.Context, limit int) ([]storage.OutboxEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, topic, payload, created_at, published_at
FROM outbox_events WHERE published_at IS NULL
ORDER BY created_at ASC, id ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list outbox events: %w", err)
	}
	defer rows.Close()

	var events []storage.OutboxEvent
	for rows.Next() {
		var (
			event     storage.OutboxEvent
			createdAt int64
			published sql.NullInt64
		)
		if err := rows.Scan(&event.ID, &event.Topic, &event.Payload, &createdAt, &published); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		event.CreatedAt = fromMillis(createdAt)
		if published.Valid {
			at := fromMillis(published.Int64)
			event.PublishedAt = &at
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list outbox events rows: %w", err)
	}
	return events, nil
}

// MarkOutboxEventPublished stamps an event as delivered.
func (s *Store) MarkOutboxEventPublished(ctx context.Context, eventID string, publishedAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(eventID) == "" {
		return fmt.Errorf("event id is required")
	}

	res, err := s.sqlDB.ExecContext(ctx, `
UPDATE outbox_events SET published_at = ? WHERE id = ? AND published_at IS NULL`,
		toMillis(publishedAt), eventID)
	if err != nil {
		return fmt.Errorf("mark outbox event published: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark outbox event result: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}
