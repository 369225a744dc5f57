package challenge

import (
	"context"
	"encoding/base64"
	"io"
	"sync"
	"time"
)

type memoryRecord struct {
	boundAccountID string
	expiresAt      time.Time
}

// MemoryStore keeps challenges in a mutex-guarded map. It is the default
// store for single-process deployments and tests.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]memoryRecord
	ttl     time.Duration
	clock   func() time.Time
	rand    io.Reader
}

// NewMemoryStore builds an in-memory challenge store with the given TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		records: make(map[string]memoryRecord),
		ttl:     ttl,
		clock:   time.Now,
	}
}

// Issue generates a challenge and records it with its binding and expiry.
// Expired entries are dropped opportunistically on each issue.
func (s *MemoryStore) Issue(ctx context.Context, boundAccountID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	value, err := generate(s.rand)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, record := range s.records {
		if !record.expiresAt.After(now) {
			delete(s.records, key)
		}
	}
	s.records[challengeKey(value)] = memoryRecord{
		boundAccountID: boundAccountID,
		expiresAt:      now.Add(s.ttl),
	}
	return value, nil
}

// Consume validates a candidate and removes it under one lock acquisition,
// so concurrent calls with the same candidate cannot both succeed.
func (s *MemoryStore) Consume(ctx context.Context, candidate []byte, expectedAccountID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(candidate) == 0 {
		return ErrNotFound
	}

	key := challengeKey(candidate)
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key]
	if !ok {
		return ErrNotFound
	}
	if !record.expiresAt.After(now) {
		delete(s.records, key)
		return ErrNotFound
	}
	if record.boundAccountID != "" && record.boundAccountID != expectedAccountID {
		return ErrMismatch
	}
	delete(s.records, key)
	return nil
}

func challengeKey(value []byte) string {
	return base64.RawURLEncoding.EncodeToString(value)
}
