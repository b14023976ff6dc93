package records

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Store is the key-value collaborator records live in.
type Store interface {
	// Get returns ErrNotFound when no record exists for label.
	Get(ctx context.Context, label string) (*Record, error)
	// Set validates and upserts the record.
	Set(ctx context.Context, rec *Record) error
	// Create validates and inserts the record, returning ErrExists when the
	// label is already taken.
	Create(ctx context.Context, rec *Record) error
}

// prepare normalizes, validates and stamps a copy of rec for storage.
func prepare(rec *Record, now time.Time) (*Record, error) {
	if rec == nil {
		return nil, errors.New("nil record")
	}
	out := rec.Clone()
	out.Normalize()
	if err := out.Validate(); err != nil {
		return nil, err
	}
	out.UpdatedAt = now.UTC()
	return out, nil
}

// MemoryStore keeps records in a map. It backs local development and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]*Record
	now   func() time.Time
}

// NewMemoryStore returns a store pre-populated with seed.
func NewMemoryStore(seed ...*Record) (*MemoryStore, error) {
	s := &MemoryStore{items: make(map[string]*Record), now: time.Now}
	for _, rec := range seed {
		if err := s.Set(context.Background(), rec); err != nil {
			return nil, fmt.Errorf("seed %q: %w", rec.Subdomain, err)
		}
	}
	return s, nil
}

func (s *MemoryStore) Get(_ context.Context, label string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.items[label]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Set(_ context.Context, rec *Record) error {
	out, err := prepare(rec, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.items[out.Subdomain] = out
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	out, err := prepare(rec, s.now())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.items[out.Subdomain]; taken {
		return ErrExists
	}
	s.items[out.Subdomain] = out
	return nil
}

// Len reports the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
