package records

import (
	"context"
	"time"
)

// Change describes a record write, fanned out to caches.
type Change struct {
	Label   string    `json:"label"`
	Kind    Kind      `json:"type"`
	OwnerID string    `json:"ownerId"`
	At      time.Time `json:"at"`
}

// ChangeFunc observes successful writes.
type ChangeFunc func(ctx context.Context, c Change)

// NotifyingStore calls its observers after every successful Set or Create.
type NotifyingStore struct {
	Store
	observers []ChangeFunc
}

func NewNotifyingStore(store Store, observers ...ChangeFunc) *NotifyingStore {
	return &NotifyingStore{Store: store, observers: observers}
}

func (s *NotifyingStore) Set(ctx context.Context, rec *Record) error {
	if err := s.Store.Set(ctx, rec); err != nil {
		return err
	}
	s.notify(ctx, rec)
	return nil
}

func (s *NotifyingStore) Create(ctx context.Context, rec *Record) error {
	if err := s.Store.Create(ctx, rec); err != nil {
		return err
	}
	s.notify(ctx, rec)
	return nil
}

func (s *NotifyingStore) notify(ctx context.Context, rec *Record) {
	c := Change{Label: rec.Subdomain, Kind: rec.Kind, OwnerID: rec.OwnerID, At: time.Now().UTC()}
	for _, fn := range s.observers {
		fn(ctx, c)
	}
}
