package records

import (
	"context"
	"errors"
)

// Availability answers whether a display-form label can still be sold.
type Availability struct {
	store Store
}

func NewAvailability(store Store) *Availability {
	return &Availability{store: store}
}

// CheckAvailability is true only when the store reports no record. Store
// failures are returned rather than guessed.
func (a *Availability) CheckAvailability(ctx context.Context, label string) (bool, error) {
	_, err := a.store.Get(ctx, label)
	switch {
	case errors.Is(err, ErrNotFound):
		return true, nil
	case err != nil:
		return false, err
	default:
		return false, nil
	}
}
