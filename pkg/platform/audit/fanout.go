package audit

import (
	"context"
	"errors"
)

// FanoutStore appends each event to every backing store. Used to keep a
// local durable trail while mirroring events to a broker.
type FanoutStore struct {
	stores []Store
}

func NewFanout(stores ...Store) *FanoutStore {
	return &FanoutStore{stores: stores}
}

func (f *FanoutStore) Append(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range f.stores {
		if err := s.Append(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
