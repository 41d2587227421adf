package control

import (
	"context"
	"sync/atomic"
)

// InMemoryStore holds the pause flag in process. Suitable for
// single-instance deployments and tests.
type InMemoryStore struct {
	paused atomic.Bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) SetPaused(_ context.Context, paused bool) error {
	s.paused.Store(paused)
	return nil
}

func (s *InMemoryStore) Paused(_ context.Context) (bool, error) {
	return s.paused.Load(), nil
}
