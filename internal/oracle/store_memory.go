package oracle

import (
	"context"
	"fmt"
	"sync"

	"subsidyledger/internal/oracle/models"
	id "subsidyledger/pkg/domain"
	"subsidyledger/pkg/platform/sentinel"
)

// InMemoryStore is the default store: maps under RWMutex plus an
// append-only per-source history.
type InMemoryStore struct {
	mu      sync.RWMutex
	points  map[id.DataPointID]*models.DataPoint
	history map[id.SourceKey][]id.DataPointID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		points:  make(map[id.DataPointID]*models.DataPoint),
		history: make(map[id.SourceKey][]id.DataPointID),
	}
}

func (s *InMemoryStore) Put(_ context.Context, dp *models.DataPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.points[dp.ID]; exists {
		// Identical observation resubmitted; the first record stands.
		return nil
	}
	cp := *dp
	s.points[dp.ID] = &cp
	s.history[dp.Source] = append(s.history[dp.Source], dp.ID)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, dataID id.DataPointID) (*models.DataPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dp, ok := s.points[dataID]
	if !ok {
		return nil, fmt.Errorf("data point %s: %w", dataID, sentinel.ErrNotFound)
	}
	cp := *dp
	return &cp, nil
}

func (s *InMemoryStore) SetVerified(_ context.Context, dataID id.DataPointID, verified bool, by id.Identity) (*models.DataPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dp, ok := s.points[dataID]
	if !ok {
		return nil, fmt.Errorf("data point %s: %w", dataID, sentinel.ErrNotFound)
	}
	dp.Verified = verified
	dp.VerifiedBy = by
	cp := *dp
	return &cp, nil
}

func (s *InMemoryStore) QueryBySource(_ context.Context, source id.SourceKey) ([]*models.DataPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.history[source]
	out := make([]*models.DataPoint, 0, len(ids))
	for _, dataID := range ids {
		cp := *s.points[dataID]
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) History(_ context.Context, source id.SourceKey) ([]id.DataPointID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]id.DataPointID{}, s.history[source]...), nil
}
