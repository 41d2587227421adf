package dispute

import (
	"context"
	"fmt"
	"sync"

	"subsidyledger/internal/dispute/models"
	id "subsidyledger/pkg/domain"
	"subsidyledger/pkg/platform/sentinel"
)

// Store keeps dispute records. At most one open dispute exists per
// milestone; the ledger's disputed status enforces that upstream.
type Store interface {
	Create(ctx context.Context, d *models.Dispute) error
	Save(ctx context.Context, d *models.Dispute) error
	FindOpenByMilestone(ctx context.Context, milestoneID id.MilestoneID) (*models.Dispute, error)
	ListByMilestone(ctx context.Context, milestoneID id.MilestoneID) ([]*models.Dispute, error)
}

type InMemoryStore struct {
	mu          sync.RWMutex
	disputes    map[string]*models.Dispute
	byMilestone map[id.MilestoneID][]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		disputes:    map[string]*models.Dispute{},
		byMilestone: map[id.MilestoneID][]string{},
	}
}

func (s *InMemoryStore) Create(_ context.Context, d *models.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *d
	s.disputes[d.ID] = &cp
	s.byMilestone[d.MilestoneID] = append(s.byMilestone[d.MilestoneID], d.ID)
	return nil
}

func (s *InMemoryStore) Save(_ context.Context, d *models.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.disputes[d.ID]; !ok {
		return fmt.Errorf("dispute %s: %w", d.ID, sentinel.ErrNotFound)
	}
	cp := *d
	s.disputes[d.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindOpenByMilestone(_ context.Context, milestoneID id.MilestoneID) (*models.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, did := range s.byMilestone[milestoneID] {
		if d := s.disputes[did]; !d.Resolved {
			cp := *d
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("open dispute for milestone %s: %w", milestoneID, sentinel.ErrNotFound)
}

func (s *InMemoryStore) ListByMilestone(_ context.Context, milestoneID id.MilestoneID) ([]*models.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byMilestone[milestoneID]
	out := make([]*models.Dispute, 0, len(ids))
	for _, did := range ids {
		cp := *s.disputes[did]
		out = append(out, &cp)
	}
	return out, nil
}
