package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"subsidyledger/internal/ledger/models"
	id "subsidyledger/pkg/domain"
	"subsidyledger/pkg/platform/sentinel"
)

// InMemoryStore keeps the ledger in process memory. Values are copied on
// the way in and out so callers can never alias stored state.
type InMemoryStore struct {
	mu              sync.RWMutex
	projects        map[id.ProjectID]*models.Project
	milestones      map[id.MilestoneID]*models.Milestone
	byProducer      map[id.Identity][]id.ProjectID
	projectOrder    []id.ProjectID
	nextProjectID   uint64
	nextMilestoneID uint64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		projects:        map[id.ProjectID]*models.Project{},
		milestones:      map[id.MilestoneID]*models.Milestone{},
		byProducer:      map[id.Identity][]id.ProjectID{},
		nextProjectID:   1,
		nextMilestoneID: 1,
	}
}

func (s *InMemoryStore) CreateProject(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = id.ProjectID(s.nextProjectID)
	s.nextProjectID++

	s.projects[p.ID] = copyProject(p)
	s.byProducer[p.Producer] = append(s.byProducer[p.Producer], p.ID)
	s.projectOrder = append(s.projectOrder, p.ID)
	return nil
}

func (s *InMemoryStore) SaveProject(_ context.Context, p *models.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.projects[p.ID]; !ok {
		return fmt.Errorf("project %s: %w", p.ID, sentinel.ErrNotFound)
	}
	s.projects[p.ID] = copyProject(p)
	return nil
}

func (s *InMemoryStore) FindProject(_ context.Context, projectID id.ProjectID) (*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, sentinel.ErrNotFound)
	}
	return copyProject(p), nil
}

func (s *InMemoryStore) ListProjects(_ context.Context) ([]*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Project, 0, len(s.projectOrder))
	for _, pid := range s.projectOrder {
		out = append(out, copyProject(s.projects[pid]))
	}
	return out, nil
}

func (s *InMemoryStore) ListProjectsByProducer(_ context.Context, producer id.Identity) ([]*models.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byProducer[producer]
	out := make([]*models.Project, 0, len(ids))
	for _, pid := range ids {
		out = append(out, copyProject(s.projects[pid]))
	}
	return out, nil
}

func (s *InMemoryStore) CreateMilestone(_ context.Context, m *models.Milestone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = id.MilestoneID(s.nextMilestoneID)
	s.nextMilestoneID++

	s.milestones[m.ID] = copyMilestone(m)
	return nil
}

func (s *InMemoryStore) SaveMilestone(_ context.Context, m *models.Milestone) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.milestones[m.ID]; !ok {
		return fmt.Errorf("milestone %s: %w", m.ID, sentinel.ErrNotFound)
	}
	s.milestones[m.ID] = copyMilestone(m)
	return nil
}

func (s *InMemoryStore) FindMilestone(_ context.Context, milestoneID id.MilestoneID) (*models.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.milestones[milestoneID]
	if !ok {
		return nil, fmt.Errorf("milestone %s: %w", milestoneID, sentinel.ErrNotFound)
	}
	return copyMilestone(m), nil
}

func (s *InMemoryStore) FindProjectMilestones(_ context.Context, projectID id.ProjectID) ([]*models.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[projectID]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, sentinel.ErrNotFound)
	}
	out := make([]*models.Milestone, 0, len(p.MilestoneIDs))
	for _, mid := range p.MilestoneIDs {
		out = append(out, copyMilestone(s.milestones[mid]))
	}
	return out, nil
}

func (s *InMemoryStore) ListExpiredPending(_ context.Context, now time.Time) ([]*models.Milestone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Milestone
	for _, m := range s.milestones {
		if m.CanExpire(now) {
			out = append(out, copyMilestone(m))
		}
	}
	return out, nil
}

func copyProject(p *models.Project) *models.Project {
	cp := *p
	cp.MilestoneIDs = append([]id.MilestoneID(nil), p.MilestoneIDs...)
	return &cp
}

func copyMilestone(m *models.Milestone) *models.Milestone {
	cp := *m
	return &cp
}
