package ledger

import (
	"context"
	"time"

	"subsidyledger/internal/ledger/models"
	id "subsidyledger/pkg/domain"
)

// Store persists projects and milestones. Create methods assign the
// next sequence ID as part of the insert, so an ID is only ever consumed
// by a record that actually exists. Cross-entity atomicity (milestone
// plus project plus pool) is the service's job: all mutating operations
// run under its single writer lock, so stores only need per-call safety.
type Store interface {
	CreateProject(ctx context.Context, p *models.Project) error
	SaveProject(ctx context.Context, p *models.Project) error
	FindProject(ctx context.Context, projectID id.ProjectID) (*models.Project, error)
	ListProjects(ctx context.Context) ([]*models.Project, error)
	ListProjectsByProducer(ctx context.Context, producer id.Identity) ([]*models.Project, error)

	CreateMilestone(ctx context.Context, m *models.Milestone) error
	SaveMilestone(ctx context.Context, m *models.Milestone) error
	FindMilestone(ctx context.Context, milestoneID id.MilestoneID) (*models.Milestone, error)
	FindProjectMilestones(ctx context.Context, projectID id.ProjectID) ([]*models.Milestone, error)

	// ListExpiredPending returns pending milestones whose deadline is
	// behind now, for the sweeper.
	ListExpiredPending(ctx context.Context, now time.Time) ([]*models.Milestone, error)
}
