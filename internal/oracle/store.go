package oracle

import (
	"context"

	"subsidyledger/internal/oracle/models"
	id "subsidyledger/pkg/domain"
)

// Store persists data points and each source's append-only history.
//
// Contract shared by all implementations:
//   - Put is an idempotent insert keyed by the content-derived ID; the
//     history list records first-submission order only.
//   - SetVerified overwrites the verdict (last-writer-wins) and returns
//     sentinel.ErrNotFound for unknown IDs.
//   - QueryBySource returns points in original submission order.
type Store interface {
	Put(ctx context.Context, dp *models.DataPoint) error
	Get(ctx context.Context, dataID id.DataPointID) (*models.DataPoint, error)
	SetVerified(ctx context.Context, dataID id.DataPointID, verified bool, by id.Identity) (*models.DataPoint, error)
	QueryBySource(ctx context.Context, source id.SourceKey) ([]*models.DataPoint, error)
	History(ctx context.Context, source id.SourceKey) ([]id.DataPointID, error)
}
