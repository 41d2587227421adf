package sources

import (
	"context"
	"fmt"
	"sync"

	"subsidyledger/internal/sources/models"
	id "subsidyledger/pkg/domain"
	"subsidyledger/pkg/platform/sentinel"
)

// InMemoryStore keeps the registry in process. Registry cardinality is
// small (admitted devices and databases), so a map under RWMutex is the
// whole story.
type InMemoryStore struct {
	mu      sync.RWMutex
	sources map[id.SourceKey]*models.TrustedSource
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sources: make(map[id.SourceKey]*models.TrustedSource)}
}

// Upsert stores the source, replacing any prior record for the key.
func (s *InMemoryStore) Upsert(_ context.Context, source *models.TrustedSource) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *source
	s.sources[source.Key] = &cp
	return nil
}

func (s *InMemoryStore) Find(_ context.Context, key id.SourceKey) (*models.TrustedSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	source, ok := s.sources[key]
	if !ok {
		return nil, fmt.Errorf("source %s: %w", key, sentinel.ErrNotFound)
	}
	cp := *source
	return &cp, nil
}

// Execute runs validate then mutate on the source while holding the
// write lock, so no concurrent writer can slip between them.
func (s *InMemoryStore) Execute(_ context.Context, key id.SourceKey,
	validate func(*models.TrustedSource) error,
	mutate func(*models.TrustedSource)) (*models.TrustedSource, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	source, ok := s.sources[key]
	if !ok {
		return nil, fmt.Errorf("source %s: %w", key, sentinel.ErrNotFound)
	}
	if err := validate(source); err != nil {
		return nil, err
	}
	mutate(source)
	cp := *source
	return &cp, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.TrustedSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.TrustedSource, 0, len(s.sources))
	for _, source := range s.sources {
		cp := *source
		out = append(out, &cp)
	}
	return out, nil
}
