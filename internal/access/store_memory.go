package access

import (
	"context"
	"sync"

	id "subsidyledger/pkg/domain"
)

// InMemoryRoleStore maps identities to their granted role sets.
type InMemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[id.Identity]map[id.Role]struct{}
}

func NewInMemoryRoleStore() *InMemoryRoleStore {
	return &InMemoryRoleStore{roles: make(map[id.Identity]map[id.Role]struct{})}
}

func (s *InMemoryRoleStore) Grant(_ context.Context, identity id.Identity, role id.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.roles[identity]
	if !ok {
		set = make(map[id.Role]struct{})
		s.roles[identity] = set
	}
	set[role] = struct{}{}
	return nil
}

func (s *InMemoryRoleStore) Revoke(_ context.Context, identity id.Identity, role id.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles[identity], role)
	return nil
}

func (s *InMemoryRoleStore) HasRole(_ context.Context, identity id.Identity, role id.Role) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roles[identity][role]
	return ok, nil
}

func (s *InMemoryRoleStore) RolesOf(_ context.Context, identity id.Identity) ([]id.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.roles[identity]
	out := make([]id.Role, 0, len(set))
	for role := range set {
		out = append(out, role)
	}
	return out, nil
}
