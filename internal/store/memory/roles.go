package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/agrocomice/agroaccess/internal/roles"
	"github.com/agrocomice/agroaccess/internal/shared"
)

// RoleRepository implements roles.Repository.
type RoleRepository struct {
	store *Store
}

// List returns every role.
func (r *RoleRepository) List(_ context.Context, opts shared.ListOptions) ([]roles.Role, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return nil, s.fail
	}
	out := make([]roles.Role, 0, len(s.roles))
	for _, role := range s.roles {
		out = append(out, role)
	}
	sortByKey(out, opts, func(role roles.Role, column string) sortKey {
		if column == "created_at" {
			return sortKey{primary: role.CreatedAt.Format(time.RFC3339Nano), id: role.ID}
		}
		return sortKey{primary: role.Name, id: role.ID}
	}, "name", "name", "created_at")
	return out, nil
}

// Get returns one role.
func (r *RoleRepository) Get(_ context.Context, id string) (roles.Role, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return roles.Role{}, s.fail
	}
	role, ok := s.roles[id]
	if !ok {
		return roles.Role{}, shared.ErrNotFound
	}
	return role, nil
}

// FindByName returns the oldest role with exactly this name.
func (r *RoleRepository) FindByName(_ context.Context, name string) (roles.Role, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return roles.Role{}, s.fail
	}
	var (
		found roles.Role
		ok    bool
	)
	for _, role := range s.roles {
		if role.Name != name {
			continue
		}
		if !ok || role.CreatedAt.Before(found.CreatedAt) || (role.CreatedAt.Equal(found.CreatedAt) && role.ID < found.ID) {
			found, ok = role, true
		}
	}
	if !ok {
		return roles.Role{}, shared.ErrNotFound
	}
	return found, nil
}

// Create inserts a role.
func (r *RoleRepository) Create(_ context.Context, role roles.Role) (roles.Role, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return roles.Role{}, s.fail
	}
	if err := s.checkRoleLocked(role); err != nil {
		return roles.Role{}, err
	}
	if _, exists := s.roles[role.ID]; exists {
		return roles.Role{}, fmt.Errorf("role %s: %w", role.ID, shared.ErrDuplicate)
	}
	role.UpdatedAt = role.CreatedAt
	s.roles[role.ID] = role
	return role, nil
}

// Update overwrites a role.
func (r *RoleRepository) Update(_ context.Context, role roles.Role) (roles.Role, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return roles.Role{}, s.fail
	}
	current, ok := s.roles[role.ID]
	if !ok {
		return roles.Role{}, shared.ErrNotFound
	}
	if err := s.checkRoleLocked(role); err != nil {
		return roles.Role{}, err
	}
	role.CreatedAt = current.CreatedAt
	s.roles[role.ID] = role
	return role, nil
}

// Delete removes a role. Users join roles by name without a constraint, so
// nothing here stops the delete.
func (r *RoleRepository) Delete(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if _, ok := s.roles[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.roles, id)
	return nil
}

// CountByPermission counts roles pointing at a profile.
func (r *RoleRepository) CountByPermission(_ context.Context, permissionID string) (int, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return 0, s.fail
	}
	n := 0
	for _, role := range s.roles {
		if role.PermissionID == permissionID {
			n++
		}
	}
	return n, nil
}

func (s *Store) checkRoleLocked(role roles.Role) error {
	if _, ok := s.profiles[role.PermissionID]; !ok {
		return fmt.Errorf("%w: permission profile %q does not exist", shared.ErrValidation, role.PermissionID)
	}
	for _, other := range s.roles {
		if other.ID != role.ID && other.Name == role.Name {
			return fmt.Errorf("role name %q: %w", role.Name, shared.ErrDuplicate)
		}
	}
	return nil
}

var _ roles.Repository = (*RoleRepository)(nil)
