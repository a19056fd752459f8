package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/agrocomice/agroaccess/internal/profiles"
	"github.com/agrocomice/agroaccess/internal/shared"
)

// ProfileRepository implements profiles.Repository.
type ProfileRepository struct {
	store *Store
}

// List returns copies of every profile.
func (r *ProfileRepository) List(_ context.Context, opts shared.ListOptions) ([]profiles.Profile, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return nil, s.fail
	}
	out := make([]profiles.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, copyProfile(p))
	}
	sortByKey(out, opts, func(p profiles.Profile, column string) sortKey {
		if column == "created_at" {
			return sortKey{primary: p.CreatedAt.Format(time.RFC3339Nano), id: p.ID}
		}
		return sortKey{primary: p.Name, id: p.ID}
	}, "name", "name", "created_at")
	return out, nil
}

// Get returns one profile.
func (r *ProfileRepository) Get(_ context.Context, id string) (profiles.Profile, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return profiles.Profile{}, s.fail
	}
	p, ok := s.profiles[id]
	if !ok {
		return profiles.Profile{}, shared.ErrNotFound
	}
	return copyProfile(p), nil
}

// Create inserts a profile.
func (r *ProfileRepository) Create(_ context.Context, p profiles.Profile) (profiles.Profile, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return profiles.Profile{}, s.fail
	}
	if _, exists := s.profiles[p.ID]; exists {
		return profiles.Profile{}, fmt.Errorf("profile %s: %w", p.ID, shared.ErrDuplicate)
	}
	p.UpdatedAt = p.CreatedAt
	s.profiles[p.ID] = copyProfile(p)
	return copyProfile(p), nil
}

// Update overwrites a profile.
func (r *ProfileRepository) Update(_ context.Context, p profiles.Profile) (profiles.Profile, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return profiles.Profile{}, s.fail
	}
	current, ok := s.profiles[p.ID]
	if !ok {
		return profiles.Profile{}, shared.ErrNotFound
	}
	p.CreatedAt = current.CreatedAt
	s.profiles[p.ID] = copyProfile(p)
	return copyProfile(p), nil
}

// Delete removes a profile. It refuses while a role points at it, like the
// roles.permission_id foreign key does.
func (r *ProfileRepository) Delete(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if _, ok := s.profiles[id]; !ok {
		return shared.ErrNotFound
	}
	for _, role := range s.roles {
		if role.PermissionID == id {
			return fmt.Errorf("profile %s referenced by role %s: %w", id, role.ID, shared.ErrReferenced)
		}
	}
	delete(s.profiles, id)
	return nil
}

func copyProfile(p profiles.Profile) profiles.Profile {
	p.Matrix = p.Matrix.Clone()
	return p
}

var _ profiles.Repository = (*ProfileRepository)(nil)
