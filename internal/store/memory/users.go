package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agrocomice/agroaccess/internal/shared"
	"github.com/agrocomice/agroaccess/internal/users"
)

// UserRepository implements users.Repository.
type UserRepository struct {
	store *Store
}

// List returns every user.
func (r *UserRepository) List(_ context.Context, opts shared.ListOptions) ([]users.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return nil, s.fail
	}
	out := make([]users.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sortByKey(out, opts, func(u users.User, column string) sortKey {
		switch column {
		case "email":
			return sortKey{primary: strings.ToLower(u.Email), id: u.ID}
		case "role":
			return sortKey{primary: u.Role, id: u.ID}
		case "created_at":
			return sortKey{primary: u.CreatedAt.Format(time.RFC3339Nano), id: u.ID}
		default:
			return sortKey{primary: u.Name, id: u.ID}
		}
	}, "name", "name", "email", "role", "created_at")
	return out, nil
}

// Get returns one user.
func (r *UserRepository) Get(_ context.Context, id string) (users.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return users.User{}, s.fail
	}
	u, ok := s.users[id]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	return u, nil
}

// FindByEmail matches email ignoring case.
func (r *UserRepository) FindByEmail(_ context.Context, email string) (users.User, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return users.User{}, s.fail
	}
	for _, u := range s.users {
		if sameEmail(u.Email, email) {
			return u, nil
		}
	}
	return users.User{}, shared.ErrNotFound
}

// Create inserts a user.
func (r *UserRepository) Create(_ context.Context, u users.User) (users.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return users.User{}, s.fail
	}
	if _, exists := s.users[u.ID]; exists {
		return users.User{}, fmt.Errorf("user %s: %w", u.ID, shared.ErrDuplicate)
	}
	if err := s.checkEmailLocked(u); err != nil {
		return users.User{}, err
	}
	u.UpdatedAt = u.CreatedAt
	s.users[u.ID] = u
	return u, nil
}

// Update overwrites a user.
func (r *UserRepository) Update(_ context.Context, u users.User) (users.User, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return users.User{}, s.fail
	}
	current, ok := s.users[u.ID]
	if !ok {
		return users.User{}, shared.ErrNotFound
	}
	if err := s.checkEmailLocked(u); err != nil {
		return users.User{}, err
	}
	u.CreatedAt = current.CreatedAt
	s.users[u.ID] = u
	return u, nil
}

// Delete removes a user.
func (r *UserRepository) Delete(_ context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	if _, ok := s.users[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// CountByRole counts users holding roleName, active or not.
func (r *UserRepository) CountByRole(_ context.Context, roleName string) (int, error) {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fail != nil {
		return 0, s.fail
	}
	n := 0
	for _, u := range s.users {
		if u.Role == roleName {
			n++
		}
	}
	return n, nil
}

func (s *Store) checkEmailLocked(u users.User) error {
	for _, other := range s.users {
		if other.ID != u.ID && sameEmail(other.Email, u.Email) {
			return fmt.Errorf("email %q: %w", u.Email, shared.ErrDuplicate)
		}
	}
	return nil
}

var _ users.Repository = (*UserRepository)(nil)
