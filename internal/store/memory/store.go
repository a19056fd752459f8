// Package memory holds an in-process implementation of the profile, role and
// user repositories. It backs tests and the memory store driver and mirrors
// the PostgreSQL constraints: the roles.permission_id foreign key, the unique
// role name and the case-insensitive unique email.
package memory

import (
	"sort"
	"strings"
	"sync"

	"github.com/agrocomice/agroaccess/internal/profiles"
	"github.com/agrocomice/agroaccess/internal/roles"
	"github.com/agrocomice/agroaccess/internal/shared"
	"github.com/agrocomice/agroaccess/internal/users"
)

// Store keeps every collection behind one lock so cross-collection checks see
// a consistent view.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]profiles.Profile
	roles    map[string]roles.Role
	users    map[string]users.User
	fail     error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		profiles: make(map[string]profiles.Profile),
		roles:    make(map[string]roles.Role),
		users:    make(map[string]users.User),
	}
}

// FailWith makes every subsequent call return err. Pass nil to recover.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// Profiles returns the permission profile repository.
func (s *Store) Profiles() *ProfileRepository {
	return &ProfileRepository{store: s}
}

// Roles returns the role repository.
func (s *Store) Roles() *RoleRepository {
	return &RoleRepository{store: s}
}

// Users returns the user repository.
func (s *Store) Users() *UserRepository {
	return &UserRepository{store: s}
}

type sortKey struct {
	primary string
	id      string
}

func sortByKey[T any](items []T, opts shared.ListOptions, key func(T, string) sortKey, fallback string, allowed ...string) {
	column := opts.SortColumn(fallback, allowed...)
	desc := opts.Descending()
	sort.SliceStable(items, func(i, j int) bool {
		a, b := key(items[i], column), key(items[j], column)
		if a.primary != b.primary {
			if desc {
				return a.primary > b.primary
			}
			return a.primary < b.primary
		}
		return a.id < b.id
	})
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
