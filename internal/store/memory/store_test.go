package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrocomice/agroaccess/internal/profiles"
	"github.com/agrocomice/agroaccess/internal/rbac"
	"github.com/agrocomice/agroaccess/internal/roles"
	"github.com/agrocomice/agroaccess/internal/shared"
	"github.com/agrocomice/agroaccess/internal/store/memory"
	"github.com/agrocomice/agroaccess/internal/users"
)

func seedProfile(t *testing.T, s *memory.Store, id, name string) profiles.Profile {
	t.Helper()
	p, err := s.Profiles().Create(context.Background(), profiles.Profile{
		ID:        id,
		Name:      name,
		Matrix:    rbac.DefaultMatrix(),
		CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return p
}

func TestProfileDeleteRefusedWhileReferenced(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedProfile(t, s, "p1", "Acceso Total")
	_, err := s.Roles().Create(ctx, roles.Role{ID: "r1", Name: "Admin", PermissionID: "p1", CreatedAt: time.Now()})
	require.NoError(t, err)

	err = s.Profiles().Delete(ctx, "p1")
	require.ErrorIs(t, err, shared.ErrReferenced)

	_, err = s.Profiles().Get(ctx, "p1")
	require.NoError(t, err)

	require.NoError(t, s.Roles().Delete(ctx, "r1"))
	require.NoError(t, s.Profiles().Delete(ctx, "p1"))
	_, err = s.Profiles().Get(ctx, "p1")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestProfileReadsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedProfile(t, s, "p1", "Acceso Básico")

	got, err := s.Profiles().Get(ctx, "p1")
	require.NoError(t, err)
	got.Matrix[rbac.EntityUsers] = rbac.CapabilitySet{View: true}

	again, err := s.Profiles().Get(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, again.Matrix.Allows(rbac.EntityUsers, rbac.ActionView))
}

func TestRoleConstraints(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedProfile(t, s, "p1", "Acceso Total")

	_, err := s.Roles().Create(ctx, roles.Role{ID: "r0", Name: "Ghost", PermissionID: "missing"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = s.Roles().Create(ctx, roles.Role{ID: "r1", Name: "Admin", PermissionID: "p1"})
	require.NoError(t, err)
	_, err = s.Roles().Create(ctx, roles.Role{ID: "r2", Name: "Admin", PermissionID: "p1"})
	require.ErrorIs(t, err, shared.ErrDuplicate)

	n, err := s.Roles().CountByPermission(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	found, err := s.Roles().FindByName(ctx, "Admin")
	require.NoError(t, err)
	assert.Equal(t, "r1", found.ID)

	_, err = s.Roles().FindByName(ctx, "admin")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUserEmailUniqueIgnoringCase(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	_, err := s.Users().Create(ctx, users.User{ID: "u1", Email: "ana@agrocomice.com", Role: "Admin"})
	require.NoError(t, err)
	_, err = s.Users().Create(ctx, users.User{ID: "u2", Email: "ANA@agrocomice.com", Role: "Admin"})
	require.ErrorIs(t, err, shared.ErrDuplicate)

	got, err := s.Users().FindByEmail(ctx, "Ana@AgroComice.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)
}

func TestListOrdering(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	seedProfile(t, s, "b", "Beta")
	seedProfile(t, s, "a", "Alfa")

	asc, err := s.Profiles().List(ctx, shared.ListOptions{})
	require.NoError(t, err)
	require.Len(t, asc, 2)
	assert.Equal(t, "Alfa", asc[0].Name)

	desc, err := s.Profiles().List(ctx, shared.ListOptions{SortBy: "name", SortDir: "desc"})
	require.NoError(t, err)
	assert.Equal(t, "Beta", desc[0].Name)
}

func TestFailWith(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	boom := errors.New("connection reset")
	s.FailWith(boom)

	_, err := s.Users().CountByRole(ctx, "Admin")
	require.ErrorIs(t, err, boom)

	s.FailWith(nil)
	_, err = s.Users().CountByRole(ctx, "Admin")
	require.NoError(t, err)
}
