package roles_test

import (
	"context"
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

var admin = rbac.Principal{UserID: "admin", Role: "Admin", Permissions: rbac.FullAccessMatrix()}

type fixture struct {
	store *memory.Store
	svc   *roles.Service
	total profiles.Profile
	basic profiles.Profile
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	basicMatrix := rbac.DefaultMatrix()
	basicMatrix[rbac.EntityRoles] = rbac.CapabilitySet{View: true}

	total, err := store.Profiles().Create(ctx, profiles.Profile{ID: "p1", Name: "Acceso Total", Matrix: rbac.FullAccessMatrix(), CreatedAt: time.Now()})
	require.NoError(t, err)
	basic, err := store.Profiles().Create(ctx, profiles.Profile{ID: "p2", Name: "Acceso Básico", Matrix: basicMatrix, CreatedAt: time.Now()})
	require.NoError(t, err)

	svc := roles.NewService(store.Roles(), store.Profiles(), store.Users(), nil, nil)
	return fixture{store: store, svc: svc, total: total, basic: basic}
}

func TestCreateRoleRequiresExistingProfile(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), admin, roles.Input{Name: "Fantasma", PermissionID: "nope"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = f.svc.Create(context.Background(), admin, roles.Input{Name: "Sin perfil"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRoleRejectsDuplicateName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, admin, roles.Input{Name: "Agrónomo", PermissionID: f.basic.ID})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, admin, roles.Input{Name: "Agrónomo", PermissionID: f.total.ID})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestTrabajadorCanListButNotCreateRoles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, admin, roles.Input{Name: "Trabajador", PermissionID: f.basic.ID})
	require.NoError(t, err)

	resolver := rbac.NewResolver(f.svc, profiles.NewService(f.store.Profiles(), f.store.Roles(), nil, nil), nil)
	matrix, err := resolver.ResolvePermissions(ctx, "Trabajador")
	require.NoError(t, err)
	worker := rbac.Principal{UserID: "u4", Role: "Trabajador", Permissions: matrix}

	list, err := f.svc.List(ctx, worker, shared.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.Create(ctx, worker, roles.Input{Name: "Jefe", PermissionID: f.total.ID})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	list, err = f.svc.List(ctx, admin, shared.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDeleteHeldRoleIsRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	role, err := f.svc.Create(ctx, admin, roles.Input{Name: "Supervisor", PermissionID: f.total.ID})
	require.NoError(t, err)
	_, err = f.store.Users().Create(ctx, users.User{ID: "u1", Name: "Alfonso Quijano", Email: "alfonso@agrocomice.com", Role: "Supervisor", Active: false})
	require.NoError(t, err)

	err = f.svc.Delete(ctx, admin, role.ID)
	require.ErrorIs(t, err, shared.ErrReferenced)

	stored, err := f.svc.Get(ctx, admin, role.ID)
	require.NoError(t, err)
	assert.Equal(t, "Supervisor", stored.Name)
	u, err := f.store.Users().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Supervisor", u.Role)
}

func TestDeleteUnheldRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	role, err := f.svc.Create(ctx, admin, roles.Input{Name: "Temporal", PermissionID: f.basic.ID})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, admin, role.ID))

	list, err := f.svc.List(ctx, admin, shared.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = f.svc.Get(ctx, admin, role.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRenameDoesNotRewriteUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	role, err := f.svc.Create(ctx, admin, roles.Input{Name: "Agrónomo", PermissionID: f.basic.ID})
	require.NoError(t, err)
	_, err = f.store.Users().Create(ctx, users.User{ID: "u1", Email: "felipe@agrocomice.com", Role: "Agrónomo", Active: true})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, admin, role.ID, roles.Input{Name: "Ingeniero", PermissionID: f.basic.ID})
	require.NoError(t, err)

	u, err := f.store.Users().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Agrónomo", u.Role)

	ok, err := f.svc.Exists(ctx, "Agrónomo")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateKeepsOwnName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	role, err := f.svc.Create(ctx, admin, roles.Input{Name: "Admin", PermissionID: f.basic.ID})
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, admin, role.ID, roles.Input{Name: "Admin", Description: "todo", PermissionID: f.total.ID})
	require.NoError(t, err)
	assert.Equal(t, f.total.ID, updated.PermissionID)
	assert.Equal(t, "todo", updated.Description)
}

func TestPermissionIDForRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, admin, roles.Input{Name: "Admin", PermissionID: f.total.ID})
	require.NoError(t, err)

	id, err := f.svc.PermissionIDForRole(ctx, "Admin")
	require.NoError(t, err)
	assert.Equal(t, f.total.ID, id)

	_, err = f.svc.PermissionIDForRole(ctx, "admin")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestFormOptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, admin, roles.Input{Name: "Admin", PermissionID: f.total.ID})
	require.NoError(t, err)

	opts, err := f.svc.FormOptions(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, opts.Roles, 1)
	assert.Len(t, opts.Profiles, 2)

	_, err = f.svc.FormOptions(ctx, rbac.Principal{Permissions: rbac.DefaultMatrix()})
	assert.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestResolverMatchesRoleNamesExactly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Create(ctx, admin, roles.Input{Name: "Admin", PermissionID: f.total.ID})
	require.NoError(t, err)

	resolver := rbac.NewResolver(f.svc, profiles.NewService(f.store.Profiles(), f.store.Roles(), nil, nil), nil)

	matrix, err := resolver.ResolvePermissions(ctx, "Admin")
	require.NoError(t, err)
	assert.True(t, matrix.Allows(rbac.EntityUsers, rbac.ActionDelete))

	for _, name := range []string{" Admin\t", "Admin ", "admin"} {
		matrix, err := resolver.ResolvePermissions(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, rbac.DefaultMatrix(), matrix, "name %q", name)
	}

	ok, err := f.svc.Exists(ctx, " Admin")
	require.NoError(t, err)
	assert.False(t, ok)
}
