package users_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/agrocomice/agroaccess/internal/profiles"
	"github.com/agrocomice/agroaccess/internal/rbac"
	"github.com/agrocomice/agroaccess/internal/roles"
	"github.com/agrocomice/agroaccess/internal/shared"
	"github.com/agrocomice/agroaccess/internal/store/memory"
	"github.com/agrocomice/agroaccess/internal/users"
)

var admin = rbac.Principal{UserID: "admin", Role: "Admin", Permissions: rbac.FullAccessMatrix()}

func newService(t *testing.T, mode users.RemovalMode) (*users.Service, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	_, err := store.Profiles().Create(ctx, profiles.Profile{ID: "p1", Name: "Acceso Total", Matrix: rbac.FullAccessMatrix(), CreatedAt: time.Now()})
	require.NoError(t, err)
	for _, name := range []string{"Admin", "Trabajador"} {
		_, err := store.Roles().Create(ctx, roles.Role{ID: name, Name: name, PermissionID: "p1", CreatedAt: time.Now()})
		require.NoError(t, err)
	}
	roleSvc := roles.NewService(store.Roles(), store.Profiles(), store.Users(), nil, nil)
	svc := users.NewService(store.Users(), roleSvc, mode, nil, nil).WithHashCost(bcrypt.MinCost)
	return svc, store
}

func TestCreateHashesPassword(t *testing.T) {
	svc, _ := newService(t, users.RemovalDeactivate)

	u, err := svc.Create(context.Background(), admin, users.CreateInput{
		Name: "Ana Maza", Email: " Ana@AgroComice.com ", Role: "Admin", Password: "123456",
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@agrocomice.com", u.Email)
	assert.True(t, u.Active)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte("123456")))
}

func TestCreateRejectsUnknownRole(t *testing.T) {
	svc, _ := newService(t, users.RemovalDeactivate)

	_, err := svc.Create(context.Background(), admin, users.CreateInput{
		Name: "Carlos Ruiz", Email: "carlos@agrocomice.com", Role: "Capataz", Password: "123456",
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	svc, _ := newService(t, users.RemovalDeactivate)
	ctx := context.Background()
	in := users.CreateInput{Name: "Felipe", Email: "felipe@agrocomice.com", Role: "Trabajador", Password: "123456"}
	_, err := svc.Create(ctx, admin, in)
	require.NoError(t, err)

	in.Email = "FELIPE@agrocomice.com"
	_, err = svc.Create(ctx, admin, in)
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestUpdateKeepsHashWhenPasswordBlank(t *testing.T) {
	svc, _ := newService(t, users.RemovalDeactivate)
	ctx := context.Background()
	u, err := svc.Create(ctx, admin, users.CreateInput{Name: "Felipe", Email: "felipe@agrocomice.com", Role: "Trabajador", Password: "123456"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, admin, u.ID, users.UpdateInput{Name: "Felipe R.", Email: u.Email, Role: "Admin"})
	require.NoError(t, err)
	assert.Equal(t, u.PasswordHash, updated.PasswordHash)
	assert.Equal(t, "Admin", updated.Role)
	assert.True(t, updated.Active)
}

func TestUsuariosGate(t *testing.T) {
	svc, _ := newService(t, users.RemovalDeactivate)
	ctx := context.Background()
	viewOnly := rbac.DefaultMatrix()
	viewOnly[rbac.EntityUsers] = rbac.CapabilitySet{View: true}
	actor := rbac.Principal{UserID: "u9", Role: "Trabajador", Permissions: viewOnly}

	_, err := svc.List(ctx, actor, shared.ListOptions{})
	require.NoError(t, err)
	_, err = svc.Create(ctx, actor, users.CreateInput{Name: "X", Email: "x@agrocomice.com", Role: "Admin", Password: "123456"})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
	err = svc.Remove(ctx, actor, "whatever")
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestRemoveDeactivates(t *testing.T) {
	svc, store := newService(t, users.RemovalDeactivate)
	ctx := context.Background()
	u, err := svc.Create(ctx, admin, users.CreateInput{Name: "Carlos Ruiz", Email: "carlos@agrocomice.com", Role: "Trabajador", Password: "123456"})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, admin, u.ID))

	stored, err := store.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, stored.Active)

	n, err := svc.CountByRole(ctx, "Trabajador")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRemoveDeletes(t *testing.T) {
	svc, store := newService(t, users.RemovalDelete)
	ctx := context.Background()
	u, err := svc.Create(ctx, admin, users.CreateInput{Name: "Carlos Ruiz", Email: "carlos@agrocomice.com", Role: "Trabajador", Password: "123456"})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, admin, u.ID))

	_, err = store.Users().Get(ctx, u.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestParseRemovalMode(t *testing.T) {
	mode, err := users.ParseRemovalMode("")
	require.NoError(t, err)
	assert.Equal(t, users.RemovalDeactivate, mode)

	mode, err = users.ParseRemovalMode("DELETE")
	require.NoError(t, err)
	assert.Equal(t, users.RemovalDelete, mode)

	_, err = users.ParseRemovalMode("archive")
	assert.ErrorIs(t, err, shared.ErrValidation)
}
