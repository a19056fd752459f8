package profiles_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrocomice/agroaccess/internal/profiles"
	"github.com/agrocomice/agroaccess/internal/rbac"
	"github.com/agrocomice/agroaccess/internal/roles"
	"github.com/agrocomice/agroaccess/internal/shared"
	"github.com/agrocomice/agroaccess/internal/store/memory"
)

var admin = rbac.Principal{UserID: "admin", Role: "Admin", Permissions: rbac.FullAccessMatrix()}

type recordingAuditor struct {
	logs []shared.AuditLog
}

func (r *recordingAuditor) Record(ctx context.Context, log shared.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func newService(t *testing.T) (*profiles.Service, *memory.Store, *recordingAuditor) {
	t.Helper()
	store := memory.New()
	audit := &recordingAuditor{}
	return profiles.NewService(store.Profiles(), store.Roles(), audit, nil), store, audit
}

func TestCreateDefaultsToEmptyMatrix(t *testing.T) {
	svc, _, audit := newService(t)

	p, err := svc.Create(context.Background(), admin, profiles.CreateInput{Name: "  Nuevo  "})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Nuevo", p.Name)
	assert.True(t, p.Matrix.Equal(rbac.DefaultMatrix()))
	require.Len(t, audit.logs, 1)
	assert.Equal(t, "profile.create", audit.logs[0].Action)
}

func TestCreateBackfillsPartialMatrix(t *testing.T) {
	svc, _, _ := newService(t)

	p, err := svc.Create(context.Background(), admin, profiles.CreateInput{
		Name:   "Asistencia",
		Matrix: rbac.Matrix{rbac.EntityAttendance: {View: true, Create: true}},
	})
	require.NoError(t, err)
	assert.Len(t, p.Matrix, len(rbac.Entities()))
	assert.Equal(t, rbac.CapabilitySet{View: true, Create: true}, p.Matrix[rbac.EntityAttendance])
	assert.Equal(t, rbac.CapabilitySet{}, p.Matrix[rbac.EntityUsers])
}

func TestCreateRejectsUnknownEntity(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Create(context.Background(), admin, profiles.CreateInput{
		Name:   "Raro",
		Matrix: rbac.Matrix{"Facturas": {View: true}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRequiresName(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Create(context.Background(), admin, profiles.CreateInput{Name: "   "})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestMutationsNeedPermisosCapability(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, admin, profiles.CreateInput{Name: "Base"})
	require.NoError(t, err)

	viewer := rbac.DefaultMatrix()
	viewer[rbac.EntityPermissions] = rbac.CapabilitySet{View: true}
	actor := rbac.Principal{UserID: "u2", Role: "Supervisor", Permissions: viewer}

	_, err = svc.List(ctx, actor, shared.ListOptions{})
	require.NoError(t, err)

	_, err = svc.Create(ctx, actor, profiles.CreateInput{Name: "Otro"})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	_, err = svc.SetCapability(ctx, actor, p.ID, rbac.EntityPermissions, rbac.ActionEdit, true)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	err = svc.Delete(ctx, actor, p.ID)
	require.ErrorIs(t, err, shared.ErrPermissionDenied)

	all, err := store.Profiles().List(ctx, shared.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	nobody := rbac.Principal{UserID: "u3", Permissions: rbac.DefaultMatrix()}
	_, err = svc.List(ctx, nobody, shared.ListOptions{})
	require.ErrorIs(t, err, shared.ErrPermissionDenied)
}

func TestSetCapabilityChangesOneCell(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	start := rbac.DefaultMatrix()
	start[rbac.EntityAttendance] = rbac.CapabilitySet{View: true, Create: true, Edit: true}
	start[rbac.EntityRoles] = rbac.CapabilitySet{View: true}
	p, err := svc.Create(ctx, admin, profiles.CreateInput{Name: "Acceso Básico", Matrix: start})
	require.NoError(t, err)

	updated, err := svc.SetCapability(ctx, admin, p.ID, rbac.EntityUsers, rbac.ActionEdit, true)
	require.NoError(t, err)

	want := start.Clone()
	want[rbac.EntityUsers] = rbac.CapabilitySet{Edit: true}
	assert.True(t, updated.Matrix.Equal(want))

	stored, err := svc.MatrixForProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.Equal(want))
}

func TestSetCapabilityUnknownProfile(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.SetCapability(context.Background(), admin, "missing", rbac.EntityUsers, rbac.ActionView, true)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateReplacesMatrix(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, admin, profiles.CreateInput{Name: "Base", Matrix: rbac.FullAccessMatrix()})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, admin, p.ID, profiles.UpdateInput{
		Name:   "Base editado",
		Matrix: rbac.Matrix{rbac.EntityActivities: {View: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Base editado", updated.Name)
	assert.True(t, updated.Matrix.Allows(rbac.EntityActivities, rbac.ActionView))
	assert.False(t, updated.Matrix.Allows(rbac.EntityUsers, rbac.ActionView))
}

func TestDeleteReferencedProfileLeavesEverythingUnchanged(t *testing.T) {
	svc, store, _ := newService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, admin, profiles.CreateInput{Name: "Acceso Total", Matrix: rbac.FullAccessMatrix()})
	require.NoError(t, err)
	_, err = store.Roles().Create(ctx, roles.Role{ID: "r1", Name: "Admin", PermissionID: p.ID})
	require.NoError(t, err)

	err = svc.Delete(ctx, admin, p.ID)
	require.ErrorIs(t, err, shared.ErrReferenced)
	assert.Contains(t, shared.UserSafeMessage(err), "Reasigne")

	stored, err := svc.Get(ctx, admin, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.Matrix.Equal(rbac.FullAccessMatrix()))
	role, err := store.Roles().Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, p.ID, role.PermissionID)
}

func TestDeleteUnreferencedProfile(t *testing.T) {
	svc, _, audit := newService(t)
	ctx := context.Background()
	p, err := svc.Create(ctx, admin, profiles.CreateInput{Name: "Temporal"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, admin, p.ID))

	list, err := svc.List(ctx, admin, shared.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, "profile.delete", audit.logs[len(audit.logs)-1].Action)
}
