// Package seed installs the default permission profiles, roles and accounts.
// Applying it twice is a no-op: records that already exist are left alone.
package seed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/agrocomice/agroaccess/internal/profiles"
	"github.com/agrocomice/agroaccess/internal/rbac"
	"github.com/agrocomice/agroaccess/internal/roles"
	"github.com/agrocomice/agroaccess/internal/shared"
	"github.com/agrocomice/agroaccess/internal/users"
)

// Profile ids of the defaults.
const (
	ProfileFullAccess  = "p1"
	ProfileBasicAccess = "p2"
)

// Target is where the defaults are written.
type Target struct {
	Profiles profiles.Repository
	Roles    roles.Repository
	Users    users.Repository
}

// Options tweaks account creation.
type Options struct {
	// Password is given to every seeded account. Empty skips accounts.
	Password string
	// HashCost defaults to bcrypt.DefaultCost.
	HashCost int
	Now      func() time.Time
}

// Result counts what was inserted.
type Result struct {
	Profiles int
	Roles    int
	Users    int
}

// BasicMatrix is the limited-operation profile given to field staff.
func BasicMatrix() rbac.Matrix {
	m := rbac.DefaultMatrix()
	m[rbac.EntityUsers] = rbac.CapabilitySet{View: true}
	m[rbac.EntityRoles] = rbac.CapabilitySet{View: true}
	m[rbac.EntityAttendance] = rbac.CapabilitySet{View: true, Create: true, Edit: true}
	m[rbac.EntityAITools] = rbac.CapabilitySet{View: true, Create: true}
	return m
}

// DefaultProfiles returns the two stock profiles.
func DefaultProfiles() []profiles.Profile {
	return []profiles.Profile{
		{ID: ProfileFullAccess, Name: "Acceso Total", Description: "Control total del sistema", Matrix: rbac.FullAccessMatrix()},
		{ID: ProfileBasicAccess, Name: "Acceso Básico", Description: "Solo visualización y operación limitada", Matrix: BasicMatrix()},
	}
}

// DefaultRoles returns the stock roles.
func DefaultRoles() []roles.Role {
	return []roles.Role{
		{ID: "r1", Name: "Admin", Description: "Administrador General", PermissionID: ProfileFullAccess},
		{ID: "r2", Name: "Supervisor", Description: "Gestión de personal", PermissionID: ProfileFullAccess},
		{ID: "r4", Name: "Agrónomo", Description: "Especialista técnico", PermissionID: ProfileBasicAccess},
		{ID: "r3", Name: "Trabajador", Description: "Personal de campo", PermissionID: ProfileBasicAccess},
	}
}

// DefaultUsers returns the stock accounts without password hashes.
func DefaultUsers() []users.User {
	return []users.User{
		{ID: "1", Name: "Alfonso Quijano", Email: "alfonso@agrocomice.cl", Role: "Supervisor", Avatar: "https://picsum.photos/200"},
		{ID: "2", Name: "Ana Maza", Email: "ana@agrocomice.cl", Role: "Admin", Avatar: "https://picsum.photos/201"},
		{ID: "4", Name: "Felipe", Email: "felipe@agrocomice.cl", Role: "Trabajador", Avatar: "https://picsum.photos/203"},
		{ID: "3", Name: "Carlos Ruiz", Email: "carlos@agrocomice.cl", Role: "Trabajador", Avatar: "https://picsum.photos/202"},
	}
}

// Apply inserts whatever defaults are missing. Profiles go first so role
// references always resolve.
func Apply(ctx context.Context, t Target, opts Options) (Result, error) {
	now := time.Now().UTC()
	if opts.Now != nil {
		now = opts.Now()
	}
	var res Result

	for _, p := range DefaultProfiles() {
		_, err := t.Profiles.Get(ctx, p.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return res, fmt.Errorf("seed: profile %s: %w", p.Name, err)
		}
		p.CreatedAt, p.UpdatedAt = now, now
		if _, err := t.Profiles.Create(ctx, p); err != nil {
			return res, fmt.Errorf("seed: create profile %s: %w", p.Name, err)
		}
		res.Profiles++
	}

	for _, r := range DefaultRoles() {
		_, err := t.Roles.FindByName(ctx, r.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return res, fmt.Errorf("seed: role %s: %w", r.Name, err)
		}
		r.CreatedAt, r.UpdatedAt = now, now
		if _, err := t.Roles.Create(ctx, r); err != nil {
			return res, fmt.Errorf("seed: create role %s: %w", r.Name, err)
		}
		res.Roles++
	}

	if opts.Password == "" {
		return res, nil
	}
	cost := opts.HashCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), cost)
	if err != nil {
		return res, fmt.Errorf("seed: hash password: %w", err)
	}
	for _, u := range DefaultUsers() {
		_, err := t.Users.FindByEmail(ctx, u.Email)
		if err == nil {
			continue
		}
		if !errors.Is(err, shared.ErrNotFound) {
			return res, fmt.Errorf("seed: user %s: %w", u.Email, err)
		}
		u.Active = true
		u.PasswordHash = string(hash)
		u.CreatedAt, u.UpdatedAt = now, now
		if _, err := t.Users.Create(ctx, u); err != nil {
			return res, fmt.Errorf("seed: create user %s: %w", u.Email, err)
		}
		res.Users++
	}
	return res, nil
}
