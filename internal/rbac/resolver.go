package rbac

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"

	"github.com/agrocomice/agroaccess/internal/shared"
)

// Resolution outcomes reported to a ResolutionObserver.
const (
	OutcomeResolved       = "resolved"
	OutcomeRoleMissing    = "role_missing"
	OutcomeProfileMissing = "profile_missing"
	OutcomeError          = "error"
)

// RoleLookup finds the permission profile id referenced by the role with the
// given name. It returns shared.ErrNotFound when no role has that name.
type RoleLookup interface {
	PermissionIDForRole(ctx context.Context, roleName string) (string, error)
}

// ProfileLookup loads a stored matrix by profile id. It returns
// shared.ErrNotFound when the profile does not exist.
type ProfileLookup interface {
	MatrixForProfile(ctx context.Context, id string) (Matrix, error)
}

// ResolutionObserver receives one outcome per resolution.
type ResolutionObserver interface {
	ObserveResolution(outcome string)
}

// Resolver maps a role name to its effective permission matrix.
type Resolver struct {
	roles    RoleLookup
	profiles ProfileLookup
	observer ResolutionObserver
	group    singleflight.Group
}

// NewResolver constructs a Resolver. observer may be nil.
func NewResolver(roles RoleLookup, profiles ProfileLookup, observer ResolutionObserver) *Resolver {
	return &Resolver{roles: roles, profiles: profiles, observer: observer}
}

// ResolvePermissions returns the complete matrix granted to roleName.
// A missing role or a role whose profile no longer exists yields the
// all-false default matrix; only storage failures are returned as errors.
// Every call gets its own copy.
func (r *Resolver) ResolvePermissions(ctx context.Context, roleName string) (Matrix, error) {
	if r == nil {
		return nil, errors.New("rbac: resolver not configured")
	}
	name := norm.NFC.String(roleName)
	// The flight is shared; one caller leaving must not fail the others.
	flightCtx := context.WithoutCancel(ctx)
	res := r.group.DoChan(name, func() (interface{}, error) {
		return r.resolve(flightCtx, name)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-res:
		if out.Err != nil {
			return nil, out.Err
		}
		return out.Val.(Matrix).Clone(), nil
	}
}

func (r *Resolver) resolve(ctx context.Context, roleName string) (Matrix, error) {
	permissionID, err := r.roles.PermissionIDForRole(ctx, roleName)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			r.observe(OutcomeRoleMissing)
			return DefaultMatrix(), nil
		}
		r.observe(OutcomeError)
		return nil, fmt.Errorf("rbac: lookup role %q: %w", roleName, err)
	}
	matrix, err := r.profiles.MatrixForProfile(ctx, permissionID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			r.observe(OutcomeProfileMissing)
			return DefaultMatrix(), nil
		}
		r.observe(OutcomeError)
		return nil, fmt.Errorf("rbac: lookup profile %q: %w", permissionID, err)
	}
	r.observe(OutcomeResolved)
	return Normalize(matrix), nil
}

func (r *Resolver) observe(outcome string) {
	if r.observer != nil {
		r.observer.ObserveResolution(outcome)
	}
}
