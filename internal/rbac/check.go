package rbac

import (
	"fmt"

	"github.com/agrocomice/agroaccess/internal/shared"
)

// Require returns nil when m grants action on entity and an error wrapping
// shared.ErrPermissionDenied otherwise. Mutations must call it before
// touching storage so a denial is never mistaken for success.
func Require(m Matrix, entity Entity, action Action) error {
	if m.Allows(entity, action) {
		return nil
	}
	return &DeniedError{Entity: entity, Action: action}
}

// DeniedError reports which capability was missing.
type DeniedError struct {
	Entity Entity
	Action Action
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s: %s.%s", shared.ErrPermissionDenied, e.Entity, e.Action)
}

// Unwrap lets errors.Is match shared.ErrPermissionDenied.
func (e *DeniedError) Unwrap() error {
	return shared.ErrPermissionDenied
}

// Authorize is Require against the principal's matrix.
func (p Principal) Authorize(entity Entity, action Action) error {
	return Require(p.Permissions, entity, action)
}
