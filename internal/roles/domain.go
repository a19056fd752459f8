package roles

import (
	"time"

	"github.com/agrocomice/agroaccess/internal/profiles"
)

// Role is a named role pointing at exactly one permission profile. Users
// reference roles by Name.
type Role struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	PermissionID string    `json:"permissionId"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Input is the payload for creating or editing a role.
type Input struct {
	Name         string `json:"name" validate:"required,max=80"`
	Description  string `json:"description" validate:"max=500"`
	PermissionID string `json:"permissionId" validate:"required"`
}

// FormOptions feeds the role editor: current roles plus the profiles a role
// can point at.
type FormOptions struct {
	Roles    []Role             `json:"roles"`
	Profiles []profiles.Profile `json:"profiles"`
}
