package profiles

import (
	"time"

	"github.com/agrocomice/agroaccess/internal/rbac"
)

// Profile is a named, reusable permission matrix.
type Profile struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Matrix      rbac.Matrix `json:"matrix"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// CreateInput is the payload for a new profile. A nil Matrix starts from the
// all-false default.
type CreateInput struct {
	Name        string      `json:"name" validate:"required,max=120"`
	Description string      `json:"description" validate:"max=500"`
	Matrix      rbac.Matrix `json:"matrix"`
}

// UpdateInput replaces name, description and the whole matrix.
type UpdateInput struct {
	Name        string      `json:"name" validate:"required,max=120"`
	Description string      `json:"description" validate:"max=500"`
	Matrix      rbac.Matrix `json:"matrix" validate:"required"`
}
