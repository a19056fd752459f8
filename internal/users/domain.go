package users

import (
	"fmt"
	"strings"
	"time"

	"github.com/agrocomice/agroaccess/internal/shared"
)

// User represents an application account. Role holds a role name, not an id.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Avatar       string    `json:"avatar,omitempty"`
	Active       bool      `json:"active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CreateInput is the payload for a new user.
type CreateInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Role     string `json:"role" validate:"required,max=80"`
	Avatar   string `json:"avatar" validate:"omitempty,url,max=500"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// UpdateInput edits a user. A blank Password keeps the stored hash; a nil
// Active keeps the current state.
type UpdateInput struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Role     string `json:"role" validate:"required,max=80"`
	Avatar   string `json:"avatar" validate:"omitempty,url,max=500"`
	Password string `json:"password" validate:"omitempty,min=6,max=72"`
	Active   *bool  `json:"active"`
}

// RemovalMode selects what removing a user does.
type RemovalMode string

const (
	// RemovalDeactivate keeps the row and clears the active flag.
	RemovalDeactivate RemovalMode = "deactivate"
	// RemovalDelete deletes the row.
	RemovalDelete RemovalMode = "delete"
)

// ParseRemovalMode validates a configured removal mode. Empty means deactivate.
func ParseRemovalMode(raw string) (RemovalMode, error) {
	switch RemovalMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", RemovalDeactivate:
		return RemovalDeactivate, nil
	case RemovalDelete:
		return RemovalDelete, nil
	default:
		return "", fmt.Errorf("%w: unknown user removal mode %q", shared.ErrValidation, raw)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
