package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserSafeMessageDistinguishesOutcomes(t *testing.T) {
	denied := UserSafeMessage(fmt.Errorf("%w: Roles.create", ErrPermissionDenied))
	referenced := UserSafeMessage(fmt.Errorf("roles: delete: %w", ErrReferenced))
	generic := UserSafeMessage(errors.New("dial tcp: connection refused"))

	assert.Contains(t, denied, "Acceso denegado")
	assert.Contains(t, referenced, "Reasigne")
	assert.NotEqual(t, denied, referenced)
	assert.NotEqual(t, referenced, generic)
	assert.NotContains(t, generic, "connection refused")
	assert.Empty(t, UserSafeMessage(nil))
}

func TestUserSafeMessageKeepsValidationDetail(t *testing.T) {
	err := fmt.Errorf("%w: name is required", ErrValidation)
	assert.Equal(t, "validation failed: name is required", UserSafeMessage(err))
}
