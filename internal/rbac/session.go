package rbac

import (
	"context"
	"fmt"

	"github.com/agrocomice/agroaccess/internal/shared"
)

const (
	sessionRoleKey        = "role"
	sessionPermissionsKey = "permissions"
)

// StorePrincipal caches the signed-in principal and its resolved matrix in the
// session. The matrix stays as stored until the next sign-in or explicit refresh.
func StorePrincipal(sess *shared.Session, p Principal) error {
	if sess == nil {
		return fmt.Errorf("rbac: session missing")
	}
	data, err := MarshalMatrix(p.Permissions)
	if err != nil {
		return err
	}
	sess.SetUser(p.UserID)
	sess.Set(sessionRoleKey, p.Role)
	sess.Set(sessionPermissionsKey, string(data))
	return nil
}

// ClearPrincipal removes the cached principal from the session.
func ClearPrincipal(sess *shared.Session) {
	if sess == nil {
		return
	}
	sess.SetUser("")
	sess.Delete(sessionRoleKey)
	sess.Delete(sessionPermissionsKey)
}

// PrincipalFromSession rebuilds the principal cached by StorePrincipal. The
// second result is false when nobody is signed in.
func PrincipalFromSession(sess *shared.Session) (Principal, bool) {
	if sess == nil || sess.User() == "" {
		return Principal{}, false
	}
	matrix, err := UnmarshalMatrix([]byte(sess.Get(sessionPermissionsKey)))
	if err != nil {
		matrix = DefaultMatrix()
	}
	return Principal{UserID: sess.User(), Role: sess.Get(sessionRoleKey), Permissions: matrix}, true
}

// PrincipalFromContext reads the principal from the request session.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	return PrincipalFromSession(shared.SessionFromContext(ctx))
}
