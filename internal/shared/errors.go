package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrPermissionDenied indicates the actor's permission matrix does not grant the action.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrReferenced indicates a delete was rejected because other records still point to the target.
	ErrReferenced = errors.New("record still referenced")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrDuplicate indicates a uniqueness violation.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// UserSafeMessage turns an error into a notice that can be shown to the operator.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Acceso denegado: no tiene permisos para realizar esta acción."
	case errors.Is(err, ErrReferenced):
		return "No se puede eliminar: el registro está en uso. Reasigne los registros asociados primero."
	case errors.Is(err, ErrNotFound):
		return "El registro solicitado no existe."
	case errors.Is(err, ErrDuplicate):
		return "Ya existe un registro con ese nombre."
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrInvalidCredentials):
		return "Email o contraseña inválidos."
	default:
		return "Ocurrió un error inesperado."
	}
}
