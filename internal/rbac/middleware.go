package rbac

import (
	"log/slog"
	"net/http"

	"github.com/agrocomice/agroaccess/internal/platform/httpx"
)

// DenialObserver is notified of every navigation denial.
type DenialObserver interface {
	ObserveDenial(entity, action string)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Logger   *slog.Logger
	Observer DenialObserver
}

// RequireSession rejects requests without a signed-in principal.
func (m Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireView guards a navigation surface. Without view on entity the request
// is redirected to the home page silently.
func (m Middleware) RequireView(entity Entity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if ok && principal.Can(entity, ActionView) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Observer != nil {
				m.Observer.ObserveDenial(string(entity), string(ActionView))
			}
			if m.Logger != nil {
				m.Logger.Debug("rbac hide surface", slog.String("entity", string(entity)), slog.String("path", r.URL.Path))
			}
			http.Redirect(w, r, "/", http.StatusSeeOther)
		})
	}
}
