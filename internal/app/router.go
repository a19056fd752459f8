package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/agrocomice/agroaccess/internal/auth"
	"github.com/agrocomice/agroaccess/internal/observability"
	"github.com/agrocomice/agroaccess/internal/platform/httpx"
	"github.com/agrocomice/agroaccess/internal/profiles"
	"github.com/agrocomice/agroaccess/internal/rbac"
	"github.com/agrocomice/agroaccess/internal/roles"
	"github.com/agrocomice/agroaccess/internal/shared"
	"github.com/agrocomice/agroaccess/internal/users"
	"github.com/agrocomice/agroaccess/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	SessionManager    *shared.SessionManager
	CSRFManager       *shared.CSRFManager
	AuthHandler       *auth.Handler
	UsersHandler      *users.Handler
	RolesHandler      *roles.Handler
	ProfilesHandler   *profiles.Handler
	NavigationHandler *rbac.NavigationHandler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
	// AccessLog enables chi's request logger.
	AccessLog bool
	RateLimit int
}

// NewRouter constructs the chi.Router with agroaccess defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
		RateLimit:      params.RateLimit,
	}) {
		r.Use(mw)
	}
	if params.AccessLog {
		r.Use(chimw.Logger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	nav := params.NavigationHandler
	if nav == nil {
		nav = rbac.NewNavigationHandler()
	}
	r.Get("/", nav.Menu)

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/api", func(r chi.Router) {
		r.Get("/entities", nav.Registry)
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		if params.ProfilesHandler != nil {
			r.Route("/permissions", params.ProfilesHandler.MountRoutes)
		}
	})

	return r
}
