package profiles

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/agrocomice/agroaccess/internal/platform/httpx"
	"github.com/agrocomice/agroaccess/internal/rbac"
	"github.com/agrocomice/agroaccess/internal/shared"
)

// Handler exposes permission profile endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers profile routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireView(rbac.EntityPermissions))
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireSession)
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Patch("/{id}/matrix/{entity}/{action}", h.setCapability)
		r.Delete("/{id}", h.delete)
	})
}

type capabilityRequest struct {
	Value *bool `json:"value"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	opts := shared.ListOptions{SortBy: r.URL.Query().Get("sort"), SortDir: r.URL.Query().Get("dir")}
	items, err := h.service.List(r.Context(), actor, opts)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": items})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	p, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	var in CreateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	p, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	var in UpdateInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	p, err := h.service.Update(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) setCapability(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	rawEntity, err := url.PathUnescape(chi.URLParam(r, "entity"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid entity")
		return
	}
	entity, ok := rbac.ParseEntity(rawEntity)
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown entity")
		return
	}
	action, ok := rbac.ParseAction(chi.URLParam(r, "action"))
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "unknown action")
		return
	}
	var in capabilityRequest
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if in.Value == nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "value is required")
		return
	}
	p, err := h.service.SetCapability(r.Context(), actor, chi.URLParam(r, "id"), entity, action, *in.Value)
	if err != nil {
		h.fail(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := rbac.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if h.logger != nil {
		h.logger.Warn("permission profile request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
