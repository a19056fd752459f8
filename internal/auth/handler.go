package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agrocomice/agroaccess/internal/platform/httpx"
	"github.com/agrocomice/agroaccess/internal/rbac"
	"github.com/agrocomice/agroaccess/internal/shared"
	"github.com/agrocomice/agroaccess/internal/users"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      shared.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/session", h.showSession)
	r.Post("/session/refresh", h.handleRefresh)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *users.User `json:"user,omitempty"`
	Role          string      `json:"role,omitempty"`
	Permissions   rbac.Matrix `json:"permissions,omitempty"`
	CSRFToken     string      `json:"csrf_token"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during login")
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := shared.ValidateStruct(h.validator, req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, principal, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("login rejected", slog.String("email", req.Email), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.sessionManager.Renew(sess)
	if err := rbac.StorePrincipal(sess, principal); err != nil {
		h.logger.Error("store principal", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.respondSession(w, r, sess, &user, principal)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		rbac.ClearPrincipal(sess)
		h.sessionManager.Destroy(sess)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) showSession(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	principal, ok := rbac.PrincipalFromSession(sess)
	if !ok {
		token, _ := h.csrfManager.EnsureToken(r.Context(), sess)
		httpx.JSON(w, http.StatusOK, sessionResponse{CSRFToken: token})
		return
	}
	h.respondSession(w, r, sess, nil, principal)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	current, ok := rbac.PrincipalFromSession(sess)
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
		return
	}
	user, principal, err := h.service.Refresh(r.Context(), current.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			rbac.ClearPrincipal(sess)
		}
		httpx.RespondError(w, err)
		return
	}
	if err := rbac.StorePrincipal(sess, principal); err != nil {
		h.logger.Error("store principal", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	h.respondSession(w, r, sess, &user, principal)
}

func (h *Handler) respondSession(w http.ResponseWriter, r *http.Request, sess *shared.Session, user *users.User, principal rbac.Principal) {
	token, err := h.csrfManager.EnsureToken(r.Context(), sess)
	if err != nil {
		h.logger.Warn("ensure csrf token", slog.Any("error", err))
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{
		Authenticated: true,
		User:          user,
		Role:          principal.Role,
		Permissions:   principal.Permissions,
		CSRFToken:     token,
	})
}
