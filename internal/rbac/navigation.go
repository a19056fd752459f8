package rbac

import (
	"net/http"

	"github.com/agrocomice/agroaccess/internal/platform/httpx"
)

type menuEntry struct {
	Entity       Entity        `json:"entity"`
	Capabilities CapabilitySet `json:"capabilities"`
}

type menuResponse struct {
	Authenticated bool        `json:"authenticated"`
	Role          string      `json:"role,omitempty"`
	Entries       []menuEntry `json:"entries"`
}

// NavigationHandler serves the menu built from the session principal and the
// entity registry.
type NavigationHandler struct{}

// NewNavigationHandler builds a NavigationHandler.
func NewNavigationHandler() *NavigationHandler {
	return &NavigationHandler{}
}

// Menu responds with the entities the signed-in principal may view. Anonymous
// sessions get an empty menu.
func (h *NavigationHandler) Menu(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		httpx.JSON(w, http.StatusOK, menuResponse{Entries: []menuEntry{}})
		return
	}
	resp := menuResponse{Authenticated: true, Role: principal.Role, Entries: []menuEntry{}}
	for _, e := range principal.Permissions.Visible() {
		resp.Entries = append(resp.Entries, menuEntry{Entity: e, Capabilities: principal.Permissions[e]})
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// Registry responds with every registered entity and the action columns.
func (h *NavigationHandler) Registry(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entities": Entities(),
		"actions":  Actions(),
	})
}
