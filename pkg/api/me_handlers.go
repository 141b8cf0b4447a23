package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pathwayhq/pathway/pkg/middleware"
	"github.com/pathwayhq/pathway/pkg/observability"
	"github.com/pathwayhq/pathway/pkg/scope"
)

// MeHandlers exposes the resolved authorization context to clients
type MeHandlers struct {
	logger *observability.Logger
}

// NewMeHandlers creates a new MeHandlers
func NewMeHandlers(logger *observability.Logger) *MeHandlers {
	return &MeHandlers{logger: logger}
}

// RegisterRoutes registers the identity routes
func (h *MeHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/me", h.GetMe).Methods("GET")
}

// MeResponse is the client view of the resolved scope
type MeResponse struct {
	UserID      int64          `json:"user_id"`
	Email       string         `json:"email"`
	DisplayName string         `json:"display_name"`
	Org         *MeOrg         `json:"organization,omitempty"`
	Tenant      *MeTenant      `json:"site,omitempty"`
	SiteRole    string         `json:"site_role,omitempty"`
	Roles       scope.RoleSets `json:"roles"`
}

// MeOrg is the org portion of MeResponse
type MeOrg struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
}

// MeTenant is the site portion of MeResponse
type MeTenant struct {
	ID    int64 `json:"id"`
	OrgID int64 `json:"organization_id"`
}

// GetMe returns the caller's resolved identity and scope
func (h *MeHandlers) GetMe(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	resp := MeResponse{
		UserID:   authCtx.UserID,
		SiteRole: string(authCtx.SiteRole),
		Roles:    authCtx.Roles,
	}
	if authCtx.User != nil {
		resp.Email = authCtx.User.Email
		resp.DisplayName = authCtx.User.DisplayName
	}
	if authCtx.Org.ID != 0 {
		resp.Org = &MeOrg{ID: authCtx.Org.ID, Slug: authCtx.Org.Slug}
	}
	if authCtx.Tenant.ID != 0 {
		resp.Tenant = &MeTenant{ID: authCtx.Tenant.ID, OrgID: authCtx.Tenant.OrgID}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
