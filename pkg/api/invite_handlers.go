package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/pathwayhq/pathway/pkg/directory"
	"github.com/pathwayhq/pathway/pkg/invites"
	"github.com/pathwayhq/pathway/pkg/middleware"
	"github.com/pathwayhq/pathway/pkg/observability"
	"github.com/pathwayhq/pathway/pkg/scope"
)

// InviteService is the invite operations the handlers depend on
type InviteService interface {
	CreateInvite(ctx context.Context, params invites.CreateParams) (*invites.Invite, error)
	GetByToken(ctx context.Context, token string) (*invites.Invite, error)
	ListForOrg(ctx context.Context, orgID int64) ([]*invites.Invite, error)
	Revoke(ctx context.Context, orgID, id int64) error
	Accept(ctx context.Context, token string, userID int64, userEmail string) (*invites.Invite, error)
}

// InviteHandlers handles invite management HTTP requests
type InviteHandlers struct {
	service InviteService
	logger  *observability.Logger
}

// NewInviteHandlers creates a new InviteHandlers
func NewInviteHandlers(service InviteService, logger *observability.Logger) *InviteHandlers {
	return &InviteHandlers{service: service, logger: logger}
}

// RegisterRoutes registers invite routes. Management routes require
// the org admin role; accepting only requires authentication.
func (h *InviteHandlers) RegisterRoutes(router *mux.Router) {
	admin := middleware.RequireOrgRole(scope.OrgAdminLabel)

	router.Handle("/orgs/{id}/invites", admin(http.HandlerFunc(h.CreateInvite))).Methods("POST")
	router.Handle("/orgs/{id}/invites", admin(http.HandlerFunc(h.ListInvites))).Methods("GET")
	router.Handle("/orgs/{id}/invites/{invite_id}", admin(http.HandlerFunc(h.RevokeInvite))).Methods("DELETE")

	router.HandleFunc("/invites/{token}", h.GetInvite).Methods("GET")
	router.HandleFunc("/invites/{token}/accept", h.AcceptInvite).Methods("POST")
}

// CreateInviteRequest is the invite creation payload
type CreateInviteRequest struct {
	Email    string  `json:"email"`
	OrgRole  string  `json:"org_role"`
	SiteRole string  `json:"site_role,omitempty"`
	SiteIDs  []int64 `json:"site_ids,omitempty"`
}

// CreateInvite issues an invite for the caller's organization
func (h *InviteHandlers) CreateInvite(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	orgID, ok := h.pathOrgID(w, r)
	if !ok {
		return
	}
	if authCtx.Org.ID != orgID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req CreateInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.OrgRole == "" {
		http.Error(w, "email and org_role are required", http.StatusBadRequest)
		return
	}
	orgRole := directory.OrgRole(req.OrgRole)
	if !orgRole.Valid() {
		http.Error(w, "unknown org_role", http.StatusBadRequest)
		return
	}
	siteRole := directory.SiteRole(req.SiteRole)
	if req.SiteRole != "" && !siteRole.Valid() {
		http.Error(w, "unknown site_role", http.StatusBadRequest)
		return
	}

	userID := authCtx.UserID
	invite, err := h.service.CreateInvite(r.Context(), invites.CreateParams{
		OrgID:     orgID,
		Email:     req.Email,
		OrgRole:   orgRole,
		SiteRole:  siteRole,
		SiteIDs:   req.SiteIDs,
		InvitedBy: &userID,
	})
	if err != nil {
		h.logger.WithError(err).Error("failed to create invite")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(invite)
}

// ListInvites lists the organization's pending invites
func (h *InviteHandlers) ListInvites(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	orgID, ok := h.pathOrgID(w, r)
	if !ok {
		return
	}
	if authCtx.Org.ID != orgID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	list, err := h.service.ListForOrg(r.Context(), orgID)
	if err != nil {
		h.logger.WithError(err).Error("failed to list invites")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// RevokeInvite revokes a pending invite
func (h *InviteHandlers) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	orgID, ok := h.pathOrgID(w, r)
	if !ok {
		return
	}
	if authCtx.Org.ID != orgID {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	inviteID, err := strconv.ParseInt(mux.Vars(r)["invite_id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid invite ID", http.StatusBadRequest)
		return
	}

	if err := h.service.Revoke(r.Context(), orgID, inviteID); err != nil {
		if invErr := invites.AsInviteError(err); invErr != nil {
			http.Error(w, invErr.Reason, http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("failed to revoke invite")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// InvitePreview is the client view of an invite before acceptance
type InvitePreview struct {
	OrgID     int64          `json:"organization_id"`
	Email     string         `json:"email"`
	OrgRole   string         `json:"org_role"`
	SiteRole  string         `json:"site_role"`
	Status    invites.Status `json:"status"`
	ExpiresAt time.Time      `json:"expires_at"`
}

// GetInvite returns the invite behind a token so clients can render the
// acceptance screen
func (h *InviteHandlers) GetInvite(w http.ResponseWriter, r *http.Request) {
	invite, err := h.service.GetByToken(r.Context(), mux.Vars(r)["token"])
	if err != nil {
		if invErr := invites.AsInviteError(err); invErr != nil {
			http.Error(w, invErr.Reason, http.StatusNotFound)
			return
		}
		h.logger.WithError(err).Error("failed to load invite")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(InvitePreview{
		OrgID:     invite.OrgID,
		Email:     invite.Email,
		OrgRole:   string(invite.OrgRole),
		SiteRole:  string(invite.SiteRole),
		Status:    invite.Status(time.Now()),
		ExpiresAt: invite.ExpiresAt,
	})
}

// AcceptInvite applies an invite's grants to the calling user
func (h *InviteHandlers) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil || authCtx.User == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token := mux.Vars(r)["token"]
	invite, err := h.service.Accept(r.Context(), token, authCtx.UserID, authCtx.User.Email)
	if err != nil {
		if invErr := invites.AsInviteError(err); invErr != nil {
			http.Error(w, invErr.Reason, http.StatusUnprocessableEntity)
			return
		}
		h.logger.WithError(err).Error("failed to accept invite")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(invite)
}

func (h *InviteHandlers) pathOrgID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	orgID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "Invalid organization ID", http.StatusBadRequest)
		return 0, false
	}
	return orgID, true
}
