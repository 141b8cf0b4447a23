package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pathwayhq/pathway/pkg/authctx"
	"github.com/pathwayhq/pathway/pkg/contextkeys"
	"github.com/pathwayhq/pathway/pkg/scope"
)

func requestWithAuth(authCtx *authctx.Context) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authCtx != nil {
		req = req.WithContext(contextkeys.WithAuth(req.Context(), authCtx))
	}
	return req
}

func TestRequireTenantRole(t *testing.T) {
	tests := []struct {
		name       string
		authCtx    *authctx.Context
		required   []string
		wantStatus int
	}{
		{
			name:       "no auth context",
			authCtx:    nil,
			required:   []string{scope.TenantStaffLabel},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "role present",
			authCtx:    &authctx.Context{Roles: scope.RoleSets{Tenant: []string{scope.TenantStaffLabel}}},
			required:   []string{scope.TenantStaffLabel},
			wantStatus: http.StatusOK,
		},
		{
			name:       "any of several suffices",
			authCtx:    &authctx.Context{Roles: scope.RoleSets{Tenant: []string{scope.TenantStaffLabel}}},
			required:   []string{scope.TenantAdminLabel, scope.TenantStaffLabel},
			wantStatus: http.StatusOK,
		},
		{
			name:       "staff cannot pass an admin gate",
			authCtx:    &authctx.Context{Roles: scope.RoleSets{Tenant: []string{scope.TenantStaffLabel}}},
			required:   []string{scope.TenantAdminLabel},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "empty tenant scope denied",
			authCtx:    &authctx.Context{},
			required:   []string{scope.TenantStaffLabel},
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			okay, _ := okHandler()
			rec := httptest.NewRecorder()
			RequireTenantRole(tt.required...)(okay).ServeHTTP(rec, requestWithAuth(tt.authCtx))
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestRequireOrgRole(t *testing.T) {
	authCtx := &authctx.Context{Roles: scope.RoleSets{Org: []string{scope.OrgSupportLabel}}}

	okay, _ := okHandler()
	rec := httptest.NewRecorder()
	RequireOrgRole(scope.OrgAdminLabel)(okay).ServeHTTP(rec, requestWithAuth(authCtx))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	RequireOrgRole(scope.OrgAdminLabel, scope.OrgSupportLabel)(okay).ServeHTTP(rec, requestWithAuth(authCtx))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireTenantScope(t *testing.T) {
	okay, _ := okHandler()

	rec := httptest.NewRecorder()
	RequireTenantScope(okay).ServeHTTP(rec, requestWithAuth(&authctx.Context{}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	RequireTenantScope(okay).ServeHTTP(rec, requestWithAuth(&authctx.Context{Tenant: authctx.Tenant{ID: 10}}))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextkeys.GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	// a supplied ID is preserved
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", seen)
}
