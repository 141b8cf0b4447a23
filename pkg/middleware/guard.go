package middleware

import "net/http"

// RequireTenantRole gates a handler on the tenant role set: the
// request passes when any of the given labels is present for the
// resolved tenant. An empty tenant scope is an ordinary denial.
func RequireTenantRole(labels ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				errorResponse(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !authCtx.HasTenantRole(labels...) {
				errorResponse(w, http.StatusForbidden, "insufficient tenant permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireOrgRole gates a handler on the org role set
func RequireOrgRole(labels ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				errorResponse(w, http.StatusUnauthorized, "authentication required")
				return
			}

			if !authCtx.HasOrgRole(labels...) {
				errorResponse(w, http.StatusForbidden, "insufficient organization permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireTenantScope rejects requests that resolved no tenant at all.
// Use it on endpoints that read or write tenant-scoped data.
func RequireTenantScope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := GetAuthContext(r)
		if authCtx == nil {
			errorResponse(w, http.StatusUnauthorized, "authentication required")
			return
		}

		if !authCtx.HasTenantScope() {
			errorResponse(w, http.StatusForbidden, "no tenant scope resolved")
			return
		}

		next.ServeHTTP(w, r)
	})
}
