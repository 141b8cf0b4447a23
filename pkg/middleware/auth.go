package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/pathwayhq/pathway/pkg/authctx"
	"github.com/pathwayhq/pathway/pkg/claims"
	"github.com/pathwayhq/pathway/pkg/contextkeys"
	"github.com/pathwayhq/pathway/pkg/observability"
)

// Hint cookies synced by the auth middleware
const (
	ActiveSiteCookie = "pw_active_site_id"
	ActiveOrgCookie  = "pw_active_org_id"
)

// ContextBuilder assembles an authorization context from claims and a
// tenant hint
type ContextBuilder interface {
	Build(ctx context.Context, c *claims.Claims, cookieTenantID int64) (*authctx.Context, error)
}

// AuthMiddleware authenticates requests and installs the authorization
// context
type AuthMiddleware struct {
	provider      claims.Provider
	builder       ContextBuilder
	metrics       *observability.Metrics
	logger        *observability.Logger
	cookieMaxAge  time.Duration
	secureCookies bool
}

// NewAuthMiddleware creates the auth middleware. secureCookies should
// be true in production so hint cookies are HTTPS-only.
func NewAuthMiddleware(provider claims.Provider, builder ContextBuilder, metrics *observability.Metrics, logger *observability.Logger, cookieMaxAge time.Duration, secureCookies bool) *AuthMiddleware {
	return &AuthMiddleware{
		provider:      provider,
		builder:       builder,
		metrics:       metrics,
		logger:        logger,
		cookieMaxAge:  cookieMaxAge,
		secureCookies: secureCookies,
	}
}

// Handler wraps an HTTP handler with authentication and tenant-scope
// resolution
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := claims.BearerToken(r)
		if err != nil {
			m.metrics.AuthAttemptsTotal.WithLabelValues(observability.AuthOutcomeUnauthenticated).Inc()
			m.unauthorizedResponse(w, "missing bearer credential")
			return
		}

		c, err := m.provider.Extract(r.Context(), token)
		if err != nil {
			m.metrics.AuthAttemptsTotal.WithLabelValues(observability.AuthOutcomeUnauthenticated).Inc()
			m.unauthorizedResponse(w, "invalid credential")
			return
		}

		authCtx, err := m.builder.Build(r.Context(), c, cookieTenantHint(r))
		if err != nil {
			switch {
			case errors.Is(err, authctx.ErrUnauthenticated):
				m.metrics.AuthAttemptsTotal.WithLabelValues(observability.AuthOutcomeUnauthenticated).Inc()
				m.unauthorizedResponse(w, "unauthenticated")
			case authctx.IsStoreUnavailable(err):
				m.metrics.AuthAttemptsTotal.WithLabelValues(observability.AuthOutcomeStoreError).Inc()
				m.logger.WithError(err).Error("store unavailable during context build")
				errorResponse(w, http.StatusServiceUnavailable, "service temporarily unavailable")
			default:
				m.metrics.AuthAttemptsTotal.WithLabelValues(observability.AuthOutcomeInternal).Inc()
				m.logger.WithError(err).Error("context build failed")
				errorResponse(w, http.StatusInternalServerError, "internal error")
			}
			return
		}

		m.metrics.AuthAttemptsTotal.WithLabelValues(observability.AuthOutcomeOK).Inc()
		m.metrics.ScopeResolutionsTotal.WithLabelValues(string(authCtx.Tier)).Inc()

		m.syncScopeCookies(w, r, authCtx)

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		ctx = contextkeys.WithUserID(ctx, strconv.FormatInt(authCtx.UserID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// syncScopeCookies rewrites the hint cookies when the resolved tenant
// moved. Skipped for cancelled requests so an aborted resolution never
// sticks.
func (m *AuthMiddleware) syncScopeCookies(w http.ResponseWriter, r *http.Request, authCtx *authctx.Context) {
	if !authCtx.CookieStale || authCtx.Tenant.ID == 0 {
		return
	}
	if r.Context().Err() != nil {
		return
	}

	maxAge := int(m.cookieMaxAge.Seconds())
	http.SetCookie(w, m.scopeCookie(ActiveSiteCookie, authCtx.Tenant.ID, maxAge))
	http.SetCookie(w, m.scopeCookie(ActiveOrgCookie, authCtx.Org.ID, maxAge))
	m.metrics.CookieWritesTotal.Inc()
}

func (m *AuthMiddleware) scopeCookie(name string, id int64, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    strconv.FormatInt(id, 10),
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// cookieTenantHint reads the active-site cookie, 0 when absent or not
// a number
func cookieTenantHint(r *http.Request) int64 {
	cookie, err := r.Cookie(ActiveSiteCookie)
	if err != nil {
		return 0
	}
	id, err := strconv.ParseInt(cookie.Value, 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// GetAuthContext extracts the authorization context from a request
func GetAuthContext(r *http.Request) *authctx.Context {
	v := r.Context().Value(contextkeys.AuthKey)
	if v == nil {
		return nil
	}
	authCtx, ok := v.(*authctx.Context)
	if !ok {
		return nil
	}
	return authCtx
}

func (m *AuthMiddleware) unauthorizedResponse(w http.ResponseWriter, message string) {
	errorResponse(w, http.StatusUnauthorized, message)
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}
