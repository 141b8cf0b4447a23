package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwayhq/pathway/pkg/authctx"
	"github.com/pathwayhq/pathway/pkg/claims"
	"github.com/pathwayhq/pathway/pkg/observability"
	"github.com/pathwayhq/pathway/pkg/scope"
)

type fakeProvider struct {
	claims *claims.Claims
	err    error
}

func (p *fakeProvider) Extract(ctx context.Context, rawToken string) (*claims.Claims, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.claims, nil
}

type fakeBuilder struct {
	tenantID int64
	orgID    int64
	err      error
	hints    []int64
}

func (b *fakeBuilder) Build(ctx context.Context, c *claims.Claims, cookieTenantID int64) (*authctx.Context, error) {
	b.hints = append(b.hints, cookieTenantID)
	if b.err != nil {
		return nil, b.err
	}
	return &authctx.Context{
		UserID:      1,
		Org:         authctx.Org{ID: b.orgID, Slug: "st-marks"},
		Tenant:      authctx.Tenant{ID: b.tenantID, OrgID: b.orgID},
		Roles:       scope.RoleSets{Tenant: []string{scope.TenantStaffLabel}},
		Claims:      c,
		Tier:        scope.TierSiteMembership,
		CookieStale: cookieTenantID != b.tenantID,
	}, nil
}

func newTestAuthMiddleware(provider claims.Provider, builder ContextBuilder, secure bool) *AuthMiddleware {
	return NewAuthMiddleware(
		provider,
		builder,
		observability.NewMetrics(prometheus.NewRegistry()),
		observability.NewLogger(observability.ErrorLevel, io.Discard),
		30*24*time.Hour,
		secure,
	)
}

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestAuthMiddlewareInstallsContextAndCookies(t *testing.T) {
	provider := &fakeProvider{claims: &claims.Claims{Provider: "oidc", Subject: "sub-1"}}
	builder := &fakeBuilder{tenantID: 10, orgID: 5}
	mw := newTestAuthMiddleware(provider, builder, false)

	var seen *authctx.Context
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetAuthContext(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, int64(10), seen.Tenant.ID)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)
	byName := map[string]*http.Cookie{}
	for _, c := range cookies {
		byName[c.Name] = c
	}
	site := byName[ActiveSiteCookie]
	require.NotNil(t, site)
	assert.Equal(t, "10", site.Value)
	assert.True(t, site.HttpOnly)
	assert.False(t, site.Secure)
	assert.Equal(t, http.SameSiteLaxMode, site.SameSite)
	assert.Equal(t, "/", site.Path)
	assert.Equal(t, int(30*24*time.Hour/time.Second), site.MaxAge)

	org := byName[ActiveOrgCookie]
	require.NotNil(t, org)
	assert.Equal(t, "5", org.Value)
}

func TestAuthMiddlewareCookieIdempotence(t *testing.T) {
	provider := &fakeProvider{claims: &claims.Claims{Provider: "oidc", Subject: "sub-1"}}
	builder := &fakeBuilder{tenantID: 10, orgID: 5}
	mw := newTestAuthMiddleware(provider, builder, false)

	okay, _ := okHandler()
	handler := mw.Handler(okay)

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.Header.Set("Authorization", "Bearer some-token")
	firstRec := httptest.NewRecorder()
	handler.ServeHTTP(firstRec, first)
	require.Len(t, firstRec.Result().Cookies(), 2)

	// replay with the cookie from the first response: same resolution,
	// no further cookie writes
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.Header.Set("Authorization", "Bearer some-token")
	for _, c := range firstRec.Result().Cookies() {
		second.AddCookie(c)
	}
	secondRec := httptest.NewRecorder()
	handler.ServeHTTP(secondRec, second)

	assert.Empty(t, secondRec.Result().Cookies())
	assert.Equal(t, []int64{0, 10}, builder.hints)
}

func TestAuthMiddlewareSecureCookiesInProduction(t *testing.T) {
	provider := &fakeProvider{claims: &claims.Claims{Provider: "oidc", Subject: "sub-1"}}
	builder := &fakeBuilder{tenantID: 10, orgID: 5}
	mw := newTestAuthMiddleware(provider, builder, true)

	okay, _ := okHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	mw.Handler(okay).ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		assert.True(t, c.Secure)
	}
}

func TestAuthMiddlewareNoCookiesWithoutTenant(t *testing.T) {
	provider := &fakeProvider{claims: &claims.Claims{Provider: "oidc", Subject: "sub-1"}}
	builder := &fakeBuilder{tenantID: 0, orgID: 0}
	mw := newTestAuthMiddleware(provider, builder, false)

	okay, called := okHandler()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	rec := httptest.NewRecorder()
	mw.Handler(okay).ServeHTTP(rec, req)

	assert.True(t, *called)
	assert.Empty(t, rec.Result().Cookies())
}

func TestAuthMiddlewareNoCookiesForCancelledRequest(t *testing.T) {
	provider := &fakeProvider{claims: &claims.Claims{Provider: "oidc", Subject: "sub-1"}}
	builder := &fakeBuilder{tenantID: 10, orgID: 5}
	mw := newTestAuthMiddleware(provider, builder, false)

	okay, _ := okHandler()
	handler := mw.Handler(okay)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	ctx, cancel := context.WithCancel(req.Context())
	cancel()
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// resolution still ran and would have moved the cookie, but an
	// aborted request must never stick a new scope
	assert.Equal(t, []int64{0}, builder.hints)
	assert.Empty(t, rec.Result().Cookies())
}

func TestAuthMiddlewareErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		provider   claims.Provider
		builder    ContextBuilder
		authHeader string
		wantStatus int
	}{
		{
			name:       "missing header",
			provider:   &fakeProvider{},
			builder:    &fakeBuilder{},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed credential",
			provider:   &fakeProvider{err: claims.ErrMalformedCredential},
			builder:    &fakeBuilder{},
			authHeader: "Bearer junk",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "unauthenticated build",
			provider:   &fakeProvider{claims: &claims.Claims{Subject: "s"}},
			builder:    &fakeBuilder{err: authctx.ErrUnauthenticated},
			authHeader: "Bearer tok",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "store outage is 503, not 401",
			provider:   &fakeProvider{claims: &claims.Claims{Subject: "s"}},
			builder:    &fakeBuilder{err: &authctx.StoreUnavailableError{Op: "membership load", Err: errors.New("down")}},
			authHeader: "Bearer tok",
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "unexpected error is 500",
			provider:   &fakeProvider{claims: &claims.Claims{Subject: "s"}},
			builder:    &fakeBuilder{err: errors.New("boom")},
			authHeader: "Bearer tok",
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := newTestAuthMiddleware(tt.provider, tt.builder, false)
			okay, called := okHandler()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			mw.Handler(okay).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.False(t, *called)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestCookieTenantHint(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, int64(0), cookieTenantHint(req))

	req.AddCookie(&http.Cookie{Name: ActiveSiteCookie, Value: "17"})
	assert.Equal(t, int64(17), cookieTenantHint(req))

	garbage := httptest.NewRequest(http.MethodGet, "/", nil)
	garbage.AddCookie(&http.Cookie{Name: ActiveSiteCookie, Value: "not-a-number"})
	assert.Equal(t, int64(0), cookieTenantHint(garbage))
}
