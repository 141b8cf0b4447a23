package authctx

import (
	"github.com/pathwayhq/pathway/pkg/claims"
	"github.com/pathwayhq/pathway/pkg/directory"
	"github.com/pathwayhq/pathway/pkg/identity"
	"github.com/pathwayhq/pathway/pkg/scope"
)

// Org is the resolved organization scope. Zero ID means no org
// resolved.
type Org struct {
	ID   int64  `json:"id"`
	Slug string `json:"slug"`
}

// Tenant is the resolved tenant scope. Zero ID means no tenant
// resolved; OrgID always matches the resolved Org when both are set.
type Tenant struct {
	ID    int64 `json:"id"`
	OrgID int64 `json:"org_id"`
}

// Context is the request-scoped authorization bundle. Built once per
// request by the Builder and treated as read-only afterwards.
type Context struct {
	UserID int64
	User   *identity.User

	Org    Org
	Tenant Tenant

	// SiteRole is the effective role at the resolved tenant, "" when
	// no tenant resolved
	SiteRole directory.SiteRole

	// Roles holds the merged legacy-label sets policy checks match on
	Roles scope.RoleSets

	// Claims carries the raw decoded credential claims
	Claims *claims.Claims

	// Tier records which fallback step resolved the tenant
	Tier scope.Tier

	// CookieStale signals the HTTP layer to rewrite the hint cookies
	CookieStale bool
}

// HasTenantScope reports whether a tenant resolved at all
func (c *Context) HasTenantScope() bool {
	return c.Tenant.ID != 0
}

// HasOrgRole reports whether any of the given labels is present in the
// org role set
func (c *Context) HasOrgRole(labels ...string) bool {
	return intersects(c.Roles.Org, labels)
}

// HasTenantRole reports whether any of the given labels is present in
// the tenant role set
func (c *Context) HasTenantRole(labels ...string) bool {
	return intersects(c.Roles.Tenant, labels)
}

func intersects(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}
