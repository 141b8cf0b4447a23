package scope

import (
	"github.com/pathwayhq/pathway/pkg/directory"
)

// Tier identifies which fallback step produced a resolution. Used as a
// metrics label.
type Tier string

const (
	TierNone                Tier = "none"
	TierSiteMembership      Tier = "site_membership"
	TierImplicitOrgAdmin    Tier = "implicit_org_admin"
	TierLegacyTenantRole    Tier = "legacy_tenant_role"
	TierFirstSiteMembership Tier = "first_site_membership"
	TierOrgOnly             Tier = "org_only"
)

// Input carries everything resolution needs. The caller loads the
// membership lists and the requested tenant record up front so Resolve
// itself performs no I/O.
type Input struct {
	// CookieTenantID is the client's tenant hint cookie, 0 when absent
	CookieTenantID int64

	// LastActiveTenantID is the persisted hint from the user record,
	// 0 when unset. Only consulted when no cookie is present.
	LastActiveTenantID int64

	// Memberships holds all four membership lists for the user
	Memberships *directory.MembershipSet

	// RequestedTenant is the tenant record for the effective hint, nil
	// when there is no hint or the hinted tenant does not exist
	RequestedTenant *directory.Tenant
}

// Resolution is the outcome of the fallback chain. TenantID and OrgID
// are 0 when nothing resolved at that scope; downstream checks treat
// empty scope as insufficient access, not as an error.
type Resolution struct {
	TenantID int64
	OrgID    int64
	OrgSlug  string
	SiteRole directory.SiteRole
	Tier     Tier

	// CookieStale reports that the hint cookie is absent or points at
	// a different tenant than the one resolved, so the response should
	// rewrite it
	CookieStale bool
}

// RequestedTenantID returns the effective tenant hint: the cookie when
// present, else the persisted last-active pointer
func (in Input) RequestedTenantID() int64 {
	if in.CookieTenantID != 0 {
		return in.CookieTenantID
	}
	return in.LastActiveTenantID
}

// Resolve walks the fallback chain, first match wins:
//
//  1. an explicit site membership for the hinted tenant
//  2. implicit admin access, when the hinted tenant's org grants the
//     user ORG_ADMIN in either model
//  3. a legacy tenant role row for the hinted tenant
//  4. the user's oldest site membership, as a best-effort default
//  5. org scope only, from the oldest org membership or legacy org
//     role row
//
// A hint pointing at a tenant the user cannot access falls through to
// the defaults rather than erroring. A hinted tenant is never selected
// unless one of the access tiers matches it.
func Resolve(in Input) Resolution {
	res := Resolution{Tier: TierNone}
	set := in.Memberships

	if requested := in.RequestedTenantID(); requested != 0 {
		if m := siteMembershipFor(set, requested); m != nil {
			res.TenantID = m.TenantID
			res.OrgID = m.OrgID
			res.OrgSlug = m.OrgSlug
			res.SiteRole = m.Role
			res.Tier = TierSiteMembership
		} else if t := in.RequestedTenant; t != nil && t.ID == requested && isOrgAdmin(set, t.OrgID) {
			res.TenantID = t.ID
			res.OrgID = t.OrgID
			res.OrgSlug = t.OrgSlug
			res.SiteRole = directory.SiteRoleAdmin
			res.Tier = TierImplicitOrgAdmin
		} else if r, role := legacyTenantRoleFor(set, requested); r != nil {
			res.TenantID = r.TenantID
			res.OrgID = r.OrgID
			res.OrgSlug = r.OrgSlug
			res.SiteRole = role
			res.Tier = TierLegacyTenantRole
		}
	}

	if res.TenantID == 0 && len(set.SiteMemberships) > 0 {
		m := set.SiteMemberships[0]
		res.TenantID = m.TenantID
		res.OrgID = m.OrgID
		res.OrgSlug = m.OrgSlug
		res.SiteRole = m.Role
		res.Tier = TierFirstSiteMembership
	}

	if res.OrgID == 0 {
		switch {
		case len(set.OrgMemberships) > 0:
			res.OrgID = set.OrgMemberships[0].OrgID
			res.OrgSlug = set.OrgMemberships[0].OrgSlug
			res.Tier = TierOrgOnly
		case len(set.LegacyOrgRoles) > 0:
			res.OrgID = set.LegacyOrgRoles[0].OrgID
			res.OrgSlug = set.LegacyOrgRoles[0].OrgSlug
			res.Tier = TierOrgOnly
		}
	}

	res.CookieStale = res.TenantID != 0 && res.TenantID != in.CookieTenantID

	return res
}

func siteMembershipFor(set *directory.MembershipSet, tenantID int64) *directory.SiteMembership {
	for i := range set.SiteMemberships {
		if set.SiteMemberships[i].TenantID == tenantID {
			return &set.SiteMemberships[i]
		}
	}
	return nil
}

// isOrgAdmin checks both models: an ORG_ADMIN grant in either one
// confers implicit admin access to every site in the org
func isOrgAdmin(set *directory.MembershipSet, orgID int64) bool {
	for _, m := range set.OrgMemberships {
		if m.OrgID == orgID && m.Role == directory.OrgRoleAdmin {
			return true
		}
	}
	for _, r := range set.LegacyOrgRoles {
		if r.OrgID == orgID && r.Role == directory.OrgRoleAdmin {
			return true
		}
	}
	return false
}

// legacyTenantRoleFor finds the strongest mappable legacy role row for
// a tenant. Rows whose role has no modern equivalent are skipped; if
// none maps, the tenant stays unresolved.
func legacyTenantRoleFor(set *directory.MembershipSet, tenantID int64) (*directory.LegacyTenantRole, directory.SiteRole) {
	var best *directory.LegacyTenantRole
	var bestRole directory.SiteRole

	for i := range set.LegacyTenantRoles {
		r := &set.LegacyTenantRoles[i]
		if r.TenantID != tenantID {
			continue
		}
		role := directory.SiteRoleFromLegacy(r.Role)
		if role == "" {
			continue
		}
		if best == nil || siteRoleRank(role) > siteRoleRank(bestRole) {
			best = r
			bestRole = role
		}
	}
	return best, bestRole
}

func siteRoleRank(role directory.SiteRole) int {
	switch role {
	case directory.SiteRoleAdmin:
		return 3
	case directory.SiteRoleStaff:
		return 2
	case directory.SiteRoleViewer:
		return 1
	default:
		return 0
	}
}
