package scope

import (
	"sort"

	"github.com/pathwayhq/pathway/pkg/directory"
)

// Role labels use the legacy string form because every downstream
// policy check still matches on them.
const (
	OrgAdminLabel   = "org:admin"
	OrgBillingLabel = "org:billing_manager"
	OrgSupportLabel = "org:support"

	TenantAdminLabel = "tenant:admin"
	TenantStaffLabel = "tenant:staff"
)

// FactSource tags which permission model a role fact came from
type FactSource string

const (
	SourceModern FactSource = "modern"
	SourceLegacy FactSource = "legacy"
)

// FactScope tags whether a role fact applies org-wide or to one tenant
type FactScope string

const (
	ScopeOrg    FactScope = "org"
	ScopeTenant FactScope = "tenant"
)

// RoleFact is one normalized role grant. Every membership row from
// either model becomes exactly one fact (or none, when the legacy role
// has no modern equivalent).
type RoleFact struct {
	Source   FactSource
	Scope    FactScope
	OrgID    int64
	TenantID int64
	Label    string
}

// RoleSets is the merged, scope-filtered pair of label sets installed
// in the authorization context
type RoleSets struct {
	Org    []string `json:"org"`
	Tenant []string `json:"tenant"`
}

var orgRoleLabels = map[directory.OrgRole]string{
	directory.OrgRoleAdmin:   OrgAdminLabel,
	directory.OrgRoleBilling: OrgBillingLabel,
	directory.OrgRoleMember:  OrgSupportLabel,
}

var siteRoleLabels = map[directory.SiteRole]string{
	directory.SiteRoleAdmin: TenantAdminLabel,
	directory.SiteRoleStaff: TenantStaffLabel,
	// viewers carry the staff label for read access
	directory.SiteRoleViewer: TenantStaffLabel,
}

// OrgRoleLabel maps an org role to its policy label, or "" for an
// unknown role
func OrgRoleLabel(role directory.OrgRole) string {
	return orgRoleLabels[role]
}

// SiteRoleLabel maps a site role to its policy label, or "" for an
// unknown role
func SiteRoleLabel(role directory.SiteRole) string {
	return siteRoleLabels[role]
}

// FactsFromMemberships normalizes all four membership lists into role
// facts. Legacy tenant roles go through the legacy-to-site mapping
// first; rows with no modern equivalent produce no fact.
func FactsFromMemberships(set *directory.MembershipSet) []RoleFact {
	facts := make([]RoleFact, 0,
		len(set.OrgMemberships)+len(set.SiteMemberships)+
			len(set.LegacyOrgRoles)+len(set.LegacyTenantRoles))

	for _, m := range set.OrgMemberships {
		if label := orgRoleLabels[m.Role]; label != "" {
			facts = append(facts, RoleFact{
				Source: SourceModern,
				Scope:  ScopeOrg,
				OrgID:  m.OrgID,
				Label:  label,
			})
		}
	}

	for _, m := range set.SiteMemberships {
		if label := siteRoleLabels[m.Role]; label != "" {
			facts = append(facts, RoleFact{
				Source:   SourceModern,
				Scope:    ScopeTenant,
				OrgID:    m.OrgID,
				TenantID: m.TenantID,
				Label:    label,
			})
		}
	}

	for _, r := range set.LegacyOrgRoles {
		if label := orgRoleLabels[r.Role]; label != "" {
			facts = append(facts, RoleFact{
				Source: SourceLegacy,
				Scope:  ScopeOrg,
				OrgID:  r.OrgID,
				Label:  label,
			})
		}
	}

	for _, r := range set.LegacyTenantRoles {
		siteRole := directory.SiteRoleFromLegacy(r.Role)
		if label := siteRoleLabels[siteRole]; label != "" {
			facts = append(facts, RoleFact{
				Source:   SourceLegacy,
				Scope:    ScopeTenant,
				OrgID:    r.OrgID,
				TenantID: r.TenantID,
				Label:    label,
			})
		}
	}

	return facts
}

// MergeRoles filters facts to the resolved org and tenant and unions
// them into label sets. Union is safe across sources: both models map
// into the same label vocabulary, so modern and legacy grants simply
// collapse and legacy rows can never downgrade a modern grant. The
// resolved site role contributes a synthetic tenant fact so implicit
// grants (an org admin acting on a site with no membership row) still
// surface a tenant label.
func MergeRoles(facts []RoleFact, orgID, tenantID int64, resolvedSiteRole directory.SiteRole) RoleSets {
	orgSet := make(map[string]struct{})
	tenantSet := make(map[string]struct{})

	for _, f := range facts {
		switch f.Scope {
		case ScopeOrg:
			if orgID != 0 && f.OrgID == orgID {
				orgSet[f.Label] = struct{}{}
			}
		case ScopeTenant:
			if tenantID != 0 && f.TenantID == tenantID {
				tenantSet[f.Label] = struct{}{}
			}
		}
	}

	if tenantID != 0 {
		if label := siteRoleLabels[resolvedSiteRole]; label != "" {
			tenantSet[label] = struct{}{}
		}
	}

	return RoleSets{
		Org:    sortedLabels(orgSet),
		Tenant: sortedLabels(tenantSet),
	}
}

func sortedLabels(set map[string]struct{}) []string {
	labels := make([]string, 0, len(set))
	for label := range set {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}
