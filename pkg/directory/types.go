package directory

import (
	"time"
)

// OrgRole is the organization role enum shared by the modern
// org_memberships table and the legacy user_org_roles table
type OrgRole string

const (
	OrgRoleAdmin   OrgRole = "ORG_ADMIN"
	OrgRoleBilling OrgRole = "ORG_BILLING"
	OrgRoleMember  OrgRole = "ORG_MEMBER"
)

// Valid reports whether the value is a known org role
func (r OrgRole) Valid() bool {
	switch r {
	case OrgRoleAdmin, OrgRoleBilling, OrgRoleMember:
		return true
	}
	return false
}

// SiteRole is the modern per-tenant role enum
type SiteRole string

const (
	SiteRoleAdmin  SiteRole = "SITE_ADMIN"
	SiteRoleStaff  SiteRole = "STAFF"
	SiteRoleViewer SiteRole = "VIEWER"
)

// Valid reports whether the value is a known site role
func (r SiteRole) Valid() bool {
	switch r {
	case SiteRoleAdmin, SiteRoleStaff, SiteRoleViewer:
		return true
	}
	return false
}

// LegacyRole is the original per-tenant role enum, retained for
// backward compatibility. It is a different enum from SiteRole.
type LegacyRole string

const (
	LegacyRoleAdmin       LegacyRole = "ADMIN"
	LegacyRoleTeacher     LegacyRole = "TEACHER"
	LegacyRoleCoordinator LegacyRole = "COORDINATOR"
	LegacyRoleParent      LegacyRole = "PARENT"
)

// SiteRoleFromLegacy maps a legacy tenant role onto the modern SiteRole
// enum. Unknown legacy values map to an empty role, which resolves to
// no tenant access.
func SiteRoleFromLegacy(role LegacyRole) SiteRole {
	switch role {
	case LegacyRoleAdmin:
		return SiteRoleAdmin
	case LegacyRoleTeacher, LegacyRoleCoordinator:
		return SiteRoleStaff
	case LegacyRoleParent:
		return SiteRoleViewer
	default:
		return ""
	}
}

// LegacyRoleFromSite maps a modern site role back onto the legacy enum,
// used when mirroring invite grants into the legacy table
func LegacyRoleFromSite(role SiteRole) LegacyRole {
	switch role {
	case SiteRoleAdmin:
		return LegacyRoleAdmin
	case SiteRoleStaff:
		return LegacyRoleTeacher
	case SiteRoleViewer:
		return LegacyRoleParent
	default:
		return ""
	}
}

// Organization is a top-level tenant-owning organization
type Organization struct {
	ID        int64     `json:"id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Tenant is a single operating site under an organization. OrgSlug is
// denormalized from the owning organization on read.
type Tenant struct {
	ID        int64     `json:"id"`
	OrgID     int64     `json:"org_id"`
	Slug      string    `json:"slug"`
	Name      string    `json:"name"`
	OrgSlug   string    `json:"org_slug"`
	CreatedAt time.Time `json:"created_at"`
}

// OrgMembership is a modern-model organization membership
type OrgMembership struct {
	ID        int64     `json:"id"`
	OrgID     int64     `json:"org_id"`
	UserID    int64     `json:"user_id"`
	Role      OrgRole   `json:"role"`
	OrgSlug   string    `json:"org_slug"`
	CreatedAt time.Time `json:"created_at"`
}

// SiteMembership is a modern-model tenant membership, expanded with the
// owning tenant's organization
type SiteMembership struct {
	ID        int64     `json:"id"`
	TenantID  int64     `json:"tenant_id"`
	UserID    int64     `json:"user_id"`
	Role      SiteRole  `json:"role"`
	OrgID     int64     `json:"org_id"`
	OrgSlug   string    `json:"org_slug"`
	CreatedAt time.Time `json:"created_at"`
}

// LegacyOrgRole is a legacy-model organization role row
type LegacyOrgRole struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	OrgID     int64     `json:"org_id"`
	Role      OrgRole   `json:"role"`
	OrgSlug   string    `json:"org_slug"`
	CreatedAt time.Time `json:"created_at"`
}

// LegacyTenantRole is a legacy-model tenant role row, expanded with the
// owning tenant's organization
type LegacyTenantRole struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	TenantID  int64      `json:"tenant_id"`
	Role      LegacyRole `json:"role"`
	OrgID     int64      `json:"org_id"`
	OrgSlug   string     `json:"org_slug"`
	CreatedAt time.Time  `json:"created_at"`
}

// MembershipSet is the complete membership picture for one user. All
// four lists must be present before resolution runs.
type MembershipSet struct {
	OrgMemberships    []OrgMembership
	SiteMemberships   []SiteMembership
	LegacyOrgRoles    []LegacyOrgRole
	LegacyTenantRoles []LegacyTenantRole
}
