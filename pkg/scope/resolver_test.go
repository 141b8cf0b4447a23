package scope

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pathwayhq/pathway/pkg/directory"
)

func staffMembership(tenantID, orgID int64) directory.SiteMembership {
	return directory.SiteMembership{
		TenantID: tenantID,
		UserID:   1,
		Role:     directory.SiteRoleStaff,
		OrgID:    orgID,
		OrgSlug:  "org-slug",
	}
}

func TestResolveSingleMembershipNoHint(t *testing.T) {
	in := Input{
		Memberships: &directory.MembershipSet{
			SiteMemberships: []directory.SiteMembership{staffMembership(10, 1)},
		},
	}

	res := Resolve(in)

	assert.Equal(t, int64(10), res.TenantID)
	assert.Equal(t, int64(1), res.OrgID)
	assert.Equal(t, directory.SiteRoleStaff, res.SiteRole)
	assert.Equal(t, TierFirstSiteMembership, res.Tier)
	assert.True(t, res.CookieStale)
}

func TestResolveExplicitMembershipBeatsImplicitAdmin(t *testing.T) {
	// org admin with an explicit VIEWER membership on the hinted site:
	// the explicit row wins, implicit admin does not upgrade it
	in := Input{
		CookieTenantID: 10,
		Memberships: &directory.MembershipSet{
			OrgMemberships: []directory.OrgMembership{
				{OrgID: 1, UserID: 1, Role: directory.OrgRoleAdmin, OrgSlug: "org-slug"},
			},
			SiteMemberships: []directory.SiteMembership{
				{TenantID: 10, UserID: 1, Role: directory.SiteRoleViewer, OrgID: 1, OrgSlug: "org-slug"},
			},
		},
		RequestedTenant: &directory.Tenant{ID: 10, OrgID: 1, OrgSlug: "org-slug"},
	}

	res := Resolve(in)

	assert.Equal(t, TierSiteMembership, res.Tier)
	assert.Equal(t, directory.SiteRoleViewer, res.SiteRole)
	assert.False(t, res.CookieStale)
}

func TestResolveImplicitOrgAdmin(t *testing.T) {
	in := Input{
		CookieTenantID: 20,
		Memberships: &directory.MembershipSet{
			OrgMemberships: []directory.OrgMembership{
				{OrgID: 1, UserID: 1, Role: directory.OrgRoleAdmin, OrgSlug: "org-slug"},
			},
		},
		RequestedTenant: &directory.Tenant{ID: 20, OrgID: 1, OrgSlug: "org-slug"},
	}

	res := Resolve(in)

	assert.Equal(t, int64(20), res.TenantID)
	assert.Equal(t, int64(1), res.OrgID)
	assert.Equal(t, directory.SiteRoleAdmin, res.SiteRole)
	assert.Equal(t, TierImplicitOrgAdmin, res.Tier)
}

func TestResolveImplicitAdminFromLegacyOrgRole(t *testing.T) {
	in := Input{
		CookieTenantID: 20,
		Memberships: &directory.MembershipSet{
			LegacyOrgRoles: []directory.LegacyOrgRole{
				{UserID: 1, OrgID: 1, Role: directory.OrgRoleAdmin, OrgSlug: "org-slug"},
			},
		},
		RequestedTenant: &directory.Tenant{ID: 20, OrgID: 1, OrgSlug: "org-slug"},
	}

	res := Resolve(in)

	assert.Equal(t, TierImplicitOrgAdmin, res.Tier)
	assert.Equal(t, directory.SiteRoleAdmin, res.SiteRole)
}

func TestResolveNonAdminOrgMemberGetsNoImplicitAccess(t *testing.T) {
	in := Input{
		CookieTenantID: 20,
		Memberships: &directory.MembershipSet{
			OrgMemberships: []directory.OrgMembership{
				{OrgID: 1, UserID: 1, Role: directory.OrgRoleMember, OrgSlug: "org-slug"},
			},
		},
		RequestedTenant: &directory.Tenant{ID: 20, OrgID: 1, OrgSlug: "org-slug"},
	}

	res := Resolve(in)

	assert.Equal(t, int64(0), res.TenantID)
	assert.Equal(t, TierOrgOnly, res.Tier)
	assert.Equal(t, int64(1), res.OrgID)
}

func TestResolveLegacyTenantRoleFallback(t *testing.T) {
	// staff on T1, legacy ADMIN on T2, cookie hints T2
	in := Input{
		CookieTenantID: 20,
		Memberships: &directory.MembershipSet{
			SiteMemberships: []directory.SiteMembership{staffMembership(10, 1)},
			LegacyTenantRoles: []directory.LegacyTenantRole{
				{UserID: 1, TenantID: 20, Role: directory.LegacyRoleAdmin, OrgID: 1, OrgSlug: "org-slug"},
			},
		},
	}

	res := Resolve(in)

	assert.Equal(t, int64(20), res.TenantID)
	assert.Equal(t, directory.SiteRoleAdmin, res.SiteRole)
	assert.Equal(t, TierLegacyTenantRole, res.Tier)

	facts := FactsFromMemberships(in.Memberships)
	roles := MergeRoles(facts, res.OrgID, res.TenantID, res.SiteRole)
	assert.Equal(t, []string{TenantAdminLabel}, roles.Tenant)
}

func TestResolveLegacyRoleRanking(t *testing.T) {
	in := Input{
		CookieTenantID: 20,
		Memberships: &directory.MembershipSet{
			LegacyTenantRoles: []directory.LegacyTenantRole{
				{UserID: 1, TenantID: 20, Role: directory.LegacyRoleParent, OrgID: 1},
				{UserID: 1, TenantID: 20, Role: directory.LegacyRoleTeacher, OrgID: 1},
			},
		},
	}

	res := Resolve(in)

	assert.Equal(t, directory.SiteRoleStaff, res.SiteRole)
}

func TestResolveUnmappableLegacyRoleResolvesNothing(t *testing.T) {
	in := Input{
		CookieTenantID: 20,
		Memberships: &directory.MembershipSet{
			LegacyTenantRoles: []directory.LegacyTenantRole{
				{UserID: 1, TenantID: 20, Role: directory.LegacyRole("CARETAKER"), OrgID: 1},
			},
		},
	}

	res := Resolve(in)

	assert.Equal(t, int64(0), res.TenantID)
	assert.Equal(t, TierNone, res.Tier)
}

func TestResolveLastActiveUsedWhenNoCookie(t *testing.T) {
	in := Input{
		LastActiveTenantID: 11,
		Memberships: &directory.MembershipSet{
			SiteMemberships: []directory.SiteMembership{
				staffMembership(10, 1),
				staffMembership(11, 1),
			},
		},
	}

	res := Resolve(in)

	assert.Equal(t, int64(11), res.TenantID)
	assert.Equal(t, TierSiteMembership, res.Tier)
	// no cookie was present, so the response should set one
	assert.True(t, res.CookieStale)
}

func TestResolveCookieWinsOverLastActive(t *testing.T) {
	in := Input{
		CookieTenantID:     10,
		LastActiveTenantID: 11,
		Memberships: &directory.MembershipSet{
			SiteMemberships: []directory.SiteMembership{
				staffMembership(10, 1),
				staffMembership(11, 1),
			},
		},
	}

	res := Resolve(in)

	assert.Equal(t, int64(10), res.TenantID)
	assert.False(t, res.CookieStale)
}

func TestResolveIdempotentWithFreshCookie(t *testing.T) {
	set := &directory.MembershipSet{
		SiteMemberships: []directory.SiteMembership{staffMembership(10, 1)},
	}

	first := Resolve(Input{Memberships: set})
	assert.True(t, first.CookieStale)

	second := Resolve(Input{CookieTenantID: first.TenantID, Memberships: set})
	assert.Equal(t, first.TenantID, second.TenantID)
	assert.Equal(t, first.OrgID, second.OrgID)
	assert.False(t, second.CookieStale)
}

func TestResolveInaccessibleHintFallsThrough(t *testing.T) {
	// hint points at a tenant in an org the user has nothing in
	in := Input{
		CookieTenantID: 99,
		Memberships: &directory.MembershipSet{
			SiteMemberships: []directory.SiteMembership{staffMembership(10, 1)},
		},
		RequestedTenant: &directory.Tenant{ID: 99, OrgID: 7, OrgSlug: "other-org"},
	}

	res := Resolve(in)

	assert.Equal(t, int64(10), res.TenantID)
	assert.Equal(t, TierFirstSiteMembership, res.Tier)
	assert.True(t, res.CookieStale)
}

func TestResolveNoMembershipsAtAll(t *testing.T) {
	in := Input{
		CookieTenantID:  99,
		Memberships:     &directory.MembershipSet{},
		RequestedTenant: &directory.Tenant{ID: 99, OrgID: 7, OrgSlug: "other-org"},
	}

	res := Resolve(in)

	assert.Equal(t, int64(0), res.TenantID)
	assert.Equal(t, int64(0), res.OrgID)
	assert.Equal(t, TierNone, res.Tier)
}

func TestResolveOrgOnlyFallback(t *testing.T) {
	t.Run("from org membership", func(t *testing.T) {
		res := Resolve(Input{
			Memberships: &directory.MembershipSet{
				OrgMemberships: []directory.OrgMembership{
					{OrgID: 3, UserID: 1, Role: directory.OrgRoleBilling, OrgSlug: "billing-org"},
				},
			},
		})

		assert.Equal(t, int64(0), res.TenantID)
		assert.Equal(t, int64(3), res.OrgID)
		assert.Equal(t, "billing-org", res.OrgSlug)
		assert.Equal(t, TierOrgOnly, res.Tier)
	})

	t.Run("from legacy org role", func(t *testing.T) {
		res := Resolve(Input{
			Memberships: &directory.MembershipSet{
				LegacyOrgRoles: []directory.LegacyOrgRole{
					{UserID: 1, OrgID: 4, Role: directory.OrgRoleMember, OrgSlug: "legacy-org"},
				},
			},
		})

		assert.Equal(t, int64(4), res.OrgID)
		assert.Equal(t, TierOrgOnly, res.Tier)
	})
}
