// Package directory provides read access to the organization, tenant,
// and membership records that feed tenant-scope resolution.
//
// Two generations of the permission model coexist:
//
//   - the modern model: org_memberships (OrgRole) and site_memberships
//     (SiteRole), unique per (scope, user)
//   - the legacy model: user_org_roles (same OrgRole enum, multiple
//     rows allowed) and user_tenant_roles (the older Role enum)
//
// All four lists participate in resolution. Dropping any one silently
// removes access paths users depend on, so Load fetches them together
// and the resolver consumes the complete set.
package directory
