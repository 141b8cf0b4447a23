// Package scope decides which tenant and organization a request acts
// under, and which role labels apply there.
//
// Two permission models coexist in the data: the modern
// OrgMembership/SiteMembership tables and the legacy
// UserOrgRole/UserTenantRole tables. Both are normalized into role
// facts and merged by a pure function, so the precedence rules live in
// exactly one place. Resolution itself is also pure: it takes the
// loaded membership lists and a tenant hint and returns a Resolution,
// leaving cookie writes and persistence to the HTTP layer.
package scope
