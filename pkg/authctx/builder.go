package authctx

import (
	"context"

	"github.com/pathwayhq/pathway/pkg/claims"
	"github.com/pathwayhq/pathway/pkg/directory"
	"github.com/pathwayhq/pathway/pkg/identity"
	"github.com/pathwayhq/pathway/pkg/observability"
	"github.com/pathwayhq/pathway/pkg/scope"
)

// IdentityStore is the slice of identity.Store the builder needs
type IdentityStore interface {
	UpsertFromClaims(ctx context.Context, c *claims.Claims) (*identity.User, error)
	UpdateLastActiveTenant(ctx context.Context, userID, tenantID int64) error
}

// DirectoryStore is the slice of directory.Store the builder needs
type DirectoryStore interface {
	Load(ctx context.Context, userID int64) (*directory.MembershipSet, error)
	TenantByID(ctx context.Context, tenantID int64) (*directory.Tenant, error)
}

// Builder assembles the authorization context for a request
type Builder struct {
	identities IdentityStore
	dir        DirectoryStore
	logger     *observability.Logger
}

// NewBuilder creates a context builder
func NewBuilder(identities IdentityStore, dir DirectoryStore, logger *observability.Logger) *Builder {
	return &Builder{
		identities: identities,
		dir:        dir,
		logger:     logger,
	}
}

// Build resolves verified claims plus an optional tenant hint cookie
// into a full authorization context.
//
// A failed identity upsert surfaces as ErrUnauthenticated: the caller
// has no valid identity to act as. A failed membership load surfaces
// as StoreUnavailableError so an outage is never mistaken for "no
// access". A failed hint-tenant fetch only degrades the hint; the
// fallback chain still runs on the loaded memberships.
func (b *Builder) Build(ctx context.Context, c *claims.Claims, cookieTenantID int64) (*Context, error) {
	user, err := b.identities.UpsertFromClaims(ctx, c)
	if err != nil {
		b.logger.WithError(err).WithFields(map[string]interface{}{
			"provider": c.Provider,
		}).Warn("identity upsert failed, treating request as unauthenticated")
		return nil, ErrUnauthenticated
	}

	set, err := b.dir.Load(ctx, user.ID)
	if err != nil {
		return nil, &StoreUnavailableError{Op: "membership load", Err: err}
	}

	in := scope.Input{
		CookieTenantID: cookieTenantID,
		Memberships:    set,
	}
	if user.LastActiveTenantID != nil {
		in.LastActiveTenantID = *user.LastActiveTenantID
	}

	if requested := in.RequestedTenantID(); requested != 0 {
		tenant, err := b.dir.TenantByID(ctx, requested)
		if err != nil {
			b.logger.WithError(err).WithField("tenant_id", requested).Warn("hinted tenant lookup failed, ignoring hint")
		} else {
			in.RequestedTenant = tenant
		}
	}

	res := scope.Resolve(in)
	roles := scope.MergeRoles(scope.FactsFromMemberships(set), res.OrgID, res.TenantID, res.SiteRole)

	authCtx := &Context{
		UserID:      user.ID,
		User:        user,
		Org:         Org{ID: res.OrgID, Slug: res.OrgSlug},
		Tenant:      Tenant{ID: res.TenantID, OrgID: res.OrgID},
		SiteRole:    res.SiteRole,
		Roles:       roles,
		Claims:      c,
		Tier:        res.Tier,
		CookieStale: res.CookieStale,
	}

	b.persistLastActive(ctx, user, res.TenantID)

	return authCtx, nil
}

// persistLastActive records the chosen tenant on the user row so the
// next cookie-less request lands in the same place. Best effort: a
// write failure only costs the hint.
func (b *Builder) persistLastActive(ctx context.Context, user *identity.User, tenantID int64) {
	if tenantID == 0 {
		return
	}
	if user.LastActiveTenantID != nil && *user.LastActiveTenantID == tenantID {
		return
	}

	if err := b.identities.UpdateLastActiveTenant(ctx, user.ID, tenantID); err != nil {
		b.logger.WithError(err).WithFields(map[string]interface{}{
			"user_id":   user.ID,
			"tenant_id": tenantID,
		}).Warn("failed to persist last active tenant")
	}
}
