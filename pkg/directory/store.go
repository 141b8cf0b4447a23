package directory

import (
	"context"
	"database/sql"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/pathwayhq/pathway/pkg/observability"
)

// Store is the read interface consumed by the tenant-scope resolver
type Store interface {
	// OrgMembershipsForUser returns modern org memberships with org
	// expansion, oldest first
	OrgMembershipsForUser(ctx context.Context, userID int64) ([]OrgMembership, error)

	// SiteMembershipsForUser returns modern site memberships with
	// tenant+org expansion, oldest first
	SiteMembershipsForUser(ctx context.Context, userID int64) ([]SiteMembership, error)

	// LegacyOrgRolesForUser returns legacy org role rows with org
	// expansion, oldest first
	LegacyOrgRolesForUser(ctx context.Context, userID int64) ([]LegacyOrgRole, error)

	// LegacyTenantRolesForUser returns legacy tenant role rows with
	// tenant+org expansion, oldest first
	LegacyTenantRolesForUser(ctx context.Context, userID int64) ([]LegacyTenantRole, error)

	// TenantByID returns the tenant with org expansion, or nil when no
	// such tenant exists
	TenantByID(ctx context.Context, tenantID int64) (*Tenant, error)

	// Load fetches the complete membership set for a user
	Load(ctx context.Context, userID int64) (*MembershipSet, error)
}

// PostgresStore implements Store against PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewPostgresStore creates a new membership store
func NewPostgresStore(db *sql.DB, logger *observability.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

// OrgMembershipsForUser returns modern org memberships for a user
func (s *PostgresStore) OrgMembershipsForUser(ctx context.Context, userID int64) ([]OrgMembership, error) {
	query := `
		SELECT om.id, om.organization_id, om.user_id, om.role, o.slug, om.created_at
		FROM org_memberships om
		JOIN organizations o ON o.id = om.organization_id
		WHERE om.user_id = $1
		ORDER BY om.created_at ASC, om.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list org memberships: %w", err)
	}
	defer rows.Close()

	var memberships []OrgMembership
	for rows.Next() {
		var m OrgMembership
		if err := rows.Scan(&m.ID, &m.OrgID, &m.UserID, &m.Role, &m.OrgSlug, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan org membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	return memberships, rows.Err()
}

// SiteMembershipsForUser returns modern site memberships for a user.
// The ordering is the deterministic tie-break for the default-site
// fallback tier: oldest membership wins.
func (s *PostgresStore) SiteMembershipsForUser(ctx context.Context, userID int64) ([]SiteMembership, error) {
	query := `
		SELECT sm.id, sm.tenant_id, sm.user_id, sm.role, t.organization_id, o.slug, sm.created_at
		FROM site_memberships sm
		JOIN tenants t ON t.id = sm.tenant_id
		JOIN organizations o ON o.id = t.organization_id
		WHERE sm.user_id = $1
		ORDER BY sm.created_at ASC, sm.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list site memberships: %w", err)
	}
	defer rows.Close()

	var memberships []SiteMembership
	for rows.Next() {
		var m SiteMembership
		if err := rows.Scan(&m.ID, &m.TenantID, &m.UserID, &m.Role, &m.OrgID, &m.OrgSlug, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan site membership: %w", err)
		}
		memberships = append(memberships, m)
	}

	return memberships, rows.Err()
}

// LegacyOrgRolesForUser returns legacy org role rows for a user
func (s *PostgresStore) LegacyOrgRolesForUser(ctx context.Context, userID int64) ([]LegacyOrgRole, error) {
	query := `
		SELECT r.id, r.user_id, r.organization_id, r.role, o.slug, r.created_at
		FROM user_org_roles r
		JOIN organizations o ON o.id = r.organization_id
		WHERE r.user_id = $1
		ORDER BY r.created_at ASC, r.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list legacy org roles: %w", err)
	}
	defer rows.Close()

	var roles []LegacyOrgRole
	for rows.Next() {
		var r LegacyOrgRole
		if err := rows.Scan(&r.ID, &r.UserID, &r.OrgID, &r.Role, &r.OrgSlug, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan legacy org role: %w", err)
		}
		roles = append(roles, r)
	}

	return roles, rows.Err()
}

// LegacyTenantRolesForUser returns legacy tenant role rows for a user
func (s *PostgresStore) LegacyTenantRolesForUser(ctx context.Context, userID int64) ([]LegacyTenantRole, error) {
	query := `
		SELECT r.id, r.user_id, r.tenant_id, r.role, t.organization_id, o.slug, r.created_at
		FROM user_tenant_roles r
		JOIN tenants t ON t.id = r.tenant_id
		JOIN organizations o ON o.id = t.organization_id
		WHERE r.user_id = $1
		ORDER BY r.created_at ASC, r.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list legacy tenant roles: %w", err)
	}
	defer rows.Close()

	var roles []LegacyTenantRole
	for rows.Next() {
		var r LegacyTenantRole
		if err := rows.Scan(&r.ID, &r.UserID, &r.TenantID, &r.Role, &r.OrgID, &r.OrgSlug, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan legacy tenant role: %w", err)
		}
		roles = append(roles, r)
	}

	return roles, rows.Err()
}

// TenantByID returns a tenant with its owning organization expanded, or
// nil when the tenant does not exist
func (s *PostgresStore) TenantByID(ctx context.Context, tenantID int64) (*Tenant, error) {
	query := `
		SELECT t.id, t.organization_id, t.slug, t.name, o.slug, t.created_at
		FROM tenants t
		JOIN organizations o ON o.id = t.organization_id
		WHERE t.id = $1
	`
	tenant := &Tenant{}
	err := s.db.QueryRowContext(ctx, query, tenantID).Scan(
		&tenant.ID, &tenant.OrgID, &tenant.Slug, &tenant.Name, &tenant.OrgSlug, &tenant.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}

	return tenant, nil
}

// Load fetches all four membership lists concurrently. The modern lists
// are load-bearing: a failure there aborts the load so an outage is not
// mistaken for "no access". The legacy lists are fallback tiers only, so
// a failure degrades to an empty list with a warning.
func (s *PostgresStore) Load(ctx context.Context, userID int64) (*MembershipSet, error) {
	set := &MembershipSet{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		memberships, err := s.OrgMembershipsForUser(gctx, userID)
		if err != nil {
			return err
		}
		set.OrgMemberships = memberships
		return nil
	})

	g.Go(func() error {
		memberships, err := s.SiteMembershipsForUser(gctx, userID)
		if err != nil {
			return err
		}
		set.SiteMemberships = memberships
		return nil
	})

	g.Go(func() error {
		roles, err := s.LegacyOrgRolesForUser(gctx, userID)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("legacy org role lookup failed, continuing without that tier")
			return nil
		}
		set.LegacyOrgRoles = roles
		return nil
	})

	g.Go(func() error {
		roles, err := s.LegacyTenantRolesForUser(gctx, userID)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Warn("legacy tenant role lookup failed, continuing without that tier")
			return nil
		}
		set.LegacyTenantRoles = roles
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return set, nil
}
