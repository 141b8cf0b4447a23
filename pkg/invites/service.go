package invites

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/pathwayhq/pathway/pkg/directory"
	"github.com/pathwayhq/pathway/pkg/observability"
)

// Service issues, revokes, and accepts invites
type Service struct {
	db     *sql.DB
	logger *observability.Logger
	ttl    time.Duration
}

// NewService creates an invite service. ttl bounds how long an issued
// invite stays acceptable.
func NewService(db *sql.DB, logger *observability.Logger, ttl time.Duration) *Service {
	return &Service{db: db, logger: logger, ttl: ttl}
}

// CreateParams describes a new invite
type CreateParams struct {
	OrgID     int64
	Email     string
	OrgRole   directory.OrgRole
	SiteRole  directory.SiteRole
	SiteIDs   []int64
	InvitedBy *int64
}

const inviteColumns = `id, organization_id, email, org_role, site_role, site_ids, token, invited_by, created_at, expires_at, used_at, used_by, revoked_at`

// CreateInvite issues a new invite with a fresh token
func (s *Service) CreateInvite(ctx context.Context, params CreateParams) (*Invite, error) {
	if params.SiteRole == "" {
		params.SiteRole = directory.SiteRoleStaff
	}

	invite := &Invite{
		OrgID:     params.OrgID,
		Email:     params.Email,
		OrgRole:   params.OrgRole,
		SiteRole:  params.SiteRole,
		SiteIDs:   params.SiteIDs,
		Token:     uuid.NewString(),
		InvitedBy: params.InvitedBy,
	}

	var siteIDs interface{}
	if params.SiteIDs != nil {
		siteIDs = pq.Int64Array(params.SiteIDs)
	}

	query := `
		INSERT INTO invites (organization_id, email, org_role, site_role, site_ids, token, invited_by, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW() + $8 * INTERVAL '1 second')
		RETURNING id, created_at, expires_at
	`
	err := s.db.QueryRowContext(ctx, query,
		params.OrgID, params.Email, params.OrgRole, params.SiteRole,
		siteIDs, invite.Token, params.InvitedBy, int64(s.ttl.Seconds()),
	).Scan(&invite.ID, &invite.CreatedAt, &invite.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create invite: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"invite_id": invite.ID,
		"org_id":    invite.OrgID,
	}).Info("created invite")
	return invite, nil
}

// GetByToken fetches an invite by its token
func (s *Service) GetByToken(ctx context.Context, token string) (*Invite, error) {
	query := `SELECT ` + inviteColumns + ` FROM invites WHERE token = $1`
	invite, err := scanInvite(s.db.QueryRowContext(ctx, query, token))
	if err == sql.ErrNoRows {
		return nil, &InviteError{Reason: ReasonNotFound}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}
	return invite, nil
}

// ListForOrg returns an org's pending invites, newest first
func (s *Service) ListForOrg(ctx context.Context, orgID int64) ([]*Invite, error) {
	query := `
		SELECT ` + inviteColumns + `
		FROM invites
		WHERE organization_id = $1 AND used_at IS NULL AND revoked_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invites: %w", err)
	}
	defer rows.Close()

	var invites []*Invite
	for rows.Next() {
		invite, err := scanInviteRows(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invite: %w", err)
		}
		invites = append(invites, invite)
	}
	return invites, rows.Err()
}

// Revoke marks a pending invite revoked. Already-used invites cannot
// be revoked.
func (s *Service) Revoke(ctx context.Context, orgID, id int64) error {
	query := `
		UPDATE invites SET revoked_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND used_at IS NULL AND revoked_at IS NULL
	`
	result, err := s.db.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to revoke invite: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return &InviteError{Reason: ReasonNotFound}
	}
	return nil
}

// Accept applies an invite's grants to a user and marks it used, all
// in one transaction. The invite row is locked so a concurrent accept
// of the same token observes the used_at transition.
//
// Grants are written to both models: a modern org membership (upsert
// that never downgrades an existing higher role) with a mirrored
// legacy org role row, and per-site memberships with mirrored legacy
// tenant role rows. Mirrors are insert-if-absent so re-reconciliation
// never duplicates legacy rows.
func (s *Service) Accept(ctx context.Context, token string, userID int64, userEmail string) (*Invite, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT ` + inviteColumns + ` FROM invites WHERE token = $1 FOR UPDATE`
	invite, err := scanInvite(tx.QueryRowContext(ctx, query, token))
	if err == sql.ErrNoRows {
		return nil, &InviteError{Reason: ReasonNotFound}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get invite: %w", err)
	}

	switch invite.Status(time.Now()) {
	case StatusUsed:
		return nil, &InviteError{Reason: ReasonAlreadyUsed}
	case StatusRevoked:
		return nil, &InviteError{Reason: ReasonRevoked}
	case StatusExpired:
		return nil, &InviteError{Reason: ReasonExpired}
	}

	if !strings.EqualFold(invite.Email, userEmail) {
		return nil, &InviteError{Reason: ReasonEmailMismatch}
	}

	if err := s.applyOrgGrant(ctx, tx, invite, userID); err != nil {
		return nil, err
	}
	if err := s.applySiteGrants(ctx, tx, invite, userID); err != nil {
		return nil, err
	}

	var usedAt time.Time
	err = tx.QueryRowContext(ctx, `
		UPDATE invites SET used_at = NOW(), used_by = $1
		WHERE id = $2
		RETURNING used_at
	`, userID, invite.ID).Scan(&usedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to mark invite used: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit invite acceptance: %w", err)
	}

	invite.UsedAt = &usedAt
	invite.UsedBy = &userID

	s.logger.WithFields(map[string]interface{}{
		"invite_id": invite.ID,
		"org_id":    invite.OrgID,
		"user_id":   userID,
	}).Info("invite accepted")
	return invite, nil
}

// applyOrgGrant upserts the modern org membership and mirrors it into
// the legacy table. The upsert only replaces a lower role.
func (s *Service) applyOrgGrant(ctx context.Context, tx *sql.Tx, invite *Invite, userID int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO org_memberships (organization_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, user_id) DO UPDATE SET role = EXCLUDED.role
		WHERE CASE org_memberships.role WHEN 'ORG_ADMIN' THEN 3 WHEN 'ORG_BILLING' THEN 2 ELSE 1 END
		    < CASE EXCLUDED.role WHEN 'ORG_ADMIN' THEN 3 WHEN 'ORG_BILLING' THEN 2 ELSE 1 END
	`, invite.OrgID, userID, invite.OrgRole)
	if err != nil {
		return fmt.Errorf("failed to upsert org membership: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_org_roles (user_id, organization_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, organization_id, role) DO NOTHING
	`, userID, invite.OrgID, invite.OrgRole)
	if err != nil {
		return fmt.Errorf("failed to mirror legacy org role: %w", err)
	}
	return nil
}

// applySiteGrants writes a site membership and its legacy mirror for
// each target site. The target set follows the invite's site-access
// mode (see Invite.SiteIDs).
func (s *Service) applySiteGrants(ctx context.Context, tx *sql.Tx, invite *Invite, userID int64) error {
	role := invite.SiteRole
	if invite.SiteIDs == nil {
		role = directory.SiteRoleStaff
	}

	siteIDs, err := s.targetSites(ctx, tx, invite)
	if err != nil {
		return err
	}

	legacyRole := directory.LegacyRoleFromSite(role)

	for _, siteID := range siteIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO site_memberships (tenant_id, user_id, role)
			VALUES ($1, $2, $3)
			ON CONFLICT (tenant_id, user_id) DO UPDATE SET role = EXCLUDED.role
			WHERE CASE site_memberships.role WHEN 'SITE_ADMIN' THEN 3 WHEN 'STAFF' THEN 2 ELSE 1 END
			    < CASE EXCLUDED.role WHEN 'SITE_ADMIN' THEN 3 WHEN 'STAFF' THEN 2 ELSE 1 END
		`, siteID, userID, role)
		if err != nil {
			return fmt.Errorf("failed to upsert site membership: %w", err)
		}

		if legacyRole == "" {
			continue
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_tenant_roles (user_id, tenant_id, role)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, tenant_id, role) DO NOTHING
		`, userID, siteID, legacyRole)
		if err != nil {
			return fmt.Errorf("failed to mirror legacy tenant role: %w", err)
		}
	}
	return nil
}

// targetSites resolves the invite's site-access mode to concrete
// tenant ids, always constrained to the invite's org
func (s *Service) targetSites(ctx context.Context, tx *sql.Tx, invite *Invite) ([]int64, error) {
	var rows *sql.Rows
	var err error

	if len(invite.SiteIDs) > 0 {
		rows, err = tx.QueryContext(ctx, `
			SELECT id FROM tenants
			WHERE organization_id = $1 AND id = ANY($2)
			ORDER BY created_at ASC, id ASC
		`, invite.OrgID, pq.Int64Array(invite.SiteIDs))
	} else {
		rows, err = tx.QueryContext(ctx, `
			SELECT id FROM tenants
			WHERE organization_id = $1
			ORDER BY created_at ASC, id ASC
		`, invite.OrgID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list target sites: %w", err)
	}
	defer rows.Close()

	var siteIDs []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan site id: %w", err)
		}
		siteIDs = append(siteIDs, id)
	}
	return siteIDs, rows.Err()
}

// CleanupExpired deletes invites past their deadline that were never
// used or revoked. Returns the number removed.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM invites
		WHERE expires_at < NOW() AND used_at IS NULL AND revoked_at IS NULL
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired invites: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return removed, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInvite(row *sql.Row) (*Invite, error) {
	return scanInviteRows(row)
}

func scanInviteRows(row rowScanner) (*Invite, error) {
	invite := &Invite{}
	var siteIDs pq.Int64Array
	var invitedBy, usedBy sql.NullInt64
	var usedAt, revokedAt sql.NullTime

	err := row.Scan(
		&invite.ID, &invite.OrgID, &invite.Email, &invite.OrgRole, &invite.SiteRole,
		&siteIDs, &invite.Token, &invitedBy, &invite.CreatedAt, &invite.ExpiresAt,
		&usedAt, &usedBy, &revokedAt,
	)
	if err != nil {
		return nil, err
	}

	invite.SiteIDs = siteIDs
	if invitedBy.Valid {
		invite.InvitedBy = &invitedBy.Int64
	}
	if usedAt.Valid {
		invite.UsedAt = &usedAt.Time
	}
	if usedBy.Valid {
		invite.UsedBy = &usedBy.Int64
	}
	if revokedAt.Valid {
		invite.RevokedAt = &revokedAt.Time
	}
	return invite, nil
}
