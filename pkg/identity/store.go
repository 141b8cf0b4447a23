package identity

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/pathwayhq/pathway/pkg/claims"
	"github.com/pathwayhq/pathway/pkg/directory"
	"github.com/pathwayhq/pathway/pkg/observability"
)

// Store resolves verified claims to local user accounts
type Store interface {
	// FindByIdentity returns the user linked to a (provider, subject)
	// pair, or nil when no link exists
	FindByIdentity(ctx context.Context, provider, subject string) (*User, error)

	// UpsertFromClaims returns the user for a set of verified claims,
	// linking or provisioning an account as needed
	UpsertFromClaims(ctx context.Context, c *claims.Claims) (*User, error)

	// UpdateLastActiveTenant records the tenant a user last resolved
	// into. A no-op when the value is unchanged.
	UpdateLastActiveTenant(ctx context.Context, userID, tenantID int64) error
}

// PostgresStore implements Store against PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewPostgresStore creates an identity store
func NewPostgresStore(db *sql.DB, logger *observability.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

const userColumns = `u.id, u.email, u.display_name, u.last_active_tenant_id, u.created_at, u.updated_at, u.last_login_at`

func scanUser(row *sql.Row) (*User, error) {
	user := &User{}
	var email, displayName sql.NullString
	var lastActive sql.NullInt64
	var lastLogin sql.NullTime

	err := row.Scan(&user.ID, &email, &displayName, &lastActive,
		&user.CreatedAt, &user.UpdatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}

	user.Email = email.String
	user.DisplayName = displayName.String
	if lastActive.Valid {
		user.LastActiveTenantID = &lastActive.Int64
	}
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}
	return user, nil
}

// FindByIdentity looks up the user linked to an external identity
func (s *PostgresStore) FindByIdentity(ctx context.Context, provider, subject string) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		JOIN external_identities ei ON ei.user_id = u.id
		WHERE ei.provider = $1 AND ei.provider_subject = $2
	`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, provider, subject))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by identity: %w", err)
	}
	return user, nil
}

// UpsertFromClaims resolves claims to a user. The lookup order is the
// identity link first, then a case-insensitive email match, then a
// fresh account. Concurrent first logins race on the identity's unique
// constraint; the loser re-fetches the winner's row.
func (s *PostgresStore) UpsertFromClaims(ctx context.Context, c *claims.Claims) (*User, error) {
	user, err := s.FindByIdentity(ctx, c.Provider, c.Subject)
	if err != nil {
		return nil, err
	}
	if user != nil {
		return s.refreshProfile(ctx, user, c)
	}

	if c.Email != "" {
		user, err = s.findByEmail(ctx, c.Email)
		if err != nil {
			return nil, err
		}
		if user != nil {
			if err := s.linkIdentity(ctx, user.ID, c); err != nil {
				if isUniqueViolation(err) {
					return s.refetchWinner(ctx, c)
				}
				return nil, err
			}
			return s.refreshProfile(ctx, user, c)
		}
	}

	user, err = s.createUser(ctx, c)
	if err != nil {
		if isUniqueViolation(err) {
			return s.refetchWinner(ctx, c)
		}
		return nil, err
	}

	s.provisionDefaultMembership(ctx, user.ID)

	return user, nil
}

// refreshProfile stamps a login and backfills profile claims. Email
// follows the provider when it changes; the display name is only ever
// filled in, never overwritten.
func (s *PostgresStore) refreshProfile(ctx context.Context, user *User, c *claims.Claims) (*User, error) {
	query := `
		UPDATE users SET
			email = CASE WHEN $2 <> '' THEN $2 ELSE email END,
			display_name = CASE WHEN (display_name IS NULL OR display_name = '') AND $3 <> '' THEN $3 ELSE display_name END,
			last_login_at = NOW(),
			updated_at = NOW()
		WHERE id = $1
		RETURNING email, display_name, updated_at, last_login_at
	`
	var email, displayName sql.NullString
	var lastLogin sql.NullTime
	err := s.db.QueryRowContext(ctx, query, user.ID, c.Email, c.Name).Scan(
		&email, &displayName, &user.UpdatedAt, &lastLogin)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh user profile: %w", err)
	}

	user.Email = email.String
	user.DisplayName = displayName.String
	if lastLogin.Valid {
		user.LastLoginAt = &lastLogin.Time
	}
	return user, nil
}

func (s *PostgresStore) findByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT ` + userColumns + `
		FROM users u
		WHERE LOWER(u.email) = LOWER($1)
		ORDER BY u.created_at ASC, u.id ASC
		LIMIT 1
	`
	user, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) linkIdentity(ctx context.Context, userID int64, c *claims.Claims) error {
	query := `
		INSERT INTO external_identities (provider, provider_subject, user_id, email, display_name)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
	`
	_, err := s.db.ExecContext(ctx, query, c.Provider, c.Subject, userID, c.Email, c.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("failed to link external identity: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":  userID,
		"provider": c.Provider,
	}).Info("linked external identity to existing account by email")
	return nil
}

// createUser provisions a new account and its identity link in one
// transaction
func (s *PostgresStore) createUser(ctx context.Context, c *claims.Claims) (*User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin provisioning: %w", err)
	}
	defer tx.Rollback()

	user := &User{
		Email:       c.Email,
		DisplayName: c.Name,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO users (email, display_name, last_login_at)
		VALUES (NULLIF($1, ''), NULLIF($2, ''), NOW())
		RETURNING id, created_at, updated_at, last_login_at
	`, c.Email, c.Name).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO external_identities (provider, provider_subject, user_id, email, display_name)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''))
	`, c.Provider, c.Subject, user.ID, c.Email, c.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create external identity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit provisioning: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":  user.ID,
		"provider": c.Provider,
	}).Info("provisioned new user from claims")
	return user, nil
}

// provisionDefaultMembership grants a first-login user STAFF access to
// the oldest organization's first site. Best effort: a deployment with
// no organizations yet simply leaves the user unattached.
func (s *PostgresStore) provisionDefaultMembership(ctx context.Context, userID int64) {
	var tenantID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT t.id
		FROM tenants t
		JOIN organizations o ON o.id = t.organization_id
		ORDER BY o.created_at ASC, o.id ASC, t.created_at ASC, t.id ASC
		LIMIT 1
	`).Scan(&tenantID)
	if err == sql.ErrNoRows {
		return
	}
	if err != nil {
		s.logger.WithError(err).Warn("default membership lookup failed, user left unattached")
		return
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO site_memberships (tenant_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (tenant_id, user_id) DO NOTHING
	`, tenantID, userID, directory.SiteRoleStaff)
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("default membership grant failed, user left unattached")
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"user_id":   userID,
		"tenant_id": tenantID,
	}).Info("granted default site membership to new user")
}

// refetchWinner handles the losing side of a concurrent first-login
// race: the unique constraint on (provider, provider_subject) fired, so
// the winner's row must exist now.
func (s *PostgresStore) refetchWinner(ctx context.Context, c *claims.Claims) (*User, error) {
	user, err := s.FindByIdentity(ctx, c.Provider, c.Subject)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("identity conflict for provider %s but no winning row found", c.Provider)
	}
	return user, nil
}

// UpdateLastActiveTenant persists the tenant a request resolved into.
// IS DISTINCT FROM keeps repeat requests from churning updated_at.
func (s *PostgresStore) UpdateLastActiveTenant(ctx context.Context, userID, tenantID int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET last_active_tenant_id = $2, updated_at = NOW()
		WHERE id = $1 AND last_active_tenant_id IS DISTINCT FROM $2
	`, userID, tenantID)
	if err != nil {
		return fmt.Errorf("failed to update last active tenant: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	pqErr, ok := err.(*pq.Error)
	return ok && pqErr.Code == "23505"
}
