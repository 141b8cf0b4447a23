package identity

import "time"

// User is a local user account
type User struct {
	ID                 int64      `json:"id"`
	Email              string     `json:"email"`
	DisplayName        string     `json:"display_name"`
	LastActiveTenantID *int64     `json:"last_active_tenant_id,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
	LastLoginAt        *time.Time `json:"last_login_at,omitempty"`
}

// ExternalIdentity links a provider-scoped subject to a local user
type ExternalIdentity struct {
	ID              int64     `json:"id"`
	Provider        string    `json:"provider"`
	ProviderSubject string    `json:"provider_subject"`
	UserID          int64     `json:"user_id"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"display_name"`
	CreatedAt       time.Time `json:"created_at"`
}
