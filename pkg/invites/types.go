package invites

import (
	"time"

	"github.com/pathwayhq/pathway/pkg/directory"
)

// Status is the derived lifecycle state of an invite. Used and revoked
// are stored transitions; expired is computed from the deadline.
type Status string

const (
	StatusPending Status = "pending"
	StatusUsed    Status = "used"
	StatusRevoked Status = "revoked"
	StatusExpired Status = "expired"
)

// Invite is a pending grant of org and site access to an email address.
//
// SiteIDs carries the site-access mode: nil means no site access was
// specified and acceptance grants a STAFF default to every site in the
// org; an empty list grants every site in the org at SiteRole; a
// non-empty list grants exactly those sites at SiteRole.
type Invite struct {
	ID        int64              `json:"id"`
	OrgID     int64              `json:"organization_id"`
	Email     string             `json:"email"`
	OrgRole   directory.OrgRole  `json:"org_role"`
	SiteRole  directory.SiteRole `json:"site_role"`
	SiteIDs   []int64            `json:"site_ids,omitempty"`
	Token     string             `json:"token"`
	InvitedBy *int64             `json:"invited_by,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	ExpiresAt time.Time          `json:"expires_at"`
	UsedAt    *time.Time         `json:"used_at,omitempty"`
	UsedBy    *int64             `json:"used_by,omitempty"`
	RevokedAt *time.Time         `json:"revoked_at,omitempty"`
}

// Status derives the lifecycle state at a point in time. Used and
// revoked are terminal and win over expiry.
func (i *Invite) Status(now time.Time) Status {
	switch {
	case i.UsedAt != nil:
		return StatusUsed
	case i.RevokedAt != nil:
		return StatusRevoked
	case now.After(i.ExpiresAt):
		return StatusExpired
	default:
		return StatusPending
	}
}
