package invites

import (
	"errors"
	"fmt"
)

// Reasons an invite operation can be rejected with a client error
const (
	ReasonNotFound      = "invite not found"
	ReasonAlreadyUsed   = "invite already used"
	ReasonRevoked       = "invite revoked"
	ReasonExpired       = "invite expired"
	ReasonEmailMismatch = "invite was issued to a different email address"
)

// InviteError is a client-caused rejection with a human-readable
// reason. Distinct from infrastructure failures so callers map it to a
// 4xx.
type InviteError struct {
	Reason string
}

func (e *InviteError) Error() string {
	return fmt.Sprintf("invalid invite: %s", e.Reason)
}

// AsInviteError returns the InviteError in err's chain, or nil
func AsInviteError(err error) *InviteError {
	var target *InviteError
	if errors.As(err, &target) {
		return target
	}
	return nil
}
