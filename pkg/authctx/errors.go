package authctx

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated covers a missing or malformed credential and any
// failure to resolve claims to a usable user account. Surfaced as 401,
// never retried.
var ErrUnauthenticated = errors.New("unauthenticated")

// StoreUnavailableError marks a transient infrastructure failure during
// context building. Surfaced as 503 so operators can tell an outage
// from an access denial; an empty context must never stand in for a
// failed store read.
type StoreUnavailableError struct {
	Op  string
	Err error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.Err
}

// IsStoreUnavailable reports whether err is a StoreUnavailableError
func IsStoreUnavailable(err error) bool {
	var target *StoreUnavailableError
	return errors.As(err, &target)
}
