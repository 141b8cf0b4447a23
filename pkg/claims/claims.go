package claims

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	// ErrNoCredential indicates a missing Authorization header or a
	// non-bearer scheme
	ErrNoCredential = errors.New("missing bearer credential")

	// ErrMalformedCredential indicates a credential that could not be
	// decoded into claims
	ErrMalformedCredential = errors.New("malformed bearer credential")
)

// Claims is the normalized set of identity claims extracted from a
// bearer credential
type Claims struct {
	// Provider labels the identity provider the credential came from
	Provider string

	// Subject is the provider-scoped stable identifier ("sub")
	Subject string

	// Issuer is the token issuer ("iss")
	Issuer string

	// Email and Name are optional profile claims used for identity
	// backfill during JIT provisioning
	Email string
	Name  string

	// Raw carries the full decoded claim set for downstream consumers
	Raw map[string]interface{}
}

// Provider extracts claims from a raw bearer token
type Provider interface {
	Extract(ctx context.Context, rawToken string) (*Claims, error)
}

// BearerToken pulls the bearer token out of an HTTP request. It returns
// ErrNoCredential when the header is absent or the scheme is not bearer.
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrNoCredential
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrNoCredential
	}
	if parts[1] == "" {
		return "", ErrNoCredential
	}

	return parts[1], nil
}

// fromRaw maps a decoded claim set into normalized Claims
func fromRaw(provider string, raw map[string]interface{}) (*Claims, error) {
	c := &Claims{
		Provider: provider,
		Raw:      raw,
	}

	if sub, ok := raw["sub"].(string); ok {
		c.Subject = sub
	}
	if c.Subject == "" {
		return nil, ErrMalformedCredential
	}

	if iss, ok := raw["iss"].(string); ok {
		c.Issuer = iss
	}
	if email, ok := raw["email"].(string); ok {
		c.Email = email
	}
	if name, ok := raw["name"].(string); ok {
		c.Name = name
	}

	return c, nil
}
