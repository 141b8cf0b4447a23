package claims

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// InsecureDecoder decodes JWT payloads WITHOUT verifying the signature.
//
// This is a deliberate, named limitation: the credential is assumed to
// have been authenticated upstream (gateway, trusted proxy) or the
// deployment accepts the risk in non-production environments. Config
// validation refuses to select this provider in production.
type InsecureDecoder struct {
	provider string
}

// NewInsecureDecoder creates a decoder tagging claims with the given
// provider label
func NewInsecureDecoder(provider string) *InsecureDecoder {
	return &InsecureDecoder{provider: provider}
}

// Extract decodes the token payload into claims. No signature check is
// performed.
func (d *InsecureDecoder) Extract(_ context.Context, rawToken string) (*Claims, error) {
	mapClaims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(rawToken, mapClaims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	return fromRaw(d.provider, map[string]interface{}(mapClaims))
}
