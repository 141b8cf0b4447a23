// Package claims extracts identity claims from inbound bearer credentials.
//
// Two providers exist:
//
//   - VerifyingProvider validates token signatures against the identity
//     provider's JWKS via OIDC discovery. This is the only provider
//     allowed in production.
//   - InsecureDecoder decodes the JWT payload without any signature
//     check. It exists for local development and lower environments
//     where tokens are already authenticated upstream, and is rejected
//     by config validation in production.
package claims
