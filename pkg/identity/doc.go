// Package identity maps external credentials to local user accounts.
//
// A user row is the local anchor for everything scope resolution does;
// external_identities ties (provider, subject) pairs from the identity
// provider to that row. UpsertFromClaims is the single entry point: it
// finds the user for a set of verified claims, links a new identity to
// an existing account when the email matches, or provisions a brand new
// account just in time.
package identity
