// Package storage manages the PostgreSQL connection pool and the schema
// migrations for the identity, membership, and invite tables.
package storage
