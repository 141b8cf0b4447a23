// Package authctx builds the per-request authorization context: the
// resolved user, organization, tenant, and merged role sets that every
// downstream policy check consumes.
//
// The context is built fresh on each request and never cached across
// requests, because the active tenant can change between requests via
// the hint cookie. Callers treat the value as immutable once built.
package authctx
