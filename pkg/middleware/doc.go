// Package middleware provides the HTTP request pipeline: request IDs,
// authentication and authorization-context installation, role guards,
// and rate limiting.
//
// AuthMiddleware is the entry point for the resolver: it extracts
// bearer claims, builds the authorization context, installs it on the
// request context, and syncs the active-tenant hint cookies on the way
// out.
package middleware
