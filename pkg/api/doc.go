// Package api wires the HTTP surface: the authenticated /api/v1
// routes, the invite management endpoints, and the middleware chain
// around them.
package api
