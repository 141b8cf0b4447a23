package middleware

import (
	"context"
	"net/http"
	"time"
)

// RequestTimeout puts a deadline on each request's context so the store
// calls made during scope resolution and request handling cannot block
// indefinitely. A deadline hit surfaces as a store error (5xx), never
// as an empty result.
func RequestTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
