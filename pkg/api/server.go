package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/pathwayhq/pathway/pkg/middleware"
	"github.com/pathwayhq/pathway/pkg/observability"
)

// Server is the HTTP API server
type Server struct {
	router *mux.Router
	logger *observability.Logger
}

// Deps carries everything the server needs wired in
type Deps struct {
	Auth           *middleware.AuthMiddleware
	RateLimit      func(http.Handler) http.Handler
	RequestTimeout time.Duration
	Metrics        *observability.Metrics
	Invites        InviteService
	Logger         *observability.Logger
}

// NewServer builds the router. Every /api/v1 route runs behind request
// IDs, metrics, rate limiting, and authentication, in that order.
func NewServer(deps Deps) *Server {
	s := &Server{
		router: mux.NewRouter(),
		logger: deps.Logger,
	}

	apiRouter := s.router.PathPrefix("/api/v1").Subrouter()
	apiRouter.Use(
		middleware.RequestID,
		observability.HTTPMetricsMiddleware(deps.Metrics),
	)
	if deps.RequestTimeout > 0 {
		apiRouter.Use(middleware.RequestTimeout(deps.RequestTimeout))
	}
	// Rate limiting runs after authentication so the limiter can key on
	// the resolved user instead of lumping everyone into the per-IP
	// bucket.
	apiRouter.Use(deps.Auth.Handler)
	if deps.RateLimit != nil {
		apiRouter.Use(deps.RateLimit)
	}

	NewMeHandlers(deps.Logger).RegisterRoutes(apiRouter)
	NewInviteHandlers(deps.Invites, deps.Logger).RegisterRoutes(apiRouter)

	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
