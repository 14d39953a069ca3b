// Package server exposes the authentication HTTP API.
package server

import (
	"net/http"

	"github.com/birchwood/canopy/internal/auth"
	"github.com/birchwood/canopy/internal/service"
	"github.com/birchwood/canopy/internal/store"
	"github.com/rs/cors"
)

// Server wires the auth service into HTTP handlers.
type Server struct {
	svc    *service.AuthService
	issuer *auth.TokenIssuer
	users  store.UserStore
}

// NewServer creates the HTTP server facade.
func NewServer(svc *service.AuthService, issuer *auth.TokenIssuer, users store.UserStore) *Server {
	return &Server{
		svc:    svc,
		issuer: issuer,
		users:  users,
	}
}

// Handler returns the routed HTTP handler with CORS applied.
// allowedOrigins configures cross-origin access for browser clients.
func (s *Server) Handler(allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /auth/register-organization", s.handleRegisterOrganization)
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/forgot-password", s.handleForgotPassword)
	mux.HandleFunc("POST /auth/reset-password", s.handleResetPassword)
	mux.HandleFunc("POST /auth/verify-email", s.handleVerifyEmail)

	// Bearer token required
	requireAuth := auth.Middleware(s.issuer, s.users)
	mux.Handle("PATCH /auth/change-password", requireAuth(http.HandlerFunc(s.handleChangePassword)))

	return withCORS(allowedOrigins, mux)
}

// withCORS adds CORS support for browser clients.
func withCORS(allowedOrigins []string, h http.Handler) http.Handler {
	middleware := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return middleware.Handler(h)
}
