package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/birchwood/canopy/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Identity represents the authenticated caller, resolved from a verified
// bearer token. It is added to the request context by Middleware.
type Identity struct {
	UserID uuid.UUID
	OrgID  uuid.UUID
	Email  string
	Role   string
}

type contextKey int

const identityContextKey contextKey = iota

// IdentityFromContext extracts the authenticated identity from the request context.
// Returns nil if no identity is present (unauthenticated request).
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(identityContextKey).(*Identity)
	return identity
}

// Middleware returns an HTTP middleware that verifies bearer JWTs and
// resolves the subject to a user. Requests with an unknown subject get 404,
// deactivated accounts get 401.
func Middleware(issuer *TokenIssuer, users store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := extractBearerToken(r)
			if tokenString == "" {
				log.Warn().Msg("Missing Authorization header")
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := issuer.Verify(tokenString)
			if err != nil {
				log.Warn().Err(err).Msg("Failed to verify bearer token")
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			userID, err := claims.UserID()
			if err != nil {
				log.Warn().Str("sub", claims.Subject).Msg("Invalid subject claim")
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			ctx := r.Context()

			user, err := users.Get(ctx, userID)
			if err != nil {
				if errors.Is(err, store.ErrUserNotFound) {
					log.Warn().Str("user_id", userID.String()).Msg("Token subject not found")
					http.Error(w, "not found", http.StatusNotFound)
					return
				}
				log.Error().Err(err).Msg("Failed to resolve token subject")
				http.Error(w, "internal server error", http.StatusInternalServerError)
				return
			}

			if !user.Active {
				log.Warn().Str("email", user.Email).Msg("Deactivated user presented a valid token")
				http.Error(w, "account is deactivated", http.StatusUnauthorized)
				return
			}

			identity := &Identity{
				UserID: user.UserID,
				OrgID:  user.OrgID,
				Email:  user.Email,
				Role:   user.Role,
			}

			ctx = context.WithValue(ctx, identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken extracts the JWT from the Authorization header.
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}

	return strings.TrimPrefix(authHeader, prefix)
}
