package middlewares

import (
	"context"
	"encoding/json"
	"net/http"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/logimax/logimax-api/internal/logger"
	"github.com/logimax/logimax-api/internal/models"
)

// Tokener defines the token operations the middleware needs.
type Tokener interface {
	GetTokenFromRequest(ctx context.Context, r *http.Request) (string, error)
	Claims(ctx context.Context, tokenString string) (*jwtlib.RegisteredClaims, error)
}

// RevocationChecker reports whether a token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// ProfileGetter loads the user record for an authenticated subject.
type ProfileGetter interface {
	GetProfile(ctx context.Context, id string) (*models.UserDB, error)
}

type contextKey struct{ name string }

var (
	userIDKey = contextKey{"userID"}
	claimsKey = contextKey{"claims"}
)

type authError struct {
	Message string `json:"message"`
}

// AuthMiddleware validates the bearer token (signature, expiry, issuer,
// audience) and rejects revoked tokens. The subject user id and the parsed
// claims are stored in the request context for downstream handlers.
// revocations may be nil when no revocation store is configured.
func AuthMiddleware(tokener Tokener, revocations RevocationChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			tokenString, err := tokener.GetTokenFromRequest(ctx, r)
			if err != nil {
				unauthorized(w)
				return
			}

			claims, err := tokener.Claims(ctx, tokenString)
			if err != nil {
				unauthorized(w)
				return
			}

			if revocations != nil && claims.ID != "" {
				revoked, err := revocations.IsRevoked(ctx, claims.ID)
				if err != nil {
					// Store outage, not a credential failure. Fail closed,
					// but with the transient-infrastructure status.
					logger.Log.Errorw("revocation check failed", "err", err)
					unavailable(w)
					return
				}
				if revoked {
					unauthorized(w)
					return
				}
			}

			ctx = context.WithValue(ctx, userIDKey, claims.Subject)
			ctx = context.WithValue(ctx, claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin passes only requests whose authenticated user has the admin
// role. It must run after AuthMiddleware.
func RequireAdmin(users ProfileGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			userID, ok := UserIDFromContext(ctx)
			if !ok {
				unauthorized(w)
				return
			}

			user, err := users.GetProfile(ctx, userID)
			if err != nil || user.Role != models.RoleAdmin {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				json.NewEncoder(w).Encode(authError{Message: "Admin access required"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(authError{Message: "Invalid or missing token"})
}

func unavailable(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	json.NewEncoder(w).Encode(authError{Message: "Token verification is temporarily unavailable"})
}

// UserIDFromContext returns the authenticated subject id, if any.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// ClaimsFromContext returns the verified token claims, if any.
func ClaimsFromContext(ctx context.Context) (*jwtlib.RegisteredClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*jwtlib.RegisteredClaims)
	return claims, ok
}
