package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	jwtlib "github.com/golang-jwt/jwt/v5"

	"github.com/logimax/logimax-api/internal/logger"
	"github.com/logimax/logimax-api/internal/middlewares"
)

// Logouter defines the interface that the logout service must implement.
type Logouter interface {
	Logout(ctx context.Context, claims *jwtlib.RegisteredClaims) error
}

// LogoutResponse represents a successful logout response
// swagger:model LogoutResponse
type LogoutResponse struct {
	// Success message
	Message string `json:"message"`
}

// NewLogoutHandler returns an HTTP handler that revokes the presented token.
// @Summary User logout
// @Description Revokes the presented bearer token for the remainder of its lifetime.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} handlers.LogoutResponse "Token revoked"
// @Failure 401 {object} handlers.ErrorResponse "Invalid or missing token"
// @Router /api/auth/logout [post]
func NewLogoutHandler(svc Logouter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		claims, ok := middlewares.ClaimsFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(ErrorResponse{Message: "Invalid or missing token"})
			return
		}

		if err := svc.Logout(r.Context(), claims); err != nil {
			logger.Log.Errorw("logout failed", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(ErrorResponse{Message: err.Error()})
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(LogoutResponse{Message: "Logged out"})
	}
}
