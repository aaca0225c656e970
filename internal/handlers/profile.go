package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/logimax/logimax-api/internal/logger"
	"github.com/logimax/logimax-api/internal/middlewares"
	"github.com/logimax/logimax-api/internal/models"
	"github.com/logimax/logimax-api/internal/services"
)

// ProfileProvider defines the interface that the profile service must implement.
type ProfileProvider interface {
	GetProfile(ctx context.Context, id string) (*models.UserDB, error)
}

// NewProfileHandler returns an HTTP handler serving the authenticated
// user's own record.
// @Summary Get own profile
// @Description Returns the public projection of the authenticated user.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.UserPublic
// @Failure 401 {object} handlers.ErrorResponse "Invalid or missing token"
// @Failure 404 {object} handlers.ErrorResponse "User not found"
// @Router /api/users/profile [get]
func NewProfileHandler(svc ProfileProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		userID, ok := middlewares.UserIDFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(ErrorResponse{Message: "Invalid or missing token"})
			return
		}

		user, err := svc.GetProfile(r.Context(), userID)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrUserNotFound):
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(ErrorResponse{Message: "User not found"})
			default:
				logger.Log.Errorw("profile fetch failed", "err", err)
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(ErrorResponse{Message: err.Error()})
			}
			return
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(user.Public())
	}
}
