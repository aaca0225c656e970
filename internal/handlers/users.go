package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/logimax/logimax-api/internal/logger"
	"github.com/logimax/logimax-api/internal/models"
)

// UserLister defines the interface that the user-management service must implement.
type UserLister interface {
	ListUsers(ctx context.Context) ([]models.UserDB, error)
}

// NewUsersHandler returns an HTTP handler listing all users. The admin-only
// restriction is enforced by the route middleware.
// @Summary List all users
// @Description Returns the public projection of every user. Admin only.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.UserPublic
// @Failure 401 {object} handlers.ErrorResponse "Invalid or missing token"
// @Failure 403 {object} handlers.ErrorResponse "Admin access required"
// @Router /api/users [get]
func NewUsersHandler(svc UserLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		users, err := svc.ListUsers(r.Context())
		if err != nil {
			logger.Log.Errorw("user listing failed", "err", err)
			w.WriteHeader(http.StatusInternalServerError)
			json.NewEncoder(w).Encode(ErrorResponse{Message: err.Error()})
			return
		}

		projections := make([]models.UserPublic, 0, len(users))
		for i := range users {
			projections = append(projections, users[i].Public())
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(projections)
	}
}
