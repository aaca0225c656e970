package services

import (
	"context"
	"errors"

	"github.com/logimax/logimax-api/internal/logger"
	"github.com/logimax/logimax-api/internal/models"
)

// ErrUserNotFound is returned when the requested user record does not exist.
var ErrUserNotFound = errors.New("user not found")

// UserFinder defines the read operations the user service needs.
type UserFinder interface {
	GetByID(ctx context.Context, id string) (*models.UserDB, error)
	GetAll(ctx context.Context) ([]models.UserDB, error)
}

// UserService serves profile and user-management reads.
type UserService struct {
	reader UserFinder
}

// NewUserService creates a new UserService instance.
func NewUserService(reader UserFinder) *UserService {
	return &UserService{reader: reader}
}

// GetProfile returns the user record for the given id.
func (svc *UserService) GetProfile(ctx context.Context, id string) (*models.UserDB, error) {
	user, err := svc.reader.GetByID(ctx, id)
	if err != nil {
		logger.Log.Errorw("failed to get user profile", "id", id, "err", err)
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// ListUsers returns every user record. Authorization (admin only) is
// enforced by the route middleware, not here.
func (svc *UserService) ListUsers(ctx context.Context) ([]models.UserDB, error) {
	users, err := svc.reader.GetAll(ctx)
	if err != nil {
		logger.Log.Errorw("failed to list users", "err", err)
		return nil, err
	}
	return users, nil
}
