package services_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/logimax/logimax-api/internal/models"
	"github.com/logimax/logimax-api/internal/services"
)

func TestUserService_GetProfile(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	userID := primitive.NewObjectID()

	tests := []struct {
		name      string
		id        string
		user      *models.UserDB
		readerErr error
		wantErr   error
	}{
		{
			name: "found",
			id:   userID.Hex(),
			user: &models.UserDB{ID: userID, Username: "alice"},
		},
		{
			name:    "not found",
			id:      primitive.NewObjectID().Hex(),
			wantErr: services.ErrUserNotFound,
		},
		{
			name:      "reader error",
			id:        userID.Hex(),
			readerErr: errors.New("db error"),
			wantErr:   errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockReader := services.NewMockUserFinder(ctrl)
			svc := services.NewUserService(mockReader)

			mockReader.EXPECT().
				GetByID(gomock.Any(), tt.id).
				Return(tt.user, tt.readerErr)

			user, err := svc.GetProfile(context.Background(), tt.id)
			if tt.wantErr != nil {
				assert.EqualError(t, err, tt.wantErr.Error())
				assert.Nil(t, user)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "alice", user.Username)
			}
		})
	}
}

func TestUserService_ListUsers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockReader := services.NewMockUserFinder(ctrl)
	svc := services.NewUserService(mockReader)

	users := []models.UserDB{
		{ID: primitive.NewObjectID(), Username: "alice"},
		{ID: primitive.NewObjectID(), Username: "bob"},
	}

	mockReader.EXPECT().GetAll(gomock.Any()).Return(users, nil)

	got, err := svc.ListUsers(context.Background())
	assert.NoError(t, err)
	assert.Len(t, got, 2)

	mockReader.EXPECT().GetAll(gomock.Any()).Return(nil, errors.New("db error"))
	_, err = svc.ListUsers(context.Background())
	assert.EqualError(t, err, "db error")
}
