package handlers

import (
	"github.com/logimax/logimax-api/internal/models"
)

// ErrorResponse is the JSON body of every failed request.
// swagger:model ErrorResponse
type ErrorResponse struct {
	// Error message
	Message string `json:"message"`
}

// AuthResponse is returned by register and login.
// swagger:model AuthResponse
type AuthResponse struct {
	// Signed bearer token
	Token string `json:"token"`
	// Public projection of the user; never contains the password hash
	User models.UserPublic `json:"user"`
}
