package dto

import "github.com/hongminglow/portal-be/internal/models"

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest accepts either a username or an email in the username field.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	Message string `json:"message"`
	UserID  int64  `json:"user_id"`
}

type UserResponse struct {
	Message string      `json:"message,omitempty"`
	User    models.User `json:"user"`
}

type SessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *models.User `json:"user,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
