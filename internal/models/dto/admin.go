package dto

import "github.com/hongminglow/portal-be/internal/models"

type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsAdmin  bool   `json:"is_admin"`
}

type UsersResponse struct {
	Users []models.User `json:"users"`
}

type PendingUsersResponse struct {
	PendingUsers []models.User `json:"pending_users"`
}

type StatsResponse struct {
	Stats models.Stats `json:"stats"`
}
