package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/hongminglow/portal-be/internal/accounts"
	"github.com/hongminglow/portal-be/internal/auth"
	"github.com/hongminglow/portal-be/internal/http/respond"
	"github.com/hongminglow/portal-be/internal/logger"
	"github.com/hongminglow/portal-be/internal/models"
	"github.com/hongminglow/portal-be/internal/models/dto"
)

// AdminHandler serves the admin dashboard endpoints. Every route passes the admin guard first.
type AdminHandler struct {
	service *accounts.Service
	gate    *accounts.Gate
	logger  *zap.Logger
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(service *accounts.Service, gate *accounts.Gate, log *zap.Logger) *AdminHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AdminHandler{service: service, gate: gate, logger: log}
}

type adminHandlerFunc func(w http.ResponseWriter, r *http.Request, admin models.User)

// Register attaches admin routes to the mux.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/admin/users", h.requireAdmin(h.handleListUsers))
	mux.HandleFunc("GET /api/admin/users/pending", h.requireAdmin(h.handleListPending))
	mux.HandleFunc("POST /api/admin/users", h.requireAdmin(h.handleCreateUser))
	mux.HandleFunc("POST /api/admin/users/{id}/approve", h.requireAdmin(h.handleApprove))
	mux.HandleFunc("POST /api/admin/users/{id}/reject", h.requireAdmin(h.handleReject))
	mux.HandleFunc("POST /api/admin/users/{id}/toggle-admin", h.requireAdmin(h.handleToggleAdmin))
	mux.HandleFunc("GET /api/admin/stats", h.requireAdmin(h.handleStats))
}

func (h *AdminHandler) requireAdmin(next adminHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, err := h.gate.RequireAdmin(r.Context(), auth.SessionFromContext(r.Context()))
		if err != nil {
			writeServiceError(w, r, h.logger, err, "Failed to verify admin access")
			return
		}
		next(w, r, admin)
	}
}

func (h *AdminHandler) handleListUsers(w http.ResponseWriter, r *http.Request, _ models.User) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to fetch users")
		return
	}
	respond.JSON(w, http.StatusOK, dto.UsersResponse{Users: users})
}

func (h *AdminHandler) handleListPending(w http.ResponseWriter, r *http.Request, _ models.User) {
	users, err := h.service.ListPending(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to fetch pending users")
		return
	}
	respond.JSON(w, http.StatusOK, dto.PendingUsersResponse{PendingUsers: users})
}

func (h *AdminHandler) handleCreateUser(w http.ResponseWriter, r *http.Request, admin models.User) {
	var req dto.CreateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	user, err := h.service.AdminCreate(r.Context(), accounts.Credentials{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}, req.IsAdmin)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to create user")
		return
	}

	h.log(r).Info("admin created user", zap.Int64("admin_id", admin.ID), zap.Int64("user_id", user.ID))
	respond.JSON(w, http.StatusCreated, dto.UserResponse{Message: "User created successfully", User: user})
}

func (h *AdminHandler) handleApprove(w http.ResponseWriter, r *http.Request, _ models.User) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Approve(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to approve user")
		return
	}
	respond.JSON(w, http.StatusOK, dto.UserResponse{
		Message: fmt.Sprintf("User %s approved successfully", user.Username),
		User:    user,
	})
}

func (h *AdminHandler) handleReject(w http.ResponseWriter, r *http.Request, _ models.User) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Reject(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to reject user")
		return
	}
	respond.JSON(w, http.StatusOK, dto.MessageResponse{
		Message: fmt.Sprintf("User %s rejected and removed", user.Username),
	})
}

func (h *AdminHandler) handleToggleAdmin(w http.ResponseWriter, r *http.Request, _ models.User) {
	id, ok := userID(w, r)
	if !ok {
		return
	}
	user, err := h.service.ToggleAdmin(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to update admin status")
		return
	}
	respond.JSON(w, http.StatusOK, dto.UserResponse{
		Message: fmt.Sprintf("User %s admin status updated", user.Username),
		User:    user,
	})
}

func (h *AdminHandler) handleStats(w http.ResponseWriter, r *http.Request, _ models.User) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Failed to fetch stats")
		return
	}
	respond.JSON(w, http.StatusOK, dto.StatsResponse{Stats: stats})
}

func (h *AdminHandler) log(r *http.Request) *zap.Logger {
	return logger.FromContext(r.Context(), h.logger)
}

// userID parses the {id} path segment. Anything but a positive integer is a missing user.
func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respond.Error(w, http.StatusNotFound, "User not found")
		return 0, false
	}
	return id, true
}
