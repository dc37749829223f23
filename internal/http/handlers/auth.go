package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/portal-be/internal/accounts"
	"github.com/hongminglow/portal-be/internal/auth"
	"github.com/hongminglow/portal-be/internal/http/respond"
	"github.com/hongminglow/portal-be/internal/logger"
	"github.com/hongminglow/portal-be/internal/models/dto"
)

// SessionWriter persists a request session back to the client.
type SessionWriter interface {
	Save(w http.ResponseWriter, s *auth.Session) error
}

// AuthHandler owns the public register/login/session endpoints.
type AuthHandler struct {
	service  *accounts.Service
	gate     *accounts.Gate
	sessions SessionWriter
	logger   *zap.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service *accounts.Service, gate *accounts.Gate, sessions SessionWriter, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{service: service, gate: gate, sessions: sessions, logger: log}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", h.handleRegister)
	mux.HandleFunc("POST /api/auth/login", h.handleLogin)
	mux.HandleFunc("POST /api/auth/logout", h.handleLogout)
	mux.HandleFunc("GET /api/auth/me", h.handleMe)
	mux.HandleFunc("GET /api/auth/check-session", h.handleCheckSession)
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	id, err := h.service.Register(r.Context(), accounts.Credentials{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Registration failed")
		return
	}

	respond.JSON(w, http.StatusCreated, dto.RegisterResponse{
		Message: "Registration successful. Your account is pending approval by an administrator.",
		UserID:  id,
	})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	sess := auth.SessionFromContext(r.Context())
	user, err := h.gate.Login(r.Context(), sess, req.Username, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "Login failed")
		return
	}
	if !h.saveSession(w, r, sess, "Login failed") {
		return
	}

	respond.JSON(w, http.StatusOK, dto.UserResponse{Message: "Login successful", User: user})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())
	h.gate.Logout(sess)
	if err := h.sessions.Save(w, sess); err != nil {
		h.log(r).Warn("clear session cookie", zap.Error(err))
	}
	respond.JSON(w, http.StatusOK, dto.MessageResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())
	user, err := h.gate.CurrentUser(r.Context(), sess)
	if err != nil {
		h.saveSession(w, r, sess, "")
		writeServiceError(w, r, h.logger, err, "Failed to load session")
		return
	}
	respond.JSON(w, http.StatusOK, dto.UserResponse{User: user})
}

func (h *AuthHandler) handleCheckSession(w http.ResponseWriter, r *http.Request) {
	sess := auth.SessionFromContext(r.Context())
	status := h.gate.CheckSession(r.Context(), sess)
	h.saveSession(w, r, sess, "")
	respond.JSON(w, http.StatusOK, dto.SessionResponse{
		Authenticated: status.Authenticated,
		User:          status.User,
	})
}

// saveSession writes the cookie when the session changed. With a non-empty
// failure message a write error is answered with a 500 and false is returned.
func (h *AuthHandler) saveSession(w http.ResponseWriter, r *http.Request, sess *auth.Session, failure string) bool {
	if !sess.Changed() {
		return true
	}
	if err := h.sessions.Save(w, sess); err != nil {
		h.log(r).Error("save session", zap.Error(err))
		if failure != "" {
			respond.Error(w, http.StatusInternalServerError, failure)
			return false
		}
	}
	return true
}

func (h *AuthHandler) log(r *http.Request) *zap.Logger {
	return logger.FromContext(r.Context(), h.logger)
}
