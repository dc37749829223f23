package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/portal-be/internal/accounts"
	"github.com/hongminglow/portal-be/internal/http/respond"
	"github.com/hongminglow/portal-be/internal/logger"
)

const maxBodyBytes = 1 << 20

var errNoData = errors.New("no data provided")

// decodeJSON reads a JSON object body into dst. An empty body, a null literal and an
// empty object all yield errNoData.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return errNoData
		}
		return err
	}
	if bytes.Equal(raw, []byte("null")) {
		return errNoData
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil && len(fields) == 0 {
		return errNoData
	}
	return json.Unmarshal(raw, dst)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errNoData) {
		respond.Error(w, http.StatusBadRequest, "No data provided")
		return
	}
	respond.Error(w, http.StatusBadRequest, "invalid JSON payload")
}

// writeServiceError maps account errors onto status codes. Anything unrecognised is
// logged and answered with the opaque fallback message.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error, fallback string) {
	var verr *accounts.ValidationError
	switch {
	case errors.As(err, &verr):
		respond.Error(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, accounts.ErrDuplicateUsername):
		respond.Error(w, http.StatusBadRequest, "Username already exists")
	case errors.Is(err, accounts.ErrDuplicateEmail):
		respond.Error(w, http.StatusBadRequest, "Email already registered")
	case errors.Is(err, accounts.ErrInvalidCredentials):
		respond.Error(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, accounts.ErrNotApproved):
		respond.Error(w, http.StatusForbidden, "Your account is pending approval by an administrator")
	case errors.Is(err, accounts.ErrUnauthenticated):
		respond.Error(w, http.StatusUnauthorized, "Not authenticated")
	case errors.Is(err, accounts.ErrForbidden):
		respond.Error(w, http.StatusForbidden, "Admin access required")
	case errors.Is(err, accounts.ErrNotFound):
		respond.Error(w, http.StatusNotFound, "User not found")
	case errors.Is(err, accounts.ErrCannotRejectAdmin):
		respond.Error(w, http.StatusBadRequest, "Cannot reject admin users")
	case errors.Is(err, accounts.ErrProtectedPrimaryAdmin):
		respond.Error(w, http.StatusBadRequest, "Cannot remove admin status from primary admin")
	default:
		logger.FromContext(r.Context(), log).Error(fallback, zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, fallback)
	}
}
