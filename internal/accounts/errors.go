package accounts

import (
	"errors"
	"fmt"

	"github.com/hongminglow/portal-be/internal/storage"
)

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrNotApproved           = errors.New("account pending approval")
	ErrUnauthenticated       = errors.New("not authenticated")
	ErrForbidden             = errors.New("admin access required")
	ErrNotFound              = errors.New("user not found")
	ErrDuplicateUsername     = errors.New("username already exists")
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrCannotRejectAdmin     = errors.New("cannot reject admin users")
	ErrProtectedPrimaryAdmin = errors.New("cannot remove admin status from primary admin")
)

// ValidationError reports malformed or missing input. Message is safe to show to clients.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(message string) error {
	return &ValidationError{Message: message}
}

// translate maps storage sentinels onto account errors and wraps anything else with op.
func translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, storage.ErrDuplicateUsername):
		return ErrDuplicateUsername
	case errors.Is(err, storage.ErrDuplicateEmail):
		return ErrDuplicateEmail
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
