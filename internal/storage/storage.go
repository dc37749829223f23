package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hongminglow/portal-be/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict that could not be attributed to a column.
var ErrAlreadyExists = errors.New("record already exists")

// ErrDuplicateUsername indicates the username unique constraint rejected a write.
var ErrDuplicateUsername = errors.New("username already exists")

// ErrDuplicateEmail indicates the email unique constraint rejected a write.
var ErrDuplicateEmail = errors.New("email already registered")

// Filter narrows list and count queries. Nil fields match every account.
type Filter struct {
	Approved *bool
	Admin    *bool
}

// Matches reports whether the user satisfies every set field of the filter.
func (f Filter) Matches(u models.User) bool {
	if f.Approved != nil && u.IsApproved != *f.Approved {
		return false
	}
	if f.Admin != nil && u.IsAdmin != *f.Admin {
		return false
	}
	return true
}

// Bool returns a pointer for use in Filter literals.
func Bool(v bool) *bool {
	return &v
}

// Users captures the per-record persistence operations needed by the account services.
type Users interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	FindByID(ctx context.Context, id int64) (models.User, error)
	// LockByID behaves like FindByID but holds a row lock until the surrounding
	// transaction ends. Outside WithinTx it is equivalent to FindByID.
	LockByID(ctx context.Context, id int64) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsernameOrEmail(ctx context.Context, identifier string) (models.User, error)
	ListUsers(ctx context.Context, filter Filter) ([]models.User, error)
	CountUsers(ctx context.Context, filter Filter) (int64, error)
	UpdateUser(ctx context.Context, user models.User) (models.User, error)
	DeleteUser(ctx context.Context, id int64) error
	TouchLastLogin(ctx context.Context, id int64, at time.Time) (models.User, error)
}

// UserStore is a Users implementation that can also group operations into one transaction.
type UserStore interface {
	Users
	// WithinTx runs fn against a transactional view of the store. A non-nil
	// error from fn, or a failed commit, rolls every write back.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Users) error) error
}
