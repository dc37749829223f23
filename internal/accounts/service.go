// Package accounts implements the account lifecycle: self-registration into a
// pending state, admin approval, rejection, admin promotion and the session gate
// that guards the admin surface.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/portal-be/internal/auth"
	"github.com/hongminglow/portal-be/internal/logger"
	"github.com/hongminglow/portal-be/internal/models"
	"github.com/hongminglow/portal-be/internal/storage"
)

// Options configures a Service.
type Options struct {
	// PrimaryAdminEmail names the account that can never lose admin status.
	PrimaryAdminEmail string
	Logger            *zap.Logger
}

// Service owns registration and the admin-only lifecycle transitions.
type Service struct {
	store        storage.UserStore
	hasher       auth.Hasher
	primaryEmail string
	logger       *zap.Logger
}

// NewService constructs the lifecycle service.
func NewService(store storage.UserStore, hasher auth.Hasher, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:        store,
		hasher:       hasher,
		primaryEmail: strings.ToLower(strings.TrimSpace(opts.PrimaryAdminEmail)),
		logger:       log,
	}
}

// Register creates a pending account and returns its id.
func (s *Service) Register(ctx context.Context, in Credentials) (int64, error) {
	user, err := s.create(ctx, in, false, false)
	if err != nil {
		return 0, err
	}
	s.log(ctx).Info("user registered", zap.Int64("user_id", user.ID), zap.String("username", user.Username))
	return user.ID, nil
}

// AdminCreate creates an already-approved account, optionally with admin rights.
func (s *Service) AdminCreate(ctx context.Context, in Credentials, isAdmin bool) (models.User, error) {
	user, err := s.create(ctx, in, isAdmin, true)
	if err != nil {
		return models.User{}, err
	}
	s.log(ctx).Info("user created by admin", zap.Int64("user_id", user.ID), zap.Bool("is_admin", user.IsAdmin))
	return user, nil
}

func (s *Service) create(ctx context.Context, in Credentials, isAdmin, approved bool) (models.User, error) {
	in = in.normalized()
	if err := in.validate(); err != nil {
		return models.User{}, err
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	var created models.User
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Users) error {
		if err := ensureAvailable(ctx, tx, in.Username, in.Email); err != nil {
			return err
		}
		user, err := tx.CreateUser(ctx, models.User{
			Username:     in.Username,
			Email:        in.Email,
			PasswordHash: digest,
			IsAdmin:      isAdmin,
			IsApproved:   approved,
		})
		if err != nil {
			return translate("create user", err)
		}
		created = user
		return nil
	})
	return created, err
}

// ensureAvailable gives early, ordered duplicate errors. The store's unique
// constraints still decide races between concurrent creates.
func ensureAvailable(ctx context.Context, tx storage.Users, username, email string) error {
	if _, err := tx.FindByUsername(ctx, username); err == nil {
		return ErrDuplicateUsername
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("lookup username: %w", err)
	}
	if _, err := tx.FindByEmail(ctx, email); err == nil {
		return ErrDuplicateEmail
	} else if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("lookup email: %w", err)
	}
	return nil
}

// Approve marks the account approved. Approving an approved account succeeds without a write.
func (s *Service) Approve(ctx context.Context, id int64) (models.User, error) {
	var out models.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Users) error {
		user, err := tx.LockByID(ctx, id)
		if err != nil {
			return translate("load user", err)
		}
		if user.IsApproved {
			out = user
			return nil
		}
		user.IsApproved = true
		out, err = tx.UpdateUser(ctx, user)
		return translate("approve user", err)
	})
	if err != nil {
		return models.User{}, err
	}
	s.log(ctx).Info("user approved", zap.Int64("user_id", out.ID))
	return out, nil
}

// Reject hard-deletes a non-admin account and returns the removed record.
func (s *Service) Reject(ctx context.Context, id int64) (models.User, error) {
	var removed models.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Users) error {
		user, err := tx.LockByID(ctx, id)
		if err != nil {
			return translate("load user", err)
		}
		if user.IsAdmin {
			return ErrCannotRejectAdmin
		}
		if err := tx.DeleteUser(ctx, id); err != nil {
			return translate("delete user", err)
		}
		removed = user
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	s.log(ctx).Info("user rejected", zap.Int64("user_id", removed.ID), zap.String("username", removed.Username))
	return removed, nil
}

// ToggleAdmin flips the admin flag. The primary admin cannot be demoted.
func (s *Service) ToggleAdmin(ctx context.Context, id int64) (models.User, error) {
	var out models.User
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Users) error {
		user, err := tx.LockByID(ctx, id)
		if err != nil {
			return translate("load user", err)
		}
		if user.IsAdmin && s.isPrimaryAdmin(user) {
			return ErrProtectedPrimaryAdmin
		}
		user.IsAdmin = !user.IsAdmin
		out, err = tx.UpdateUser(ctx, user)
		return translate("toggle admin", err)
	})
	if err != nil {
		return models.User{}, err
	}
	s.log(ctx).Info("admin status changed", zap.Int64("user_id", out.ID), zap.Bool("is_admin", out.IsAdmin))
	return out, nil
}

// Stats aggregates account counts. Pending is derived so that pending+approved == total.
func (s *Service) Stats(ctx context.Context) (models.Stats, error) {
	var stats models.Stats
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Users) error {
		var err error
		if stats.Total, err = tx.CountUsers(ctx, storage.Filter{}); err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		if stats.Approved, err = tx.CountUsers(ctx, storage.Filter{Approved: storage.Bool(true)}); err != nil {
			return fmt.Errorf("count approved users: %w", err)
		}
		if stats.Admins, err = tx.CountUsers(ctx, storage.Filter{Admin: storage.Bool(true)}); err != nil {
			return fmt.Errorf("count admin users: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.Stats{}, err
	}
	// Counts are separate statements; a commit landing between them must not
	// push pending below zero.
	if stats.Approved > stats.Total {
		stats.Approved = stats.Total
	}
	stats.Pending = stats.Total - stats.Approved
	return stats, nil
}

// ListUsers returns every account ordered by id.
func (s *Service) ListUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx, storage.Filter{})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ListPending returns the accounts awaiting approval.
func (s *Service) ListPending(ctx context.Context) ([]models.User, error) {
	users, err := s.store.ListUsers(ctx, storage.Filter{Approved: storage.Bool(false)})
	if err != nil {
		return nil, fmt.Errorf("list pending users: %w", err)
	}
	return users, nil
}

// EnsurePrimaryAdmin bootstraps the primary admin account. When the account exists it is
// forced to approved admin; otherwise it is created with the given username and password.
// It does nothing without a configured primary email or a password.
func (s *Service) EnsurePrimaryAdmin(ctx context.Context, username, password string) error {
	if s.primaryEmail == "" || password == "" {
		return nil
	}

	existing, err := s.store.FindByEmail(ctx, s.primaryEmail)
	switch {
	case err == nil:
		if existing.IsAdmin && existing.IsApproved {
			return nil
		}
		return s.store.WithinTx(ctx, func(ctx context.Context, tx storage.Users) error {
			user, err := tx.LockByID(ctx, existing.ID)
			if err != nil {
				return translate("load primary admin", err)
			}
			user.IsAdmin, user.IsApproved = true, true
			if _, err := tx.UpdateUser(ctx, user); err != nil {
				return translate("promote primary admin", err)
			}
			s.log(ctx).Info("primary admin restored", zap.Int64("user_id", user.ID))
			return nil
		})
	case errors.Is(err, storage.ErrNotFound):
		user, err := s.create(ctx, Credentials{Username: username, Email: s.primaryEmail, Password: password}, true, true)
		if err != nil {
			return fmt.Errorf("create primary admin: %w", err)
		}
		s.log(ctx).Info("primary admin created", zap.Int64("user_id", user.ID))
		return nil
	default:
		return fmt.Errorf("lookup primary admin: %w", err)
	}
}

func (s *Service) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.logger)
}

func (s *Service) isPrimaryAdmin(user models.User) bool {
	return s.primaryEmail != "" && strings.EqualFold(user.Email, s.primaryEmail)
}
