package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hongminglow/portal-be/internal/auth"
	"github.com/hongminglow/portal-be/internal/logger"
	"github.com/hongminglow/portal-be/internal/models"
	"github.com/hongminglow/portal-be/internal/storage"
)

// timingPassword is hashed once so failed lookups still pay for a digest comparison.
const timingPassword = "portal-timing-equaliser"

// Gate owns the session contract: login, logout, session introspection and the admin guard.
type Gate struct {
	store  storage.Users
	hasher auth.Hasher
	logger *zap.Logger
	now    func() time.Time

	dummyDigest string
}

// SessionStatus is the non-failing view of the current session.
type SessionStatus struct {
	Authenticated bool
	User          *models.User
}

// NewGate builds a gate over the user store. It fails when the timing digest cannot be prepared.
func NewGate(store storage.Users, hasher auth.Hasher, log *zap.Logger) (*Gate, error) {
	if log == nil {
		log = zap.NewNop()
	}
	dummy, err := hasher.Hash(timingPassword)
	if err != nil {
		return nil, fmt.Errorf("prepare timing digest: %w", err)
	}
	return &Gate{
		store:       store,
		hasher:      hasher,
		logger:      log,
		now:         time.Now,
		dummyDigest: dummy,
	}, nil
}

// Login authenticates identifier (username, or email in any case) and binds sess to the account.
// Unknown identifiers and wrong passwords both yield ErrInvalidCredentials; ErrNotApproved is
// only reported once the password has been verified.
func (g *Gate) Login(ctx context.Context, sess *auth.Session, identifier, password string) (models.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return models.User{}, invalid("Username/email and password are required")
	}

	user, err := g.store.FindByUsernameOrEmail(ctx, identifier)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			g.hasher.Verify(password, g.dummyDigest)
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, fmt.Errorf("lookup user: %w", err)
	}

	if !g.hasher.Verify(password, user.PasswordHash) {
		return models.User{}, ErrInvalidCredentials
	}
	if !user.IsApproved {
		return models.User{}, ErrNotApproved
	}

	user, err = g.store.TouchLastLogin(ctx, user.ID, g.now().UTC())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, fmt.Errorf("record last login: %w", err)
	}

	sess.Establish(user.ID, user.IsAdmin)
	return user, nil
}

// Logout clears the session. It never fails.
func (g *Gate) Logout(sess *auth.Session) {
	sess.Clear()
}

// CurrentUser resolves the session to a live, approved account. A session pointing at a
// deleted or unapproved account is cleared.
func (g *Gate) CurrentUser(ctx context.Context, sess *auth.Session) (models.User, error) {
	if !sess.Authenticated() {
		return models.User{}, ErrUnauthenticated
	}

	user, err := g.store.FindByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			sess.Clear()
			return models.User{}, ErrUnauthenticated
		}
		return models.User{}, fmt.Errorf("load session user: %w", err)
	}
	if !user.IsApproved {
		sess.Clear()
		return models.User{}, ErrUnauthenticated
	}
	return user, nil
}

// CheckSession is CurrentUser without failures, for idle polling.
func (g *Gate) CheckSession(ctx context.Context, sess *auth.Session) SessionStatus {
	user, err := g.CurrentUser(ctx, sess)
	if err != nil {
		if !errors.Is(err, ErrUnauthenticated) {
			g.log(ctx).Warn("check session failed", zap.Int64("user_id", sess.UserID), zap.Error(err))
		}
		return SessionStatus{}
	}
	return SessionStatus{Authenticated: true, User: &user}
}

func (g *Gate) log(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, g.logger)
}

// RequireAdmin guards every admin operation. The session's cached admin flag is necessary
// but never sufficient: the live record must still be an approved admin.
func (g *Gate) RequireAdmin(ctx context.Context, sess *auth.Session) (models.User, error) {
	if !sess.Authenticated() || !sess.IsAdmin {
		return models.User{}, ErrForbidden
	}

	user, err := g.store.FindByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.User{}, ErrForbidden
		}
		return models.User{}, fmt.Errorf("load admin: %w", err)
	}
	if !user.IsAdmin || !user.IsApproved {
		g.log(ctx).Info("stale admin session rejected", zap.Int64("user_id", user.ID))
		return models.User{}, ErrForbidden
	}
	return user, nil
}
