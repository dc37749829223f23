package auth

import "context"

// Session is the per-request authentication state. It is decoded from the
// session cookie when a request starts and dropped when the request ends.
type Session struct {
	UserID  int64
	IsAdmin bool

	changed bool
}

// Authenticated reports whether the session names a user.
func (s *Session) Authenticated() bool {
	return s != nil && s.UserID != 0
}

// Establish binds the session to a user and caches the admin flag seen at login.
func (s *Session) Establish(userID int64, isAdmin bool) {
	s.UserID = userID
	s.IsAdmin = isAdmin
	s.changed = true
}

// Clear drops all session state. Clearing an empty session is a no-op.
func (s *Session) Clear() {
	if s.UserID == 0 && !s.IsAdmin {
		return
	}
	s.UserID = 0
	s.IsAdmin = false
	s.changed = true
}

// Changed reports whether the session must be written back to the client.
func (s *Session) Changed() bool {
	return s != nil && s.changed
}

type sessionKey struct{}

// WithSession stores the request session on ctx.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the request session, or a fresh empty one.
func SessionFromContext(ctx context.Context) *Session {
	if s, ok := ctx.Value(sessionKey{}).(*Session); ok && s != nil {
		return s
	}
	return &Session{}
}
