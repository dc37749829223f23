package middleware

import (
	"net/http"

	"github.com/hongminglow/portal-be/internal/auth"
)

// SessionLoader reads the client session from an incoming request.
type SessionLoader interface {
	Load(r *http.Request) *auth.Session
}

// Sessions places the request's session on the context. Handlers that change it
// are responsible for writing it back.
func Sessions(loader SessionLoader, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := loader.Load(r)
		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
	})
}
