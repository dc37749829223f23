package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSession is returned when a session cookie cannot be trusted.
var ErrInvalidSession = errors.New("invalid session")

// CookieOptions configures how sessions are carried in the client cookie.
type CookieOptions struct {
	Name   string
	Secret string
	Issuer string
	TTL    time.Duration
	Secure bool
}

type sessionClaims struct {
	Admin bool `json:"adm"`
	jwt.RegisteredClaims
}

// CookieStore signs the session into an HS256 JWT held in an HttpOnly cookie.
// No session state is kept on the server.
type CookieStore struct {
	name   string
	secret []byte
	issuer string
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewCookieStore creates a cookie store with the provided options.
func NewCookieStore(opts CookieOptions) *CookieStore {
	return &CookieStore{
		name:   opts.Name,
		secret: []byte(opts.Secret),
		issuer: opts.Issuer,
		ttl:    opts.TTL,
		secure: opts.Secure,
		now:    time.Now,
	}
}

// Name returns the cookie name.
func (c *CookieStore) Name() string {
	return c.name
}

// Encode signs the session.
func (c *CookieStore) Encode(s Session) (string, error) {
	now := c.now()
	claims := sessionClaims{
		Admin: s.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   strconv.FormatInt(s.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// Decode verifies the signature, issuer and lifetime of a session value.
func (c *CookieStore) Decode(value string) (Session, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(value, &claims, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return Session{}, fmt.Errorf("%w: bad subject %q", ErrInvalidSession, claims.Subject)
	}
	return Session{UserID: id, IsAdmin: claims.Admin}, nil
}

// Load reads the session from the request. A missing or untrusted cookie yields an empty session.
func (c *CookieStore) Load(r *http.Request) *Session {
	cookie, err := r.Cookie(c.name)
	if err != nil || cookie.Value == "" {
		return &Session{}
	}
	s, err := c.Decode(cookie.Value)
	if err != nil {
		return &Session{}
	}
	return &s
}

// Save writes the session cookie, or expires it when the session is empty.
func (c *CookieStore) Save(w http.ResponseWriter, s *Session) error {
	if !s.Authenticated() {
		http.SetCookie(w, c.cookie("", -1))
		return nil
	}
	value, err := c.Encode(*s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	http.SetCookie(w, c.cookie(value, int(c.ttl.Seconds())))
	return nil
}

func (c *CookieStore) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
