package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/portal-be/internal/accounts"
	"github.com/hongminglow/portal-be/internal/auth"
	"github.com/hongminglow/portal-be/internal/middleware"
	"github.com/hongminglow/portal-be/internal/storage"
	"github.com/hongminglow/portal-be/internal/storage/memory"
)

const (
	rootEmail    = "root@portal.test"
	rootUsername = "root"
	rootPassword = "rootpass"
)

type harness struct {
	t       *testing.T
	baseURL string
	service *accounts.Service
}

func newHarness(t *testing.T, store storage.UserStore) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	hasher := auth.NewBcryptHasher(bcrypt.MinCost)
	service := accounts.NewService(store, hasher, accounts.Options{PrimaryAdminEmail: rootEmail, Logger: logger})
	gate, err := accounts.NewGate(store, hasher, logger)
	require.NoError(t, err)
	cookies := auth.NewCookieStore(auth.CookieOptions{
		Name:   "portal_session",
		Secret: "test-secret",
		Issuer: "portal-test",
		TTL:    time.Hour,
	})

	mux := http.NewServeMux()
	NewHealthHandler(time.Now()).Register(mux)
	NewAuthHandler(service, gate, cookies, logger).Register(mux)
	NewAdminHandler(service, gate, logger).Register(mux)

	srv := httptest.NewServer(middleware.Sessions(cookies, mux))
	t.Cleanup(srv.Close)

	require.NoError(t, service.EnsurePrimaryAdmin(context.Background(), rootUsername, rootPassword))
	return &harness{t: t, baseURL: srv.URL, service: service}
}

// client returns a browser-like client with its own cookie jar.
func (h *harness) client() *http.Client {
	jar, err := cookiejar.New(nil)
	require.NoError(h.t, err)
	return &http.Client{Jar: jar}
}

func (h *harness) do(c *http.Client, method, path string, body any) (int, map[string]any) {
	h.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(h.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, h.baseURL+path, reader)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	require.NoError(h.t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (h *harness) login(c *http.Client, identifier, password string) (int, map[string]any) {
	h.t.Helper()
	return h.do(c, http.MethodPost, "/api/auth/login", map[string]string{"username": identifier, "password": password})
}

func (h *harness) register(c *http.Client, username, email, password string) (int, map[string]any) {
	h.t.Helper()
	return h.do(c, http.MethodPost, "/api/auth/register", map[string]string{
		"username": username, "email": email, "password": password,
	})
}

func (h *harness) adminClient() *http.Client {
	h.t.Helper()
	c := h.client()
	status, _ := h.login(c, rootUsername, rootPassword)
	require.Equal(h.t, http.StatusOK, status)
	return c
}

func userField(body map[string]any, key string) any {
	user, _ := body["user"].(map[string]any)
	return user[key]
}

func TestRegisterApproveLoginFlow(t *testing.T) {
	h := newHarness(t, memory.New())
	alice := h.client()

	status, body := h.register(alice, "alice", "alice@x.com", "secret1")
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "Registration successful. Your account is pending approval by an administrator.", body["message"])
	id, ok := body["user_id"].(float64)
	require.True(t, ok)

	status, body = h.login(alice, "alice", "secret1")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Your account is pending approval by an administrator", body["error"])

	admin := h.adminClient()
	status, body = h.do(admin, http.MethodGet, "/api/admin/users/pending", nil)
	require.Equal(t, http.StatusOK, status)
	pending, _ := body["pending_users"].([]any)
	require.Len(t, pending, 1)
	assert.Equal(t, "alice", pending[0].(map[string]any)["username"])
	assert.NotContains(t, pending[0].(map[string]any), "password_hash")

	status, body = h.do(admin, http.MethodPost, "/api/admin/users/"+formatID(id)+"/approve", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "User alice approved successfully", body["message"])
	assert.Equal(t, true, userField(body, "is_approved"))

	status, body = h.login(alice, "ALICE@X.COM", "secret1")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Login successful", body["message"])
	assert.NotNil(t, userField(body, "last_login"))

	status, body = h.do(alice, http.MethodGet, "/api/auth/me", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "alice", userField(body, "username"))

	status, body = h.do(alice, http.MethodGet, "/api/auth/check-session", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["authenticated"])
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t, memory.New())
	c := h.client()
	_, _ = h.register(c, "taken", "taken@x.com", "secret1")

	cases := []struct {
		name string
		body any
		want string
	}{
		{"empty body", nil, "No data provided"},
		{"null body", "null", "No data provided"},
		{"empty object", "{}", "No data provided"},
		{"missing fields", map[string]string{"username": "bob"}, "Username, email, and password are required"},
		{"short username", map[string]string{"username": "bo", "email": "bo@x.com", "password": "secret1"}, "Username must be at least 3 characters long"},
		{"bad email", map[string]string{"username": "bobby", "email": "bobby-at-x", "password": "secret1"}, "Invalid email format"},
		{"short password", map[string]string{"username": "bobby", "email": "bobby@x.com", "password": "12345"}, "Password must be at least 6 characters long"},
		{"duplicate username", map[string]string{"username": "taken", "email": "new@x.com", "password": "secret1"}, "Username already exists"},
		{"duplicate email", map[string]string{"username": "fresh", "email": "TAKEN@x.com", "password": "secret1"}, "Email already registered"},
		{"long username", map[string]string{"username": strings.Repeat("u", 81), "email": "long@x.com", "password": "secret1"}, "Username must be at most 80 characters long"},
		{"malformed json", "{", "invalid JSON payload"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := h.do(c, http.MethodPost, "/api/auth/register", tc.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tc.want, body["error"])
		})
	}
}

func TestLoginFailures(t *testing.T) {
	h := newHarness(t, memory.New())
	c := h.client()

	status, body := h.login(c, rootUsername, "wrong-password")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body["error"])

	status, body = h.login(c, "ghost", "wrong-password")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials", body["error"])

	status, body = h.login(c, "", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Username/email and password are required", body["error"])

	status, body = h.do(c, http.MethodGet, "/api/auth/check-session", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["authenticated"])
	assert.NotContains(t, body, "user")
}

func TestLogoutEndsSession(t *testing.T) {
	h := newHarness(t, memory.New())
	admin := h.adminClient()

	status, body := h.do(admin, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Logged out successfully", body["message"])

	status, body = h.do(admin, http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Not authenticated", body["error"])

	status, _ = h.do(admin, http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusOK, status, "logout without a session still succeeds")
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	h := newHarness(t, memory.New())
	anonymous := h.client()

	_, err := h.service.AdminCreate(context.Background(), accounts.Credentials{
		Username: "carol", Email: "carol@x.com", Password: "secret1",
	}, false)
	require.NoError(t, err)
	carol := h.client()
	status, _ := h.login(carol, "carol", "secret1")
	require.Equal(t, http.StatusOK, status)

	routes := []struct{ method, path string }{
		{http.MethodGet, "/api/admin/users"},
		{http.MethodGet, "/api/admin/users/pending"},
		{http.MethodPost, "/api/admin/users"},
		{http.MethodPost, "/api/admin/users/1/approve"},
		{http.MethodPost, "/api/admin/users/1/reject"},
		{http.MethodPost, "/api/admin/users/1/toggle-admin"},
		{http.MethodGet, "/api/admin/stats"},
	}
	for _, rt := range routes {
		for name, c := range map[string]*http.Client{"anonymous": anonymous, "non-admin": carol} {
			status, body := h.do(c, rt.method, rt.path, map[string]string{})
			assert.Equal(t, http.StatusForbidden, status, "%s %s as %s", rt.method, rt.path, name)
			assert.Equal(t, "Admin access required", body["error"])
		}
	}
}

func TestDemotedAdminLosesAccessImmediately(t *testing.T) {
	h := newHarness(t, memory.New())
	root := h.adminClient()

	deputy, err := h.service.AdminCreate(context.Background(), accounts.Credentials{
		Username: "deputy", Email: "deputy@x.com", Password: "secret1",
	}, true)
	require.NoError(t, err)
	dc := h.client()
	status, _ := h.login(dc, "deputy", "secret1")
	require.Equal(t, http.StatusOK, status)

	status, _ = h.do(dc, http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, status)

	status, body := h.do(root, http.MethodPost, "/api/admin/users/"+formatID(float64(deputy.ID))+"/toggle-admin", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "User deputy admin status updated", body["message"])
	assert.Equal(t, false, userField(body, "is_admin"))

	status, body = h.do(dc, http.MethodGet, "/api/admin/stats", nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "Admin access required", body["error"])
}

func TestRejectAndToggleRules(t *testing.T) {
	h := newHarness(t, memory.New())
	root := h.adminClient()

	status, body := h.register(h.client(), "bob", "bob@x.com", "secret1")
	require.Equal(t, http.StatusCreated, status)
	bobID := formatID(body["user_id"].(float64))

	status, body = h.do(root, http.MethodGet, "/api/admin/users", nil)
	require.Equal(t, http.StatusOK, status)
	users := body["users"].([]any)
	require.Len(t, users, 2)
	rootID := formatID(users[0].(map[string]any)["id"].(float64))

	status, body = h.do(root, http.MethodPost, "/api/admin/users/"+rootID+"/reject", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Cannot reject admin users", body["error"])

	status, body = h.do(root, http.MethodPost, "/api/admin/users/"+rootID+"/toggle-admin", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Cannot remove admin status from primary admin", body["error"])

	status, body = h.do(root, http.MethodPost, "/api/admin/users/"+bobID+"/reject", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "User bob rejected and removed", body["message"])

	for _, action := range []string{"approve", "reject", "toggle-admin"} {
		status, body = h.do(root, http.MethodPost, "/api/admin/users/"+bobID+"/"+action, nil)
		assert.Equal(t, http.StatusNotFound, status, action)
		assert.Equal(t, "User not found", body["error"])
	}

	status, body = h.do(root, http.MethodPost, "/api/admin/users/abc/approve", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "User not found", body["error"])

	status, _ = h.register(h.client(), "bob", "bob@x.com", "secret1")
	assert.Equal(t, http.StatusCreated, status, "a rejected identity can register again")
}

func TestAdminCreateAndStats(t *testing.T) {
	h := newHarness(t, memory.New())
	root := h.adminClient()

	status, body := h.do(root, http.MethodPost, "/api/admin/users", map[string]any{
		"username": "erin", "email": "erin@x.com", "password": "secret1", "is_admin": true,
	})
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "User created successfully", body["message"])
	assert.Equal(t, true, userField(body, "is_admin"))
	assert.Equal(t, true, userField(body, "is_approved"))

	status, body = h.do(root, http.MethodPost, "/api/admin/users", map[string]any{
		"username": "erin", "email": "erin2@x.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Username already exists", body["error"])

	status, _ = h.login(h.client(), "erin", "secret1")
	assert.Equal(t, http.StatusOK, status, "admin-created accounts can log in immediately")

	_, _ = h.register(h.client(), "frank", "frank@x.com", "secret1")

	status, body = h.do(root, http.MethodGet, "/api/admin/stats", nil)
	require.Equal(t, http.StatusOK, status)
	stats := body["stats"].(map[string]any)
	assert.Equal(t, 3.0, stats["total_users"])
	assert.Equal(t, 2.0, stats["approved_users"])
	assert.Equal(t, 1.0, stats["pending_users"])
	assert.Equal(t, 2.0, stats["admin_users"])
}

func TestMeClearsSessionOfRemovedAccount(t *testing.T) {
	h := newHarness(t, memory.New())
	root := h.adminClient()

	user, err := h.service.AdminCreate(context.Background(), accounts.Credentials{
		Username: "gina", Email: "gina@x.com", Password: "secret1",
	}, false)
	require.NoError(t, err)
	gina := h.client()
	status, _ := h.login(gina, "gina", "secret1")
	require.Equal(t, http.StatusOK, status)

	status, _ = h.do(root, http.MethodPost, "/api/admin/users/"+formatID(float64(user.ID))+"/reject", nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = h.do(gina, http.MethodGet, "/api/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, body := h.do(gina, http.MethodGet, "/api/auth/check-session", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["authenticated"])
}

func TestHealth(t *testing.T) {
	h := newHarness(t, memory.New())
	status, body := h.do(h.client(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func formatID(id float64) string {
	return strconv.FormatInt(int64(id), 10)
}
