package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-bank/internal/accounts"
	"github.com/odyssey-erp/odyssey-bank/internal/app"
	"github.com/odyssey-erp/odyssey-bank/internal/auth"
	"github.com/odyssey-erp/odyssey-bank/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-bank/internal/shared"
	_ "github.com/odyssey-erp/odyssey-bank/testing"
)

type stubRepo struct {
	mu       sync.Mutex
	accounts map[int64]accounts.Account
	touched  map[int64]time.Time
	findErr  error
}

func newStubRepo(accs ...accounts.Account) *stubRepo {
	s := &stubRepo{accounts: make(map[int64]accounts.Account), touched: make(map[int64]time.Time)}
	for _, acc := range accs {
		s.accounts[acc.ID] = acc
	}
	return s
}

func (s *stubRepo) FindByEmail(_ context.Context, email string) (accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return accounts.Account{}, s.findErr
	}
	for _, acc := range s.accounts {
		if acc.Email == email {
			return acc, nil
		}
	}
	return accounts.Account{}, accounts.ErrAccountNotFound
}

func (s *stubRepo) FindByID(_ context.Context, id int64) (accounts.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return accounts.Account{}, accounts.ErrAccountNotFound
	}
	return acc, nil
}

func (s *stubRepo) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touched[id] = at
	return nil
}

type auditSpy struct {
	mu      sync.Mutex
	actions []string
}

func (a *auditSpy) Record(_ context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, log.Action)
	return nil
}

type fixture struct {
	router   http.Handler
	repo     *stubRepo
	sessions *shared.SessionManager
	redis    *miniredis.Miniredis
	audit    *auditSpy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newLimitedFixture(t, 0)
}

func newLimitedFixture(t *testing.T, loginLimit int) *fixture {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	repo := newStubRepo(accounts.Account{
		ID: 1, Name: "Alice", Email: "alice@example.com", PasswordHash: string(hash),
		Kind: accounts.KindNatural, TaxID: "12345678901",
	})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "test_session", 30*time.Minute, false)

	spy := &auditSpy{}
	respond := app.NewResponder(nil)
	service := auth.NewService(repo, sessions, spy, nil)
	handler := auth.NewHandler(nil, service, sessions, httpx.NewValidator(), respond, loginLimit)

	r := chi.NewRouter()
	r.Route("/api/v1/user", handler.MountRoutes)
	r.With(auth.Middleware(service, respond)).Get("/whoami", func(w http.ResponseWriter, r *http.Request) {
		acc, _ := accounts.FromContext(r.Context())
		httpx.Success(w, http.StatusOK, "ok", map[string]int64{"id": acc.ID})
	})
	return &fixture{router: r, repo: repo, sessions: sessions, redis: mr, audit: spy}
}

func (f *fixture) do(t *testing.T, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return rr, body
}

func loginRequest(email, password string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/login",
		strings.NewReader(`{"email":"`+email+`","password":"`+password+`"}`))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestLoginIssuesTokenAndCookies(t *testing.T) {
	f := newFixture(t)

	rr, body := f.do(t, loginRequest("alice@example.com", "secret1"))
	require.Equal(t, http.StatusOK, rr.Code)
	data := body["data"].(map[string]any)
	token := data["token"].(string)
	require.NotEmpty(t, token)
	user := data["user"].(map[string]any)
	assert.Equal(t, "NATURAL", user["type"])
	assert.Equal(t, "alice@example.com", user["email"])

	assert.True(t, f.redis.Exists("test_session:"+token))
	assert.Contains(t, f.repo.touched, int64(1))
	assert.Equal(t, []string{"auth.login"}, f.audit.actions)

	names := map[string]string{}
	for _, c := range rr.Result().Cookies() {
		names[c.Name] = c.Value
	}
	assert.Equal(t, "Bearer "+token, names[shared.AuthCookieName])
	assert.Equal(t, "true", names[shared.AuthMarkerCookieName])
}

func TestLoginRateLimitUsesEnvelope(t *testing.T) {
	f := newLimitedFixture(t, 1)

	rr, _ := f.do(t, loginRequest("alice@example.com", "nope123"))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr, body := f.do(t, loginRequest("alice@example.com", "secret1"))
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "RATE_LIMITED", body["error_code"])
	assert.Empty(t, f.repo.touched)
}

func TestLoginInvalidCredentials(t *testing.T) {
	cases := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: "alice@example.com", password: "nope123"},
		{name: "unknown email", email: "bob@example.com", password: "secret1"},
		{name: "email case differs", email: "Alice@example.com", password: "secret1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			rr, body := f.do(t, loginRequest(tc.email, tc.password))
			require.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.Equal(t, "INVALID_CREDENTIALS", body["error_code"])
			assert.Empty(t, f.repo.touched)
		})
	}
}

func TestLoginStorageFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	f.repo.findErr = errors.New("connection refused")

	rr, body := f.do(t, loginRequest("alice@example.com", "secret1"))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection refused")
	assert.NotEqual(t, "INVALID_CREDENTIALS", body["error_code"])
}

func TestMiddlewareAcceptsCookieAndHeader(t *testing.T) {
	f := newFixture(t)
	_, body := f.do(t, loginRequest("alice@example.com", "secret1"))
	token := body["data"].(map[string]any)["token"].(string)

	viaHeader := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	viaHeader.Header.Set("Authorization", "Bearer "+token)
	rr, body := f.do(t, viaHeader)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, float64(1), body["data"].(map[string]any)["id"])

	viaCookie := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	viaCookie.AddCookie(&http.Cookie{Name: shared.AuthCookieName, Value: "Bearer " + token})
	rr, _ = f.do(t, viaCookie)
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestMiddlewareRejectsMissingAndExpiredTokens(t *testing.T) {
	f := newFixture(t)
	_, body := f.do(t, loginRequest("alice@example.com", "secret1"))
	token := body["data"].(map[string]any)["token"].(string)

	rr, body := f.do(t, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "INVALID_TOKEN", body["error_code"])
	assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))

	f.redis.FastForward(31 * time.Minute)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr, body = f.do(t, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "INVALID_TOKEN", body["error_code"])
}

func TestMiddlewareRejectsOrphanedSession(t *testing.T) {
	f := newFixture(t)
	sess, err := f.sessions.Create(context.Background(), 404, "", "")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", sess.ID)
	rr, body := f.do(t, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "INVALID_TOKEN", body["error_code"])
}

func TestLogoutRevokesSession(t *testing.T) {
	f := newFixture(t)
	_, body := f.do(t, loginRequest("alice@example.com", "secret1"))
	token := body["data"].(map[string]any)["token"].(string)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/user/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr, _ := f.do(t, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, f.redis.Exists("test_session:"+token))
	for _, c := range rr.Result().Cookies() {
		assert.Equal(t, -1, c.MaxAge)
	}
	assert.Equal(t, []string{"auth.login", "auth.logout"}, f.audit.actions)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/user/logout", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr, _ = f.do(t, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
