package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pquerna/otp/totp"
	"github.com/secureblog/apiserver/config"
	"github.com/secureblog/apiserver/internal/audit"
	"github.com/secureblog/apiserver/internal/crypto"
	"github.com/secureblog/apiserver/internal/mfa"
	"github.com/secureblog/apiserver/internal/services"
	"github.com/secureblog/apiserver/internal/session"
	"github.com/secureblog/apiserver/internal/store"
	"github.com/secureblog/apiserver/types"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{nextID: 1, users: map[int]types.User{}}
}

func (m *memUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return user, nil
}

func (m *memUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	m.users[user.ID] = user
	return user, nil
}

type memAccessLogRepo struct {
	mu   sync.Mutex
	logs map[int]types.AccessLog
}

func (m *memAccessLogRepo) GetByUserID(_ context.Context, userID int) (types.AccessLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	log, ok := m.logs[userID]
	if !ok {
		return types.AccessLog{}, store.ErrNotFound
	}
	return log, nil
}

func (m *memAccessLogRepo) Create(_ context.Context, log types.AccessLog) (types.AccessLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.logs == nil {
		m.logs = map[int]types.AccessLog{}
	}
	log.ID = len(m.logs) + 1
	m.logs[log.UserID] = log
	return log, nil
}

func (m *memAccessLogRepo) Update(_ context.Context, log types.AccessLog) (types.AccessLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[log.UserID] = log
	return log, nil
}

type memAuditRepo struct {
	mu     sync.Mutex
	events []types.AuditEvent
}

func (m *memAuditRepo) Append(_ context.Context, event types.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

type testEnv struct {
	server *httptest.Server
	client *http.Client
	users  *memUserRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newMemUserRepo()
	accessLogs := &memAccessLogRepo{}
	audits := &memAuditRepo{}
	logger := zap.NewNop()
	auditLog := audit.New(logger, audits, nil, "")

	authService := services.NewAuthService(
		users,
		accessLogs,
		crypto.NewHasher(),
		mfa.NewProvisioner("Secure Blog"),
		auditLog,
		logger,
	)

	sessions := session.NewManager(config.SessionConfig{
		Secret: "test-session-secret",
		Name:   "secureblog_session",
		MaxAge: 3600,
	})
	mw := NewMiddleware(sessions, users, auditLog)

	router := chi.NewRouter()
	router.Use(mw.WithUser)
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, authService, sessions, mw)
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testEnv{server: server, client: client, users: users}
}

func (e *testEnv) postJSON(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := e.client.Post(e.server.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func (e *testEnv) get(t *testing.T, path string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp, decodeBody(t, resp)
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func (e *testEnv) register(t *testing.T, email, password string) string {
	t.Helper()
	resp, body := e.postJSON(t, "/auth/register", map[string]string{
		"email":      email,
		"first_name": "Alice",
		"last_name":  "Author",
		"phone":      "555-0100",
		"password":   password,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	secret, _ := body["mfa_secret"].(string)
	require.NotEmpty(t, secret)
	return secret
}

func (e *testEnv) login(t *testing.T, email, password, token string) (*http.Response, map[string]any) {
	t.Helper()
	return e.postJSON(t, "/auth/login", map[string]string{
		"email":     email,
		"password":  password,
		"mfa_token": token,
	})
}

func currentToken(t *testing.T, secret string) string {
	t.Helper()
	token, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	return token
}

func TestAuthFlow_RegisterLoginAccount(t *testing.T) {
	env := newTestEnv(t)
	secret := env.register(t, "alice@example.com", "Str0ng!Pass")

	resp, body := env.login(t, "alice@example.com", "Str0ng!Pass", currentToken(t, secret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "success", body["result"])
	require.Equal(t, "/posts", body["redirect"])

	resp, body = env.get(t, "/auth/account")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "alice@example.com", body["email"])
	require.Equal(t, true, body["mfa_enabled"])
	_, exposed := body["password_hash"]
	require.False(t, exposed)
}

func TestAuthFlow_RegisterRejectsDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice@example.com", "Str0ng!Pass")

	// A second browser session tries the same email.
	other := newTestEnvClient(t, env)
	resp, body := other.postJSON(t, "/auth/register", map[string]string{
		"email":      "alice@example.com",
		"first_name": "Mallory",
		"last_name":  "Clone",
		"phone":      "555-0101",
		"password":   "An0ther!Pass",
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "Email already exists.", body["error"])
}

// newTestEnvClient returns a fresh client (fresh cookie jar) against the
// same server, i.e. a second independent browser session.
func newTestEnvClient(t *testing.T, env *testEnv) *testEnv {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testEnv{server: env.server, client: client, users: env.users}
}

func TestAuthFlow_WrongTokenBeforeEnrollmentReShowsSecret(t *testing.T) {
	env := newTestEnv(t)
	secret := env.register(t, "alice@example.com", "Str0ng!Pass")

	resp, body := env.login(t, "alice@example.com", "Str0ng!Pass", "000000")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "mfa_setup", body["result"])
	require.Equal(t, secret, body["mfa_secret"])

	// The enrollment branch costs no attempt: three of these in a row
	// must not lock the session.
	for i := 0; i < 3; i++ {
		resp, body = env.login(t, "alice@example.com", "Str0ng!Pass", "000000")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "mfa_setup", body["result"])
	}
}

func TestAuthFlow_LockoutAndUnlock(t *testing.T) {
	env := newTestEnv(t)
	secret := env.register(t, "alice@example.com", "Str0ng!Pass")

	resp, body := env.login(t, "alice@example.com", "Wr0ng!Pass", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "retry", body["result"])
	require.Equal(t, float64(2), body["remaining_attempts"])

	resp, _ = env.login(t, "alice@example.com", "Wr0ng!Pass", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body = env.login(t, "alice@example.com", "Wr0ng!Pass", "")
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "locked", body["result"])
	require.Equal(t, "/auth/unlock", body["unlock"])

	// Correct credentials do not bypass the lock.
	resp, body = env.login(t, "alice@example.com", "Str0ng!Pass", currentToken(t, secret))
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.Equal(t, "locked", body["result"])

	resp, body = env.get(t, "/auth/unlock")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "unlocked", body["result"])

	resp, body = env.login(t, "alice@example.com", "Str0ng!Pass", currentToken(t, secret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "success", body["result"])
}

func TestAuthFlow_LockIsPerSession(t *testing.T) {
	env := newTestEnv(t)
	secret := env.register(t, "alice@example.com", "Str0ng!Pass")

	for i := 0; i < 3; i++ {
		env.login(t, "alice@example.com", "Wr0ng!Pass", "")
	}

	// A different browser session is unaffected by the first one's lock.
	other := newTestEnvClient(t, env)
	resp, body := other.login(t, "alice@example.com", "Str0ng!Pass", currentToken(t, secret))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "success", body["result"])
}

func TestAuthFlow_LogoutEndsSession(t *testing.T) {
	env := newTestEnv(t)
	secret := env.register(t, "alice@example.com", "Str0ng!Pass")

	resp, _ := env.login(t, "alice@example.com", "Str0ng!Pass", currentToken(t, secret))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.postJSON(t, "/auth/logout", map[string]string{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "logged_out", body["result"])

	resp, body = env.get(t, "/auth/account")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "/auth/login", body["redirect"])
}

func TestAuthFlow_AuthenticatedSessionRedirectedFromLogin(t *testing.T) {
	env := newTestEnv(t)
	secret := env.register(t, "alice@example.com", "Str0ng!Pass")

	resp, _ := env.login(t, "alice@example.com", "Str0ng!Pass", currentToken(t, secret))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := env.login(t, "alice@example.com", "Str0ng!Pass", "ignored")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/posts", resp.Header.Get("Location"))
	require.Equal(t, "/posts", body["redirect"])
}

func TestAuthFlow_AnonymousCannotAccessAccount(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.get(t, "/auth/account")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "/auth/login", body["redirect"])
}
