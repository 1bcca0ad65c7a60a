package session

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/secureblog/apiserver/config"
	"github.com/secureblog/apiserver/internal/auth"
)

const (
	attemptsKey = "attempts"
	userIDKey   = "user_id"
)

// Manager owns the cookie-backed browser session: the login attempt
// counter and the authenticated-identity marker. Everything stored here
// is scoped to one browser session; a new session always starts with an
// open, zeroed attempt counter.
type Manager struct {
	store *sessions.CookieStore
	name  string
}

func NewManager(cfg config.SessionConfig) *Manager {
	store := sessions.NewCookieStore([]byte(cfg.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   cfg.MaxAge,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Manager{store: store, name: cfg.Name}
}

// Attempts returns the session's attempt counter. A missing or
// undecodable cookie yields the open zero state.
func (m *Manager) Attempts(r *http.Request) auth.AttemptState {
	s, _ := m.store.Get(r, m.name)
	count, _ := s.Values[attemptsKey].(int)
	return auth.AttemptState{Count: count}
}

// SaveAttempts persists the attempt counter back into the session.
func (m *Manager) SaveAttempts(w http.ResponseWriter, r *http.Request, state auth.AttemptState) error {
	s, _ := m.store.Get(r, m.name)
	s.Values[attemptsKey] = state.Count
	return s.Save(r, w)
}

// UserID returns the authenticated user id, if the session carries one.
func (m *Manager) UserID(r *http.Request) (int, bool) {
	s, _ := m.store.Get(r, m.name)
	id, ok := s.Values[userIDKey].(int)
	return id, ok && id > 0
}

// SignIn marks the session authenticated and resets the attempt counter.
func (m *Manager) SignIn(w http.ResponseWriter, r *http.Request, userID int) error {
	s, _ := m.store.Get(r, m.name)
	s.Values[userIDKey] = userID
	s.Values[attemptsKey] = 0
	return s.Save(r, w)
}

// SignOut ends the session.
func (m *Manager) SignOut(w http.ResponseWriter, r *http.Request) error {
	s, _ := m.store.Get(r, m.name)
	delete(s.Values, userIDKey)
	s.Options.MaxAge = -1
	return s.Save(r, w)
}
