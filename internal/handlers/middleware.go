package handlers

import (
	"net/http"

	"github.com/secureblog/apiserver/internal/audit"
	"github.com/secureblog/apiserver/internal/auth"
	"github.com/secureblog/apiserver/internal/services"
	"github.com/secureblog/apiserver/internal/session"
	"github.com/secureblog/apiserver/types"
)

// Middleware provides the access-control guards: session resolution,
// authentication, role authorization, and the idempotent
// already-authenticated guard on the login/registration entry points.
type Middleware struct {
	sessions *session.Manager
	users    services.UserRepository
	auditLog *audit.Log
}

func NewMiddleware(sessions *session.Manager, users services.UserRepository, auditLog *audit.Log) *Middleware {
	return &Middleware{sessions: sessions, users: users, auditLog: auditLog}
}

// WithUser resolves the session's identity marker into the account and
// stores it in the request context. A stale or missing identity simply
// leaves the request anonymous.
func (m *Middleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := m.sessions.UserID(r); ok {
			if user, err := m.users.GetByID(r.Context(), id); err == nil && user.Active {
				r = r.WithContext(withUser(r.Context(), user))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects anonymous requests. The unauthenticated response
// carries the login destination and is distinct from Forbidden.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := userFromContext(r.Context()); !ok {
			writeJSON(w, http.StatusUnauthorized, ErrorResponse{
				Error:    "You must be logged in to access this page.",
				Redirect: auth.DestLogin,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRoles rejects requests whose session role is outside the
// required set. Anonymous requests are rejected as unauthenticated
// first; an authenticated but under-privileged one gets Forbidden and
// an unauthorized audit entry.
func (m *Middleware) RequireRoles(roles ...types.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userFromContext(r.Context())
			if !ok {
				writeJSON(w, http.StatusUnauthorized, ErrorResponse{
					Error:    "You must be logged in to access this page.",
					Redirect: auth.DestLogin,
				})
				return
			}
			if !auth.Authorized(user.Role, roles...) {
				m.auditLog.Record(r.Context(), types.AuditEvent{
					Severity: types.SeverityWarning,
					Category: types.AuditUnauthorized,
					Email:    user.Email,
					Role:     string(user.Role),
					IP:       r.RemoteAddr,
					Message:  "Unauthorized access attempt: " + r.URL.Path,
				})
				writeError(w, http.StatusForbidden, "You do not have permission to access this page.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AnonymousOnly redirects an already-authenticated session away from the
// login and registration entry points, to its role's landing page.
func (m *Middleware) AnonymousOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := userFromContext(r.Context()); ok {
			dest := auth.Landing(user.Role)
			w.Header().Set("Location", dest)
			writeJSON(w, http.StatusSeeOther, ErrorResponse{
				Error:    "You are already logged in. Redirecting you to your main page.",
				Redirect: dest,
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
