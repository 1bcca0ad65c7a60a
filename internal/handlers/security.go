package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/secureblog/apiserver/internal/audit"
	"github.com/secureblog/apiserver/internal/services"
	"github.com/secureblog/apiserver/types"
)

// SecurityHandler serves the security dashboard and log archiving.
type SecurityHandler struct {
	security *services.SecurityService
	archiver *audit.Archiver
}

// NewSecurityHandler constructs a SecurityHandler. archiver may be nil
// when no object-storage backend is configured.
func NewSecurityHandler(security *services.SecurityService, archiver *audit.Archiver) *SecurityHandler {
	return &SecurityHandler{security: security, archiver: archiver}
}

// SecurityRouter registers security dashboard routes, restricted to the
// security administrator role.
func SecurityRouter(r chi.Router, security *services.SecurityService, archiver *audit.Archiver, mw *Middleware) {
	handler := NewSecurityHandler(security, archiver)

	r.Use(mw.RequireRoles(types.RoleSecAdmin))
	r.Get("/", handler.Dashboard)
	r.Post("/archive", handler.Archive)
}

// Dashboard returns the most recent audit entries plus all account
// access logs. ?limit= bounds the entry count.
func (h *SecurityHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	dashboard, err := h.security.Dashboard(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// Archive uploads the current security log to object storage.
func (h *SecurityHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if h.archiver == nil {
		writeError(w, http.StatusServiceUnavailable, "log archiving is not configured")
		return
	}

	key, err := h.archiver.Archive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to archive security log")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"archived": key})
}
